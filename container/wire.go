package container

import "github.com/tachyon-archive/tachyon/iobuf"

// SerializeMeta writes everything needed to interpret the Data/Stride
// buffers that follow in some outer framing: identifier, counts, both
// stream headers, both compressed-buffer lengths and both MD5 digests.
// Mirrors yon_dc_hdr / yon_dc_hdr_obj (original_source/include/data_container.h).
func (c *Container) SerializeMeta(w *iobuf.Writer) {
	w.WriteUint64(c.Identifier)
	w.WriteUint32(uint32(c.NEntries))
	w.WriteUint32(uint32(c.NAdditions))
	w.WriteUint32(uint32(c.NStrides))
	writeStreamHeader(w, c.Header)
	writeStreamHeader(w, c.StrideHeader)
	w.WriteUint32(uint32(len(c.Data)))
	w.WriteUint32(uint32(len(c.Stride)))
	w.WriteBytes(c.DataMD5[:])
	w.WriteBytes(c.StrideMD5[:])
}

// DeserializeMeta reads back everything SerializeMeta wrote except the
// buffer bytes, returning their lengths so the caller can slice them out of
// whatever framing it used to store the plaintext (block reader, crypt).
func (c *Container) DeserializeMeta(r *iobuf.Reader) (dataLen, strideLen int, err error) {
	if c.Identifier, err = r.ReadUint64(); err != nil {
		return 0, 0, err
	}
	ne, err := r.ReadUint32()
	if err != nil {
		return 0, 0, err
	}
	na, err := r.ReadUint32()
	if err != nil {
		return 0, 0, err
	}
	ns, err := r.ReadUint32()
	if err != nil {
		return 0, 0, err
	}
	c.NEntries, c.NAdditions, c.NStrides = int(ne), int(na), int(ns)

	if c.Header, err = readStreamHeader(r); err != nil {
		return 0, 0, err
	}
	if c.StrideHeader, err = readStreamHeader(r); err != nil {
		return 0, 0, err
	}
	dLen, err := r.ReadUint32()
	if err != nil {
		return 0, 0, err
	}
	sLen, err := r.ReadUint32()
	if err != nil {
		return 0, 0, err
	}
	dataMD5, err := r.ReadBytes(16)
	if err != nil {
		return 0, 0, err
	}
	copy(c.DataMD5[:], dataMD5)
	strideMD5, err := r.ReadBytes(16)
	if err != nil {
		return 0, 0, err
	}
	copy(c.StrideMD5[:], strideMD5)
	return int(dLen), int(sLen), nil
}

func writeStreamHeader(w *iobuf.Writer, h StreamHeader) {
	w.WriteByte(byte(h.Type))
	var flags byte
	if h.Signed {
		flags |= 1
	}
	if h.MixedStride {
		flags |= 2
	}
	if h.Uniform {
		flags |= 4
	}
	w.WriteByte(flags)
	w.WriteInt32(h.Stride)
	w.WriteByte(byte(h.Encoder))
	w.WriteByte(byte(h.Encryption))
}

func readStreamHeader(r *iobuf.Reader) (StreamHeader, error) {
	var h StreamHeader
	t, err := r.ReadByte()
	if err != nil {
		return h, err
	}
	flags, err := r.ReadByte()
	if err != nil {
		return h, err
	}
	stride, err := r.ReadInt32()
	if err != nil {
		return h, err
	}
	enc, err := r.ReadByte()
	if err != nil {
		return h, err
	}
	encr, err := r.ReadByte()
	if err != nil {
		return h, err
	}
	h.Type = Type(t)
	h.Signed = flags&1 != 0
	h.MixedStride = flags&2 != 0
	h.Uniform = flags&4 != 0
	h.Stride = stride
	h.Encoder = Encoder(enc)
	h.Encryption = Encryption(encr)
	return h, nil
}
