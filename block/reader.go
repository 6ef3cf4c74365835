package block

import (
	"crypto/md5"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/tachyon-archive/tachyon/common"
	"github.com/tachyon-archive/tachyon/compress"
	"github.com/tachyon-archive/tachyon/container"
	"github.com/tachyon-archive/tachyon/crypt"
	"github.com/tachyon-archive/tachyon/gt"
	"github.com/tachyon-archive/tachyon/iobuf"
	"github.com/tachyon-archive/tachyon/permute"
)

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// ReaderWithKeychain supplies the keychain used to decrypt encrypted streams.
func ReaderWithKeychain(kc *crypt.Keychain) ReaderOption {
	return func(r *Reader) { r.keychain = kc }
}

// ReaderWithLogger attaches a logger to the Reader; decoding writes no log
// entries to it.
func ReaderWithLogger(l *zap.Logger) ReaderOption {
	return func(r *Reader) { r.logger = l }
}

// decodedStream holds one stream's plaintext, decompressed, MD5-verified
// contents reshaped into per-entry values (§4.9, inverse of container.Add*).
type decodedStream struct {
	header  container.StreamHeader
	ints    []int32   // for signed-int streams, widened back to i32 (P6)
	floats  []float32 // for f32 streams
	raw     []byte     // for char/struct streams, concatenated entry bytes
	strides []int32    // per-entry element/byte count; nil if the container had no strides
}

// Reader loads one sealed block footer-first and reconstructs Records from
// its typed streams on demand (§4.9 "decoding a block").
type Reader struct {
	Header Header
	Footer *Footer

	ppaStream    *decodedStream // nil unless Header.HasGTPermuted
	base         [nBaseStreams]*decodedStream
	infoStreams  []*decodedStream
	formatStreams []*decodedStream

	keychain *crypt.Keychain
	logger   *zap.Logger
}

// ReadBlock parses one serialized block (as produced by Writer.Finalize) and
// eagerly decodes every stream (§4.9 step 1 "read header", step 2 "seek to
// footer and verify", step 3 "decode streams by offset").
func ReadBlock(data []byte, opts ...ReaderOption) (*Reader, error) {
	rd := &Reader{logger: zap.NewNop()}
	for _, o := range opts {
		o(rd)
	}

	r := iobuf.NewReader(data)
	header, err := ReadHeader(r)
	if err != nil {
		return nil, fmt.Errorf("block: %w", err)
	}
	rd.Header = header

	streamStart := HeaderByteSize
	if err := r.Seek(streamStart + int(header.OffsetToFooter)); err != nil {
		return nil, fmt.Errorf("block: seek to footer: %w", err)
	}
	footer, err := ReadFooterFrom(r)
	if err != nil {
		return nil, fmt.Errorf("block: %w", err)
	}
	rd.Footer = footer

	streamSection := data[streamStart : streamStart+int(header.OffsetToFooter)]

	idx := 0
	next := func(i int) int {
		if i+1 < len(footer.StreamOffsets) {
			return int(footer.StreamOffsets[i+1])
		}
		return len(streamSection)
	}

	if header.HasGTPermuted {
		raw := streamSection[footer.StreamOffsets[idx]:next(idx)]
		ds, err := readStream(raw, rd.keychain)
		if err != nil {
			return nil, fmt.Errorf("block: ppa stream: %w", err)
		}
		rd.ppaStream = ds
		idx++
	}

	for s := 0; s < int(nBaseStreams); s++ {
		raw := streamSection[footer.StreamOffsets[idx]:next(idx)]
		ds, err := readStream(raw, rd.keychain)
		if err != nil {
			return nil, fmt.Errorf("block: stream %s: %w", BaseStream(s), err)
		}
		rd.base[s] = ds
		idx++
	}

	rd.infoStreams = make([]*decodedStream, len(footer.InfoDict))
	for i := range rd.infoStreams {
		raw := streamSection[footer.StreamOffsets[idx]:next(idx)]
		ds, err := readStream(raw, rd.keychain)
		if err != nil {
			return nil, fmt.Errorf("block: info stream %d: %w", i, err)
		}
		rd.infoStreams[i] = ds
		idx++
	}

	rd.formatStreams = make([]*decodedStream, len(footer.FormatDict))
	for i := range rd.formatStreams {
		raw := streamSection[footer.StreamOffsets[idx]:next(idx)]
		ds, err := readStream(raw, rd.keychain)
		if err != nil {
			return nil, fmt.Errorf("block: format stream %d: %w", i, err)
		}
		rd.formatStreams[i] = ds
		idx++
	}

	return rd, nil
}

// readStream parses one SerializeMeta-framed stream record and decodes it
// into entry-aligned Go values, decrypting first if the container is
// encrypted.
func readStream(raw []byte, kc *crypt.Keychain) (*decodedStream, error) {
	r := iobuf.NewReader(raw)
	c := &container.Container{}
	dataLen, strideLen, err := c.DeserializeMeta(r)
	if err != nil {
		return nil, err
	}
	data, err := r.ReadBytes(dataLen)
	if err != nil {
		return nil, err
	}
	c.Data = append([]byte(nil), data...)
	if strideLen > 0 {
		stride, err := r.ReadBytes(strideLen)
		if err != nil {
			return nil, err
		}
		c.Stride = append([]byte(nil), stride...)
	}

	if c.Header.Encryption != container.EncryptionNone {
		if kc == nil {
			return nil, fmt.Errorf("%w: encrypted stream but no keychain supplied", common.ErrFormat)
		}
		if err := crypt.DecryptContainer(kc, c); err != nil {
			return nil, err
		}
	}

	plainData, err := compress.Decode(c.Header.Encoder, c.Data)
	if err != nil {
		return nil, fmt.Errorf("decompress data: %w", err)
	}
	if md5.Sum(plainData) != c.DataMD5 {
		return nil, fmt.Errorf("%w: data stream checksum mismatch", common.ErrIntegrity)
	}

	ds := &decodedStream{header: c.Header}

	switch {
	case c.Header.Type.IsSignedInt():
		vals, err := container.Widen(c.Header.Type, plainData)
		if err != nil {
			return nil, err
		}
		ds.ints = vals
	case c.Header.Type == container.TypeF32:
		ds.floats = widenF32(plainData)
	default:
		ds.raw = plainData
	}

	if c.Header.Uniform {
		ds.ints = replicateI32(ds.ints, c.NEntries)
		ds.floats = replicateF32(ds.floats, c.NEntries)
	}

	if c.StrideHeader.MixedStride {
		plainStride, err := compress.Decode(c.StrideHeader.Encoder, c.Stride)
		if err != nil {
			return nil, fmt.Errorf("decompress stride: %w", err)
		}
		if md5.Sum(plainStride) != c.StrideMD5 {
			return nil, fmt.Errorf("%w: stride stream checksum mismatch", common.ErrIntegrity)
		}
		ds.strides = widenUnsigned(c.StrideHeader.Type, plainStride)
	} else if c.StrideHeader.Stride > 0 || c.NStrides > 0 {
		ds.strides = make([]int32, c.NStrides)
		for i := range ds.strides {
			ds.strides[i] = c.StrideHeader.Stride
		}
	}

	return ds, nil
}

func widenF32(buf []byte) []float32 {
	r := iobuf.NewReader(buf)
	out := make([]float32, 0, len(buf)/4)
	for r.Len() > 0 {
		v, err := r.ReadUint32()
		if err != nil {
			break
		}
		out = append(out, math.Float32frombits(v))
	}
	return out
}

func widenUnsigned(t container.Type, buf []byte) []int32 {
	r := iobuf.NewReader(buf)
	var out []int32
	for r.Len() > 0 {
		switch t {
		case container.TypeU8:
			b, err := r.ReadByte()
			if err != nil {
				return out
			}
			out = append(out, int32(b))
		case container.TypeU16:
			v, err := r.ReadUint16()
			if err != nil {
				return out
			}
			out = append(out, int32(v))
		default:
			v, err := r.ReadUint32()
			if err != nil {
				return out
			}
			out = append(out, int32(v))
		}
	}
	return out
}

func replicateI32(vals []int32, n int) []int32 {
	if len(vals) != 1 || n <= 1 {
		return vals
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = vals[0]
	}
	return out
}

func replicateF32(vals []float32, n int) []float32 {
	if len(vals) != 1 || n <= 1 {
		return vals
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = vals[0]
	}
	return out
}

// NVariants returns the number of records in the block.
func (r *Reader) NVariants() int { return int(r.Header.NVariants) }

// gtCursor tracks how many bytes of a shared (method, word) genotype stream
// have already been consumed by earlier variants, since every variant's
// NRuns-sized slice of run-words is appended back to back (§4.7 step 2).
type gtCursor struct {
	pos [4][4]int // [method-1][word]
}

func (c *gtCursor) take(method gt.Method, word gt.WordWidth, nBytes int) (start int) {
	start = c.pos[method-1][word]
	c.pos[method-1][word] = start + nBytes
	return start
}

// Records decodes every base/info/format/genotype stream into Record values
// in storage order, applying the PPA inverse when the block's genotypes were
// permuted so the returned per-sample order matches the original import
// order (P3).
func (r *Reader) Records() ([]*Record, error) {
	n := int(r.Header.NVariants)
	records := make([]*Record, n)

	var ppaInv []uint32
	if r.Header.HasGTPermuted && r.ppaStream != nil {
		raw := r.ppaStream.raw
		if len(raw)%32 == 0 {
			untransposed, err := compress.Untranspose(raw)
			if err != nil {
				return nil, err
			}
			raw = untransposed
		}
		ppa := make([]uint32, len(raw)/4)
		br := iobuf.NewReader(raw)
		for i := range ppa {
			v, err := br.ReadUint32()
			if err != nil {
				return nil, err
			}
			ppa[i] = v
		}
		ppaInv = permute.Invert(ppa)
	}

	var cursor gtCursor
	infoCursor := make([]int, len(r.infoStreams))
	formatCursor := make([]int, len(r.formatStreams))
	for i := 0; i < n; i++ {
		rec := &Record{
			ContigID: uint32(r.base[StreamContig].ints[i]),
			Position: int64(r.base[StreamPosition].ints[i]),
		}
		if i < len(r.base[StreamNames].strides) {
			rec.Name = sliceRaw(r.base[StreamNames], i)
		}

		ctrl := UnpackController(uint16(r.base[StreamController].ints[i]))

		if ctrl.AllelesPacked {
			b := r.base[StreamRefAlt].raw[allelesPackedCursor(r, i)]
			ref, alt := unpackRefAlt(b)
			rec.Ref, rec.Alts = ref, []string{alt}
		} else {
			ref, alts, err := decodeAlleles(r.base[StreamAlleles], allelesUnpackedCursor(r, i))
			if err != nil {
				return nil, fmt.Errorf("block: alleles at record %d: %w", i, err)
			}
			rec.Ref, rec.Alts = ref, alts
		}

		qual := r.base[StreamQuality].floats[i]
		if !math.IsNaN(float64(qual)) {
			rec.HasQual = true
			rec.Qual = qual
		}

		filterPatIdx := int(r.base[StreamIDFilter].ints[i])
		for _, localID := range r.Footer.FilterPatterns.At(filterPatIdx).LocalIDs {
			rec.FilterGlobalIDs = append(rec.FilterGlobalIDs, r.Footer.FilterDict[localID])
		}

		infoPatIdx := int(r.base[StreamIDInfo].ints[i])
		for _, localID := range r.Footer.InfoPatterns.At(infoPatIdx).LocalIDs {
			field, err := readInfoField(r.infoStreams[localID], infoCursor[localID], r.Footer.InfoDict[localID])
			if err != nil {
				return nil, fmt.Errorf("block: info field at record %d: %w", i, err)
			}
			infoCursor[localID]++
			rec.Info = append(rec.Info, field)
		}

		formatPatIdx := int(r.base[StreamIDFormat].ints[i])
		nSamples := int(r.Header.NSamples)
		for _, localID := range r.Footer.FormatPatterns.At(formatPatIdx).LocalIDs {
			field, err := readFormatField(r.formatStreams[localID], formatCursor[localID], r.Footer.FormatDict[localID], nSamples)
			if err != nil {
				return nil, fmt.Errorf("block: format field at record %d: %w", i, err)
			}
			formatCursor[localID]++
			rec.Format = append(rec.Format, field)
		}

		ploidy := int(r.base[StreamGTPloidy].ints[i])
		if ctrl.GTAvailable && ploidy > 0 {
			sup := unpackGTSupport(r.base[StreamGTSupport].ints[i])
			stream := r.base[gtStreamFor(sup.Method, sup.Word)]
			wordBytes := sup.Word.Bytes()
			start := cursor.take(sup.Method, sup.Word, sup.NRuns*wordBytes)
			runBytes := stream.raw[start : start+sup.NRuns*wordBytes]

			gtn, err := decodeGenotype(runBytes, sup, ploidy)
			if err != nil {
				return nil, fmt.Errorf("block: genotype at record %d: %w", i, err)
			}
			if ppaInv != nil && ploidy == 2 {
				gtn = uninvertGenotype(gtn, ppaInv)
			}
			rec.GT = gtn
		}

		records[i] = rec
	}

	return records, nil
}

// sliceRaw reassembles the i-th variable-stride entry of a char/struct
// stream as a string, using its stride slice for element lengths.
func sliceRaw(ds *decodedStream, i int) string {
	var off int32
	for j := 0; j < i; j++ {
		off += ds.strides[j]
	}
	n := ds.strides[i]
	return string(ds.raw[off : off+n])
}

func allelesPackedCursor(r *Reader, i int) int {
	count := 0
	for j := 0; j < i; j++ {
		ctrl := UnpackController(uint16(r.base[StreamController].ints[j]))
		if ctrl.AllelesPacked {
			count++
		}
	}
	return count
}

func allelesUnpackedCursor(r *Reader, i int) int {
	count := 0
	for j := 0; j < i; j++ {
		ctrl := UnpackController(uint16(r.base[StreamController].ints[j]))
		if !ctrl.AllelesPacked {
			count++
		}
	}
	return count
}

// decodeAlleles reads the entryIdx-th ALLELES record: a stride-delimited run
// of [u16 len][bytes] tokens, first token REF and the rest ALT (mirrors
// Writer.Finalize's non-packable ALLELES encoding). Entries before entryIdx
// must be skipped token-by-token since ALLELES carries no fixed element
// width; the reader walks the buffer once from the start.
func decodeAlleles(ds *decodedStream, entryIdx int) (ref string, alts []string, err error) {
	br := iobuf.NewReader(ds.raw)
	for j := 0; j < entryIdx; j++ {
		for t := 0; t < int(ds.strides[j]); t++ {
			l, err := br.ReadUint16()
			if err != nil {
				return "", nil, err
			}
			if _, err := br.ReadBytes(int(l)); err != nil {
				return "", nil, err
			}
		}
	}

	nTokens := int(ds.strides[entryIdx])
	tokens := make([]string, nTokens)
	for t := 0; t < nTokens; t++ {
		l, err := br.ReadUint16()
		if err != nil {
			return "", nil, err
		}
		b, err := br.ReadBytes(int(l))
		if err != nil {
			return "", nil, err
		}
		tokens[t] = string(b)
	}
	if len(tokens) == 0 {
		return "", nil, fmt.Errorf("%w: empty ALLELES entry", common.ErrFormat)
	}
	return tokens[0], tokens[1:], nil
}

func readInfoField(ds *decodedStream, entryIdx int, globalID uint32) (InfoField, error) {
	f := InfoField{GlobalID: globalID, WireType: ds.header.Type}
	switch {
	case ds.header.Type.IsSignedInt():
		start, n := intEntryRange(ds, entryIdx)
		f.Ints = append([]int32(nil), ds.ints[start:start+n]...)
	case ds.header.Type == container.TypeF32:
		start, n := floatEntryRange(ds, entryIdx)
		f.Floats = append([]float32(nil), ds.floats[start:start+n]...)
	default:
		var off int32
		for j := 0; j < entryIdx; j++ {
			off += ds.strides[j]
		}
		n := ds.strides[entryIdx]
		f.Raw = append([]byte(nil), ds.raw[off:off+n]...)
	}
	return f, nil
}

func intEntryRange(ds *decodedStream, entryIdx int) (start, n int) {
	if ds.strides == nil {
		return entryIdx, 1
	}
	for j := 0; j < entryIdx; j++ {
		start += int(ds.strides[j])
	}
	return start, int(ds.strides[entryIdx])
}

func floatEntryRange(ds *decodedStream, entryIdx int) (start, n int) {
	return intEntryRange(ds, entryIdx)
}

func readFormatField(ds *decodedStream, entryIdx int, globalID uint32, nSamples int) (FormatField, error) {
	f := FormatField{GlobalID: globalID, WireType: ds.header.Type}
	switch {
	case ds.header.Type.IsSignedInt():
		f.PerSampleInts = make([][]int32, nSamples)
		start := 0
		for j := 0; j < entryIdx*nSamples; j++ {
			start += int(ds.strides[j])
		}
		for s := 0; s < nSamples; s++ {
			n := int(ds.strides[entryIdx*nSamples+s])
			f.PerSampleInts[s] = append([]int32(nil), ds.ints[start:start+n]...)
			start += n
		}
	case ds.header.Type == container.TypeF32:
		f.PerSampleFloats = make([][]float32, nSamples)
		start := 0
		for j := 0; j < entryIdx*nSamples; j++ {
			start += int(ds.strides[j])
		}
		for s := 0; s < nSamples; s++ {
			n := int(ds.strides[entryIdx*nSamples+s])
			f.PerSampleFloats[s] = append([]float32(nil), ds.floats[start:start+n]...)
			start += n
		}
	}
	return f, nil
}


// decodeGenotype expands one variant's shared-stream run-word slice back
// into per-sample alleles in storage order (§4.6, inverse of gt.Encode).
func decodeGenotype(data []byte, sup gtSupport, ploidy int) (*Genotype, error) {
	var runs []gt.Run
	var err error
	switch sup.Method {
	case gt.MethodM1:
		runs, err = gt.DecodeM1(data, sup.Word, sup.Shift, sup.MixedPhase, sup.GlobalPhase)
	case gt.MethodM2:
		runs, err = gt.DecodeM2(data, sup.Word, sup.Shift, sup.MixedPhase, sup.GlobalPhase)
	case gt.MethodM3:
		runs, err = gt.DecodeM3(data, sup.Word, sup.Shift, sup.MixedPhase, sup.GlobalPhase)
	case gt.MethodM4:
		runs, err = gt.DecodeM4(data, sup.Word, sup.Shift, ploidy, sup.GlobalPhase)
	default:
		return nil, fmt.Errorf("%w: unknown genotype method %d", common.ErrFormat, sup.Method)
	}
	if err != nil {
		return nil, err
	}

	g := &Genotype{Ploidy: ploidy}
	for _, run := range runs {
		for k := uint64(0); k < run.Length; k++ {
			g.Phased = append(g.Phased, run.Phase)
			if sup.Method == gt.MethodM4 {
				g.Alleles = append(g.Alleles, run.NAllele...)
			} else {
				g.Alleles = append(g.Alleles, run.AlleleA, run.AlleleB)
			}
		}
	}
	return g, nil
}

// uninvertGenotype restores original sample order from storage (permuted)
// order using ppaInv (P3): ppaInv[originalIdx] == storageIdx.
func uninvertGenotype(g *Genotype, ppaInv []uint32) *Genotype {
	nSamples := len(g.Phased)
	if nSamples != len(ppaInv) {
		return g
	}
	out := &Genotype{
		Ploidy:  g.Ploidy,
		Phased:  make([]bool, nSamples),
		Alleles: make([]int32, nSamples*g.Ploidy),
	}
	for origIdx := 0; origIdx < nSamples; origIdx++ {
		storageIdx := int(ppaInv[origIdx])
		out.Phased[origIdx] = g.Phased[storageIdx]
		for p := 0; p < g.Ploidy; p++ {
			out.Alleles[origIdx*g.Ploidy+p] = g.Alleles[storageIdx*g.Ploidy+p]
		}
	}
	return out
}
