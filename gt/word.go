package gt

import "github.com/tachyon-archive/tachyon/iobuf"

func wordWidthFromBytes(n int) WordWidth {
	switch n {
	case 1:
		return Word8
	case 2:
		return Word16
	case 4:
		return Word32
	default:
		return Word64
	}
}

func writeWord(buf *iobuf.Writer, word WordWidth, val uint64) {
	switch word {
	case Word8:
		buf.WriteByte(byte(val))
	case Word16:
		buf.WriteUint16(uint16(val))
	case Word32:
		buf.WriteUint32(uint32(val))
	case Word64:
		buf.WriteUint64(val)
	}
}

func readWord(r *iobuf.Reader, word WordWidth) (uint64, error) {
	switch word {
	case Word8:
		b, err := r.ReadByte()
		return uint64(b), err
	case Word16:
		v, err := r.ReadUint16()
		return uint64(v), err
	case Word32:
		v, err := r.ReadUint32()
		return uint64(v), err
	default:
		return r.ReadUint64()
	}
}

// m1Pack/m1Unpack implement the M1 remap table of §4.6 ("the source
// {MISSING=0,EOV=1,REF=2} is remapped through the table {2,3,0} so that
// REF=0 in the packed word"), which is exactly a +2 rotation mod 4 over
// the internal alphabet {missing,eov,ref,alt1} — and thus its own inverse.
func m1Pack(internal int32) uint8   { return uint8((internal + 2) % 4) }
func m1Unpack(packed uint8) int32   { return (int32(packed) + 2) % 4 }
