package block

import "github.com/tachyon-archive/tachyon/gt"

// gtSupport is the per-variant metadata packed into the GT_SUPPORT base
// stream: which method/word decoded this variant's run-group, its phasing
// shape, and how many run-words (or, for M3, per-sample words) belong to
// it in the shared method+word stream.
type gtSupport struct {
	Method      gt.Method
	Word        gt.WordWidth
	MixedPhase  bool
	GlobalPhase bool
	Shift       int
	NRuns       int
}

func (s gtSupport) pack() int32 {
	var v uint32
	v |= uint32(s.Method-1) & 0x3
	v |= (uint32(s.Word) & 0x3) << 2
	if s.MixedPhase {
		v |= 1 << 4
	}
	if s.GlobalPhase {
		v |= 1 << 5
	}
	v |= (uint32(s.Shift) & 0x3F) << 6
	v |= (uint32(s.NRuns) & 0xFFFFF) << 12
	return int32(v)
}

func unpackGTSupport(v int32) gtSupport {
	u := uint32(v)
	return gtSupport{
		Method:      gt.Method(u&0x3) + 1,
		Word:        gt.WordWidth((u >> 2) & 0x3),
		MixedPhase:  (u>>4)&1 != 0,
		GlobalPhase: (u>>5)&1 != 0,
		Shift:       int((u >> 6) & 0x3F),
		NRuns:       int((u >> 12) & 0xFFFFF),
	}
}

// gtStreamFor returns the base stream a method+word combination's run bytes
// are appended to (§3 "Fixed base streams").
func gtStreamFor(method gt.Method, word gt.WordWidth) BaseStream {
	var table [4][4]BaseStream
	table[gt.MethodM1-1] = [4]BaseStream{StreamGTInt8, StreamGTInt16, StreamGTInt32, StreamGTInt64}
	table[gt.MethodM2-1] = table[gt.MethodM1-1]
	table[gt.MethodM3-1] = [4]BaseStream{StreamGTSInt8, StreamGTSInt16, StreamGTSInt32, StreamGTSInt64}
	table[gt.MethodM4-1] = [4]BaseStream{StreamGTNInt8, StreamGTNInt16, StreamGTNInt32, StreamGTNInt64}
	return table[method-1][word]
}
