package container

import "github.com/tachyon-archive/tachyon/common"

// Sentinel integer codes in i32 space: every signed integer stream
// represents MISSING and EOV this way before narrowing, and narrowing must
// preserve them as type-min / type-min+1 at the chosen width (§4.6, P6).
const (
	SentinelMissingI32 = int32(common.MinInt32)
	SentinelEOVI32     = int32(common.MinInt32) + 1
)

// intRange returns the representable [lo, hi] range of a signed integer Type.
func intRange(t Type) (lo, hi int64) {
	switch t {
	case TypeI8:
		return common.MinInt8, common.MaxInt8
	case TypeI16:
		return common.MinInt16, common.MaxInt16
	case TypeI32:
		return common.MinInt32, common.MaxInt32
	case TypeI64:
		return common.MinInt64, common.MaxInt64
	default:
		return 0, 0
	}
}

// narrowSentinels returns the (missing, eov) values at width t — always the
// two lowest representable codes.
func narrowSentinels(t Type) (missing, eov int64) {
	lo, _ := intRange(t)
	return lo, lo + 1
}

// isSentinelI32 reports whether v is one of the two reserved i32 codes.
func isSentinelI32(v int32) bool {
	return v == SentinelMissingI32 || v == SentinelEOVI32
}
