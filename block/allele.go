package block

// refAltCodes maps the restricted single-token allele alphabet eligible for
// one-byte REFALT packing (§4.7 "if diploid biallelic and all alleles ∈
// {A,T,G,C,.,X,<NON_REF>}, pack as one byte").
var refAltCodes = map[string]byte{
	"A": 0, "T": 1, "G": 2, "C": 3, ".": 4, "X": 5, "<NON_REF>": 6,
}

var refAltSymbols = [...]string{"A", "T", "G", "C", ".", "X", "<NON_REF>"}

// packableAlleles reports whether ref/alts qualify for one-byte REFALT
// packing: exactly one alt, and both tokens drawn from refAltCodes.
func packableAlleles(ref string, alts []string) (refCode, altCode byte, ok bool) {
	if len(alts) != 1 {
		return 0, 0, false
	}
	rc, ok1 := refAltCodes[ref]
	ac, ok2 := refAltCodes[alts[0]]
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return rc, ac, true
}

func packRefAlt(refCode, altCode byte) byte {
	return refCode<<4 | altCode
}

func unpackRefAlt(b byte) (ref, alt string) {
	rc := b >> 4
	ac := b & 0x0F
	ref, alt = "<UNKNOWN>", "<UNKNOWN>"
	if int(rc) < len(refAltSymbols) {
		ref = refAltSymbols[rc]
	}
	if int(ac) < len(refAltSymbols) {
		alt = refAltSymbols[ac]
	}
	return ref, alt
}
