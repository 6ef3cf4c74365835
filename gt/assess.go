package gt

import "math"

// bitsFor returns ceil(log2(count)), minimum 1 — the number of bits needed
// to represent `count` distinct symbols.
func bitsFor(count int) int {
	if count <= 1 {
		return 1
	}
	return int(math.Ceil(math.Log2(float64(count))))
}

// m1Shift returns the per-allele field width for M1: 1 bit if MISSING never
// occurs, else 2 (REF/ALT/MISSING).
func m1Shift(hasMissing bool) int {
	if hasMissing {
		return bitsFor(3)
	}
	return bitsFor(2)
}

// m2Shift returns the per-allele field width for M2/M3, covering the full
// internal alphabet actually used by this variant: REF + (nAllele-1) ALTs,
// plus MISSING and/or EOV if present (§4.6).
func m2Shift(nAllele int, hasMissing, hasEOV bool) int {
	count := nAllele + 1
	if hasMissing {
		count++
	}
	if hasEOV {
		count++
	}
	// REF sits at internal code 2, so the largest code is nAllele+1 and
	// nAllele+2 symbols are needed even when MISSING and EOV are absent.
	if count < nAllele+2 {
		count = nAllele + 2
	}
	return bitsFor(count)
}

// bcfWordBytes returns the BCF-style fallback's per-sample word size,
// chosen from the n_allele+1 thresholds 8/128/32768 (grounded on
// genotype_encoder.cpp's costBCFStyle).
func bcfWordBytes(nAllele int) int {
	n := nAllele + 1
	switch {
	case n >= 32768:
		return 8
	case n >= 128:
		return 4
	case n >= 8:
		return 2
	default:
		return 1
	}
}

// packed2 is one diploid run-comparison key.
type packed2 struct {
	a, b  int32
	phase bool
}

// runsFor counts the RLE runs (and whether a candidate word width has
// enough payload bits to hold at least a length of 1) for a sequence of
// diploid genotype keys, given shift bits per allele field and add extra
// bits for a per-run phase flag. A run breaks on a genotype change or when
// the length field would overflow (§4.6 "Assessment cost").
func runsFor(seq []packed2, shift, add int, word WordWidth) (nRuns int, ok bool) {
	headerBits := 2*shift + add
	payloadBits := word.Bits() - headerBits
	if payloadBits <= 0 {
		return 0, false
	}
	if len(seq) == 0 {
		return 0, true
	}
	maxLen := (uint64(1) << uint(payloadBits)) - 1

	nRuns = 1
	runLen := uint64(1)
	cur := seq[0]
	for _, g := range seq[1:] {
		same := g.a == cur.a && g.b == cur.b && (add == 0 || g.phase == cur.phase)
		if same && runLen < maxLen {
			runLen++
			continue
		}
		nRuns++
		cur = g
		runLen = 1
	}
	return nRuns, true
}

var allWordWidths = [...]WordWidth{Word8, Word16, Word32, Word64}

// chooseWidth picks the word width minimizing nRuns*bytesPerWord among
// widths with enough payload bits, per §4.6 "Word-width selection".
func chooseWidth(seq []packed2, shift, add int) (WordWidth, int) {
	best := Word64
	bestCost := -1
	bestRuns := 0
	for _, w := range allWordWidths {
		runs, ok := runsFor(seq, shift, add, w)
		if !ok {
			continue
		}
		cost := runs * w.Bytes()
		if bestCost < 0 || cost < bestCost {
			bestCost = cost
			best = w
			bestRuns = runs
		}
	}
	return best, bestRuns
}
