package permute

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildIsAPermutation(t *testing.T) {
	sites := []Site{
		{
			AlleleA: []AlleleValue{AlleleRef, AlleleRef, AlleleAlt, AlleleMissing},
			AlleleB: []AlleleValue{AlleleRef, AlleleAlt, AlleleAlt, AlleleMissing},
		},
		{
			AlleleA: []AlleleValue{AlleleAlt, AlleleRef, AlleleRef, AlleleMissing},
			AlleleB: []AlleleValue{AlleleAlt, AlleleAlt, AlleleRef, AlleleMissing},
		},
	}

	ppa := Build(4, sites)
	require.Len(t, ppa, 4)

	seen := make(map[uint32]bool)
	for _, v := range ppa {
		require.False(t, seen[v], "duplicate sample index in PPA")
		seen[v] = true
		require.Less(t, v, uint32(4))
	}
}

func TestInvertReconstructsOriginalOrder(t *testing.T) {
	sites := []Site{
		{
			AlleleA: []AlleleValue{AlleleRef, AlleleRef, AlleleAlt, AlleleMissing, AlleleRef},
			AlleleB: []AlleleValue{AlleleRef, AlleleAlt, AlleleAlt, AlleleMissing, AlleleAlt},
		},
	}
	ppa := Build(5, sites)
	inv := Invert(ppa)

	// original[s] placed at rank ppa^-1... i.e. for every sample s,
	// ppa[inv[s]] == s.
	for s := 0; s < 5; s++ {
		require.Equal(t, uint32(s), ppa[inv[s]])
	}
}

func TestNoQualifyingSitesLeavesIdentityOrder(t *testing.T) {
	ppa := Build(3, nil)
	require.Equal(t, []uint32{0, 1, 2}, ppa)
}

func TestQualifies(t *testing.T) {
	require.True(t, Qualifies(2, 2, false))
	require.False(t, Qualifies(2, 2, true))
	require.False(t, Qualifies(2, 3, false))
	require.False(t, Qualifies(3, 2, false))
}
