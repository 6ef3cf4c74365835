// Copyright 2017 The go-ethereum Authors
// (original work)
// Copyright 2024 The Erigon Authors
// (modifications)
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package common holds small helpers shared across the tachyon packages:
// integer limits used by the sentinel-aware narrowing pass, and a
// cryptographically random 64-bit identifier generator used for block
// hashes and keychain entries.
package common

import (
	"crypto/rand"
	"encoding/binary"
)

// Integer limit values, used by the container narrowing pass (container.UpdateContainer)
// to pick the smallest width that represents every value plus the two reserved
// sentinels (MISSING, EOV).
const (
	MaxInt8  = 1<<7 - 1
	MinInt8  = -1 << 7
	MaxInt16 = 1<<15 - 1
	MinInt16 = -1 << 15
	MaxInt32 = 1<<31 - 1
	MinInt32 = -1 << 31
	MaxInt64 = 1<<63 - 1
	MinInt64 = -1 << 63
)

// CeilDiv returns ceil(x/y), used for bit-vector byte widths (pattern maps).
// Returns 0 when y is 0.
func CeilDiv(x, y int) int {
	if y == 0 {
		return 0
	}
	return (x + y - 1) / y
}

// RandUint64 returns a cryptographically random uint64, used to mint block
// hashes and keychain entry identifiers.
func RandUint64() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// AbsDiffUint64 returns the absolute difference of two uint64 values.
func AbsDiffUint64(x, y uint64) uint64 {
	if x > y {
		return x - y
	}
	return y - x
}
