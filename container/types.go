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

// Package container implements the typed data container (one compressed
// byte stream plus an optional stride stream plus a header) that every
// variant-block base/info/format stream is built from.
package container

// Type is the primitive tag carried by a typed stream header. A container
// carries exactly one Type for its data stream.
type Type uint8

const (
	TypeI8 Type = iota
	TypeI16
	TypeI32
	TypeI64
	TypeU8
	TypeU16
	TypeU32
	TypeU64
	TypeF32
	TypeF64
	TypeChar
	TypeBool
	TypeStruct
	TypeUnknown
)

func (t Type) String() string {
	switch t {
	case TypeI8:
		return "i8"
	case TypeI16:
		return "i16"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeU8:
		return "u8"
	case TypeU16:
		return "u16"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	case TypeChar:
		return "char"
	case TypeBool:
		return "bool"
	case TypeStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// IsSignedInt reports whether t is one of the four signed integer widths
// eligible for the sentinel-aware narrowing pass.
func (t Type) IsSignedInt() bool {
	switch t {
	case TypeI8, TypeI16, TypeI32, TypeI64:
		return true
	default:
		return false
	}
}

func (t Type) byteWidth() int {
	switch t {
	case TypeI8, TypeU8, TypeBool:
		return 1
	case TypeI16, TypeU16:
		return 2
	case TypeI32, TypeU32, TypeF32:
		return 4
	case TypeI64, TypeU64, TypeF64:
		return 8
	default:
		return 0
	}
}

// Encoder identifies which C3 compressor produced a stream's compressed
// bytes. Defined here (not in package compress) because it is a header
// field read and written by containers regardless of which codec package
// is linked in.
type Encoder uint8

const (
	EncoderNone Encoder = iota
	EncoderZSTD
	EncoderZPAQ
)

func (e Encoder) String() string {
	switch e {
	case EncoderNone:
		return "none"
	case EncoderZSTD:
		return "zstd"
	case EncoderZPAQ:
		return "zpaq"
	default:
		return "unknown"
	}
}

// Encryption identifies the per-stream encryption mode.
type Encryption uint8

const (
	EncryptionNone Encryption = iota
	EncryptionAESGCM256
)

// StreamHeader describes one typed byte stream (a container carries two:
// data and strides).
type StreamHeader struct {
	Type        Type
	Signed      bool
	MixedStride bool
	Stride      int32 // meaningful only when MixedStride == false
	Encoder     Encoder
	Uniform     bool
	Encryption  Encryption
}
