// Copyright (c) 2026 The DSD Nexus Authors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of nexus-core.
//
// nexus-core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// nexus-core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with nexus-core.  If not, see <https://www.gnu.org/licenses/>.

package dst

import (
	"bytes"

	"github.com/icza/bitio"
)

// bitReader is a thin, counted wrapper around bitio.Reader. The DST
// bitstream is read MSB-first within each byte, which is exactly bitio's
// default bit order, so every primitive below maps onto one bitio call.
type bitReader struct {
	br       *bitio.Reader
	totalBit int64
	readBit  int64
}

func newBitReader(frame []byte) *bitReader {
	return &bitReader{
		br:       bitio.NewReader(bytes.NewReader(frame)),
		totalBit: int64(len(frame)) * 8,
	}
}

func (r *bitReader) bitsLeft() int64 {
	return r.totalBit - r.readBit
}

func (r *bitReader) bit() (int, error) {
	b, err := r.br.ReadBool()
	if err != nil {
		return 0, err
	}
	r.readBit++
	if b {
		return 1, nil
	}
	return 0, nil
}

// bits reads n (0..32) bits as an unsigned value, MSB first.
func (r *bitReader) bits(n int) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	v, err := r.br.ReadBits(uint8(n))
	if err != nil {
		return 0, err
	}
	r.readBit += int64(n)
	return uint32(v), nil
}

// sbits reads n bits as a two's-complement signed value.
func (r *bitReader) sbits(n int) (int32, error) {
	v, err := r.bits(n)
	if err != nil {
		return 0, err
	}
	if v&(1<<(uint(n)-1)) != 0 {
		return int32(v) - (1 << uint(n)), nil
	}
	return int32(v), nil
}

// urGolomb reads an unsigned Golomb-Rice code with remainder width k: a
// unary prefix (zero or more 0 bits terminated by a 1, capped at limit)
// followed either by k remainder bits or, once the prefix hits limit, by
// escLen escape bits. This is the textbook Golomb-Rice decode; libdst's
// decoder.c inlines the same logic around a 32-bit read-ahead cache for
// speed, which bitio's streaming reader has no equivalent for.
func (r *bitReader) urGolomb(k, limit, escLen int) (int, error) {
	prefix := 0
	for prefix < limit {
		b, err := r.bit()
		if err != nil {
			return 0, err
		}
		if b != 0 {
			break
		}
		prefix++
	}

	if prefix < limit {
		rem, err := r.bits(k)
		if err != nil {
			return 0, err
		}
		return prefix<<uint(k) | int(rem), nil
	}

	esc, err := r.bits(escLen)
	if err != nil {
		return 0, err
	}
	return int(esc) + limit - 1, nil
}

// srGolombDst reads a signed Golomb-Rice code: an unsigned code followed,
// when nonzero, by a sign bit.
func (r *bitReader) srGolombDst(k int) (int, error) {
	v, err := r.urGolomb(k, int(r.bitsLeft()), 0)
	if err != nil {
		return 0, err
	}
	if v != 0 {
		sign, err := r.bit()
		if err != nil {
			return 0, err
		}
		if sign != 0 {
			v = -v
		}
	}
	return v, nil
}
