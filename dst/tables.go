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

import "github.com/dsdnexus/nexus-core/internal/errkind"

const (
	maxChannels = 6
	maxElements = 2 * maxChannels
	filterTaps  = 16
)

// fsetsCodePredCoeff and probsCodePredCoeff are the fixed short-order
// predictors used to delta-code table entries beyond the first
// (method+1) raw coefficients (§10.12/10.13, table 10-1/10-2).
var (
	fsetsCodePredCoeff = [3][3]int8{
		{-8, 0, 0},
		{-16, 8, 0},
		{-9, -5, 6},
	}
	probsCodePredCoeff = [3][3]int8{
		{-8, 0, 0},
		{-16, 8, 0},
		{-24, 24, -8},
	}
)

// dstTable holds one of the two coefficient tables a DST frame carries:
// the prediction filter sets (§10.12) or the probability tables (§10.13).
// Both share the same encoding, parameterized by the caller.
type dstTable struct {
	elements int
	length   [maxElements]int
	coeff    [maxElements][128]int32
}

// readMap decodes the per-channel element mapping (§10.7-10.9): either
// every channel shares element 0, or each channel after the first names
// an existing element or introduces a new one.
func readMap(r *bitReader, t *dstTable, channels int) ([maxChannels]int, error) {
	var m [maxChannels]int
	t.elements = 1

	same, err := r.bit()
	if err != nil {
		return m, err
	}
	if same != 0 {
		return m, nil
	}

	for ch := 1; ch < channels; ch++ {
		width := log2(t.elements) + 1
		v, err := r.bits(width)
		if err != nil {
			return m, err
		}
		switch {
		case int(v) == t.elements:
			m[ch] = int(v)
			t.elements++
			if t.elements >= maxElements {
				return m, errkind.Wrap(errkind.DecodeFailed, "dst.readMap", errTooManyElements)
			}
		case int(v) > t.elements:
			return m, errkind.Wrap(errkind.DecodeFailed, "dst.readMap", errBadMap)
		default:
			m[ch] = int(v)
		}
	}
	return m, nil
}

// readTable decodes one coefficient table (§10.12/10.13). Each element's
// coefficients are either stored raw or delta-coded against a short
// fixed predictor (predCoeff) plus a Golomb-Rice-coded residual.
func readTable(r *bitReader, t *dstTable, predCoeff [3][3]int8, lengthBits, coeffBits int, signed bool, offset int) error {
	for i := 0; i < t.elements; i++ {
		lenBits, err := r.bits(lengthBits)
		if err != nil {
			return err
		}
		t.length[i] = int(lenBits) + 1

		coded, err := r.bit()
		if err != nil {
			return err
		}
		if coded == 0 {
			if err := readUncoded(r, t.coeff[i][:], t.length[i], coeffBits, signed, offset); err != nil {
				return err
			}
			continue
		}

		method, err := r.bits(2)
		if err != nil {
			return err
		}
		if method == 3 {
			return errkind.Wrap(errkind.DecodeFailed, "dst.readTable", errBadMethod)
		}
		if err := readUncoded(r, t.coeff[i][:], int(method)+1, coeffBits, signed, offset); err != nil {
			return err
		}

		lsbSizeU, err := r.bits(3)
		if err != nil {
			return err
		}
		lsbSize := int(lsbSizeU)

		for j := int(method) + 1; j < t.length[i]; j++ {
			x := 0
			for k := 0; k <= int(method); k++ {
				x += int(predCoeff[method][k]) * int(t.coeff[i][j-k-1])
			}
			c, err := r.srGolombDst(lsbSize)
			if err != nil {
				return err
			}
			if x >= 0 {
				c -= (x + 4) / 8
			} else {
				c += (-x + 3) / 8
			}
			if !signed {
				if c < offset || c >= offset+(1<<uint(coeffBits)) {
					return errkind.Wrap(errkind.DecodeFailed, "dst.readTable", errCoeffRange)
				}
			}
			t.coeff[i][j] = int32(c)
		}
	}
	return nil
}

func readUncoded(r *bitReader, dst []int32, elements, coeffBits int, signed bool, offset int) error {
	for i := 0; i < elements; i++ {
		var v int32
		if signed {
			sv, err := r.sbits(coeffBits)
			if err != nil {
				return err
			}
			v = sv
		} else {
			uv, err := r.bits(coeffBits)
			if err != nil {
				return err
			}
			v = int32(uv)
		}
		dst[i] = v + int32(offset)
	}
	return nil
}

// buildFilter expands a prediction filter-coefficient table into the
// 16x256 lookup table used by the inner sample loop: table[elem][tap][8
// preceding bits] sums the tap's contribution for every possible history
// byte, so decoding a sample is 16 table lookups and additions instead of
// 128 multiplications.
func buildFilter(table *[maxElements][filterTaps][256]int16, fsets *dstTable) error {
	for i := 0; i < fsets.elements; i++ {
		length := fsets.length[i]
		for j := 0; j < filterTaps; j++ {
			total := length - j*8
			if total < 0 {
				total = 0
			}
			if total > 8 {
				total = 8
			}
			for k := 0; k < 256; k++ {
				var v int64
				for l := 0; l < total; l++ {
					bit := (k >> uint(l)) & 1
					v += int64(bit*2-1) * int64(fsets.coeff[i][j*8+l])
				}
				if int64(int16(v)) != v {
					return errkind.Wrap(errkind.DecodeFailed, "dst.buildFilter", errFilterOverflow)
				}
				table[i][j][k] = int16(v)
			}
		}
	}
	return nil
}

// log2 returns floor(log2(x)) for x >= 1, matching the C source's sa_log2
// used only to size the element-index bit field in readMap.
func log2(x int) int {
	n := 0
	for x > 1 {
		x >>= 1
		n++
	}
	return n
}
