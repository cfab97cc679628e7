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

// Package dst implements the DST (Direct Stream Transfer) frame decoder:
// lossless expansion of one compressed frame into linear 1-bit DSD
// samples, per ISO/IEC 14496-3 Part 3 Subpart 10. Decoding is stateless
// across frames by construction (§10 of the standard re-derives every
// filter and probability table from the frame itself), which is what
// lets Pipeline hand frames to a worker pool in any order and reassemble
// them afterward.
package dst

import (
	"fmt"

	"github.com/dsdnexus/nexus-core/internal/errkind"
)

const samplesPerFrame44 = 588

// Decoder expands DST frames for one fixed (channel count, sample rate)
// combination. A Decoder holds no cross-frame state — every exported
// field a frame needs is rebuilt inside Decode — so the same Decoder
// value can be reused (not shared concurrently) across any number of
// frames, including out of order.
type Decoder struct {
	channels   int
	sampleRate int
}

// NewDecoder validates channels and sampleRate and returns a Decoder for
// that combination.
func NewDecoder(channels, sampleRate int) (*Decoder, error) {
	if channels < 1 || channels > maxChannels {
		return nil, errkind.New(errkind.InvalidArg, fmt.Sprintf("dst.NewDecoder(channels=%d)", channels))
	}
	if sampleRate <= 0 || sampleRate%(64*44100) != 0 {
		return nil, errkind.New(errkind.InvalidArg, fmt.Sprintf("dst.NewDecoder(sampleRate=%d)", sampleRate))
	}
	return &Decoder{channels: channels, sampleRate: sampleRate}, nil
}

// SamplesPerFrame returns the number of 1-bit samples per channel this
// decoder produces for one frame: 588 * (sampleRate / 44100).
func (d *Decoder) SamplesPerFrame() int {
	return samplesPerFrame44 * (d.sampleRate / 44100)
}

// FrameBytes returns the linear-DSD byte length one decoded frame
// produces: SamplesPerFrame/8 bytes per channel, channel-interleaved.
func (d *Decoder) FrameBytes() int {
	return (d.SamplesPerFrame() / 8) * d.channels
}

// Decode expands one DST-compressed frame into byte-interleaved, MSB-
// first linear DSD samples (§10). The returned slice is always exactly
// d.FrameBytes() long.
//
// A frame whose first bit is 0 is already linear DSD (the encoder gave
// up compressing it). Its whole first byte (the flag bit, one further
// bit and six reserved bits that must be zero) is stripped, and the
// remaining bytes are returned, truncated or zero-padded to
// d.FrameBytes().
func (d *Decoder) Decode(frame []byte) ([]byte, error) {
	if len(frame) <= 1 {
		return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode", errShortFrame)
	}

	samplesPerFrame := d.SamplesPerFrame()
	nbSamples := samplesPerFrame / 8
	out := make([]byte, nbSamples*d.channels)

	r := newBitReader(frame)

	compressed, err := r.bit()
	if err != nil {
		return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode", err)
	}
	if compressed == 0 {
		if _, err := r.bit(); err != nil {
			return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode", err)
		}
		reserved, err := r.bits(6)
		if err != nil {
			return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode", err)
		}
		if reserved != 0 {
			return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode", errShortFrame)
		}
		n := len(frame) - 1
		if n > len(out) {
			n = len(out)
		}
		copy(out, frame[1:1+n])
		return out, nil
	}

	for _, flagName := range []string{"same segmentation", "same segmentation for all channels", "end of channel segmentation"} {
		bit, err := r.bit()
		if err != nil {
			return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode", err)
		}
		if bit == 0 {
			return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode."+flagName, errUnsupportedSegmentation)
		}
	}

	sameMap, err := r.bit()
	if err != nil {
		return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode", err)
	}

	var fsets, probs dstTable
	mapToFelem, err := readMap(r, &fsets, d.channels)
	if err != nil {
		return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode.readMap(fsets)", err)
	}

	var mapToPelem [maxChannels]int
	if sameMap != 0 {
		probs.elements = fsets.elements
		mapToPelem = mapToFelem
	} else {
		mapToPelem, err = readMap(r, &probs, d.channels)
		if err != nil {
			return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode.readMap(probs)", err)
		}
	}

	var halfProb [maxChannels]bool
	for ch := 0; ch < d.channels; ch++ {
		b, err := r.bit()
		if err != nil {
			return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode", err)
		}
		halfProb[ch] = b != 0
	}

	if err := readTable(r, &fsets, fsetsCodePredCoeff, 7, 9, true, 0); err != nil {
		return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode.readTable(fsets)", err)
	}
	if err := readTable(r, &probs, probsCodePredCoeff, 6, 7, false, 1); err != nil {
		return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode.readTable(probs)", err)
	}

	reserved, err := r.bit()
	if err != nil {
		return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode", err)
	}
	if reserved != 0 {
		return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode", errShortFrame)
	}

	var ac arithCoder
	if err := ac.init(r); err != nil {
		return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode", err)
	}

	var filter [maxElements][filterTaps][256]int16
	if err := buildFilter(&filter, &fsets); err != nil {
		return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode.buildFilter", err)
	}

	var status [maxChannels][16]byte
	for ch := range status {
		for i := range status[ch] {
			status[ch][i] = 0xAA
		}
	}

	if _, err := ac.get(r, int(probDstXBit(int(fsets.coeff[0][0])))); err != nil {
		return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode", err)
	}

	for i := 0; i < samplesPerFrame; i++ {
		for ch := 0; ch < d.channels; ch++ {
			felem := mapToFelem[ch]
			f := &filter[felem]
			st := &status[ch]

			var rawSum int32
			for tap := 0; tap < filterTaps; tap++ {
				rawSum += int32(f[tap][st[tap]])
			}
			// The reference decoder accumulates into an int16_t, so the
			// sum truncates/wraps exactly like a C assignment here.
			predict := int16(rawSum)

			var prob int
			if !halfProb[ch] || i >= fsets.length[felem] {
				pelem := mapToPelem[ch]
				index := int(abs16(predict)) >> 3
				if index > probs.length[pelem]-1 {
					index = probs.length[pelem] - 1
				}
				prob = int(probs.coeff[pelem][index])
			} else {
				prob = 128
			}

			residual, err := ac.get(r, prob)
			if err != nil {
				return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Decode", err)
			}
			v := (int(predict>>15) ^ residual) & 1
			out[(i>>3)*d.channels+ch] |= byte(v << uint(7-(i&0x7)))

			shiftStatus(st, byte(v))
		}
	}

	return out, nil
}

// shiftStatus pushes bit v into the 128-bit rolling history used to index
// the filter table. The C source treats the 16 status bytes as a single
// little-endian 128-bit integer (status[0] least significant) and shifts
// it left by one bit each sample, discarding the top bit and inserting v
// at the bottom; tap 0 is therefore always the most recently shifted-in
// byte.
func shiftStatus(st *[16]byte, v byte) {
	for i := 15; i >= 1; i-- {
		st[i] = (st[i] << 1) | (st[i-1] >> 7)
	}
	st[0] = (st[0] << 1) | v
}

func abs16(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}
