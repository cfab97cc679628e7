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

package transform

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestBitReverseTable(t *testing.T) {
	t.Parallel()

	cases := map[byte]byte{
		0x00: 0x00,
		0xFF: 0xFF,
		0x01: 0x80,
		0x80: 0x01,
		0b1000_0001: 0b1000_0001,
		0b1100_0000: 0b0000_0011,
	}
	for in, want := range cases {
		if got := bitReverseTable[in]; got != want {
			t.Errorf("bitReverseTable[%08b] = %08b, want %08b", in, got, want)
		}
	}
}

// TestTransform_RoundTrip checks spec.md P4: byte_to_block then block_to_byte is
// the identity on a buffer whose length is a multiple of (4096*channels).
func TestTransform_RoundTrip(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	for _, channels := range []int{1, 2, 5, 6} {
		src := make([]byte, blockSize*channels*3)
		rng.Read(src)

		blocked, err := ByteToBlock(src, channels)
		if err != nil {
			t.Fatalf("channels=%d: ByteToBlock() error = %v", channels, err)
		}
		back, err := BlockToByte(blocked, channels, 0)
		if err != nil {
			t.Fatalf("channels=%d: BlockToByte() error = %v", channels, err)
		}
		if !bytes.Equal(src, back) {
			t.Fatalf("channels=%d: round trip mismatch", channels)
		}
	}
}

// TestRoundTrip_PartialTail checks the partial-tail case: byte_to_block
// then block_to_byte, asked for the original per-channel length, is the
// identity once the zero-padded tail is dropped.
func TestRoundTrip_PartialTail(t *testing.T) {
	t.Parallel()

	const channels = 2
	// 100 bytes per channel: not a multiple of 4096, so ByteToBlock pads.
	src := make([]byte, 100*channels)
	for i := range src {
		src[i] = byte(i)
	}

	blocked, err := ByteToBlock(src, channels)
	if err != nil {
		t.Fatalf("ByteToBlock() error = %v", err)
	}
	if len(blocked) != blockSize*channels {
		t.Fatalf("blocked length = %d, want %d", len(blocked), blockSize*channels)
	}

	back, err := BlockToByte(blocked, channels, 100)
	if err != nil {
		t.Fatalf("BlockToByte() error = %v", err)
	}
	if !bytes.Equal(src, back) {
		t.Fatalf("round trip with explicit length mismatch")
	}
}

func TestByteToBlock_Layout(t *testing.T) {
	t.Parallel()

	// 2 channels, 2 bytes each: L0 R0 L1 R1.
	src := []byte{0x01, 0x02, 0x03, 0x04}
	blocked, err := ByteToBlock(src, 2)
	if err != nil {
		t.Fatalf("ByteToBlock() error = %v", err)
	}
	// Block group 0 is channel 0's block followed by channel 1's block:
	// [L0..L4095][R0..R4095] (§4.3's block-interleaved layout).
	if blocked[0] != bitReverseTable[0x01] || blocked[1] != bitReverseTable[0x03] {
		t.Fatalf("channel 0 block mismatch: %02x %02x", blocked[0], blocked[1])
	}
	if blocked[blockSize] != bitReverseTable[0x02] || blocked[blockSize+1] != bitReverseTable[0x04] {
		t.Fatalf("channel 1 block mismatch: %02x %02x", blocked[blockSize], blocked[blockSize+1])
	}
}

// TestByteToBlock_MultiBlockGroup checks that the second block group
// immediately follows the first, i.e. the layout is block-interleaved
// (every channel's Nth block adjacent, then every channel's N+1th block)
// rather than each channel's full run stored contiguously.
func TestByteToBlock_MultiBlockGroup(t *testing.T) {
	t.Parallel()

	const channels = 2
	src := make([]byte, blockSize*channels*2)
	for ch := 0; ch < channels; ch++ {
		for i := 0; i < blockSize*2; i++ {
			src[i*channels+ch] = byte(ch + 1)
		}
	}

	blocked, err := ByteToBlock(src, channels)
	if err != nil {
		t.Fatalf("ByteToBlock() error = %v", err)
	}

	// Second block group starts right after the first: offset
	// channels*blockSize, not 2*blockSize further into channel 0's run.
	secondGroupStart := channels * blockSize
	if blocked[secondGroupStart] != bitReverseTable[1] {
		t.Fatalf("second block group channel 0 byte = %02x, want channel-0 marker", blocked[secondGroupStart])
	}
	if blocked[secondGroupStart+blockSize] != bitReverseTable[2] {
		t.Fatalf("second block group channel 1 byte = %02x, want channel-1 marker", blocked[secondGroupStart+blockSize])
	}
}

func TestByteToBlock_RejectsBadChannelCount(t *testing.T) {
	t.Parallel()

	if _, err := ByteToBlock([]byte{1, 2, 3}, 2); err == nil {
		t.Fatal("ByteToBlock() error = nil, want error for misaligned length")
	}
	if _, err := ByteToBlock([]byte{1, 2}, 0); err == nil {
		t.Fatal("ByteToBlock() error = nil, want error for zero channels")
	}
}
