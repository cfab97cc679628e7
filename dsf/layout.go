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

// Package dsf computes the byte-exact virtual Sony DSF layout for an SACD
// track. Synthesize is a pure function of a track extent and the effective
// ID3 blob — no I/O, no shared state, safe to call from any goroutine.
package dsf

import (
	"encoding/binary"
	"fmt"

	"github.com/dsdnexus/nexus-core/sacd"
)

const (
	// DsdChunkSize is the fixed size of the "DSD " chunk.
	DsdChunkSize = 28
	// FmtChunkSize is the fixed size of the "fmt " chunk.
	FmtChunkSize = 52
	// DataHeaderSize is the fixed size of the "data" chunk header.
	DataHeaderSize = 12
	// HeaderSize is the combined size of all three fixed header regions.
	HeaderSize = DsdChunkSize + FmtChunkSize + DataHeaderSize

	// BlockSizePerChannel is the DSF per-channel block size.
	BlockSizePerChannel = 4096
	// SamplesPerFrame is the number of samples per channel in one 1/75s frame.
	SamplesPerFrame = 588

	// PaddingByte is the filler value placed between audio and ID3.
	PaddingByte = 0x69
)

// Region identifies one named byte range of a virtual DSF file.
type Region int

const (
	RegionDsdChunk Region = iota
	RegionFmtChunk
	RegionDataHeader
	RegionAudio
	RegionPadding
	RegionID3
)

// SubRange is one contiguous slice of a read request, tagged with the
// layout region that services it and the byte range within that region.
type SubRange struct {
	Region      Region
	RegionStart int64 // offset of this sub-range within its region
	Length      int64
	BufStart    int64 // offset within the caller's output buffer
}

// VirtualDsfLayout is the derived, immutable byte map of one virtual DSF
// file. It is a pure function of a TrackExtent and the effective ID3 blob
// (§3 invariants I1-I3): recomputing it from the same inputs always
// produces identical bytes.
type VirtualDsfLayout struct {
	TotalSize      int64
	HeaderBytes    [HeaderSize]byte
	AudioSize      int64
	PaddingSize    int64
	MetadataOffset int64
	ID3Size        int64

	ChannelCount int
	SampleRate   int
	SampleCount  int64 // samples per channel = frames * 588
}

// Synthesize computes the virtual DSF layout for extent, given the
// effective ID3 blob (possibly empty). It implements §4.2 steps 1-7
// exactly.
func Synthesize(extent sacd.TrackExtent, id3 []byte) (VirtualDsfLayout, error) {
	if extent.ChannelCount < 1 || extent.ChannelCount > 6 {
		return VirtualDsfLayout{}, fmt.Errorf("dsf: channel count %d out of range", extent.ChannelCount)
	}
	if extent.FrameCount == 0 {
		return VirtualDsfLayout{}, fmt.Errorf("dsf: track has zero frames")
	}

	channels := int64(extent.ChannelCount)
	samplesPerChannel := int64(extent.FrameCount) * SamplesPerFrame
	bytesPerChannelRaw := ceilDiv(samplesPerChannel, 8)
	blocksPerChannel := ceilDiv(bytesPerChannelRaw, BlockSizePerChannel)
	audioSize := blocksPerChannel * BlockSizePerChannel * channels

	var paddingSize, metadataOffset, id3Size, totalSize int64
	headerEnd := int64(HeaderSize)

	if len(id3) == 0 {
		paddingSize = 0
		metadataOffset = 0
		totalSize = headerEnd + audioSize
	} else {
		id3Size = int64(len(id3))
		unaligned := headerEnd + audioSize
		paddingSize = alignPadding(unaligned, 8)
		metadataOffset = unaligned + paddingSize
		totalSize = metadataOffset + id3Size
	}

	layout := VirtualDsfLayout{
		TotalSize:      totalSize,
		AudioSize:      audioSize,
		PaddingSize:     paddingSize,
		MetadataOffset: metadataOffset,
		ID3Size:        id3Size,
		ChannelCount:   extent.ChannelCount,
		SampleRate:     extent.SampleRate,
		SampleCount:    samplesPerChannel,
	}

	buildHeader(&layout, extent)

	return layout, nil
}

// ceilDiv computes ceil(a/b) for non-negative a and positive b.
func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

// alignPadding returns the number of filler bytes needed so that
// unaligned + result is a multiple of align.
func alignPadding(unaligned, align int64) int64 {
	rem := unaligned % align
	if rem == 0 {
		return 0
	}
	return align - rem
}

// buildHeader fills layout.HeaderBytes with the "DSD ", "fmt ", and
// "data" chunks using DSF's fixed little-endian field orderings.
func buildHeader(layout *VirtualDsfLayout, extent sacd.TrackExtent) {
	h := layout.HeaderBytes[:]

	// "DSD " chunk: magic(4) chunkSize(8) fileSize(8) metadataOffset(8) = 28 bytes.
	copy(h[0:4], "DSD ")
	binary.LittleEndian.PutUint64(h[4:12], uint64(DsdChunkSize))
	binary.LittleEndian.PutUint64(h[12:20], uint64(layout.TotalSize))
	binary.LittleEndian.PutUint64(h[20:28], uint64(layout.MetadataOffset))

	// "fmt " chunk: magic(4) chunkSize(8) formatVersion(4) formatID(4)
	// channelType(4) channelCount(4) samplingFreq(4) bitsPerSample(4)
	// sampleCount(8) blockSizePerChannel(4) reserved(4) = 52 bytes.
	f := h[28:80]
	copy(f[0:4], "fmt ")
	binary.LittleEndian.PutUint64(f[4:12], uint64(FmtChunkSize))
	binary.LittleEndian.PutUint32(f[12:16], 1) // format version
	binary.LittleEndian.PutUint32(f[16:20], 0) // format id: raw DSD
	binary.LittleEndian.PutUint32(f[20:24], channelType(extent.ChannelCount))
	binary.LittleEndian.PutUint32(f[24:28], uint32(extent.ChannelCount))
	binary.LittleEndian.PutUint32(f[28:32], uint32(extent.SampleRate))
	binary.LittleEndian.PutUint32(f[32:36], 1) // bits per sample
	binary.LittleEndian.PutUint64(f[36:44], uint64(layout.SampleCount))
	binary.LittleEndian.PutUint32(f[44:48], BlockSizePerChannel)
	binary.LittleEndian.PutUint32(f[48:52], 0) // reserved

	// "data" chunk header: magic(4) chunkSize(8) = 12 bytes.
	d := h[80:92]
	copy(d[0:4], "data")
	binary.LittleEndian.PutUint64(d[4:12], uint64(DataHeaderSize+layout.AudioSize))
}

// channelType maps a channel count to DSF's channelType enum.
func channelType(channels int) uint32 {
	switch channels {
	case 1:
		return 1 // mono
	case 2:
		return 2 // stereo
	case 3:
		return 3 // 3 channels
	case 4:
		return 4 // quad
	case 5:
		return 5 // 4 channels + LF (4ch)
	case 6:
		return 7 // 5.1 channels
	default:
		return 0
	}
}
