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

package dsf

// Partition splits [offset, offset+length) into ordered sub-ranges, one per
// layout region the range touches. offset and length are assumed already
// clipped to [0, layout.TotalSize) by the caller (§4.5 step 1).
func (layout *VirtualDsfLayout) Partition(offset, length int64) []SubRange {
	bounds := layout.regionBounds()

	var out []SubRange
	remaining := length
	cursor := offset
	bufCursor := int64(0)

	for remaining > 0 {
		region, regionStart, regionEnd := bounds.locate(cursor)
		if regionStart < 0 {
			break // past the end of every region; nothing more to serve
		}

		take := regionEnd - cursor
		if take > remaining {
			take = remaining
		}

		out = append(out, SubRange{
			Region:      region,
			RegionStart: cursor - regionStart,
			Length:      take,
			BufStart:    bufCursor,
		})

		cursor += take
		bufCursor += take
		remaining -= take
	}

	return out
}

type regionBound struct {
	region Region
	start  int64
	end    int64
}

type regionBounds []regionBound

func (layout *VirtualDsfLayout) regionBounds() regionBounds {
	var b regionBounds
	b = append(b, regionBound{RegionDsdChunk, 0, DsdChunkSize})
	b = append(b, regionBound{RegionFmtChunk, DsdChunkSize, DsdChunkSize + FmtChunkSize})
	b = append(b, regionBound{RegionDataHeader, DsdChunkSize + FmtChunkSize, HeaderSize})
	audioStart := int64(HeaderSize)
	audioEnd := audioStart + layout.AudioSize
	b = append(b, regionBound{RegionAudio, audioStart, audioEnd})
	if layout.PaddingSize > 0 {
		b = append(b, regionBound{RegionPadding, audioEnd, audioEnd + layout.PaddingSize})
	}
	if layout.ID3Size > 0 {
		b = append(b, regionBound{RegionID3, layout.MetadataOffset, layout.MetadataOffset + layout.ID3Size})
	}
	return b
}

func (bounds regionBounds) locate(offset int64) (region Region, start, end int64) {
	for _, b := range bounds {
		if offset >= b.start && offset < b.end {
			return b.region, b.start, b.end
		}
	}
	return 0, -1, -1
}
