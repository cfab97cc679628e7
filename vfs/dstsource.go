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

package vfs

import (
	"io"

	bin "github.com/dsdnexus/nexus-core/internal/binary"
	"github.com/dsdnexus/nexus-core/internal/errkind"
)

// dstFrameSource adapts a DST-compressed track's on-disc byte range into a
// dst.FrameSource. SACD DST tracks store frames back to back, each
// preceded by a 2-byte big-endian length and padded to an even byte
// boundary; this matches the framing libdst's own test fixtures use and
// lets a FrameSource built once up front serve out-of-order ReadFrame
// calls from the decode pipeline's worker goroutines.
type dstFrameSource struct {
	r       io.ReaderAt
	offsets []int64
	lengths []int32
}

// buildDstFrameOffsets scans frameCount consecutive length-prefixed DST
// frames starting at startByte, recording each frame's data offset and
// length.
func buildDstFrameOffsets(r io.ReaderAt, startByte int64, frameCount int) (*dstFrameSource, error) {
	src := &dstFrameSource{
		r:       r,
		offsets: make([]int64, 0, frameCount),
		lengths: make([]int32, 0, frameCount),
	}

	cursor := startByte
	for i := 0; i < frameCount; i++ {
		length, err := bin.ReadUint16BEAt(r, cursor)
		if err != nil {
			return nil, errkind.Wrap(errkind.Io, "vfs.buildDstFrameOffsets", err)
		}
		dataStart := cursor + 2
		src.offsets = append(src.offsets, dataStart)
		src.lengths = append(src.lengths, int32(length))

		advance := int64(length)
		if advance%2 != 0 {
			advance++ // frames are padded to an even boundary
		}
		cursor = dataStart + advance
	}
	return src, nil
}

// ReadFrame implements dst.FrameSource.
func (s *dstFrameSource) ReadFrame(index int64) ([]byte, error) {
	if index < 0 || int(index) >= len(s.offsets) {
		return nil, errkind.New(errkind.Eof, "vfs.dstFrameSource.ReadFrame")
	}
	buf := make([]byte, s.lengths[index])
	if len(buf) == 0 {
		return buf, nil
	}
	if _, err := s.r.ReadAt(buf, s.offsets[index]); err != nil {
		return nil, errkind.Wrap(errkind.Io, "vfs.dstFrameSource.ReadFrame", err)
	}
	return buf, nil
}
