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

import "github.com/dsdnexus/nexus-core/sacd"

// The offsets below mirror the on-disc Master/Area TOC layout sacd.Open
// parses; they are duplicated here (rather than imported) because the
// production package keeps them unexported.
const (
	testAreaTOCSector      = 600
	testTrackTableSector   = 601
	testMasterAlbumTitle   = 28
	testAreaChannelCount   = 8
	testAreaFrameFormat    = 10
	testAreaSampleRate     = 12
	testAreaTrackCount     = 16
	testAreaTrackTableSec  = 32
	testTrackEntrySize     = 128
	testTrackStartSector   = 0
	testTrackSectorSpan    = 4
	testTrackFrameCount    = 8
	testTrackTitleOff      = 16
	testTrackPerformerOff  = 72
	masterTOCSignatureTest = "SACDMTOC"
	stereoSignatureTest    = "TWOCHTOC"
)

type fakeTrackSpec struct {
	startSector uint32
	sectorSpan  uint32
	frameCount  uint32
	title       string
	performer   string
	data        []byte // raw per-track audio payload, written at startSector
}

// buildFakeSacdImage constructs a minimal single-area (stereo, linear DSD)
// SACD image with the given tracks, returning the full image bytes.
func buildFakeSacdImage(tracks []fakeTrackSpec, totalSectors int) []byte {
	return buildFakeSacdImageFormat(tracks, totalSectors, 0)
}

// buildFakeSacdImageFormat is buildFakeSacdImage with an explicit area
// frame format byte (0=linear DSD, 1=DST-compressed).
func buildFakeSacdImageFormat(tracks []fakeTrackSpec, totalSectors int, frameFormat byte) []byte {
	buf := make([]byte, totalSectors*sacd.SectorSize)

	putStr := func(off int, s string, width int) { copy(buf[off:off+width], []byte(s)) }
	putU32 := func(off int, v uint32) {
		buf[off] = byte(v >> 24)
		buf[off+1] = byte(v >> 16)
		buf[off+2] = byte(v >> 8)
		buf[off+3] = byte(v)
	}

	mtocBase := int(sacd.MasterTOCSector) * sacd.SectorSize
	putStr(mtocBase, masterTOCSignatureTest, 8)
	putU32(mtocBase+12, testAreaTOCSector)
	putU32(mtocBase+16, 1)
	putU32(mtocBase+20, 0)
	putStr(mtocBase+testMasterAlbumTitle, "Fake Album", 80)

	areaBase := testAreaTOCSector * sacd.SectorSize
	putStr(areaBase, stereoSignatureTest, 8)
	buf[areaBase+testAreaChannelCount] = 2
	buf[areaBase+testAreaFrameFormat] = frameFormat
	putU32(areaBase+testAreaSampleRate, 2822400)
	buf[areaBase+testAreaTrackCount] = byte(len(tracks))
	putU32(areaBase+testAreaTrackTableSec, testTrackTableSector)

	trackBase := testTrackTableSector * sacd.SectorSize
	for i, tr := range tracks {
		entryOff := trackBase + i*testTrackEntrySize
		putU32(entryOff+testTrackStartSector, tr.startSector)
		putU32(entryOff+testTrackSectorSpan, tr.sectorSpan)
		putU32(entryOff+testTrackFrameCount, tr.frameCount)
		putStr(entryOff+testTrackTitleOff, tr.title, 56)
		putStr(entryOff+testTrackPerformerOff, tr.performer, 56)

		if len(tr.data) > 0 {
			start := int(tr.startSector) * sacd.SectorSize
			copy(buf[start:], tr.data)
		}
	}

	return buf
}
