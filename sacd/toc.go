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

package sacd

import (
	"fmt"

	bin "github.com/dsdnexus/nexus-core/internal/binary"
)

// Master TOC sector layout (one 2048-byte sector at MasterTOCSector):
//
//	offset 0   : signature "SACDMTOC" (8 bytes)
//	offset 8   : major version (uint16 BE)
//	offset 10  : minor version (uint16 BE)
//	offset 12  : stereo area TOC sector (uint32 BE, 0 = absent)
//	offset 16  : stereo area TOC sector span (uint32 BE)
//	offset 20  : multichannel area TOC sector (uint32 BE, 0 = absent)
//	offset 24  : multichannel area TOC sector span (uint32 BE)
//	offset 28  : album title, 80 bytes, ISO-8859-1, space padded
//	offset 108 : album artist, 40 bytes
//	offset 148 : album publisher, 20 bytes
//	offset 168 : album year, 4 bytes ASCII digits
const (
	masterAlbumTitleOff     = 28
	masterAlbumTitleLen     = 80
	masterAlbumArtistOff    = 108
	masterAlbumArtistLen    = 40
	masterAlbumPublisherOff = 148
	masterAlbumPublisherLen = 20
	masterAlbumYearOff      = 168
	masterAlbumYearLen      = 4
)

// Area TOC sector layout (one 2048-byte sector at each area's tocSector):
//
//	offset 0  : signature "TWOCHTOC" or "MULCHTOC" (8 bytes)
//	offset 8  : channel count (uint8, 1..=6)
//	offset 9  : loudspeaker configuration (uint8)
//	offset 10 : frame format (uint8: 0=DSD, 1=DST, 2=3-in-14, 3=3-in-16)
//	offset 12 : sample rate in Hz (uint32 BE)
//	offset 16 : track count (uint8)
//	offset 32 : track table start sector (uint32 BE)
const (
	areaChannelCountOff    = 8
	areaLoudspeakerCfgOff  = 9
	areaFrameFormatOff     = 10
	areaSampleRateOff      = 12
	areaTrackCountOff      = 16
	areaTrackTableSectorOff = 32
)

// trackEntrySize is the fixed byte size of one track table entry.
const trackEntrySize = 128

const (
	trackStartSectorOff = 0
	trackSectorSpanOff  = 4
	trackFrameCountOff  = 8
	trackTitleOff       = 16
	trackTitleLen       = 56
	trackPerformerOff   = 72
	trackPerformerLen   = 56
)

func (idx *ImageIndex) parseMasterTOC() error {
	base := int64(MasterTOCSector) * SectorSize

	title, err := decodeText(idx.source, base+masterAlbumTitleOff, masterAlbumTitleLen)
	if err != nil {
		return fmt.Errorf("sacd: read album title: %w", err)
	}
	artist, err := decodeText(idx.source, base+masterAlbumArtistOff, masterAlbumArtistLen)
	if err != nil {
		return fmt.Errorf("sacd: read album artist: %w", err)
	}
	publisher, err := decodeText(idx.source, base+masterAlbumPublisherOff, masterAlbumPublisherLen)
	if err != nil {
		return fmt.Errorf("sacd: read album publisher: %w", err)
	}
	year, err := decodeText(idx.source, base+masterAlbumYearOff, masterAlbumYearLen)
	if err != nil {
		return fmt.Errorf("sacd: read album year: %w", err)
	}

	idx.album = AlbumText{Title: title, Artist: artist, Publisher: publisher, Year: year}

	toc, err := idx.areaTOCLocation(AreaStereo)
	if err != nil {
		return err
	}
	idx.stereoLoc = toc

	toc, err = idx.areaTOCLocation(AreaMultichannel)
	if err != nil {
		return err
	}
	idx.multiLoc = toc

	return nil
}

type areaLocation struct {
	sector  uint32
	sectors uint32
}

func (idx *ImageIndex) areaTOCLocation(area Area) (areaLocation, error) {
	base := int64(MasterTOCSector) * SectorSize
	var sectorOff, sectorsOff int64
	if area == AreaStereo {
		sectorOff, sectorsOff = 12, 16
	} else {
		sectorOff, sectorsOff = 20, 24
	}
	sector, err := bin.ReadUint32BEAt(idx.source, base+sectorOff)
	if err != nil {
		return areaLocation{}, fmt.Errorf("sacd: read %s area TOC sector: %w", area, err)
	}
	sectors, err := bin.ReadUint32BEAt(idx.source, base+sectorsOff)
	if err != nil {
		return areaLocation{}, fmt.Errorf("sacd: read %s area TOC span: %w", area, err)
	}
	return areaLocation{sector: sector, sectors: sectors}, nil
}

func (idx *ImageIndex) parseAreaTOC(area Area) (*AreaDescriptor, error) {
	loc := idx.stereoLoc
	wantSig := stereoSignature
	if area == AreaMultichannel {
		loc = idx.multiLoc
		wantSig = multichSignature
	}
	if loc.sector == 0 {
		return nil, errAreaAbsent
	}

	base := int64(loc.sector) * SectorSize
	sig, err := bin.ReadBytesAt(idx.source, base, 8)
	if err != nil {
		return nil, fmt.Errorf("sacd: read %s area TOC signature: %w", area, err)
	}
	if string(sig) != wantSig {
		return nil, fmt.Errorf("sacd: %w: %s area TOC signature mismatch", ErrMalformed, area)
	}

	channelCount, err := bin.ReadUint8At(idx.source, base+areaChannelCountOff)
	if err != nil {
		return nil, fmt.Errorf("sacd: read %s channel count: %w", area, err)
	}
	if channelCount < 1 || channelCount > 6 {
		return nil, fmt.Errorf("sacd: %w: %s channel count %d out of range", ErrMalformed, area, channelCount)
	}

	loudspeaker, err := bin.ReadUint8At(idx.source, base+areaLoudspeakerCfgOff)
	if err != nil {
		return nil, fmt.Errorf("sacd: read %s loudspeaker config: %w", area, err)
	}

	frameFormatByte, err := bin.ReadUint8At(idx.source, base+areaFrameFormatOff)
	if err != nil {
		return nil, fmt.Errorf("sacd: read %s frame format: %w", area, err)
	}
	frameFormat, err := frameFormatFromByte(frameFormatByte)
	if err != nil {
		return nil, fmt.Errorf("sacd: %s: %w", area, err)
	}

	sampleRate, err := bin.ReadUint32BEAt(idx.source, base+areaSampleRateOff)
	if err != nil {
		return nil, fmt.Errorf("sacd: read %s sample rate: %w", area, err)
	}
	if !isKnownDsdRate(sampleRate) {
		return nil, fmt.Errorf("sacd: %w: %s sample rate %d outside DSD family", ErrMalformed, area, sampleRate)
	}

	trackCount, err := bin.ReadUint8At(idx.source, base+areaTrackCountOff)
	if err != nil {
		return nil, fmt.Errorf("sacd: read %s track count: %w", area, err)
	}

	trackTableSector, err := bin.ReadUint32BEAt(idx.source, base+areaTrackTableSectorOff)
	if err != nil {
		return nil, fmt.Errorf("sacd: read %s track table sector: %w", area, err)
	}

	return &AreaDescriptor{
		Area:           area,
		ChannelCount:   int(channelCount),
		SampleRate:     int(sampleRate),
		FrameFormat:    frameFormat,
		TrackCount:     int(trackCount),
		LoudspeakerCfg: loudspeaker,
		tocSector:      loc.sector,
		tocSectors:     loc.sectors,
		trackTableSec:  trackTableSector,
	}, nil
}

func (idx *ImageIndex) parseTrackTable(desc *AreaDescriptor) ([]TrackExtent, map[int]TrackText, error) {
	tracks := make([]TrackExtent, 0, desc.TrackCount)
	texts := make(map[int]TrackText, desc.TrackCount)

	base := int64(desc.trackTableSec) * SectorSize
	var prevEnd uint32

	for i := 1; i <= desc.TrackCount; i++ {
		entryOff := base + int64(i-1)*trackEntrySize

		startSector, err := bin.ReadUint32BEAt(idx.source, entryOff+trackStartSectorOff)
		if err != nil {
			return nil, nil, fmt.Errorf("sacd: read track %d start sector: %w", i, err)
		}
		sectorSpan, err := bin.ReadUint32BEAt(idx.source, entryOff+trackSectorSpanOff)
		if err != nil {
			return nil, nil, fmt.Errorf("sacd: read track %d sector span: %w", i, err)
		}
		frameCount, err := bin.ReadUint32BEAt(idx.source, entryOff+trackFrameCountOff)
		if err != nil {
			return nil, nil, fmt.Errorf("sacd: read track %d frame count: %w", i, err)
		}

		if sectorSpan == 0 || frameCount == 0 {
			return nil, nil, fmt.Errorf("sacd: %w: track %d has zero span or frame count", ErrMalformed, i)
		}
		if i > 1 && startSector < prevEnd {
			return nil, nil, fmt.Errorf("sacd: %w: track %d overlaps preceding track", ErrMalformed, i)
		}
		prevEnd = startSector + sectorSpan

		title, err := decodeText(idx.source, entryOff+trackTitleOff, trackTitleLen)
		if err != nil {
			return nil, nil, fmt.Errorf("sacd: read track %d title: %w", i, err)
		}
		performer, err := decodeText(idx.source, entryOff+trackPerformerOff, trackPerformerLen)
		if err != nil {
			return nil, nil, fmt.Errorf("sacd: read track %d performer: %w", i, err)
		}

		tracks = append(tracks, TrackExtent{
			Area:         desc.Area,
			Index:        i,
			StartSector:  startSector,
			SectorSpan:   sectorSpan,
			FrameCount:   frameCount,
			ChannelCount: desc.ChannelCount,
			SampleRate:   desc.SampleRate,
			FrameFormat:  desc.FrameFormat,
		})
		texts[i] = TrackText{Title: title, Performer: performer}
	}

	return tracks, texts, nil
}

func frameFormatFromByte(b uint8) (FrameFormat, error) {
	switch b {
	case 0:
		return FrameDsd, nil
	case 1:
		return FrameDstCompressed, nil
	case 2:
		return FrameDsd3in14, nil
	case 3:
		return FrameDsd3in16, nil
	default:
		return 0, fmt.Errorf("%w: unknown frame format byte 0x%02x", ErrMalformed, b)
	}
}

// isKnownDsdRate reports whether rate belongs to the DSD family: 64Fs,
// 128Fs, or 256Fs relative to the 44100 Hz reference.
func isKnownDsdRate(rate uint32) bool {
	switch rate {
	case 2822400, 5644800, 11289600:
		return true
	default:
		return false
	}
}

// crc32Update folds data into an in-progress IEEE CRC-32 accumulator.
// Used only to derive ImageIndex.Serial, not for data-integrity checks.
func crc32Update(crc uint32, data []byte) uint32 {
	for _, b := range data {
		crc ^= uint32(b)
		for range 8 {
			mask := -(crc & 1)
			crc = (crc >> 1) ^ (0xEDB88320 & uint32(mask))
		}
	}
	return crc
}
