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

// Package sacd parses the SACD Master TOC and area track tables from an
// open random-access byte source, exposing area/track enumeration and
// per-track extents as immutable value types. It performs no I/O beyond
// the initial Open call; every accessor reads from already-parsed state
// and is safe to call concurrently from multiple goroutines.
package sacd

import (
	"errors"
	"fmt"
	"io"

	bin "github.com/dsdnexus/nexus-core/internal/binary"
)

// SectorSize is the fixed physical sector size of an SACD image.
const SectorSize = 2048

// MasterTOCSector is the disc sector at which the Master TOC begins.
const MasterTOCSector = 510

const (
	masterTOCSignature = "SACDMTOC"
	stereoSignature     = "TWOCHTOC"
	multichSignature    = "MULCHTOC"
)

// Sentinel errors surfaced by Open; wrap with errkind at the VFS boundary.
var (
	ErrNotSacd   = errors.New("sacd: not a valid SACD image")
	ErrMalformed = errors.New("sacd: malformed master TOC")
)

// Area identifies one of the two possible audio areas on an SACD disc.
type Area int

const (
	// AreaStereo is the 2-channel area.
	AreaStereo Area = iota
	// AreaMultichannel is the surround area (1-6 channels, typically 5 or 6).
	AreaMultichannel
)

func (a Area) String() string {
	if a == AreaStereo {
		return "Stereo"
	}
	return "Multichannel"
}

// FrameFormat describes how audio frames in an area are encoded on disc.
type FrameFormat int

const (
	// FrameDsd is linear, uncompressed DSD.
	FrameDsd FrameFormat = iota
	// FrameDstCompressed is DST-compressed DSD.
	FrameDstCompressed
	// FrameDsd3in14 is the 3-in-14 packed DSD variant.
	FrameDsd3in14
	// FrameDsd3in16 is the 3-in-16 packed DSD variant.
	FrameDsd3in16
)

// AreaDescriptor records the fixed properties of one audio area.
type AreaDescriptor struct {
	Area           Area
	ChannelCount   int
	SampleRate     int
	FrameFormat    FrameFormat
	TrackCount     int
	LoudspeakerCfg uint8

	tocSector     uint32
	tocSectors    uint32
	trackTableSec uint32
}

// TrackExtent describes the disc-sector span and frame count of a single
// track within an area. It is immutable for the lifetime of the owning
// ImageIndex.
type TrackExtent struct {
	Area          Area
	Index         int // 1-based
	StartSector   uint32
	SectorSpan    uint32
	FrameCount    uint32 // number of 588-sample frames (1 frame = 1/75s)
	ChannelCount  int
	SampleRate    int
	FrameFormat   FrameFormat
}

// AlbumText carries the disc-level textual metadata from the Master TOC.
type AlbumText struct {
	Title     string
	Artist    string
	Publisher string
	Year      string
}

// TrackText carries the per-track textual metadata used for the
// "NN - Performer - Title" naming convention (§4.7).
type TrackText struct {
	Title     string
	Performer string
}

// ImageIndex is the parsed, immutable view of one SACD Master TOC. It owns
// no mutable state after construction besides the serial number, which
// never changes after Open either — it exists purely as a cache key for
// downstream layout caches (see dsf and vfs).
type ImageIndex struct {
	source    io.ReaderAt
	album     AlbumText
	areas     map[Area]*AreaDescriptor
	tracks    map[Area][]TrackExtent
	trackText map[Area]map[int]TrackText
	serial    uint32

	stereoLoc areaLocation
	multiLoc  areaLocation
}

// Open parses the Master TOC and per-area tables from source. It validates
// the Master TOC signature and each area TOC's structural invariants
// (channel count in 1..=6, sample rate in the known DSD family, no
// negative or overlapping track spans).
func Open(source io.ReaderAt) (*ImageIndex, error) {
	sig, err := bin.ReadBytesAt(source, MasterTOCSector*SectorSize, 8)
	if err != nil {
		return nil, fmt.Errorf("sacd: read master TOC signature: %w", err)
	}
	if string(sig) != masterTOCSignature {
		return nil, ErrNotSacd
	}

	idx := &ImageIndex{
		source:    source,
		areas:     make(map[Area]*AreaDescriptor),
		tracks:    make(map[Area][]TrackExtent),
		trackText: make(map[Area]map[int]TrackText),
	}

	if err := idx.parseMasterTOC(); err != nil {
		return nil, err
	}

	var crc uint32 = 0xFFFFFFFF
	tocBuf, err := bin.ReadBytesAt(source, MasterTOCSector*SectorSize, SectorSize)
	if err == nil {
		crc = crc32Update(crc, tocBuf)
	}
	idx.serial = ^crc

	for _, area := range []Area{AreaStereo, AreaMultichannel} {
		desc, terr := idx.parseAreaTOC(area)
		if terr != nil {
			if errors.Is(terr, errAreaAbsent) {
				continue
			}
			return nil, terr
		}
		idx.areas[area] = desc
		tracks, ttext, terr := idx.parseTrackTable(desc)
		if terr != nil {
			return nil, terr
		}
		idx.tracks[area] = tracks
		idx.trackText[area] = ttext
	}

	if len(idx.areas) == 0 {
		return nil, fmt.Errorf("sacd: %w: no audio areas present", ErrMalformed)
	}

	return idx, nil
}

// Areas returns the area descriptors present on the disc, in a stable
// order (Stereo before Multichannel).
func (idx *ImageIndex) Areas() []AreaDescriptor {
	out := make([]AreaDescriptor, 0, 2)
	for _, a := range []Area{AreaStereo, AreaMultichannel} {
		if d, ok := idx.areas[a]; ok {
			out = append(out, *d)
		}
	}
	return out
}

// HasArea reports whether the given area exists on the disc.
func (idx *ImageIndex) HasArea(area Area) bool {
	_, ok := idx.areas[area]
	return ok
}

// Tracks returns the track extents for the given area, in track order.
// Returns an empty slice if the area does not exist.
func (idx *ImageIndex) Tracks(area Area) []TrackExtent {
	return idx.tracks[area]
}

// Track returns the extent for a single 1-based track index within area.
func (idx *ImageIndex) Track(area Area, index int) (TrackExtent, error) {
	tracks := idx.tracks[area]
	if index < 1 || index > len(tracks) {
		return TrackExtent{}, fmt.Errorf("sacd: track %d out of range for %s", index, area)
	}
	return tracks[index-1], nil
}

// AlbumText returns the disc-level textual metadata.
func (idx *ImageIndex) AlbumText() AlbumText { return idx.album }

// TrackText returns the textual metadata for a single track.
func (idx *ImageIndex) TrackText(area Area, index int) TrackText {
	return idx.trackText[area][index]
}

// Serial returns a content-derived identifier for this Master TOC,
// stable across opens of the same bytes. Downstream layers (dsf layout
// cache, vfs path resolution) use it to invalidate derived state when an
// image is remounted with different underlying bytes at the same path.
func (idx *ImageIndex) Serial() uint32 { return idx.serial }

var errAreaAbsent = errors.New("sacd: area absent")
