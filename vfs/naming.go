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
	"fmt"
	"strings"

	"github.com/dsdnexus/nexus-core/sacd"
)

// isImageExtension reports whether name's extension (case folded)
// matches one of exts.
func isImageExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// virtualFolderName strips name's matching extension, producing the
// virtual folder name an SACD image is exposed as.
func virtualFolderName(name string, exts []string) string {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// disambiguate appends " (1)", " (2)", ... to name until it no longer
// collides with an entry already in taken (§4.7's name-collision rule).
func disambiguate(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

// areaDirName returns the directory name an area is exposed as.
func areaDirName(area sacd.Area) string {
	switch area {
	case sacd.AreaStereo:
		return "Stereo"
	case sacd.AreaMultichannel:
		return "Multi-channel"
	default:
		return "Unknown"
	}
}

// areaVisible implements §4.7's area-visibility rule: an area shows when
// it exists and its config flag is on, or when it is the only area
// present on the disc.
func areaVisible(index *sacd.ImageIndex, area sacd.Area, flag bool) bool {
	if !index.HasArea(area) {
		return false
	}
	if flag {
		return true
	}
	areas := index.Areas()
	return len(areas) == 1
}

// trackFileName builds "NN - Performer - Title.dsf" (or a subset of
// those fields when some are missing), grounded on
// sacd_get_track_filename's fallback ladder: num+performer+title, then
// num+title, then num+performer, then "NN - Track N".
func trackFileName(track int, text sacd.TrackText) string {
	title := sanitizeFilenameComponent(text.Title)
	performer := sanitizeFilenameComponent(text.Performer)

	var base string
	switch {
	case performer != "" && title != "":
		base = fmt.Sprintf("%02d - %s - %s", track, performer, title)
	case title != "":
		base = fmt.Sprintf("%02d - %s", track, title)
	case performer != "":
		base = fmt.Sprintf("%02d - %s", track, performer)
	default:
		base = fmt.Sprintf("%02d - Track %d", track, track)
	}
	return base + ".dsf"
}

// sanitizeFilenameComponent strips characters that are unsafe across
// common filesystems and trims the result.
func sanitizeFilenameComponent(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
