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

// Package vfs implements the SACD virtual filesystem overlay: a
// directory view rooted at a host source directory where every SACD
// image is replaced by a virtual folder of synthesised DSF tracks.
package vfs

// Config is the overlay's external configuration (§6/§7). Every field
// has a documented zero-value meaning, in the style of the teacher's
// BootstrapConfig: a missing value picks the conservative default
// rather than erroring.
type Config struct {
	// SourceDir is the host directory the overlay is rooted at.
	SourceDir string `json:"source_dir"`

	// IsoExtensions lists the case-folded file extensions (with leading
	// dot, e.g. ".iso") that identify an SACD image. Defaults to
	// {".iso"} when empty.
	IsoExtensions []string `json:"iso_extensions"`

	// ThreadPoolSize bounds the DST decode worker pool. 0 auto-sizes
	// from runtime.NumCPU().
	ThreadPoolSize int `json:"thread_pool_size"`

	// MaxOpenISOs bounds how many idle (refcount-zero) images the pool
	// keeps cached before evicting the least recently used. 0 means
	// "unbounded".
	MaxOpenISOs int `json:"max_open_isos"`

	// CacheTimeoutSeconds evicts an idle image after this many seconds
	// of inactivity. 0 means "no timeout".
	CacheTimeoutSeconds int `json:"cache_timeout_seconds"`

	// StereoVisible and MultichannelVisible gate whether each area is
	// listed when both areas are present on a disc. Either area is
	// always shown if it is the only one present, regardless of these
	// flags (§4.7 fallback rule). Both default to true when omitted from
	// JSON config, in the style of the teacher's *bool "enabled" fields
	// (e.g. TokenEntry.DiskImagesWriteEnabled): nil means "use the
	// default", not "explicitly off".
	StereoVisible       *bool `json:"stereo_visible,omitempty"`
	MultichannelVisible *bool `json:"multichannel_visible,omitempty"`
}

func (c Config) stereoVisible() bool {
	if c.StereoVisible == nil {
		return true
	}
	return *c.StereoVisible
}

func (c Config) multichannelVisible() bool {
	if c.MultichannelVisible == nil {
		return true
	}
	return *c.MultichannelVisible
}

func (c Config) isoExtensions() []string {
	if len(c.IsoExtensions) == 0 {
		return []string{".iso"}
	}
	return c.IsoExtensions
}

