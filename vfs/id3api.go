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
	"github.com/dsdnexus/nexus-core/id3"
	"github.com/dsdnexus/nexus-core/internal/errkind"
)

// track resolves a virtual track path down to the mounted image and the
// id3.Key identifying its overlay slot, for the §6 "VFS-level extras".
// Every caller must Release the returned image once done with it.
func (o *Overlay) track(p string) (*mountedImage, id3.Key, error) {
	loc, err := o.resolve(p)
	if err != nil {
		return nil, id3.Key{}, err
	}
	if loc.kind != kindTrackFile {
		return nil, id3.Key{}, errkind.New(errkind.InvalidArg, "vfs.Overlay: not a track file")
	}
	m, err := o.pool.Acquire(loc.imagePath)
	if err != nil {
		return nil, id3.Key{}, err
	}
	return m, id3Key(loc.area, loc.track), nil
}

// SetID3Overlay replaces the ID3 tag served for the track at p with blob,
// without touching the source image (§4.6, §6 set_id3_overlay). A
// VirtualFile already open on the same track picks up the change on its
// next read, per §4.6's invalidate-on-write rule.
func (o *Overlay) SetID3Overlay(p string, blob []byte) error {
	m, key, err := o.track(p)
	if err != nil {
		return err
	}
	defer o.pool.Release(m.path)
	m.id3.Set(key, blob)
	return nil
}

// GetID3Tag returns the effective ID3 blob for the track at p: overlay,
// then the track's original tag, then empty (§4.6, §6 get_id3_tag).
func (o *Overlay) GetID3Tag(p string) ([]byte, error) {
	m, key, err := o.track(p)
	if err != nil {
		return nil, err
	}
	defer o.pool.Release(m.path)
	return m.id3.Effective(key), nil
}

// ClearID3Overlay drops the override for the track at p, reverting it to
// the track's original ID3 or empty (§6 clear_id3_overlay).
func (o *Overlay) ClearID3Overlay(p string) error {
	m, key, err := o.track(p)
	if err != nil {
		return err
	}
	defer o.pool.Release(m.path)
	m.id3.Clear(key)
	return nil
}

// HasUnsavedID3Changes reports whether the image backing the track at p
// has any overlay edits pending a save (§6 has_unsaved_id3_changes).
func (o *Overlay) HasUnsavedID3Changes(p string) (bool, error) {
	m, _, err := o.track(p)
	if err != nil {
		return false, err
	}
	defer o.pool.Release(m.path)
	return m.id3.HasUnsaved(), nil
}

// SaveID3 persists the accumulated ID3 overlays for the image backing the
// track at p to its XML sidecar, atomically, and clears the dirty flag
// (§4.6 save, §6 save_id3). Per §7, a failed save leaves the dirty flag
// set so the caller can retry.
func (o *Overlay) SaveID3(p string) error {
	m, _, err := o.track(p)
	if err != nil {
		return err
	}
	defer o.pool.Release(m.path)
	return m.id3.Save(id3.SidecarPath(o.pool.hostPath(m.path)))
}
