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

package id3

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dsdnexus/nexus-core/internal/errkind"
	"github.com/dsdnexus/nexus-core/sacd"
)

// sidecarDocument is the on-disk XML shape of an overlay sidecar: one
// <override> element per overridden (area, track), the blob stored
// base64 to keep the file text-safe and diffable.
type sidecarDocument struct {
	XMLName   xml.Name          `xml:"dsdNexusId3Overrides"`
	Version   int               `xml:"version,attr"`
	Overrides []sidecarOverride `xml:"override"`
}

type sidecarOverride struct {
	Area    string `xml:"area,attr"`
	Track   int    `xml:"track,attr"`
	Base64  string `xml:",chardata"`
}

const sidecarVersion = 1

// SidecarPath derives the sidecar path for an image path: <image>.xml
// appended to the full image filename so "Disc.iso" becomes
// "Disc.iso.xml" and collisions between differently-named images are
// impossible.
func SidecarPath(imagePath string) string {
	return imagePath + ".xml"
}

// Save writes the store's current overlay set to path as XML, atomically
// (temp file in the same directory, then rename over the target), and
// clears the dirty flag on success.
func (s *Store) Save(path string) error {
	s.mu.Lock()
	doc := sidecarDocument{Version: sidecarVersion}
	for k, v := range s.overlay {
		doc.Overrides = append(doc.Overrides, sidecarOverride{
			Area:   areaToken(k.Area),
			Track:  k.Track,
			Base64: base64.StdEncoding.EncodeToString(v),
		})
	}
	s.mu.Unlock()

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errkind.Wrap(errkind.Io, "id3.Store.Save", err)
	}
	out = append([]byte(xml.Header), out...)

	if err := writeFileAtomic(path, out, 0o644); err != nil {
		return errkind.Wrap(errkind.Io, "id3.Store.Save", err)
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// Load merges the overrides persisted at path into the store. A missing
// sidecar is not an error: it simply means no overrides exist yet.
func (s *Store) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errkind.Wrap(errkind.Io, "id3.Store.Load", err)
	}

	var doc sidecarDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return errkind.Wrap(errkind.Malformed, "id3.Store.Load", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range doc.Overrides {
		area, err := areaFromToken(o.Area)
		if err != nil {
			continue // skip unrecognised area tokens from a newer sidecar version
		}
		blob, err := base64.StdEncoding.DecodeString(o.Base64)
		if err != nil {
			continue
		}
		s.overlay[Key{Area: area, Track: o.Track}] = blob
	}
	return nil
}

func areaToken(a sacd.Area) string {
	switch a {
	case sacd.AreaStereo:
		return "stereo"
	case sacd.AreaMultichannel:
		return "multichannel"
	default:
		return "unknown"
	}
}

func areaFromToken(s string) (sacd.Area, error) {
	switch s {
	case "stereo":
		return sacd.AreaStereo, nil
	case "multichannel":
		return sacd.AreaMultichannel, nil
	default:
		return 0, fmt.Errorf("id3: unknown area token %q", s)
	}
}

// writeFileAtomic writes data to path by creating a temp file in the
// same directory and renaming it over the target, so a reader never
// observes a partially written sidecar.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".dsdnexus-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		_ = tmp.Close()
		if !ok {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmpName, perm)

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	ok = true
	return nil
}
