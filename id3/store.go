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

// Package id3 implements the overlay store that lets a caller attach or
// replace ID3 metadata for any (area, track) pair without touching the
// source SACD image, and persist those overrides to an XML sidecar next
// to the image.
package id3

import (
	"sync"

	"github.com/dsdnexus/nexus-core/sacd"
)

// Key identifies one track's ID3 slot.
type Key struct {
	Area  sacd.Area
	Track int
}

// Store holds overlay ID3 blobs in memory, backed by an original lookup
// function for the fallback case. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	overlay  map[Key][]byte
	dirty    bool
	original func(Key) ([]byte, bool)

	onInvalidate func(Key)
}

// NewStore creates an empty overlay store. original is consulted by
// Effective when no overlay exists for a key; it may be nil, in which
// case every key without an override resolves to an empty blob.
func NewStore(original func(Key) ([]byte, bool)) *Store {
	return &Store{
		overlay:  make(map[Key][]byte),
		original: original,
	}
}

// OnInvalidate registers a callback invoked with the key whenever Set or
// Clear changes the effective blob for that key — the virtual file
// reader uses this to drop any cached VirtualDsfLayout for an open
// handle on the same track (§4.6: "the store invalidates dependent
// layouts on write").
func (s *Store) OnInvalidate(fn func(Key)) {
	s.mu.Lock()
	s.onInvalidate = fn
	s.mu.Unlock()
}

// Set replaces the override for key and marks the store dirty.
func (s *Store) Set(key Key, blob []byte) {
	cp := make([]byte, len(blob))
	copy(cp, blob)

	s.mu.Lock()
	s.overlay[key] = cp
	s.dirty = true
	cb := s.onInvalidate
	s.mu.Unlock()

	if cb != nil {
		cb(key)
	}
}

// Get returns the overlay blob for key, if one exists (overlay lookup
// only — it does not fall back to the original).
func (s *Store) Get(key Key) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.overlay[key]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, true
}

// Clear drops the override for key, reverting it to the track's
// original ID3 (or empty, if Effective has no original to fall back
// on).
func (s *Store) Clear(key Key) {
	s.mu.Lock()
	if _, ok := s.overlay[key]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.overlay, key)
	s.dirty = true
	cb := s.onInvalidate
	s.mu.Unlock()

	if cb != nil {
		cb(key)
	}
}

// HasUnsaved reports whether any Set/Clear has happened since the last
// Save.
func (s *Store) HasUnsaved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Effective resolves the blob a virtual file should serve for key:
// overlay(area, track) -> track_original(area, track) -> empty (§4.6).
func (s *Store) Effective(key Key) []byte {
	if b, ok := s.Get(key); ok {
		return b
	}
	if s.original != nil {
		if b, ok := s.original(key); ok {
			return b
		}
	}
	return nil
}
