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
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"

	"github.com/dsdnexus/nexus-core/dst"
	"github.com/dsdnexus/nexus-core/id3"
	"github.com/dsdnexus/nexus-core/internal/errkind"
	"github.com/dsdnexus/nexus-core/sacd"
)

// mountedImage is one open SACD image, shared by every virtual file
// handle currently reading from it (§4.7 "mounted-image table").
type mountedImage struct {
	path   string
	file   afero.File
	index  *sacd.ImageIndex
	id3    *id3.Store
	pool   *dst.WorkerPool

	mu           sync.Mutex
	refcount     int
	lastReleased time.Time

	// id3Epoch counts ID3 overlay invalidations (§4.6: "the store
	// invalidates dependent layouts on write"). Every open VirtualFile
	// compares its own cached epoch against this one before serving a
	// read and resynthesises its layout when they differ.
	id3Epoch atomic.Int64
}

func (m *mountedImage) readerAt() io.ReaderAt { return m.file }

// imagePool tracks every currently mounted image, reference-counts
// concurrent handles onto the same image, and evicts idle images per
// §4.7: refcount zero AND (over MaxOpenISOs OR past CacheTimeoutSeconds).
//
// Eviction eligibility is modelled as an LRU cache of refcount-zero
// images only: Acquire removes an image from the idle set (it is no
// longer eligible for eviction while referenced); Release re-admits it,
// which may synchronously evict the least recently released image if
// the idle set is over MaxOpenISOs.
type imagePool struct {
	fs  afero.Fs
	cfg Config

	mu   sync.Mutex
	open map[string]*mountedImage
	idle *lru.Cache[string, *mountedImage]
}

// idleCapacity is the backing lru.Cache's own size limit: large enough
// that the cache's built-in capacity eviction never fires on its own.
// Capacity enforcement against cfg.MaxOpenISOs happens explicitly in
// enforceCapacityLocked, which (unlike lru.Cache's automatic eviction)
// can veto an eviction per §7 when saving its ID3 overlay fails.
const idleCapacity = 1 << 20

func newImagePool(fs afero.Fs, cfg Config) *imagePool {
	p := &imagePool{
		fs:   fs,
		cfg:  cfg,
		open: make(map[string]*mountedImage),
	}
	cache, _ := lru.New[string, *mountedImage](idleCapacity)
	p.idle = cache
	return p
}

// Acquire returns the mounted image for path, opening and indexing it
// on first use. Every Acquire must be matched by a Release.
func (p *imagePool) Acquire(path string) (*mountedImage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sweepIdleLocked()
	p.enforceCapacityLocked()

	if m, ok := p.open[path]; ok {
		m.mu.Lock()
		m.refcount++
		m.mu.Unlock()
		p.idle.Remove(path)
		return m, nil
	}

	f, err := p.fs.Open(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.Io, "vfs.imagePool.Acquire", err)
	}
	index, err := sacd.Open(f)
	if err != nil {
		_ = f.Close()
		return nil, errkind.Wrap(errkind.NotSacd, "vfs.imagePool.Acquire", err)
	}

	m := &mountedImage{
		path:     path,
		file:     f,
		index:    index,
		pool:     dst.NewWorkerPool(p.cfg.ThreadPoolSize, 0),
		refcount: 1,
	}
	m.id3 = id3.NewStore(originalID3Lookup(index))
	m.id3.OnInvalidate(func(id3.Key) { m.id3Epoch.Add(1) })
	_ = m.id3.Load(id3.SidecarPath(p.hostPath(path))) // a missing sidecar is not an error

	p.open[path] = m
	return m, nil
}

// Release drops one reference to the image at path. Once the refcount
// reaches zero the image becomes eligible for eviction.
func (p *imagePool) Release(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.open[path]
	if !ok {
		return
	}
	m.mu.Lock()
	m.refcount--
	zero := m.refcount == 0
	if zero {
		m.lastReleased = time.Now()
	}
	m.mu.Unlock()

	if zero {
		p.idle.Add(path, m)
		p.sweepIdleLocked()
		p.enforceCapacityLocked()
	}
}

// sweepIdleLocked evicts any idle image past CacheTimeoutSeconds. Called
// with p.mu held.
func (p *imagePool) sweepIdleLocked() {
	if p.cfg.CacheTimeoutSeconds <= 0 {
		return
	}
	timeout := time.Duration(p.cfg.CacheTimeoutSeconds) * time.Second
	now := time.Now()
	for _, key := range p.idle.Keys() {
		m, ok := p.idle.Peek(key)
		if !ok {
			continue
		}
		m.mu.Lock()
		expired := now.Sub(m.lastReleased) >= timeout
		m.mu.Unlock()
		if expired && p.tryEvictLocked(key, m) {
			p.idle.Remove(key)
		}
	}
}

// enforceCapacityLocked evicts least-recently-released idle images past
// MaxOpenISOs, oldest first, per §4.7. Unlike lru.Cache's own built-in
// capacity eviction, this can stop short of the limit: §7 requires that
// an image whose pending ID3 overlay fails to save is NOT evicted, so a
// save failure is skipped over rather than forced through.
func (p *imagePool) enforceCapacityLocked() {
	if p.cfg.MaxOpenISOs <= 0 {
		return
	}
	for p.idle.Len() > p.cfg.MaxOpenISOs {
		evictedAny := false
		for _, key := range p.idle.Keys() {
			if p.idle.Len() <= p.cfg.MaxOpenISOs {
				break
			}
			m, ok := p.idle.Peek(key)
			if !ok {
				continue
			}
			if p.tryEvictLocked(key, m) {
				p.idle.Remove(key)
				evictedAny = true
			}
		}
		if !evictedAny {
			return // every idle image has an unsaved overlay that failed to save
		}
	}
}

// tryEvictLocked attempts to release a mounted image's resources,
// saving any pending ID3 overlay first. Per §7, a save failure vetoes
// the eviction: the image stays mounted and its dirty flag stays set so
// a caller can retry. Reports whether the image was actually evicted.
func (p *imagePool) tryEvictLocked(path string, m *mountedImage) bool {
	if m.id3.HasUnsaved() {
		if err := m.id3.Save(id3.SidecarPath(p.hostPath(path))); err != nil {
			return false
		}
	}
	m.pool.Close()
	_ = m.file.Close()
	delete(p.open, path)
	return true
}

// hostPath resolves an overlay-relative image path to the real
// filesystem path id3's sidecar I/O (which always touches the OS
// filesystem directly, never through afero.Fs) must use. NewOverlay
// roots its afero.Fs at cfg.SourceDir via afero.NewBasePathFs, so the
// sidecar has to be joined against that same root to land next to the
// actual image file rather than relative to the process's own working
// directory.
func (p *imagePool) hostPath(path string) string {
	if p.cfg.SourceDir == "" {
		return path
	}
	return filepath.Join(p.cfg.SourceDir, path)
}

// CloseAll forcibly evicts every mounted image regardless of refcount
// or save outcome, for process shutdown (§7's "unless the caller forced
// destruction of the context").
func (p *imagePool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for path, m := range p.open {
		if m.id3.HasUnsaved() {
			_ = m.id3.Save(id3.SidecarPath(p.hostPath(path)))
		}
		m.pool.Close()
		_ = m.file.Close()
		delete(p.open, path)
	}
	p.idle.Purge()
}

// originalID3Lookup always misses: an SACD Master/Area TOC carries plain
// title/performer text (sacd.TrackText), never an embedded ID3 blob, so
// the "original" tier of the overlay -> original -> empty resolution
// order never has anything to offer for this source format.
func originalID3Lookup(*sacd.ImageIndex) func(id3.Key) ([]byte, bool) {
	return func(id3.Key) ([]byte, bool) { return nil, false }
}
