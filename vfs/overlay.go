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
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/dsdnexus/nexus-core/dsf"
	"github.com/dsdnexus/nexus-core/id3"
	"github.com/dsdnexus/nexus-core/internal/errkind"
	"github.com/dsdnexus/nexus-core/sacd"
)

// Entry is one directory listing entry, real or virtual.
type Entry struct {
	Name  string
	IsDir bool
	Size  int64
}

// Overlay presents the virtual directory tree described in §4.7: a host
// source directory with every SACD image replaced by a virtual folder of
// synthesised tracks.
type Overlay struct {
	fs   afero.Fs
	cfg  Config
	pool *imagePool
}

// NewOverlay roots an Overlay at cfg.SourceDir.
func NewOverlay(cfg Config) *Overlay {
	fs := afero.NewBasePathFs(afero.NewOsFs(), cfg.SourceDir)
	return &Overlay{fs: fs, cfg: cfg, pool: newImagePool(fs, cfg)}
}

// NewOverlayFS builds an Overlay over an already-constructed afero.Fs,
// mainly so tests can exercise path resolution against
// afero.NewMemMapFs() without touching the real filesystem.
func NewOverlayFS(fs afero.Fs, cfg Config) *Overlay {
	return &Overlay{fs: fs, cfg: cfg, pool: newImagePool(fs, cfg)}
}

// Close evicts every mounted image, saving any unsaved ID3 overlays.
func (o *Overlay) Close() { o.pool.CloseAll() }

// locator is the result of resolving a virtual path (§4.7 step 1-4).
type locator struct {
	kind      locatorKind
	hostPath  string // valid for kindRoot and kindPassthrough*
	imagePath string // valid from kindImageFolder down
	area      sacd.Area
	areaSet   bool
	track     int
}

type locatorKind int

const (
	kindRoot locatorKind = iota
	kindPassthroughDir
	kindPassthroughFile
	kindImageFolder
	kindAreaDir
	kindTrackFile
)

// resolve walks p component by component per §4.7's path resolution
// algorithm, switching into "virtual mode" the moment a component names
// an image's virtual folder.
func (o *Overlay) resolve(p string) (locator, error) {
	clean := strings.Trim(path.Clean("/"+p), "/")
	if clean == "." || clean == "" {
		return locator{kind: kindRoot, hostPath: "/"}, nil
	}
	segs := strings.Split(clean, "/")

	hostDir := "/"
	for i, seg := range segs {
		entries, err := o.listHostDir(hostDir)
		if err != nil {
			return locator{}, err
		}
		if img, ok := entries.imageBySegmentName(seg); ok {
			return o.resolveInsideImage(img.hostPath, segs[i+1:])
		}
		info, err := o.fs.Stat(path.Join(hostDir, seg))
		if err != nil {
			return locator{}, errkind.Wrap(errkind.NotFound, "vfs.Overlay.resolve", err)
		}
		if i == len(segs)-1 {
			if info.IsDir() {
				return locator{kind: kindPassthroughDir, hostPath: path.Join(hostDir, seg)}, nil
			}
			return locator{kind: kindPassthroughFile, hostPath: path.Join(hostDir, seg)}, nil
		}
		if !info.IsDir() {
			return locator{}, errkind.New(errkind.NotFound, "vfs.Overlay.resolve")
		}
		hostDir = path.Join(hostDir, seg)
	}
	return locator{kind: kindRoot, hostPath: hostDir}, nil
}

func (o *Overlay) resolveInsideImage(imagePath string, rest []string) (locator, error) {
	if len(rest) == 0 {
		return locator{kind: kindImageFolder, imagePath: imagePath}, nil
	}

	m, err := o.pool.Acquire(imagePath)
	if err != nil {
		return locator{}, err
	}
	defer o.pool.Release(imagePath)

	area, ok := matchAreaDirName(m.index, rest[0], o.cfg)
	if !ok {
		return locator{}, errkind.New(errkind.NotFound, "vfs.Overlay.resolveInsideImage")
	}
	if len(rest) == 1 {
		return locator{kind: kindAreaDir, imagePath: imagePath, area: area, areaSet: true}, nil
	}

	track, ok := matchTrackFileName(m.index, area, rest[1])
	if !ok || len(rest) > 2 {
		return locator{}, errkind.New(errkind.NotFound, "vfs.Overlay.resolveInsideImage")
	}
	return locator{kind: kindTrackFile, imagePath: imagePath, area: area, areaSet: true, track: track}, nil
}

func matchAreaDirName(index *sacd.ImageIndex, name string, cfg Config) (sacd.Area, bool) {
	for _, area := range []sacd.Area{sacd.AreaStereo, sacd.AreaMultichannel} {
		flag := cfg.stereoVisible()
		if area == sacd.AreaMultichannel {
			flag = cfg.multichannelVisible()
		}
		if areaVisible(index, area, flag) && areaDirName(area) == name {
			return area, true
		}
	}
	return 0, false
}

func matchTrackFileName(index *sacd.ImageIndex, area sacd.Area, name string) (int, bool) {
	for _, extent := range index.Tracks(area) {
		text := index.TrackText(area, extent.Index)
		if trackFileName(extent.Index, text) == name {
			return extent.Index, true
		}
	}
	return 0, false
}

// hostListing is the resolved view of one host directory: passthrough
// entries plus the virtual folder name each image maps to.
type hostListing struct {
	passthrough []os.FileInfo
	images      []imageEntry
}

type imageEntry struct {
	name     string // virtual folder name, disambiguated
	hostPath string // absolute path of the underlying image file
}

func (h hostListing) imageBySegmentName(seg string) (imageEntry, bool) {
	for _, img := range h.images {
		if img.name == seg {
			return img, true
		}
	}
	return imageEntry{}, false
}

func (o *Overlay) listHostDir(dir string) (hostListing, error) {
	infos, err := afero.ReadDir(o.fs, dir)
	if err != nil {
		return hostListing{}, errkind.Wrap(errkind.Io, "vfs.Overlay.listHostDir", err)
	}

	var out hostListing
	taken := make(map[string]bool)
	for _, info := range infos {
		if info.IsDir() {
			out.passthrough = append(out.passthrough, info)
			taken[info.Name()] = true
			continue
		}
		if !isImageExtension(info.Name(), o.cfg.isoExtensions()) {
			out.passthrough = append(out.passthrough, info)
			taken[info.Name()] = true
			continue
		}
		name := disambiguate(virtualFolderName(info.Name(), o.cfg.isoExtensions()), taken)
		taken[name] = true
		out.images = append(out.images, imageEntry{name: name, hostPath: path.Join(dir, info.Name())})
	}
	return out, nil
}

// ReadDir lists the entries at a virtual path.
func (o *Overlay) ReadDir(p string) ([]Entry, error) {
	loc, err := o.resolve(p)
	if err != nil {
		return nil, err
	}

	switch loc.kind {
	case kindRoot, kindPassthroughDir:
		listing, err := o.listHostDir(loc.hostPath)
		if err != nil {
			return nil, err
		}
		var out []Entry
		for _, info := range listing.passthrough {
			out = append(out, Entry{Name: info.Name(), IsDir: info.IsDir(), Size: info.Size()})
		}
		for _, img := range listing.images {
			out = append(out, Entry{Name: img.name, IsDir: true})
		}
		return out, nil

	case kindImageFolder:
		m, err := o.pool.Acquire(loc.imagePath)
		if err != nil {
			return nil, err
		}
		defer o.pool.Release(loc.imagePath)

		var out []Entry
		for _, area := range []sacd.Area{sacd.AreaStereo, sacd.AreaMultichannel} {
			flag := o.cfg.stereoVisible()
			if area == sacd.AreaMultichannel {
				flag = o.cfg.multichannelVisible()
			}
			if areaVisible(m.index, area, flag) {
				out = append(out, Entry{Name: areaDirName(area), IsDir: true})
			}
		}
		return out, nil

	case kindAreaDir:
		m, err := o.pool.Acquire(loc.imagePath)
		if err != nil {
			return nil, err
		}
		defer o.pool.Release(loc.imagePath)

		var out []Entry
		for _, extent := range m.index.Tracks(loc.area) {
			text := m.index.TrackText(loc.area, extent.Index)
			name := trackFileName(extent.Index, text)
			size, err := trackFileSize(m, loc.area, extent.Index)
			if err != nil {
				return nil, err
			}
			out = append(out, Entry{Name: name, Size: size})
		}
		return out, nil

	default:
		return nil, errkind.New(errkind.InvalidArg, "vfs.Overlay.ReadDir")
	}
}

// Stat returns the Entry for a single virtual path.
func (o *Overlay) Stat(p string) (Entry, error) {
	loc, err := o.resolve(p)
	if err != nil {
		return Entry{}, err
	}
	switch loc.kind {
	case kindRoot, kindPassthroughDir, kindImageFolder, kindAreaDir:
		return Entry{Name: path.Base(p), IsDir: true}, nil
	case kindPassthroughFile:
		info, err := o.fs.Stat(loc.hostPath)
		if err != nil {
			return Entry{}, errkind.Wrap(errkind.Io, "vfs.Overlay.Stat", err)
		}
		return Entry{Name: info.Name(), Size: info.Size()}, nil
	case kindTrackFile:
		m, err := o.pool.Acquire(loc.imagePath)
		if err != nil {
			return Entry{}, err
		}
		defer o.pool.Release(loc.imagePath)
		size, err := trackFileSize(m, loc.area, loc.track)
		if err != nil {
			return Entry{}, err
		}
		text := m.index.TrackText(loc.area, loc.track)
		return Entry{Name: trackFileName(loc.track, text), Size: size}, nil
	default:
		return Entry{}, errkind.New(errkind.NotFound, "vfs.Overlay.Stat")
	}
}

func trackFileSize(m *mountedImage, area sacd.Area, track int) (int64, error) {
	extent, err := m.index.Track(area, track)
	if err != nil {
		return 0, errkind.Wrap(errkind.NotFound, "vfs.trackFileSize", err)
	}
	key := id3.Key{Area: area, Track: track}
	layout, err := dsf.Synthesize(extent, m.id3.Effective(key))
	if err != nil {
		return 0, errkind.Wrap(errkind.Malformed, "vfs.trackFileSize", err)
	}
	return layout.TotalSize, nil
}

// Open returns a handle for a virtual track path. For a passthrough
// path, use afero directly against the Overlay's Fs; Open only serves
// synthesised tracks.
func (o *Overlay) Open(p string) (*VirtualFile, error) {
	loc, err := o.resolve(p)
	if err != nil {
		return nil, err
	}
	if loc.kind != kindTrackFile {
		return nil, errkind.New(errkind.InvalidArg, "vfs.Overlay.Open: not a track file")
	}

	m, err := o.pool.Acquire(loc.imagePath)
	if err != nil {
		return nil, err
	}

	extent, err := m.index.Track(loc.area, loc.track)
	if err != nil {
		o.pool.Release(loc.imagePath)
		return nil, errkind.Wrap(errkind.NotFound, "vfs.Overlay.Open", err)
	}

	vf, err := newVirtualFile(o, loc.imagePath, m, extent)
	if err != nil {
		o.pool.Release(loc.imagePath)
		return nil, err
	}
	return vf, nil
}

// id3Key builds the lookup key id3.Store uses for one track's overlay.
func id3Key(area sacd.Area, track int) id3.Key { return id3.Key{Area: area, Track: track} }
