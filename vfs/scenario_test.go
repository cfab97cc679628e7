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
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/spf13/afero"

	"github.com/dsdnexus/nexus-core/dst"
	"github.com/dsdnexus/nexus-core/id3"
	"github.com/dsdnexus/nexus-core/sacd"
)

// TestScenario_S1 mounts a single-image directory and walks the full
// listing chain: root, the image's virtual folder, then its Stereo area.
func TestScenario_S1(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFakeImage(t, fs, "demo.iso", []fakeTrackSpec{
		{startSector: 1000, sectorSpan: 1, frameCount: 1, title: "One"},
		{startSector: 1001, sectorSpan: 1, frameCount: 1, title: "Two"},
	}, 1010)

	cfg := Config{SourceDir: "/", StereoVisible: boolPtr(true)}
	ov := NewOverlayFS(fs, cfg)
	defer ov.Close()

	root, err := ov.ReadDir("/")
	if err != nil {
		t.Fatalf("ReadDir(/) error = %v", err)
	}
	if len(root) != 1 || root[0].Name != "demo" || !root[0].IsDir {
		t.Fatalf("ReadDir(/) = %v, want a sole 'demo' directory", root)
	}

	disc, err := ov.ReadDir("/demo")
	if err != nil {
		t.Fatalf("ReadDir(/demo) error = %v", err)
	}
	if len(disc) != 1 || disc[0].Name != "Stereo" {
		t.Fatalf("ReadDir(/demo) = %v, want a sole 'Stereo' entry", disc)
	}

	tracks, err := ov.ReadDir("/demo/Stereo")
	if err != nil {
		t.Fatalf("ReadDir(/demo/Stereo) error = %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("ReadDir(/demo/Stereo) returned %d entries, want 2", len(tracks))
	}
}

// buildUncompressedDstFrame produces a valid DST frame using the
// decoder's "already linear DSD" escape path (leading flag byte 0x00):
// exercising the real frame-source/pipeline/decoder chain end to end
// without needing a DST encoder.
func buildUncompressedDstFrame(raw []byte) []byte {
	frame := make([]byte, 1+len(raw))
	frame[0] = 0x00
	copy(frame[1:], raw)
	return frame
}

// buildDstTrackPayload lays out frameCount uncompressed-escape DST frames
// back to back, each preceded by a 2-byte big-endian length and padded to
// an even byte boundary, matching dstFrameSource's expected framing.
func buildDstTrackPayload(channels int, frameCount int) []byte {
	d, err := dst.NewDecoder(channels, 2822400)
	if err != nil {
		panic(err)
	}
	rawFrame := make([]byte, d.FrameBytes())

	var buf bytes.Buffer
	for f := 0; f < frameCount; f++ {
		for i := range rawFrame {
			rawFrame[i] = byte((f*len(rawFrame) + i) & 0xff)
		}
		frame := buildUncompressedDstFrame(rawFrame)
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(frame)))
		buf.Write(lenBuf[:])
		buf.Write(frame)
		if len(frame)%2 != 0 {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

// TestScenario_S3 checks spec.md S3: reading a DST-compressed track's
// entire audio region in large chunks yields the same bytes as reading it
// in small chunks, regardless of worker count.
func TestScenario_S3(t *testing.T) {
	t.Parallel()

	const channels = 2
	const frameCount = 1000
	payload := buildDstTrackPayload(channels, frameCount)
	sectorSpan := uint32((len(payload) + sacd.SectorSize - 1) / sacd.SectorSize)

	for _, workers := range []int{1, 4} {
		fs := afero.NewMemMapFs()
		img := buildFakeSacdImageFormat([]fakeTrackSpec{
			{startSector: 1000, sectorSpan: sectorSpan, frameCount: frameCount, title: "DST Song", data: payload},
		}, 1000+int(sectorSpan)+10, 1)
		if err := afero.WriteFile(fs, "Disc.iso", img, 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		cfg := Config{SourceDir: "/", StereoVisible: boolPtr(true), ThreadPoolSize: workers}
		ov := NewOverlayFS(fs, cfg)

		entries, err := ov.ReadDir("/Disc/Stereo")
		if err != nil {
			t.Fatalf("workers=%d: ReadDir() error = %v", workers, err)
		}
		if len(entries) != 1 {
			t.Fatalf("workers=%d: ReadDir() returned %d entries, want 1", workers, len(entries))
		}
		trackName := entries[0].Name

		vfBig, err := ov.Open("/Disc/Stereo/" + trackName)
		if err != nil {
			t.Fatalf("workers=%d: Open() error = %v", workers, err)
		}
		big := make([]byte, vfBig.Size())
		if _, err := readInChunks(vfBig, big, 256*1024); err != nil {
			t.Fatalf("workers=%d: big-chunk read error = %v", workers, err)
		}
		vfBig.Close()

		vfSmall, err := ov.Open("/Disc/Stereo/" + trackName)
		if err != nil {
			t.Fatalf("workers=%d: Open() error = %v", workers, err)
		}
		small := make([]byte, vfSmall.Size())
		if _, err := readInChunks(vfSmall, small, 4*1024); err != nil {
			t.Fatalf("workers=%d: small-chunk read error = %v", workers, err)
		}
		vfSmall.Close()

		if !bytes.Equal(big, small) {
			t.Fatalf("workers=%d: 256KiB-chunk read != 4KiB-chunk read", workers)
		}
		ov.Close()
	}
}

func readInChunks(vf *VirtualFile, out []byte, chunk int64) (int64, error) {
	var off int64
	for off < int64(len(out)) {
		n := chunk
		if off+n > int64(len(out)) {
			n = int64(len(out)) - off
		}
		if _, err := vf.ReadAt(out[off:off+n], off); err != nil {
			return off, err
		}
		off += n
	}
	return off, nil
}

// TestScenario_S5 checks spec.md S5: a saved ID3 overlay survives
// destroying and recreating the Overlay against the same source directory.
func TestScenario_S5(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFakeImage(t, fs, "Disc.iso", []fakeTrackSpec{
		{startSector: 1000, sectorSpan: 1, frameCount: 1, title: "Song"},
	}, 1010)

	cfg := Config{SourceDir: "/", StereoVisible: boolPtr(true)}
	blob := bytes.Repeat([]byte{0xAB}, 372)

	ov1 := NewOverlayFS(fs, cfg)
	m, err := ov1.pool.Acquire("Disc.iso")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	key := id3Key(sacd.AreaStereo, 1)
	m.id3.Set(key, blob)
	if err := m.id3.Save(id3.SidecarPath(ov1.pool.hostPath("Disc.iso"))); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	ov1.pool.Release("Disc.iso")
	ov1.Close()

	ov2 := NewOverlayFS(fs, cfg)
	defer ov2.Close()
	m2, err := ov2.pool.Acquire("Disc.iso")
	if err != nil {
		t.Fatalf("Acquire() (reopen) error = %v", err)
	}
	defer ov2.pool.Release("Disc.iso")

	got := m2.id3.Effective(key)
	if !bytes.Equal(got, blob) {
		t.Fatalf("reopened overlay blob = %v bytes, want %d bytes matching original", len(got), len(blob))
	}
}

// TestScenario_S4 checks spec.md S4: setting an ID3 overlay through the
// §6 VFS-level API grows the virtual file by the blob (plus alignment
// padding), and reading the metadata_offset range returns the blob
// verbatim.
func TestScenario_S4(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFakeImage(t, fs, "Disc.iso", []fakeTrackSpec{
		{startSector: 1000, sectorSpan: 1, frameCount: 1, title: "Song"},
	}, 1010)

	cfg := Config{SourceDir: "/", StereoVisible: boolPtr(true)}
	ov := NewOverlayFS(fs, cfg)
	defer ov.Close()

	entries, err := ov.ReadDir("/Disc/Stereo")
	if err != nil || len(entries) != 1 {
		t.Fatalf("ReadDir() = %v, %v", entries, err)
	}
	trackPath := "/Disc/Stereo/" + entries[0].Name

	before, err := ov.Stat(trackPath)
	if err != nil {
		t.Fatalf("Stat() before overlay error = %v", err)
	}

	blob := bytes.Repeat([]byte{0xCD}, 372)
	if err := ov.SetID3Overlay(trackPath, blob); err != nil {
		t.Fatalf("SetID3Overlay() error = %v", err)
	}

	after, err := ov.Stat(trackPath)
	if err != nil {
		t.Fatalf("Stat() after overlay error = %v", err)
	}
	if after.Size <= before.Size {
		t.Fatalf("Stat() size after overlay = %d, want > %d", after.Size, before.Size)
	}

	vf, err := ov.Open(trackPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer vf.Close()

	got := make([]byte, len(blob))
	if _, err := vf.ReadAt(got, vf.layout.MetadataOffset); err != nil {
		t.Fatalf("ReadAt(metadataOffset) error = %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Fatalf("ID3 region read = %v, want the overlay blob", got)
	}

	tag, err := ov.GetID3Tag(trackPath)
	if err != nil || !bytes.Equal(tag, blob) {
		t.Fatalf("GetID3Tag() = %v, %v, want %v, nil", tag, err, blob)
	}

	if err := ov.ClearID3Overlay(trackPath); err != nil {
		t.Fatalf("ClearID3Overlay() error = %v", err)
	}
	cleared, err := ov.GetID3Tag(trackPath)
	if err != nil || len(cleared) != 0 {
		t.Fatalf("GetID3Tag() after clear = %v, %v, want empty", cleared, err)
	}
}

// TestVirtualFile_ObservesID3OverlayMidFlight checks §4.6: a handle left
// open across a SetID3Overlay call made through a second handle on the
// same track observes the new layout on its very next read.
func TestVirtualFile_ObservesID3OverlayMidFlight(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFakeImage(t, fs, "Disc.iso", []fakeTrackSpec{
		{startSector: 1000, sectorSpan: 1, frameCount: 1, title: "Song"},
	}, 1010)

	cfg := Config{SourceDir: "/", StereoVisible: boolPtr(true)}
	ov := NewOverlayFS(fs, cfg)
	defer ov.Close()

	entries, err := ov.ReadDir("/Disc/Stereo")
	if err != nil || len(entries) != 1 {
		t.Fatalf("ReadDir() = %v, %v", entries, err)
	}
	trackPath := "/Disc/Stereo/" + entries[0].Name

	vf, err := ov.Open(trackPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer vf.Close()

	sizeBefore := vf.Size()

	blob := bytes.Repeat([]byte{0x42}, 100)
	if err := ov.SetID3Overlay(trackPath, blob); err != nil {
		t.Fatalf("SetID3Overlay() error = %v", err)
	}

	var header [28]byte
	if _, err := vf.ReadAt(header[:], 0); err != nil {
		t.Fatalf("ReadAt() after overlay error = %v", err)
	}
	if vf.Size() <= sizeBefore {
		t.Fatalf("Size() after overlay = %d, want > %d (pre-overlay size)", vf.Size(), sizeBefore)
	}
	reportedSize := int64(binary.LittleEndian.Uint64(header[12:20]))
	if reportedSize != vf.Size() {
		t.Fatalf("DSD chunk file_size = %d, want %d", reportedSize, vf.Size())
	}
}

// TestImagePool_EvictionVetoedBySaveFailure checks §7: an idle image
// whose ID3 overlay fails to save is not evicted even when it is the
// least-recently-used entry over MaxOpenISOs.
func TestImagePool_EvictionVetoedBySaveFailure(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	for _, name := range []string{"A.iso", "B.iso"} {
		writeFakeImage(t, fs, name, []fakeTrackSpec{{startSector: 1000, sectorSpan: 1, frameCount: 1}}, 1010)
	}

	// SourceDir names a directory that does not exist on the real
	// filesystem, so id3.Store.Save (which always writes its sidecar via
	// the OS filesystem, never through afero.Fs) reliably fails without
	// touching anything outside the test.
	cfg := Config{SourceDir: "/nonexistent-dsdnexus-test-dir", MaxOpenISOs: 1}
	pool := newImagePool(fs, cfg)
	defer pool.CloseAll()

	mA, err := pool.Acquire("A.iso")
	if err != nil {
		t.Fatalf("Acquire(A) error = %v", err)
	}
	// A.iso's overlay can never be saved, so it should be left mounted
	// (with its dirty flag still set) instead of forced out when B.iso
	// is acquired.
	mA.id3.Set(id3Key(sacd.AreaStereo, 1), []byte{0xAA})
	pool.Release("A.iso")

	if _, err := pool.Acquire("B.iso"); err != nil {
		t.Fatalf("Acquire(B) error = %v", err)
	}
	pool.Release("B.iso")

	pool.mu.Lock()
	_, aOpen := pool.open["A.iso"]
	pool.mu.Unlock()
	if !aOpen {
		t.Fatal("A.iso was evicted despite its ID3 overlay failing to save")
	}
	if !mA.id3.HasUnsaved() {
		t.Fatal("A.iso's dirty flag was cleared despite the save failing")
	}
}

// TestScenario_S6 checks spec.md S6: with max_open_isos=2, opening a
// third distinct image evicts the least-recently-released of the first
// two.
func TestScenario_S6(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	for _, name := range []string{"A.iso", "B.iso", "C.iso"} {
		writeFakeImage(t, fs, name, []fakeTrackSpec{{startSector: 1000, sectorSpan: 1, frameCount: 1}}, 1010)
	}

	cfg := Config{SourceDir: "/", MaxOpenISOs: 2}
	pool := newImagePool(fs, cfg)
	defer pool.CloseAll()

	for _, name := range []string{"A.iso", "B.iso", "C.iso"} {
		_, err := pool.Acquire(name)
		if err != nil {
			t.Fatalf("Acquire(%s) error = %v", name, err)
		}
		pool.Release(name)
	}

	pool.mu.Lock()
	_, aOpen := pool.open["A.iso"]
	_, bOpen := pool.open["B.iso"]
	_, cOpen := pool.open["C.iso"]
	pool.mu.Unlock()

	if aOpen {
		t.Fatal("A.iso should have been evicted as the least-recently-used image")
	}
	if !bOpen || !cOpen {
		t.Fatalf("expected B.iso and C.iso to remain mounted, got B=%v C=%v", bOpen, cOpen)
	}
}
