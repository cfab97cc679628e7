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
	"sync"

	"github.com/dsdnexus/nexus-core/dsf"
	"github.com/dsdnexus/nexus-core/dst"
	"github.com/dsdnexus/nexus-core/internal/errkind"
	"github.com/dsdnexus/nexus-core/sacd"
	"github.com/dsdnexus/nexus-core/transform"
)

// VirtualFile serves a synthesised DSF byte stream for one SACD track
// (§4.5). It never materialises the whole file: each Region is produced
// from the smallest amount of source data a read actually touches.
type VirtualFile struct {
	overlay   *Overlay
	imagePath string
	m         *mountedImage
	extent    sacd.TrackExtent
	layout    dsf.VirtualDsfLayout
	id3Blob   []byte

	groupStride    int64 // bytes per block group (4096 * channel count), transformed space
	bytesPerChRaw  int64 // bytes per channel, untransformed space
	audioStartByte int64 // only meaningful for FrameDsd

	// seenEpoch is the mountedImage's id3Epoch as of the last time this
	// handle's layout/id3Blob were synthesised. ReadAt resynchronises
	// against m.id3Epoch before serving a read so that a SetID3Overlay/
	// ClearID3Overlay call made through another handle on the same track
	// is observed on the very next read (§4.6).
	seenEpoch int64

	// pipeline and rawBuf serve FrameDstCompressed tracks only: rawBuf
	// accumulates decoded, channel-interleaved MSB-first bytes in frame
	// order as the pipeline delivers them.
	pipeline  *dst.Pipeline
	rawMu     sync.Mutex
	rawBuf    []byte
	rawFilled int64

	pos    int64
	closed bool
}

func newVirtualFile(o *Overlay, imagePath string, m *mountedImage, extent sacd.TrackExtent) (*VirtualFile, error) {
	key := id3Key(extent.Area, extent.Index)
	blob := m.id3.Effective(key)

	layout, err := dsf.Synthesize(extent, blob)
	if err != nil {
		return nil, errkind.Wrap(errkind.Malformed, "vfs.newVirtualFile", err)
	}

	vf := &VirtualFile{
		overlay:       o,
		imagePath:     imagePath,
		m:             m,
		extent:        extent,
		layout:        layout,
		id3Blob:       blob,
		groupStride:   int64(extent.ChannelCount) * dsf.BlockSizePerChannel,
		bytesPerChRaw: ceilDiv8(layout.SampleCount),
		seenEpoch:     m.id3Epoch.Load(),
	}

	switch extent.FrameFormat {
	case sacd.FrameDsd:
		vf.audioStartByte = int64(extent.StartSector) * sacd.SectorSize

	case sacd.FrameDstCompressed:
		decoder, err := dst.NewDecoder(extent.ChannelCount, extent.SampleRate)
		if err != nil {
			return nil, errkind.Wrap(errkind.Malformed, "vfs.newVirtualFile", err)
		}
		startByte := int64(extent.StartSector) * sacd.SectorSize
		source, err := buildDstFrameOffsets(m.readerAt(), startByte, int(extent.FrameCount))
		if err != nil {
			return nil, err
		}
		vf.pipeline = dst.NewPipeline(m.pool, decoder, source, int64(extent.FrameCount), 0)

	default:
		return nil, errkind.New(errkind.NotSacd, "vfs.newVirtualFile: unsupported on-disc packing")
	}

	return vf, nil
}

func ceilDiv8(samples int64) int64 { return (samples + 7) / 8 }

// resyncID3 resynthesises the layout and id3Blob if the image's overlay
// store has changed this track's effective ID3 since this handle was
// opened or last resynced (§4.6). Only the header/padding/id3 geometry
// can change this way; audio-region math (groupStride, bytesPerChRaw,
// audioStartByte, the DST pipeline) is derived solely from the track
// extent and is unaffected.
func (vf *VirtualFile) resyncID3() error {
	epoch := vf.m.id3Epoch.Load()
	if epoch == vf.seenEpoch {
		return nil
	}
	key := id3Key(vf.extent.Area, vf.extent.Index)
	blob := vf.m.id3.Effective(key)
	layout, err := dsf.Synthesize(vf.extent, blob)
	if err != nil {
		return errkind.Wrap(errkind.Malformed, "vfs.VirtualFile.resyncID3", err)
	}
	vf.layout = layout
	vf.id3Blob = blob
	vf.seenEpoch = epoch
	return nil
}

// Size returns the total synthesised byte length of the track.
func (vf *VirtualFile) Size() int64 { return vf.layout.TotalSize }

// ReadAt implements io.ReaderAt, clipping the request to [0, Size()) per
// §4.5 step 1.
func (vf *VirtualFile) ReadAt(p []byte, off int64) (int, error) {
	if vf.closed {
		return 0, errkind.New(errkind.InvalidArg, "vfs.VirtualFile.ReadAt: closed")
	}
	if err := vf.resyncID3(); err != nil {
		return 0, err
	}
	if off < 0 || off >= vf.layout.TotalSize {
		return 0, io.EOF
	}

	n := int64(len(p))
	if off+n > vf.layout.TotalSize {
		n = vf.layout.TotalSize - off
	}

	for _, sub := range vf.layout.Partition(off, n) {
		dst := p[sub.BufStart : sub.BufStart+sub.Length]
		if err := vf.fillRegion(sub, dst); err != nil {
			return int(sub.BufStart), err
		}
	}

	var err error
	if n < int64(len(p)) {
		err = io.EOF
	}
	return int(n), err
}

// Read implements io.Reader against an internal cursor, so a VirtualFile
// can be handed to consumers (e.g. a FUSE bridge or net/http responder)
// expecting a sequential stream.
func (vf *VirtualFile) Read(p []byte) (int, error) {
	n, err := vf.ReadAt(p, vf.pos)
	vf.pos += int64(n)
	return n, err
}

// WriteAt implements io.WriterAt over the ID3 region only, per §6's write
// semantics: the "DSD "/"fmt "/"data"/audio/padding regions are read-only
// and any write touching them fails with Access. A write wholly inside
// the current ID3 region overwrites that slice of the tag in place and
// pushes the updated blob into the image's overlay store, so the change
// is visible to get_id3_tag and persisted by the next save_id3.
func (vf *VirtualFile) WriteAt(p []byte, off int64) (int, error) {
	if vf.closed {
		return 0, errkind.New(errkind.InvalidArg, "vfs.VirtualFile.WriteAt: closed")
	}
	if err := vf.resyncID3(); err != nil {
		return 0, err
	}
	if vf.layout.ID3Size == 0 || off < vf.layout.MetadataOffset ||
		off+int64(len(p)) > vf.layout.TotalSize {
		return 0, errkind.New(errkind.Access, "vfs.VirtualFile.WriteAt: write outside ID3 region")
	}

	updated := make([]byte, len(vf.id3Blob))
	copy(updated, vf.id3Blob)
	copy(updated[off-vf.layout.MetadataOffset:], p)
	vf.id3Blob = updated
	vf.m.id3.Set(id3Key(vf.extent.Area, vf.extent.Index), updated)
	return len(p), nil
}

// Write implements io.Writer against the internal cursor, mirroring Read.
func (vf *VirtualFile) Write(p []byte) (int, error) {
	n, err := vf.WriteAt(p, vf.pos)
	vf.pos += int64(n)
	return n, err
}

// Seek implements io.Seeker over the synthesised byte stream.
func (vf *VirtualFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = vf.pos
	case io.SeekEnd:
		base = vf.layout.TotalSize
	default:
		return 0, errkind.New(errkind.InvalidArg, "vfs.VirtualFile.Seek: bad whence")
	}
	target := base + offset
	if target < 0 {
		return 0, errkind.New(errkind.InvalidArg, "vfs.VirtualFile.Seek: negative position")
	}
	vf.pos = target
	return target, nil
}

// Close releases this handle's reference on the underlying mounted image.
func (vf *VirtualFile) Close() error {
	if vf.closed {
		return nil
	}
	vf.closed = true
	if vf.pipeline != nil {
		vf.pipeline.Close()
	}
	vf.overlay.pool.Release(vf.imagePath)
	return nil
}

func (vf *VirtualFile) fillRegion(sub dsf.SubRange, out []byte) error {
	switch sub.Region {
	case dsf.RegionDsdChunk:
		copy(out, vf.layout.HeaderBytes[sub.RegionStart:sub.RegionStart+sub.Length])
	case dsf.RegionFmtChunk:
		base := int64(dsf.DsdChunkSize) + sub.RegionStart
		copy(out, vf.layout.HeaderBytes[base:base+sub.Length])
	case dsf.RegionDataHeader:
		base := int64(dsf.DsdChunkSize+dsf.FmtChunkSize) + sub.RegionStart
		copy(out, vf.layout.HeaderBytes[base:base+sub.Length])
	case dsf.RegionPadding:
		for i := range out {
			out[i] = dsf.PaddingByte
		}
	case dsf.RegionID3:
		copy(out, vf.id3Blob[sub.RegionStart:sub.RegionStart+sub.Length])
	case dsf.RegionAudio:
		return vf.fillAudio(out, sub.RegionStart)
	default:
		return errkind.New(errkind.InvalidArg, "vfs.VirtualFile.fillRegion: unknown region")
	}
	return nil
}

// fillAudio serves out, a slice of the transformed (block-interleaved,
// LSB-first) audio region starting at absolute offset start within that
// region. §4.3's layout groups one 4096-byte block per channel together
// (block group g holds channel 0's g-th block, then channel 1's g-th
// block, ...), so a transformed-space position maps to (channel,
// per-channel-byte-index) via the block-group index and the offset
// within it, not by simple division across the whole channel run.
func (vf *VirtualFile) fillAudio(out []byte, start int64) error {
	channels := int64(vf.extent.ChannelCount)

	for k := range out {
		pos := start + int64(k)
		group := pos / vf.groupStride
		withinGroup := pos % vf.groupStride
		ch := withinGroup / dsf.BlockSizePerChannel
		withinBlock := withinGroup % dsf.BlockSizePerChannel
		i := group*dsf.BlockSizePerChannel + withinBlock // per-channel byte index, untransformed space

		if i >= vf.bytesPerChRaw {
			out[k] = 0 // zero-padded tail beyond the real audio data
			continue
		}

		raw, err := vf.rawByteAt(i, ch, channels)
		if err != nil {
			return err
		}
		out[k] = transform.ReverseByte(raw)
	}
	return nil
}

func (vf *VirtualFile) rawByteAt(i, ch, channels int64) (byte, error) {
	if vf.extent.FrameFormat == sacd.FrameDsd {
		off := vf.audioStartByte + i*channels + ch
		buf := make([]byte, 1)
		if _, err := vf.m.readerAt().ReadAt(buf, off); err != nil {
			return 0, errkind.Wrap(errkind.Io, "vfs.VirtualFile.rawByteAt", err)
		}
		return buf[0], nil
	}

	rawIdx := i*channels + ch
	if err := vf.ensureRaw(rawIdx + 1); err != nil {
		return 0, err
	}
	vf.rawMu.Lock()
	b := vf.rawBuf[rawIdx]
	vf.rawMu.Unlock()
	return b, nil
}

// ensureRaw decodes frames from the pipeline, in order, until at least
// upto bytes of the untransformed audio stream are buffered.
func (vf *VirtualFile) ensureRaw(upto int64) error {
	vf.rawMu.Lock()
	defer vf.rawMu.Unlock()

	for vf.rawFilled < upto {
		frame, err := vf.pipeline.Next()
		if err != nil {
			return errkind.Wrap(errkind.DecodeFailed, "vfs.VirtualFile.ensureRaw", err)
		}
		vf.rawBuf = append(vf.rawBuf, frame...)
		vf.rawFilled += int64(len(frame))
	}
	return nil
}
