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
	"testing"

	"github.com/dsdnexus/nexus-core/internal/errkind"
)

func putU16BE(buf []byte, off int, v uint16) {
	buf[off] = byte(v >> 8)
	buf[off+1] = byte(v)
}

func TestBuildDstFrameOffsets_ParsesSequentialFrames(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	frames := [][]byte{
		{0x01, 0x02, 0x03}, // odd length, padded to 4 on disk
		{0xAA, 0xBB},
		{},
	}
	for _, f := range frames {
		header := make([]byte, 2)
		putU16BE(header, 0, uint16(len(f)))
		buf.Write(header)
		buf.Write(f)
		if len(f)%2 != 0 {
			buf.WriteByte(0)
		}
	}

	src, err := buildDstFrameOffsets(bytes.NewReader(buf.Bytes()), 0, len(frames))
	if err != nil {
		t.Fatalf("buildDstFrameOffsets() error = %v", err)
	}

	for i, want := range frames {
		got, err := src.ReadFrame(int64(i))
		if err != nil {
			t.Fatalf("ReadFrame(%d) error = %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("ReadFrame(%d) = %x, want %x", i, got, want)
		}
	}
}

func TestDstFrameSource_ReadFrame_RejectsOutOfRange(t *testing.T) {
	t.Parallel()

	src := &dstFrameSource{offsets: []int64{0}, lengths: []int32{1}}
	if _, err := src.ReadFrame(-1); !errkind.Is(err, errkind.Eof) {
		t.Fatalf("ReadFrame(-1) error = %v, want Eof", err)
	}
	if _, err := src.ReadFrame(5); !errkind.Is(err, errkind.Eof) {
		t.Fatalf("ReadFrame(5) error = %v, want Eof", err)
	}
}
