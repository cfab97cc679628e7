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

package sacd

import (
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"

	bin "github.com/dsdnexus/nexus-core/internal/binary"
)

// decodeText reads a fixed-width text field from source and decodes it as
// ISO-8859-1, the encoding SACD Master TOC text fields use on disc. Trailing
// NUL bytes and padding spaces are trimmed.
func decodeText(source io.ReaderAt, offset int64, length int) (string, error) {
	raw, err := bin.ReadBytesAt(source, offset, length)
	if err != nil {
		return "", err
	}

	end := len(raw)
	for i, b := range raw {
		if b == 0 {
			end = i
			break
		}
	}
	raw = raw[:end]

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		// ISO-8859-1 maps every byte value, so this path is unreachable in
		// practice; fall back to the raw bytes rather than failing the mount.
		decoded = raw
	}

	return strings.TrimSpace(string(decoded)), nil
}
