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

package dst

import "errors"

var (
	errTooManyElements         = errors.New("dst: too many filter/probability elements")
	errBadMap                  = errors.New("dst: element map entry out of range")
	errBadMethod               = errors.New("dst: reserved coefficient coding method")
	errCoeffRange              = errors.New("dst: decoded coefficient out of range")
	errFilterOverflow          = errors.New("dst: filter coefficient overflows int16")
	errUnsupportedSegmentation = errors.New("dst: non-default segmentation is not supported")
	errShortFrame              = errors.New("dst: frame shorter than minimum size")
)
