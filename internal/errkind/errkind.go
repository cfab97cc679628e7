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

// Package errkind centralises the symbolic error taxonomy shared by every
// DSD-Nexus component. Every fallible operation in the core returns a Go
// error; callers that need to branch on the failure reason use errors.As
// to recover the Kind instead of matching on error strings.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is a symbolic error category, independent of any host-language
// errno or POSIX mapping. The FUSE adapter (out of scope here) is
// responsible for translating a Kind into the errno its platform expects.
type Kind int

const (
	// InvalidArg marks a caller-supplied argument that is structurally wrong
	// (negative length, out-of-range area, empty path).
	InvalidArg Kind = iota
	// NotFound marks a path, track, or mounted image that does not exist.
	NotFound
	// NotSacd marks a source that failed the Master TOC signature check.
	NotSacd
	// Malformed marks a structurally inconsistent container (overlap,
	// negative span, out-of-family channel count or sample rate).
	Malformed
	// Io marks a failure in the underlying byte source.
	Io
	// Oom marks an allocation that was refused because it exceeded a
	// configured safety bound.
	Oom
	// Access marks a write to a non-writable region of a virtual file.
	Access
	// Cancelled marks an operation aborted by handle closure.
	Cancelled
	// Busy marks a pool or queue that is at capacity.
	Busy
	// DecodeFailed marks a DST frame that failed to decode; it poisons the
	// owning virtual file handle.
	DecodeFailed
	// Eof marks a short read at the end of a region or file.
	Eof
)

func (k Kind) String() string {
	switch k {
	case InvalidArg:
		return "InvalidArg"
	case NotFound:
		return "NotFound"
	case NotSacd:
		return "NotSacd"
	case Malformed:
		return "Malformed"
	case Io:
		return "Io"
	case Oom:
		return "Oom"
	case Access:
		return "Access"
	case Cancelled:
		return "Cancelled"
	case Busy:
		return "Busy"
	case DecodeFailed:
		return "DecodeFailed"
	case Eof:
		return "Eof"
	default:
		return "Unknown"
	}
}

// NexusError wraps an underlying error with the symbolic Kind and the
// operation that produced it, the way the teacher's archive package
// carries structured fields (FormatError, FileNotFoundError) instead of
// opaque strings.
type NexusError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *NexusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *NexusError) Unwrap() error { return e.Err }

// New constructs a NexusError with no wrapped cause.
func New(kind Kind, op string) error {
	return &NexusError{Kind: kind, Op: op}
}

// Wrap constructs a NexusError around an existing error.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &NexusError{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var ne *NexusError
	for err != nil {
		if ok := asNexusError(err, &ne); ok {
			if ne.Kind == kind {
				return true
			}
			err = ne.Err
			continue
		}
		break
	}
	return false
}

func asNexusError(err error, target **NexusError) bool {
	return errors.As(err, target)
}
