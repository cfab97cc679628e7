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

import (
	"testing"
	"time"

	"github.com/dsdnexus/nexus-core/internal/errkind"
)

// TestWorkerPool_SubmitAfterCloseDoesNotBlock pins the fix for a job
// submitted once the pool has already closed: deliver must be invoked
// with a Cancelled error rather than Submit blocking forever with no
// worker left to drain it. This builds a WorkerPool directly (no
// worker goroutines running) and fills jobs to capacity so Submit's
// internal select cannot nondeterministically pick the send branch over
// the already-closed done branch - a select with both ready picks
// pseudo-randomly, and a live worker draining the filler jobs would
// make that race untestable.
func TestWorkerPool_SubmitAfterCloseDoesNotBlock(t *testing.T) {
	t.Parallel()

	p := &WorkerPool{jobs: make(chan job, 2), done: make(chan struct{})}
	p.Close()
	for len(p.jobs) < cap(p.jobs) {
		p.jobs <- job{decode: func() ([]byte, error) { return nil, nil }, deliver: func([]byte, error) {}}
	}

	done := make(chan error, 1)
	p.Submit(
		func() ([]byte, error) { return nil, nil },
		func(data []byte, err error) { done <- err },
	)

	select {
	case err := <-done:
		if !errkind.Is(err, errkind.Cancelled) {
			t.Fatalf("deliver error = %v, want errkind.Cancelled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Submit after Close did not invoke deliver")
	}
}

// TestWorkerPool_RunsSubmittedJob checks the ordinary path still works:
// a job submitted before Close is decoded and delivered normally.
func TestWorkerPool_RunsSubmittedJob(t *testing.T) {
	t.Parallel()

	p := NewWorkerPool(1, 0)
	defer p.Close()

	done := make(chan []byte, 1)
	p.Submit(
		func() ([]byte, error) { return []byte{1, 2, 3}, nil },
		func(data []byte, err error) {
			if err != nil {
				t.Errorf("deliver error = %v, want nil", err)
			}
			done <- data
		},
	)

	select {
	case got := <-done:
		if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
			t.Fatalf("delivered data = %v, want [1 2 3]", got)
		}
	case <-time.After(time.Second):
		t.Fatal("job never delivered")
	}
}
