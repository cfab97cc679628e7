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
	"runtime"

	"github.com/dsdnexus/nexus-core/internal/errkind"
)

// job is one unit of work handed to a WorkerPool: decode produces the
// result, deliver reports it back to whichever Pipeline submitted it.
// Neither closure touches pool state, so the pool itself knows nothing
// about frame indices, ordering, or generations.
type job struct {
	decode  func() ([]byte, error)
	deliver func([]byte, error)
}

// WorkerPool runs decode jobs on a fixed number of goroutines and is
// safe to share across any number of concurrently open Pipelines: every
// job carries its own result callback, so the pool never needs to know
// which file a job belongs to.
type WorkerPool struct {
	jobs chan job
	done chan struct{}
}

// NewWorkerPool starts size workers (size <= 0 auto-sizes from
// runtime.NumCPU(), capped at maxSize when maxSize > 0).
func NewWorkerPool(size, maxSize int) *WorkerPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	if size < 1 {
		size = 1
	}

	p := &WorkerPool{
		jobs: make(chan job, size*2),
		done: make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	for {
		// A job already buffered when Close runs must still be drained
		// rather than stranded, so jobs takes priority over done: a
		// select with both ready picks pseudo-randomly, and a worker
		// that happened to pick done first could leave a queued job
		// with no one left to receive it.
		select {
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			data, err := j.decode()
			j.deliver(data, err)
			continue
		default:
		}

		select {
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			data, err := j.decode()
			j.deliver(data, err)
		case <-p.done:
			return
		}
	}
}

// Submit enqueues a job. It blocks if every worker is busy and the
// internal queue is full, which is the back-pressure that keeps a
// runaway look-ahead loop from growing the dispatch queue without bound.
// If the pool is closed concurrently with the submit - a dispatcher can
// be mid-call here just as the mounted image it belongs to is evicted -
// the job is never handed to a worker; deliver is invoked in its place
// with errkind.Cancelled so the caller is not left waiting on a result
// that will never arrive.
func (p *WorkerPool) Submit(decode func() ([]byte, error), deliver func([]byte, error)) {
	select {
	case p.jobs <- job{decode: decode, deliver: deliver}:
	case <-p.done:
		deliver(nil, errkind.New(errkind.Cancelled, "dst.WorkerPool.Submit: pool closed"))
	}
}

// Close stops accepting new work and tells idle workers to exit. Workers
// already mid-decode finish that one frame first.
func (p *WorkerPool) Close() {
	close(p.done)
}
