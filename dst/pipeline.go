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
	"sync"

	"github.com/dsdnexus/nexus-core/internal/errkind"
)

// DefaultWindow is the look-ahead budget W: roughly 25s of 64Fs audio
// (1875 frames of 588 samples each at a 75Hz frame rate). NewPipeline
// shrinks it for tracks with fewer frames than this.
const DefaultWindow = 1875

// FrameSource supplies one DST-compressed frame's raw bytes by frame
// index, typically backed by an io.ReaderAt over the mounted SACD image.
type FrameSource interface {
	ReadFrame(index int64) ([]byte, error)
}

// Pipeline drives the look-ahead decode loop for one open DST track
// (§4.4). It owns a dispatcher goroutine that keeps up to Window frames
// in flight on a shared WorkerPool, and an ordered delivery window that
// hands completed frames to Next in strict ascending frame-index order
// regardless of which worker finished first.
type Pipeline struct {
	pool      *WorkerPool
	decoder   *Decoder
	source    FrameSource
	totalFrames int64
	window    int64

	mu           sync.Mutex
	cond         *sync.Cond
	nextDispatch int64
	nextDeliver  int64
	generation   int
	results      map[int64]frameResult
	closed       bool
	poisoned     bool
	poisonErr    error
}

type frameResult struct {
	data []byte
	err  error
}

// NewPipeline starts a pipeline for a track with totalFrames frames,
// beginning dispatch at startFrame. pool is shared with however many
// other tracks are open concurrently.
func NewPipeline(pool *WorkerPool, decoder *Decoder, source FrameSource, totalFrames, startFrame int64) *Pipeline {
	window := int64(DefaultWindow)
	if totalFrames < window {
		window = totalFrames
	}
	if window < 1 {
		window = 1
	}

	p := &Pipeline{
		pool:         pool,
		decoder:      decoder,
		source:       source,
		totalFrames:  totalFrames,
		window:       window,
		nextDispatch: startFrame,
		nextDeliver:  startFrame,
		results:      make(map[int64]frameResult),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.dispatchLoop()
	return p
}

// dispatchLoop keeps submitting frames to the worker pool as long as the
// in-flight window has room and frames remain, per §4.4's per-file
// look-ahead loop.
func (p *Pipeline) dispatchLoop() {
	for {
		p.mu.Lock()
		for {
			if p.closed {
				p.mu.Unlock()
				return
			}
			if p.nextDispatch >= p.totalFrames {
				p.cond.Wait()
				continue
			}
			if p.nextDispatch-p.nextDeliver >= p.window {
				p.cond.Wait()
				continue
			}
			break
		}
		idx := p.nextDispatch
		p.nextDispatch++
		gen := p.generation
		p.mu.Unlock()

		p.submit(idx, gen)
	}
}

func (p *Pipeline) submit(idx int64, gen int) {
	decode := func() ([]byte, error) {
		raw, err := p.source.ReadFrame(idx)
		if err != nil {
			return nil, err
		}
		return p.decoder.Decode(raw)
	}
	deliver := func(data []byte, err error) {
		p.deliver(gen, idx, data, err)
	}
	p.pool.Submit(decode, deliver)
}

func (p *Pipeline) deliver(gen int, idx int64, data []byte, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation {
		return // superseded by a seek; discard per §4.4's cancellation contract
	}
	if err != nil {
		p.poisoned = true
		p.poisonErr = errkind.Wrap(errkind.DecodeFailed, "dst.Pipeline", err)
	}
	p.results[idx] = frameResult{data: data, err: err}
	p.cond.Broadcast()
}

// Next blocks until frame p.nextDeliver is available and returns it,
// advancing the delivery cursor by one. A poisoned pipeline returns the
// same error on every subsequent call.
func (p *Pipeline) Next() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.poisoned {
			return nil, p.poisonErr
		}
		if p.closed {
			return nil, errkind.New(errkind.Cancelled, "dst.Pipeline.Next")
		}
		if p.nextDeliver >= p.totalFrames {
			return nil, errkind.New(errkind.Eof, "dst.Pipeline.Next")
		}
		res, ok := p.results[p.nextDeliver]
		if !ok {
			p.cond.Wait()
			continue
		}
		delete(p.results, p.nextDeliver)
		p.nextDeliver++
		p.cond.Broadcast() // window shrank; dispatcher may proceed
		if res.err != nil {
			return nil, errkind.Wrap(errkind.DecodeFailed, "dst.Pipeline.Next", res.err)
		}
		return res.data, nil
	}
}

// Seek discards the current window and restarts dispatching from
// frameIndex. In-flight decodes for the old generation are left to
// finish on their worker but their results are dropped on arrival.
func (p *Pipeline) Seek(frameIndex int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	p.results = make(map[int64]frameResult)
	p.nextDispatch = frameIndex
	p.nextDeliver = frameIndex
	p.cond.Broadcast()
}

// Close stops the dispatcher. Workers mid-decode for this pipeline
// finish their current frame; their results are still stored in the
// result map but are never handed out, since Next reports Cancelled once
// the pipeline is closed.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
}
