// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package stream runs progress-reporting uploads in the background and
// delivers their events over a channel.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/ingestion"
)

// DefaultBufferSize is the capacity of each event channel.
const DefaultBufferSize = 16

// submitRetryDelay is how long Start waits between attempts on a full pool.
const submitRetryDelay = 10 * time.Millisecond

var (
	// ErrPipelineRequired is returned when no ingestion pipeline is provided.
	ErrPipelineRequired = errors.New("ingestion pipeline required")

	// ErrReleased is returned by Start after Release.
	ErrReleased = errors.New("streamer released")
)

// Streamer runs uploads on a worker pool. Separate submissions run in
// parallel; the files of one submission are processed in order.
type Streamer struct {
	pipeline *ingestion.Pipeline
	pool     *ants.Pool
	buffer   int
	logger   *slog.Logger
}

// Option configures a Streamer.
type Option func(*Streamer) error

// WithPoolSize sets how many submissions may run at once. A Start beyond that
// waits for a free worker until its context ends.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(s *Streamer) error {
		if size < 1 {
			size = 1
		}
		if s.pool != nil {
			s.pool.Release()
		}
		pool, err := newPool(size)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// WithBufferSize sets the event channel capacity.
func WithBufferSize(size int) Option {
	return func(s *Streamer) error {
		if size < 1 {
			size = 1
		}
		s.buffer = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Streamer) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

func newPool(size int) (*ants.Pool, error) {
	return ants.NewPool(size, ants.WithNonblocking(true))
}

// NewStreamer creates a Streamer. Call Release when done.
func NewStreamer(pipeline *ingestion.Pipeline, opts ...Option) (*Streamer, error) {
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := newPool(poolSize)
	if err != nil {
		return nil, err
	}

	s := &Streamer{
		pipeline: pipeline,
		pool:     pool,
		buffer:   DefaultBufferSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.Release()
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "streamer")
	return s, nil
}

// Start submits uploads for owner and returns the channel their events are
// delivered on. The channel is closed when the run ends. Canceling ctx stops
// the run before the next file; no event is sent after that, including the
// completed event. When every worker is busy Start waits for one; if ctx ends
// first, the run ends with a single error event.
func (s *Streamer) Start(ctx context.Context, owner string, uploads []ingestion.Upload) (<-chan core.UploadProgress, error) {
	if s.pool.IsClosed() {
		return nil, ErrReleased
	}

	events := make(chan core.UploadProgress, s.buffer)
	emit := func(event core.UploadProgress) error {
		select {
		case events <- event:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := s.submit(ctx, func() {
		defer close(events)
		if err := s.pipeline.IngestWithProgress(ctx, owner, uploads, emit); err != nil {
			if ctx.Err() != nil {
				s.logger.Info("upload stream canceled", "owner", owner)
				return
			}
			s.logger.Error("upload stream failed", "owner", owner, "err", err)
		}
	})
	if err != nil {
		s.logger.Error("could not schedule upload", "owner", owner, "err", err)
		events <- core.NewUploadProgress(0, countFiles(uploads), "", core.StatusError)
		close(events)
	}
	return events, nil
}

// submit hands task to the pool, waiting for a free worker until ctx ends.
func (s *Streamer) submit(ctx context.Context, task func()) error {
	for {
		err := s.pool.Submit(task)
		if !errors.Is(err, ants.ErrPoolOverload) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("no free worker: %w", ctx.Err())
		case <-time.After(submitRetryDelay):
		}
	}
}

// Running reports how many submissions are in progress.
func (s *Streamer) Running() int {
	return s.pool.Running()
}

// Release stops accepting submissions and frees the pool.
func (s *Streamer) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

func countFiles(uploads []ingestion.Upload) int {
	n := 0
	for _, u := range uploads {
		if !u.IsEmpty() {
			n++
		}
	}
	return n
}
