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


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/retry"
	"github.com/poiesic/ragline/storage"
)

// Config holds configuration for a re-embedding run.
type Config struct {
	// BatchSize is the number of fragments embedded per call
	BatchSize int

	// ReportInterval is how often progress is written, in fragments
	ReportInterval int

	// Retry bounds the embedding calls of each batch
	Retry retry.Policy
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: DefaultBatchSize,
		Retry:          retry.DefaultPolicy(),
	}
}

// Reembedder replaces the vector of every stored fragment.
type Reembedder struct {
	scanner   storage.FragmentScanner
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *FragmentIterator
	logger    *slog.Logger
}

// NewReembedder creates a reembedder. A nil config uses DefaultConfig;
// progress is typically os.Stderr.
func NewReembedder(scanner storage.FragmentScanner, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if scanner == nil {
		return nil, ErrScannerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Retry.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		scanner:   scanner,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(scanner, embedder, config.Retry),
		iterator:  NewFragmentIterator(scanner, config.BatchSize),
		logger:    slog.Default().With("component", "reembed"),
	}, nil
}

// Run re-embeds every fragment and returns how many were updated.
// Fragments updated before a failure keep their new vectors.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	total, err := r.scanner.CountFragments(ctx)
	if err != nil {
		return 0, fmt.Errorf("count fragments: %w", err)
	}
	if total == 0 {
		fmt.Fprintln(r.progress, "No fragments to re-embed")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Re-embedding %d fragments (batch size: %d)\n", total, r.iterator.batchSize)
	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, func(fragments []core.Fragment) error {
		if err := r.processor.Process(ctx, fragments); err != nil {
			return err
		}
		processed += len(fragments)
		tracker.Add(len(fragments))
		return nil
	})
	if err != nil {
		r.logger.Error("re-embedding stopped", "processed", processed, "total", total, "err", err)
		return processed, err
	}

	tracker.Finish()
	elapsed := tracker.Elapsed()
	r.logger.Info("re-embedding complete", "fragments", processed, "elapsed", elapsed.Round(time.Millisecond))
	return processed, nil
}
