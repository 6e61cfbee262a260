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


// Package ragline wires storage, models, ingestion and chat into one Engine.
package ragline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/ragline/advisor"
	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/ai/openai"
	"github.com/poiesic/ragline/chat"
	"github.com/poiesic/ragline/chunk"
	"github.com/poiesic/ragline/config"
	"github.com/poiesic/ragline/ingestion"
	"github.com/poiesic/ragline/memory"
	"github.com/poiesic/ragline/reembed"
	"github.com/poiesic/ragline/server"
	"github.com/poiesic/ragline/storage"
	"github.com/poiesic/ragline/storage/badger"
	"github.com/poiesic/ragline/storage/postgres"
	"github.com/poiesic/ragline/stream"
)

// Engine owns every long-lived component of a ragline instance.
type Engine struct {
	config        *config.Config
	provider      ai.AIProvider
	backend       *badger.Backend
	pg            *postgres.DB
	index         storage.FragmentIndex
	catalog       storage.DocumentCatalog
	conversations storage.ConversationRepository
	pipeline      *ingestion.Pipeline
	streamer      *stream.Streamer
	chats         *chat.Service
	logger        *slog.Logger
}

// EngineOption configures Open.
type EngineOption func(*engineOptions)

type engineOptions struct {
	provider ai.AIProvider
	chunker  *chunk.Chunker
	inMemory bool
	logger   *slog.Logger
}

// WithProvider uses provider instead of connecting to the configured model servers.
// The Engine takes ownership and closes it.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithChunker replaces the token chunker built from the configured chunk size.
func WithChunker(chunker *chunk.Chunker) EngineOption {
	return func(o *engineOptions) {
		o.chunker = chunker
	}
}

// WithInMemoryStorage keeps the Badger stores in memory. Used by tests.
func WithInMemoryStorage() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// Open builds an Engine from cfg. Conversations always live in Badger; fragments
// and the document catalog live in the configured backend.
func Open(ctx context.Context, cfg *config.Config, opts ...EngineOption) (_ *Engine, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	e := &Engine{config: cfg, logger: options.logger.With("component", "engine")}
	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	e.provider = options.provider
	if e.provider == nil {
		if e.provider, err = openai.NewProvider(cfg.AIConfig()); err != nil {
			return nil, fmt.Errorf("ai provider: %w", err)
		}
	}

	if err = e.openStores(ctx, options.inMemory); err != nil {
		return nil, err
	}

	chunker := options.chunker
	if chunker == nil {
		if chunker, err = chunk.NewTokenChunker(cfg.Ingestion.ChunkSize, chunk.WithLogger(options.logger)); err != nil {
			return nil, err
		}
	}
	e.pipeline, err = ingestion.NewPipeline(e.index, e.catalog, chunker,
		ingestion.WithRetryPolicy(cfg.RetryPolicy()),
		ingestion.WithLogger(options.logger))
	if err != nil {
		return nil, err
	}
	if e.streamer, err = stream.NewStreamer(e.pipeline, stream.WithLogger(options.logger)); err != nil {
		return nil, err
	}

	if e.chats, err = e.newChatService(options.logger); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) openStores(ctx context.Context, inMemory bool) error {
	var err error
	path := e.config.Storage.BadgerPath
	if inMemory {
		path = ""
	}
	if e.backend, err = badger.OpenBackend(path, inMemory); err != nil {
		return err
	}
	if e.conversations, err = badger.NewConversationRepository(e.backend); err != nil {
		return err
	}

	embedder := e.provider.Embedder()
	switch e.config.Storage.Backend {
	case config.BackendPostgres:
		e.pg, err = postgres.Open(ctx, e.config.Storage.PostgresURL,
			postgres.WithDimensions(e.config.Storage.VectorDimensions))
		if err != nil {
			return err
		}
		if e.index, err = postgres.NewFragmentIndex(e.pg, embedder); err != nil {
			return err
		}
		e.catalog = postgres.NewDocumentCatalog(e.pg)
	default:
		if e.index, err = badger.NewFragmentIndex(e.backend, embedder); err != nil {
			return err
		}
		if e.catalog, err = badger.NewDocumentCatalog(e.backend); err != nil {
			return err
		}
	}
	e.logger.Info("storage ready", "backend", e.config.Storage.Backend, "in_memory", inMemory)
	return nil
}

func (e *Engine) newChatService(logger *slog.Logger) (*chat.Service, error) {
	mem, err := memory.New(e.conversations)
	if err != nil {
		return nil, err
	}
	expander, err := advisor.NewQueryExpander(e.provider.ExpansionModel(),
		advisor.WithExpansionOptions(e.config.AI.Expansion.Options()),
		advisor.WithExpanderLogger(logger))
	if err != nil {
		return nil, err
	}
	retriever, err := advisor.NewRetriever(e.index,
		advisor.WithRetrievalSettings(e.config.RetrievalSettings()),
		advisor.WithRetrieverLogger(logger))
	if err != nil {
		return nil, err
	}

	chain := chat.NewChain(mem, e.config.Memory.WindowSize, expander, retriever, logger)
	return chat.NewService(e.conversations, mem, chain, e.provider.ChatModel(),
		chat.WithPrimaryOptions(e.config.AI.Primary.Options()),
		chat.WithOnlyContext(e.config.RAG.OnlyContext),
		chat.WithLogger(logger))
}

// Config returns the configuration the Engine was opened with.
func (e *Engine) Config() *config.Config { return e.config }

// Pipeline returns the ingestion pipeline.
func (e *Engine) Pipeline() *ingestion.Pipeline { return e.pipeline }

// Streamer returns the progress-reporting upload runner.
func (e *Engine) Streamer() *stream.Streamer { return e.streamer }

// Chats returns the chat service.
func (e *Engine) Chats() *chat.Service { return e.chats }

// Index returns the fragment index.
func (e *Engine) Index() storage.FragmentIndex { return e.index }

// NewServer creates the HTTP server over the Engine's services.
func (e *Engine) NewServer(opts ...server.Option) (*server.Server, error) {
	opts = append([]server.Option{server.WithLogger(e.logger)}, opts...)
	return server.New(e.pipeline, e.streamer, e.chats, opts...)
}

// LoadKnowledgeBase ingests the configured knowledge directory, if any.
func (e *Engine) LoadKnowledgeBase(ctx context.Context) (*ingestion.Summary, error) {
	dir := e.config.Knowledge.Dir
	if dir == "" {
		return &ingestion.Summary{Processed: []string{}, Skipped: []string{}}, nil
	}
	return e.pipeline.LoadKnowledgeBase(ctx, dir)
}

// NewReembedder creates a reembedder over the Engine's fragments.
func (e *Engine) NewReembedder(cfg *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	scanner, ok := e.index.(storage.FragmentScanner)
	if !ok {
		return nil, errors.New("fragment index cannot be scanned")
	}
	if cfg == nil {
		cfg = reembed.DefaultConfig()
		cfg.Retry = e.config.RetryPolicy()
	}
	return reembed.NewReembedder(scanner, e.provider.Embedder(), cfg, progress)
}

// Close releases every component, continuing past failures.
func (e *Engine) Close() error {
	var errs []error
	if e.streamer != nil {
		e.streamer.Release()
	}
	if e.provider != nil {
		errs = append(errs, e.provider.Close())
	}
	if e.index != nil {
		errs = append(errs, e.index.Close())
	}
	if e.catalog != nil {
		errs = append(errs, e.catalog.Close())
	}
	if e.conversations != nil {
		errs = append(errs, e.conversations.Close())
	}
	if e.pg != nil {
		e.pg.Close()
	}
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
