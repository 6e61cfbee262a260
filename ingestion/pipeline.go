package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/poiesic/ragline/chunk"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/retry"
	"github.com/poiesic/ragline/storage"
)

// Pipeline ingests files into a fragment index and records them in a document catalog.
// It is safe for concurrent use; calls for the same owner are serialized.
type Pipeline struct {
	index     storage.FragmentIndex
	catalog   storage.DocumentCatalog
	chunker   *chunk.Chunker
	extractor *Extractor
	policy    retry.Policy
	owners    sync.Map // owner ID -> *sync.Mutex
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithRetryPolicy sets the retry policy for index writes.
// Default is retry.DefaultPolicy().
func WithRetryPolicy(policy retry.Policy) Option {
	return func(p *Pipeline) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		p.policy = policy
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	index storage.FragmentIndex,
	catalog storage.DocumentCatalog,
	chunker *chunk.Chunker,
	opts ...Option,
) (*Pipeline, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if chunker == nil {
		return nil, ErrChunkerRequired
	}

	p := &Pipeline{
		index:   index,
		catalog: catalog,
		chunker: chunker,
		policy:  retry.DefaultPolicy(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")
	p.extractor = NewExtractor(p.logger)
	return p, nil
}

func (p *Pipeline) lockOwner(owner string) func() {
	v, _ := p.owners.LoadOrStore(owner, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// IngestFile processes one upload for owner.
func (p *Pipeline) IngestFile(ctx context.Context, owner string, upload Upload) (Outcome, error) {
	if upload.IsEmpty() {
		return Empty, nil
	}
	filename := upload.Name()
	if upload.ReadErr != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrFileRead, filename, upload.ReadErr)
	}

	unlock := p.lockOwner(owner)
	defer unlock()

	hash := core.HashContent(upload.Content)
	exists, err := p.catalog.Exists(ctx, filename, hash)
	if err != nil {
		return 0, fmt.Errorf("check catalog for %s: %w", filename, err)
	}
	if exists {
		p.logger.Info("skipping already ingested file", "file", filename)
		return Skipped, nil
	}

	text, err := p.extractor.Extract(filename, upload.Content)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", filename, err)
	}
	fragments, err := p.chunker.Chunk(filename, owner, text)
	if err != nil {
		return 0, err
	}

	if len(fragments) > 0 {
		err = retry.Do(ctx, p.policy, func(ctx context.Context) error {
			// Each attempt starts from unassigned IDs.
			return p.index.Upsert(ctx, slices.Clone(fragments))
		})
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrIndexWrite, filename, err)
		}
	}

	doc := &core.Document{
		Filename:     filename,
		ContentHash:  hash,
		ChunkCount:   len(fragments),
		DocumentType: core.DocumentTypeOf(filename),
		OwnerID:      owner,
	}
	if _, err := p.catalog.Insert(ctx, doc); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			p.logger.Warn("file was cataloged concurrently", "file", filename)
			return Skipped, nil
		}
		return 0, fmt.Errorf("catalog %s: %w", filename, err)
	}

	p.logger.Info("ingested file", "file", filename, "owner", owner, "fragments", len(fragments))
	return Ingested, nil
}

// IngestFiles processes uploads in order and stops at the first failing file.
// Files processed before the failure stay committed.
func (p *Pipeline) IngestFiles(ctx context.Context, owner string, uploads []Upload) (*Summary, error) {
	summary := &Summary{Processed: []string{}, Skipped: []string{}}
	for _, upload := range uploads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcome, err := p.IngestFile(ctx, owner, upload)
		if err != nil {
			return nil, err
		}
		switch outcome {
		case Ingested:
			summary.Processed = append(summary.Processed, upload.Name())
		case Skipped:
			summary.Skipped = append(summary.Skipped, upload.Name())
		}
	}
	return summary.finish(), nil
}

// EmitFunc receives progress events. Returning an error stops ingestion.
type EmitFunc func(core.UploadProgress) error

// IngestWithProgress processes uploads in order, reporting an event before and
// after each file and a final completed event. A failing file is reported with
// an error event and the run continues. Once ctx is canceled no further events
// are emitted and ctx.Err() is returned.
func (p *Pipeline) IngestWithProgress(ctx context.Context, owner string, uploads []Upload, emit EmitFunc) error {
	send := func(event core.UploadProgress) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return emit(event)
	}

	valid := slices.DeleteFunc(slices.Clone(uploads), Upload.IsEmpty)
	total := len(valid)
	processed := 0

	for _, upload := range valid {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := upload.Name()
		if err := send(core.NewUploadProgress(processed, total, name, core.StatusProcessing)); err != nil {
			return err
		}

		// A file that has started is allowed to finish.
		outcome, err := p.IngestFile(context.WithoutCancel(ctx), owner, upload)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			p.logger.Error("file ingestion failed", "file", name, "err", err)
			if err := send(core.NewUploadProgress(processed, total, name, core.StatusError)); err != nil {
				return err
			}
			processed++
			continue
		}

		processed++
		status := core.StatusProcessing
		if outcome == Skipped {
			status = core.StatusSkipped
		}
		if err := send(core.NewUploadProgress(processed, total, name, status)); err != nil {
			return err
		}
	}

	return send(core.CompletedProgress(processed, total))
}

// Documents lists what owner has uploaded.
func (p *Pipeline) Documents(ctx context.Context, owner string) ([]*core.Document, error) {
	return p.catalog.FindByOwner(ctx, owner)
}

// Purge removes owner's fragments and catalog records and returns the number
// of documents removed. It waits for in-flight ingestion for the same owner.
func (p *Pipeline) Purge(ctx context.Context, owner string) (int, error) {
	unlock := p.lockOwner(owner)
	defer unlock()

	docs, err := p.catalog.FindByOwner(ctx, owner)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}
	if err := p.index.DeleteByOwner(ctx, owner); err != nil {
		return 0, fmt.Errorf("delete fragments: %w", err)
	}
	if err := p.catalog.DeleteMany(ctx, docs...); err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}

	p.logger.Info("purged documents", "owner", owner, "documents", len(docs))
	return len(docs), nil
}

// LoadKnowledgeBase ingests every .txt file under dir, recursively, with no owner.
// Files already cataloged with the same content are skipped.
func (p *Pipeline) LoadKnowledgeBase(ctx context.Context, dir string) (*Summary, error) {
	var uploads []Upload
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".txt") {
			return nil
		}
		content, readErr := os.ReadFile(path)
		uploads = append(uploads, Upload{Filename: d.Name(), Content: content, ReadErr: readErr})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan knowledge base %s: %w", dir, err)
	}

	p.logger.Info("loading knowledge base", "dir", dir, "files", len(uploads))
	return p.IngestFiles(ctx, "", uploads)
}
