package stream

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/ragline/ai/mock"
	"github.com/poiesic/ragline/chunk"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/ingestion"
	"github.com/poiesic/ragline/retry"
	"github.com/poiesic/ragline/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T) *ingestion.Pipeline {
	t.Helper()
	stores, err := badger.NewMemoryStores(mock.NewMockEmbedder())
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	chunker, err := chunk.NewWordChunker(8)
	require.NoError(t, err)

	policy := retry.Policy{MaxAttempts: 1, InitialDelay: time.Millisecond, Multiplier: 1}
	p, err := ingestion.NewPipeline(stores.Index, stores.Catalog, chunker, ingestion.WithRetryPolicy(policy))
	require.NoError(t, err)
	return p
}

func newStreamer(t *testing.T, opts ...Option) *Streamer {
	t.Helper()
	s, err := NewStreamer(newPipeline(t), opts...)
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s
}

func drain(t *testing.T, events <-chan core.UploadProgress) []core.UploadProgress {
	t.Helper()
	var out []core.UploadProgress
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatal("event channel was not closed")
		}
	}
}

func TestNewStreamer_RequiresPipeline(t *testing.T) {
	_, err := NewStreamer(nil)
	assert.ErrorIs(t, err, ErrPipelineRequired)
}

func TestStart_DeliversEventsAndCloses(t *testing.T) {
	s := newStreamer(t)

	events, err := s.Start(context.Background(), "alice", []ingestion.Upload{
		{Filename: "a.txt", Content: []byte("alpha beta")},
		{Filename: "b.txt", Content: []byte("gamma delta")},
	})
	require.NoError(t, err)

	got := drain(t, events)
	require.Len(t, got, 5)
	assert.Equal(t, core.StatusProcessing, got[0].Status)
	assert.Equal(t, "a.txt", got[0].CurrentFile)
	assert.Equal(t, 50, got[1].Percent)
	assert.Equal(t, core.CompletedProgress(2, 2), got[4])
}

func TestStart_NoFiles(t *testing.T) {
	s := newStreamer(t)

	events, err := s.Start(context.Background(), "alice", nil)
	require.NoError(t, err)

	got := drain(t, events)
	assert.Equal(t, []core.UploadProgress{core.CompletedProgress(0, 0)}, got)
}

func TestStart_CanceledBeforeRun(t *testing.T) {
	s := newStreamer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events, err := s.Start(ctx, "alice", []ingestion.Upload{{Filename: "a.txt", Content: []byte("alpha")}})
	require.NoError(t, err)

	got := drain(t, events)
	assert.Empty(t, got, "a canceled run emits nothing")
}

func TestStart_CancelMidStream(t *testing.T) {
	s := newStreamer(t, WithBufferSize(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var uploads []ingestion.Upload
	for i := range 5 {
		uploads = append(uploads, ingestion.Upload{
			Filename: fmt.Sprintf("f%d.txt", i),
			Content:  []byte(fmt.Sprintf("file number %d", i)),
		})
	}
	events, err := s.Start(ctx, "alice", uploads)
	require.NoError(t, err)

	first := <-events
	assert.Equal(t, core.StatusProcessing, first.Status)
	cancel()

	for e := range events {
		assert.NotEqual(t, core.StatusCompleted, e.Status, "no completed event after cancellation")
	}
}

func TestStart_ParallelSubmissions(t *testing.T) {
	s := newStreamer(t, WithPoolSize(4))

	var wg sync.WaitGroup
	results := make([][]core.UploadProgress, 4)
	for i := range 4 {
		owner := fmt.Sprintf("owner-%d", i)
		events, err := s.Start(context.Background(), owner, []ingestion.Upload{
			{Filename: "shared.txt", Content: []byte("same bytes for everyone")},
		})
		require.NoError(t, err)

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for e := range events {
				results[i] = append(results[i], e)
			}
		}(i)
	}
	wg.Wait()

	statuses := map[core.ProgressStatus]int{}
	for _, r := range results {
		require.NotEmpty(t, r)
		assert.True(t, r[len(r)-1].IsTerminal())
		statuses[r[1].Status]++
	}
	// The catalog key is filename and content, so one owner ingests and the rest skip.
	assert.Equal(t, 1, statuses[core.StatusProcessing])
	assert.Equal(t, 3, statuses[core.StatusSkipped])
}

func TestStart_AfterRelease(t *testing.T) {
	s, err := NewStreamer(newPipeline(t))
	require.NoError(t, err)
	s.Release()

	_, err = s.Start(context.Background(), "alice", nil)
	assert.ErrorIs(t, err, ErrReleased)
}

func TestStart_PoolExhausted(t *testing.T) {
	s := newStreamer(t, WithPoolSize(1), WithBufferSize(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var uploads []ingestion.Upload
	for i := range 3 {
		uploads = append(uploads, ingestion.Upload{
			Filename: fmt.Sprintf("f%d.txt", i),
			Content:  []byte(fmt.Sprintf("file number %d", i)),
		})
	}
	// Nobody reads this run, so it holds the only worker.
	busy, err := s.Start(ctx, "alice", uploads)
	require.NoError(t, err)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer waitCancel()
	started := time.Now()
	events, err := s.Start(waitCtx, "bob", []ingestion.Upload{{Filename: "b.txt", Content: []byte("bravo")}})
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 5*time.Second, "Start gives up when its context ends")

	got := drain(t, events)
	require.Len(t, got, 1)
	assert.Equal(t, core.StatusError, got[0].Status)
	assert.Equal(t, 1, got[0].TotalFiles)

	cancel()
	drain(t, busy)
}

func TestStart_WaitsForFreeWorker(t *testing.T) {
	s := newStreamer(t, WithPoolSize(1))

	for i := range 5 {
		events, err := s.Start(context.Background(), "alice", []ingestion.Upload{
			{Filename: fmt.Sprintf("f%d.txt", i), Content: []byte(fmt.Sprintf("file number %d", i))},
		})
		require.NoError(t, err)

		got := drain(t, events)
		require.NotEmpty(t, got)
		assert.Equal(t, core.StatusCompleted, got[len(got)-1].Status)
	}
}
