package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchment-labs/recall/internal/adapters/driven/index/flat"
	"github.com/parchment-labs/recall/internal/adapters/driven/storage/metalog"
	"github.com/parchment-labs/recall/internal/adapters/driven/storage/sqlite"
	"github.com/parchment-labs/recall/internal/chunker"
	"github.com/parchment-labs/recall/internal/core/domain"
)

// stubEmbedder returns fixed vectors for known texts and deterministic
// pseudo-vectors for everything else. It can be told to fail after a
// number of successful batch calls.
type stubEmbedder struct {
	mu         sync.Mutex
	dims       int
	vectors    map[string][]float32
	batchCalls int
	failAfter  int // fail batches beyond this count; 0 means never
}

func newStubEmbedder(dims int) *stubEmbedder {
	return &stubEmbedder{dims: dims, vectors: make(map[string][]float32)}
}

func (s *stubEmbedder) set(text string, vec []float32) {
	s.vectors[text] = vec
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vectorFor(text), nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batchCalls++
	if s.failAfter > 0 && s.batchCalls > s.failAfter {
		return nil, errors.New("backend gone")
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vectorFor(t)
	}
	return out, nil
}

func (s *stubEmbedder) vectorFor(text string) []float32 {
	if v, ok := s.vectors[text]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()
	vec := make([]float32, s.dims)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000)/1000 + 0.001
	}
	return vec
}

func (s *stubEmbedder) Dimensions() int              { return s.dims }
func (s *stubEmbedder) ModelName() string            { return "stub-model" }
func (s *stubEmbedder) Ping(_ context.Context) error { return nil }
func (s *stubEmbedder) Close() error                 { return nil }

// stubSplitter hands back a fixed chunk list regardless of input.
type stubSplitter struct {
	chunks []domain.Chunk
}

func (s stubSplitter) Split(string) []domain.Chunk { return s.chunks }

// openTestEngine wires an engine over real file-backed stores in dir.
func openTestEngine(t *testing.T, dir string, emb *stubEmbedder) *Engine {
	t.Helper()

	idx, err := flat.Open(flat.DefaultPath(dir))
	require.NoError(t, err)
	mlog, err := metalog.Open(metalog.DefaultPath(dir))
	require.NoError(t, err)
	visits, err := sqlite.NewVisitStore(dir)
	require.NoError(t, err)

	eng, err := Open(context.Background(), Deps{
		Splitter: chunker.New(),
		Embedder: emb,
		Index:    idx,
		Metadata: mlog,
		Visits:   visits,
	})
	require.NoError(t, err)
	return eng
}

func page(url, text string) domain.PageInput {
	return domain.PageInput{URL: url, Title: "title of " + url, Text: text}
}

func TestIndexPage_PersistsChunks(t *testing.T) {
	emb := newStubEmbedder(3)
	eng := openTestEngine(t, t.TempDir(), emb)
	defer eng.Close()

	report, err := eng.IndexPage(context.Background(), page("https://a.test", "go concurrency patterns"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIndexed, report.Status)
	assert.Equal(t, 1, report.ChunksAdded)
	assert.Equal(t, 0, report.ChunksSkipped)
	assert.Equal(t, 1, eng.Len())
}

func TestIndexPage_InvalidInput(t *testing.T) {
	eng := openTestEngine(t, t.TempDir(), newStubEmbedder(3))
	defer eng.Close()

	_, err := eng.IndexPage(context.Background(), domain.PageInput{URL: "https://a.test"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = eng.IndexPage(context.Background(), domain.PageInput{Text: "content"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndexPage_DuplicateContentSkipped(t *testing.T) {
	eng := openTestEngine(t, t.TempDir(), newStubEmbedder(3))
	defer eng.Close()
	ctx := context.Background()

	_, err := eng.IndexPage(ctx, page("https://a.test", "shared article body"))
	require.NoError(t, err)

	// Same content from a different URL is still a duplicate.
	report, err := eng.IndexPage(ctx, page("https://mirror.test", "shared article body"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkippedDuplicate, report.Status)
	assert.Equal(t, 0, report.ChunksAdded)
	assert.Equal(t, 1, report.ChunksSkipped)
	assert.Equal(t, 1, eng.Len())
}

func TestIndexPage_WhitespaceVariantIsDuplicate(t *testing.T) {
	eng := openTestEngine(t, t.TempDir(), newStubEmbedder(3))
	defer eng.Close()
	ctx := context.Background()

	_, err := eng.IndexPage(ctx, page("https://a.test", "spaced   out    text"))
	require.NoError(t, err)

	report, err := eng.IndexPage(ctx, page("https://a.test", "  spaced out text  "))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkippedDuplicate, report.Status)
}

func TestIndexPage_DuplicateKeepsOriginalTimestamp(t *testing.T) {
	emb := newStubEmbedder(3)
	emb.set("stable text", []float32{1, 0, 0})
	eng := openTestEngine(t, t.TempDir(), emb)
	defer eng.Close()
	ctx := context.Background()

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := page("https://a.test", "stable text")
	in.Timestamp = first
	_, err := eng.IndexPage(ctx, in)
	require.NoError(t, err)

	in.Timestamp = first.AddDate(0, 1, 0)
	_, err = eng.IndexPage(ctx, in)
	require.NoError(t, err)

	emb.set("stable", []float32{1, 0, 0})
	results, err := eng.Search(ctx, domain.Query{Text: "stable", TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Timestamp.Equal(first),
		"re-ingesting known content must not refresh its timestamp")
}

func TestIndexPage_CountsVisitPerIngestion(t *testing.T) {
	eng := openTestEngine(t, t.TempDir(), newStubEmbedder(3))
	defer eng.Close()
	ctx := context.Background()

	_, err := eng.IndexPage(ctx, page("https://a.test", "body one"))
	require.NoError(t, err)
	_, err = eng.IndexPage(ctx, page("https://a.test", "body one"))
	require.NoError(t, err)

	count, err := eng.RecordVisit(ctx, "https://a.test")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "both ingestions counted as visits")
}

func TestIndexPage_EmbeddingFailureKeepsPrefix(t *testing.T) {
	chunks := make([]domain.Chunk, 17)
	for i := range chunks {
		chunks[i] = domain.Chunk{Text: fmt.Sprintf("chunk number %d", i), Position: i}
	}

	dir := t.TempDir()
	emb := newStubEmbedder(3)
	emb.failAfter = 1

	idx, err := flat.Open(flat.DefaultPath(dir))
	require.NoError(t, err)
	mlog, err := metalog.Open(metalog.DefaultPath(dir))
	require.NoError(t, err)
	visits, err := sqlite.NewVisitStore(dir)
	require.NoError(t, err)

	eng, err := Open(context.Background(), Deps{
		Splitter: stubSplitter{chunks: chunks},
		Embedder: emb,
		Index:    idx,
		Metadata: mlog,
		Visits:   visits,
	})
	require.NoError(t, err)

	report, err := eng.IndexPage(context.Background(), page("https://big.test", "ignored by stub splitter"))
	require.Error(t, err)
	assert.Equal(t, domain.StatusPartial, report.Status)
	assert.Equal(t, 16, report.ChunksAdded, "first batch survives the failure")
	require.NoError(t, eng.Close())

	// The persisted prefix must be there after a restart.
	reopened := openTestEngine(t, dir, newStubEmbedder(3))
	defer reopened.Close()
	assert.Equal(t, 16, reopened.Len())
}

func TestSearch_EmptyStore(t *testing.T) {
	eng := openTestEngine(t, t.TempDir(), newStubEmbedder(3))
	defer eng.Close()

	results, err := eng.Search(context.Background(), domain.Query{Text: "anything", TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestSearch_ZeroTopK(t *testing.T) {
	eng := openTestEngine(t, t.TempDir(), newStubEmbedder(3))
	defer eng.Close()
	ctx := context.Background()

	_, err := eng.IndexPage(ctx, page("https://a.test", "some content"))
	require.NoError(t, err)

	results, err := eng.Search(ctx, domain.Query{Text: "content", TopK: 0})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_InvalidQuery(t *testing.T) {
	eng := openTestEngine(t, t.TempDir(), newStubEmbedder(3))
	defer eng.Close()

	_, err := eng.Search(context.Background(), domain.Query{Text: "  ", TopK: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = eng.Search(context.Background(), domain.Query{Text: "ok", TopK: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearch_RanksBySimilarity(t *testing.T) {
	emb := newStubEmbedder(3)
	emb.set("go concurrency patterns", []float32{1, 0, 0})
	emb.set("gardening tips for spring", []float32{0, 1, 0})
	emb.set("sourdough starter guide", []float32{0, 0, 1})
	emb.set("goroutines and channels", []float32{0.9, 0.1, 0})

	eng := openTestEngine(t, t.TempDir(), emb)
	defer eng.Close()
	ctx := context.Background()

	for _, p := range []struct{ url, text string }{
		{"https://go.test", "go concurrency patterns"},
		{"https://garden.test", "gardening tips for spring"},
		{"https://bread.test", "sourdough starter guide"},
	} {
		_, err := eng.IndexPage(ctx, page(p.url, p.text))
		require.NoError(t, err)
	}

	results, err := eng.Search(ctx, domain.Query{Text: "goroutines and channels", TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://go.test", results[0].URL)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
	assert.NotEmpty(t, results[0].Snippet)
	assert.NotEmpty(t, results[0].ChunkID)
}

func TestSearch_SimilarityDominatesTemporalBoost(t *testing.T) {
	emb := newStubEmbedder(3)
	emb.set("deep dive into raft consensus", []float32{1, 0, 0})
	emb.set("mildly related distributed notes", []float32{0.5, 0.866, 0})
	emb.set("raft consensus", []float32{1, 0, 0})

	eng := openTestEngine(t, t.TempDir(), emb)
	defer eng.Close()
	ctx := context.Background()

	old := page("https://old.test", "deep dive into raft consensus")
	old.Timestamp = time.Now().UTC().AddDate(0, 0, -90)
	_, err := eng.IndexPage(ctx, old)
	require.NoError(t, err)

	_, err = eng.IndexPage(ctx, page("https://fresh.test", "mildly related distributed notes"))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		_, err = eng.RecordVisit(ctx, "https://fresh.test")
		require.NoError(t, err)
	}

	results, err := eng.Search(ctx, domain.Query{Text: "raft consensus", TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://old.test", results[0].URL,
		"strong semantic match beats recency and popularity")
}

func TestSearch_FreshnessBreaksEqualSimilarity(t *testing.T) {
	emb := newStubEmbedder(3)
	emb.set("release notes v1", []float32{1, 0, 0})
	emb.set("release notes v2", []float32{1, 0, 0})
	emb.set("release notes", []float32{1, 0, 0})

	eng := openTestEngine(t, t.TempDir(), emb)
	defer eng.Close()
	ctx := context.Background()

	stale := page("https://v1.test", "release notes v1")
	stale.Timestamp = time.Now().UTC().AddDate(0, 0, -30)
	_, err := eng.IndexPage(ctx, stale)
	require.NoError(t, err)

	_, err = eng.IndexPage(ctx, page("https://v2.test", "release notes v2"))
	require.NoError(t, err)

	results, err := eng.Search(ctx, domain.Query{Text: "release notes", TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://v2.test", results[0].URL, "newer entry wins the tie")
}

func TestSearch_RecordsShortTermMemory(t *testing.T) {
	emb := newStubEmbedder(3)
	emb.set("kubernetes operators", []float32{1, 0, 0})
	eng := openTestEngine(t, t.TempDir(), emb)
	defer eng.Close()
	ctx := context.Background()

	_, err := eng.IndexPage(ctx, page("https://k8s.test", "kubernetes operators"))
	require.NoError(t, err)

	_, err = eng.Search(ctx, domain.Query{Text: "kubernetes operators", TopK: 1})
	require.NoError(t, err)

	items := eng.Recent(0)
	require.NotEmpty(t, items)
	assert.Equal(t, domain.MemoryQuery, items[0].Kind)
	assert.Equal(t, "kubernetes operators", items[0].Payload)
	assert.Equal(t, domain.MemoryResult, items[len(items)-1].Kind)
}

func TestRoundTrip_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	emb := newStubEmbedder(3)
	emb.set("persistent memory article", []float32{1, 0, 0})

	eng := openTestEngine(t, dir, emb)
	_, err := eng.IndexPage(ctx, page("https://a.test", "persistent memory article"))
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	emb2 := newStubEmbedder(3)
	emb2.set("persistent memory article", []float32{1, 0, 0})
	emb2.set("memory article", []float32{1, 0, 0})

	reopened := openTestEngine(t, dir, emb2)
	defer reopened.Close()

	assert.Equal(t, 1, reopened.Len())

	results, err := reopened.Search(ctx, domain.Query{Text: "memory article", TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://a.test", results[0].URL)

	// Dedup state is rebuilt from the log.
	report, err := reopened.IndexPage(ctx, page("https://a.test", "persistent memory article"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkippedDuplicate, report.Status)
}

func TestOpen_RebuildsIndexFromLog(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	emb := newStubEmbedder(3)
	emb.set("rebuildable content", []float32{1, 0, 0})

	eng := openTestEngine(t, dir, emb)
	_, err := eng.IndexPage(ctx, page("https://a.test", "rebuildable content"))
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	// Losing the index artifact must not lose any memories.
	require.NoError(t, os.Remove(flat.DefaultPath(dir)))

	emb2 := newStubEmbedder(3)
	emb2.set("rebuildable content", []float32{1, 0, 0})
	reopened := openTestEngine(t, dir, emb2)
	defer reopened.Close()

	results, err := reopened.Search(ctx, domain.Query{Text: "rebuildable content", TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://a.test", results[0].URL)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
}

func TestOpen_RejectsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	eng := openTestEngine(t, dir, newStubEmbedder(3))
	_, err := eng.IndexPage(ctx, page("https://a.test", "dimension probe"))
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	idx, err := flat.Open(flat.DefaultPath(dir))
	require.NoError(t, err)
	mlog, err := metalog.Open(metalog.DefaultPath(dir))
	require.NoError(t, err)
	visits, err := sqlite.NewVisitStore(dir)
	require.NoError(t, err)

	_, err = Open(ctx, Deps{
		Splitter: chunker.New(),
		Embedder: newStubEmbedder(4),
		Index:    idx,
		Metadata: mlog,
		Visits:   visits,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestRecordVisit_Validates(t *testing.T) {
	eng := openTestEngine(t, t.TempDir(), newStubEmbedder(3))
	defer eng.Close()

	_, err := eng.RecordVisit(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestClosedEngine_RejectsOperations(t *testing.T) {
	eng := openTestEngine(t, t.TempDir(), newStubEmbedder(3))
	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close(), "double close is harmless")

	_, err := eng.IndexPage(context.Background(), page("https://a.test", "text"))
	assert.ErrorIs(t, err, domain.ErrEngineClosed)

	_, err = eng.Search(context.Background(), domain.Query{Text: "q", TopK: 1})
	assert.ErrorIs(t, err, domain.ErrEngineClosed)

	_, err = eng.RecordVisit(context.Background(), "https://a.test")
	assert.ErrorIs(t, err, domain.ErrEngineClosed)
}

func TestIndexPage_ConcurrentSameContent(t *testing.T) {
	eng := openTestEngine(t, t.TempDir(), newStubEmbedder(3))
	defer eng.Close()
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			url := fmt.Sprintf("https://mirror%d.test", n)
			_, err := eng.IndexPage(ctx, page(url, "identical syndicated story"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, eng.Len(), "one entry survives concurrent duplicate ingestion")
}
