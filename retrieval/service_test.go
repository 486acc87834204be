package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normenwerk/normstore/ai"
	"github.com/normenwerk/normstore/ai/mock"
	"github.com/normenwerk/normstore/core"
	"github.com/normenwerk/normstore/storage"
	badgerstore "github.com/normenwerk/normstore/storage/badger"
)

func testConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingModel("test-model"),
		ai.WithRetryDelay(time.Millisecond),
	)
}

// axisEmbedder maps known texts onto fixed unit vectors so distances in
// tests are exact.
func axisEmbedder(vectors map[string][]float32) *mock.MockEmbedder {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if v, ok := vectors[text]; ok {
			return v, nil
		}
		return mock.DeterministicVector(text, 3), nil
	}
	return embedder
}

func storedUnit(code, section, sub, text string, position int, vector []float32) *core.TextUnit {
	return &core.TextUnit{
		Code:         code,
		Section:      section,
		SubSection:   sub,
		Text:         text,
		Position:     position,
		ContentHash:  core.HashContent(text),
		ModelVersion: "test-model",
		Vector:       vector,
	}
}

func newTestService(t *testing.T, embedder ai.Embedder, units ...*core.TextUnit) *Service {
	t.Helper()
	store, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	for _, unit := range units {
		require.NoError(t, store.PutUnit(ctx, unit))
	}

	if embedder == nil {
		embedder = mock.NewMockEmbedder()
	}
	service, err := NewService(store, embedder, testConfig())
	require.NoError(t, err)
	return service
}

func TestLookup(t *testing.T) {
	service := newTestService(t, nil,
		storedUnit("bgb", "§ 433", "1", "Pflichten des Verkäufers.", 0, nil),
		storedUnit("bgb", "§ 433", "2", "Pflichten des Käufers.", 1, nil),
		storedUnit("bgb", "§ 434", "", "Sachmangel.", 2, nil),
	)
	ctx := context.Background()

	t.Run("sub-section", func(t *testing.T) {
		unit, err := service.Lookup(ctx, "bgb", "§ 433", "2")
		require.NoError(t, err)
		assert.Equal(t, "Pflichten des Käufers.", unit.Text)
	})

	t.Run("whole section", func(t *testing.T) {
		unit, err := service.Lookup(ctx, "bgb", "§ 434", "")
		require.NoError(t, err)
		assert.Equal(t, "Sachmangel.", unit.Text)
	})

	t.Run("code is normalized", func(t *testing.T) {
		unit, err := service.Lookup(ctx, "BGB", "§ 434", "")
		require.NoError(t, err)
		assert.Equal(t, "bgb", unit.Code)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := service.Lookup(ctx, "hgb", "§ 1", "")
		assert.ErrorIs(t, err, ErrCodeNotFound)
	})

	t.Run("known code, unknown section", func(t *testing.T) {
		_, err := service.Lookup(ctx, "bgb", "§ 999", "")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.NotErrorIs(t, err, ErrCodeNotFound)
	})
}

func TestUnits(t *testing.T) {
	service := newTestService(t, nil,
		storedUnit("bgb", "§ 2", "", "Zweiter.", 1, nil),
		storedUnit("bgb", "§ 1", "", "Erster.", 0, nil),
	)
	ctx := context.Background()

	units, err := service.Units(ctx, "bgb")
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "§ 1", units[0].Section)
	assert.Equal(t, "§ 2", units[1].Section)

	_, err = service.Units(ctx, "hgb")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestQuery(t *testing.T) {
	service := newTestService(t, nil,
		storedUnit("bgb", "§ 433", "1", "Pflichten des Verkäufers.", 0, nil),
		storedUnit("bgb", "§ 433", "2", "Pflichten des Käufers.", 1, nil),
		storedUnit("bgb", "§ 434", "", "Sachmangel.", 2, nil),
	)
	ctx := context.Background()

	t.Run("whole code", func(t *testing.T) {
		units, err := service.Query(ctx, "bgb", "", "")
		require.NoError(t, err)
		require.Len(t, units, 3)
		assert.Equal(t, "§ 433", units[0].Section)
		assert.Equal(t, "§ 434", units[2].Section)
	})

	t.Run("all sub-sections of a section", func(t *testing.T) {
		units, err := service.Query(ctx, "bgb", "§ 433", "")
		require.NoError(t, err)
		require.Len(t, units, 2)
		assert.Equal(t, "1", units[0].SubSection)
		assert.Equal(t, "2", units[1].SubSection)
	})

	t.Run("section without sub-sections", func(t *testing.T) {
		units, err := service.Query(ctx, "bgb", "§ 434", "")
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(t, "Sachmangel.", units[0].Text)
	})

	t.Run("exact sub-section", func(t *testing.T) {
		units, err := service.Query(ctx, "BGB", "§ 433", "2")
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(t, "Pflichten des Käufers.", units[0].Text)
	})

	t.Run("known code, no match", func(t *testing.T) {
		units, err := service.Query(ctx, "bgb", "§ 999", "")
		require.NoError(t, err)
		assert.Empty(t, units)

		units, err = service.Query(ctx, "bgb", "§ 433", "7")
		require.NoError(t, err)
		assert.Empty(t, units)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := service.Query(ctx, "hgb", "§ 1", "")
		assert.ErrorIs(t, err, ErrCodeNotFound)
	})
}

func TestSearchOrdering(t *testing.T) {
	embedder := axisEmbedder(map[string][]float32{
		"Kaufvertrag": {1, 0, 0},
	})
	service := newTestService(t, embedder,
		storedUnit("bgb", "§ 433", "", "Kaufvertrag.", 0, []float32{1, 0, 0}),
		storedUnit("bgb", "§ 611", "", "Dienstvertrag.", 1, []float32{0.6, 0.8, 0}),
		storedUnit("bgb", "§ 985", "", "Herausgabe.", 2, []float32{0, 1, 0}),
	)

	results, err := service.Search(context.Background(), "Kaufvertrag", WithCutoff(2))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "§ 433", results[0].Unit.Section)
	assert.Equal(t, "§ 611", results[1].Unit.Section)
	assert.Equal(t, "§ 985", results[2].Unit.Section)

	// distances ascend, similarities descend
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].Distance, results[i-1].Distance)
		assert.LessOrEqual(t, results[i].Similarity, results[i-1].Similarity)
	}
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
}

func TestSearchCutoff(t *testing.T) {
	embedder := axisEmbedder(map[string][]float32{
		"Kaufvertrag": {1, 0, 0},
	})
	service := newTestService(t, embedder,
		storedUnit("bgb", "§ 433", "", "Kaufvertrag.", 0, []float32{1, 0, 0}),
		storedUnit("bgb", "§ 985", "", "Herausgabe.", 1, []float32{0, 1, 0}),
	)
	ctx := context.Background()

	// strict cutoff keeps only the exact hit
	strict, err := service.Search(ctx, "Kaufvertrag", WithCutoff(0.5))
	require.NoError(t, err)
	require.Len(t, strict, 1)
	assert.Equal(t, "§ 433", strict[0].Unit.Section)

	// widening the cutoff never removes results
	wide, err := service.Search(ctx, "Kaufvertrag", WithCutoff(1.5))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(wide), len(strict))

	// out-of-range values clamp to [0, 2]
	clamped, err := service.Search(ctx, "Kaufvertrag", WithCutoff(2.5))
	require.NoError(t, err)
	assert.Len(t, clamped, 2)

	exact, err := service.Search(ctx, "Kaufvertrag", WithCutoff(-0.1))
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, "§ 433", exact[0].Unit.Section)
}

func TestSearchCodeFilter(t *testing.T) {
	embedder := axisEmbedder(map[string][]float32{
		"Diebstahl": {1, 0, 0},
	})
	service := newTestService(t, embedder,
		storedUnit("stgb", "§ 242", "", "Diebstahl.", 0, []float32{1, 0, 0}),
		storedUnit("bgb", "§ 433", "", "Kaufvertrag.", 0, []float32{0.9, 0.1, 0}),
	)
	ctx := context.Background()

	results, err := service.Search(ctx, "Diebstahl", WithCode("stgb"), WithCutoff(2))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "stgb", results[0].Unit.Code)

	// unknown code is an empty result set, not an error
	empty, err := service.Search(ctx, "Diebstahl", WithCode("hgb"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSearchLimit(t *testing.T) {
	embedder := axisEmbedder(map[string][]float32{"Text": {1, 0, 0}})

	units := make([]*core.TextUnit, 0, 5)
	for i := 0; i < 5; i++ {
		units = append(units, storedUnit("bgb", "§ "+string(rune('1'+i)), "", "Gleicher Inhalt.", i, []float32{1, 0, 0}))
	}
	service := newTestService(t, embedder, units...)

	results, err := service.Search(context.Background(), "Text", WithLimit(2), WithCutoff(2))
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// zero falls back to the default
	results, err = service.Search(context.Background(), "Text", WithLimit(0), WithCutoff(2))
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestSearchSkipsOtherModelVersions(t *testing.T) {
	embedder := axisEmbedder(map[string][]float32{"Text": {1, 0, 0}})

	stale := storedUnit("bgb", "§ 2", "", "Alt eingebettet.", 1, []float32{1, 0, 0})
	stale.ModelVersion = "old-model"

	service := newTestService(t, embedder,
		storedUnit("bgb", "§ 1", "", "Aktuell eingebettet.", 0, []float32{1, 0, 0}),
		stale,
	)

	results, err := service.Search(context.Background(), "Text", WithCutoff(2))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "§ 1", results[0].Unit.Section)
}

func TestSearchEmptyQuery(t *testing.T) {
	service := newTestService(t, nil)

	_, err := service.Search(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

type recordingMonitor struct {
	started    bool
	embedded   bool
	candidates int
	finished   int
}

func (m *recordingMonitor) Start(_ string)                         { m.started = true }
func (m *recordingMonitor) AfterQueryEmbedding(_ []float32)        { m.embedded = true }
func (m *recordingMonitor) AfterVectorSearch(c []*core.ScoredUnit) { m.candidates = len(c) }
func (m *recordingMonitor) Finish(r []*Result)                     { m.finished = len(r) }

func TestSearchMonitor(t *testing.T) {
	embedder := axisEmbedder(map[string][]float32{"Text": {1, 0, 0}})
	service := newTestService(t, embedder,
		storedUnit("bgb", "§ 1", "", "Inhalt.", 0, []float32{1, 0, 0}),
	)

	monitor := &recordingMonitor{}
	_, err := service.Search(context.Background(), "Text", WithCutoff(2), WithMonitor(monitor))
	require.NoError(t, err)

	assert.True(t, monitor.started)
	assert.True(t, monitor.embedded)
	assert.Equal(t, 1, monitor.candidates)
	assert.Equal(t, 1, monitor.finished)
}
