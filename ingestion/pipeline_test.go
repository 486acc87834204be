package ingestion

import (
	"context"
	"errors"
	"fmt"
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
		ai.WithBatchSize(2),
		ai.WithMaxRetries(1),
		ai.WithRetryDelay(time.Millisecond),
	)
}

func statuteXML(sections map[string]string) []byte {
	doc := "<dokumente>"
	// deterministic order keeps positions stable across runs
	for _, section := range []string{"§ 1", "§ 2", "§ 3", "§ 4"} {
		text, ok := sections[section]
		if !ok {
			continue
		}
		doc += fmt.Sprintf(`<norm><metadaten><enbez>%s</enbez></metadaten><textdaten><text><Content><P>%s</P></Content></text></textdaten></norm>`, section, text)
	}
	doc += "</dokumente>"
	return []byte(doc)
}

func fixedSource(documents map[string][]byte) Source {
	return SourceFunc(func(ctx context.Context, code string) ([]byte, error) {
		doc, ok := documents[code]
		if !ok {
			return nil, errors.New("no such code")
		}
		return doc, nil
	})
}

func newTestPipeline(t *testing.T, source Source, embedder ai.Embedder) (*Pipeline, storage.TextStore) {
	t.Helper()
	store, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	if embedder == nil {
		embedder = mock.NewMockEmbedder()
	}
	pipeline, err := NewPipeline(store, source, embedder, testConfig(), WithPoolSize(2))
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	return pipeline, store
}

func TestIngestCreatesUnits(t *testing.T) {
	source := fixedSource(map[string][]byte{
		"bgb": statuteXML(map[string]string{
			"§ 1": "Die Rechtsfähigkeit des Menschen beginnt mit der Vollendung der Geburt.",
			"§ 2": "Die Volljährigkeit tritt mit der Vollendung des 18. Lebensjahres ein.",
		}),
	})
	pipeline, store := newTestPipeline(t, source, nil)

	report, err := pipeline.Ingest(context.Background(), "bgb")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Created)
	assert.Zero(t, report.Updated)
	assert.Zero(t, report.Unchanged)
	assert.Zero(t, report.Failed)

	units, err := store.GetByCode(context.Background(), "bgb")
	require.NoError(t, err)
	require.Len(t, units, 2)
	for _, unit := range units {
		assert.True(t, unit.Embedded(), "unit %s", unit.Key())
		assert.Equal(t, "test-model", unit.ModelVersion)
	}
}

func TestIngestNormalizesCode(t *testing.T) {
	source := fixedSource(map[string][]byte{
		"bgb": statuteXML(map[string]string{"§ 1": "Text."}),
	})
	pipeline, _ := newTestPipeline(t, source, nil)

	report, err := pipeline.Ingest(context.Background(), "  BGB ")
	require.NoError(t, err)
	assert.Equal(t, "bgb", report.Code)
}

func TestIngestIdempotent(t *testing.T) {
	source := fixedSource(map[string][]byte{
		"bgb": statuteXML(map[string]string{
			"§ 1": "Unveränderter Text eins.",
			"§ 2": "Unveränderter Text zwei.",
		}),
	})
	embedder := mock.NewMockEmbedder()
	pipeline, _ := newTestPipeline(t, source, embedder)

	_, err := pipeline.Ingest(context.Background(), "bgb")
	require.NoError(t, err)
	callsAfterFirst := embedder.CallCount()

	report, err := pipeline.Ingest(context.Background(), "bgb")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Unchanged)
	assert.Zero(t, report.Created)
	assert.Zero(t, report.Updated)
	// nothing re-embedded
	assert.Equal(t, callsAfterFirst, embedder.CallCount())
}

func TestIngestPrependedSectionShiftsPositions(t *testing.T) {
	documents := map[string][]byte{
		"bgb": statuteXML(map[string]string{
			"§ 2": "Zweite Vorschrift.",
			"§ 3": "Dritte Vorschrift.",
		}),
	}
	source := fixedSource(documents)
	pipeline, store := newTestPipeline(t, source, nil)

	_, err := pipeline.Ingest(context.Background(), "bgb")
	require.NoError(t, err)

	// An amendment inserts § 1 at the top; § 2 and § 3 keep their text
	// but move down one slot each.
	documents["bgb"] = statuteXML(map[string]string{
		"§ 1": "Erste Vorschrift.",
		"§ 2": "Zweite Vorschrift.",
		"§ 3": "Dritte Vorschrift.",
	})

	report, err := pipeline.Ingest(context.Background(), "bgb")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 2, report.Unchanged)

	units, err := store.GetByCode(context.Background(), "bgb")
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, "§ 1", units[0].Section)
	assert.Equal(t, "§ 2", units[1].Section)
	assert.Equal(t, "§ 3", units[2].Section)

	// a third run sees everything in place
	again, err := pipeline.Ingest(context.Background(), "bgb")
	require.NoError(t, err)
	assert.Zero(t, again.Created)
	assert.Equal(t, 3, again.Unchanged)
}

func TestIngestDetectsChangedText(t *testing.T) {
	documents := map[string][]byte{
		"bgb": statuteXML(map[string]string{
			"§ 1": "Alte Fassung.",
			"§ 2": "Bleibt gleich.",
		}),
	}
	source := fixedSource(documents)
	pipeline, store := newTestPipeline(t, source, nil)

	_, err := pipeline.Ingest(context.Background(), "bgb")
	require.NoError(t, err)

	documents["bgb"] = statuteXML(map[string]string{
		"§ 1": "Neue Fassung.",
		"§ 2": "Bleibt gleich.",
	})

	report, err := pipeline.Ingest(context.Background(), "bgb")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Unchanged)

	unit, err := store.GetUnit(context.Background(), core.UnitKey{Code: "bgb", Section: "§ 1"})
	require.NoError(t, err)
	assert.Equal(t, "Neue Fassung.", unit.Text)
}

func TestIngestPartialEmbeddingFailure(t *testing.T) {
	source := fixedSource(map[string][]byte{
		"bgb": statuteXML(map[string]string{
			"§ 1": "Gute Vorschrift.",
			"§ 2": "Defekte Vorschrift.",
			"§ 3": "Noch eine gute Vorschrift.",
		}),
	})

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		for _, text := range texts {
			if text == "Defekte Vorschrift." {
				return nil, errors.New("boom")
			}
		}
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			vectors[i] = mock.DeterministicVector(text, 16)
		}
		return vectors, nil
	}

	pipeline, store := newTestPipeline(t, source, embedder)
	report, err := pipeline.Ingest(context.Background(), "bgb")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.FailedKeys, 1)
	assert.Equal(t, "§ 2", report.FailedKeys[0].Section)

	// the failed unit was not persisted at all
	_, err = store.GetUnit(context.Background(), core.UnitKey{Code: "bgb", Section: "§ 2"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// a later run retries only the failed unit
	embedder.EmbedTextsFunc = nil
	retry, err := pipeline.Ingest(context.Background(), "bgb")
	require.NoError(t, err)
	assert.Equal(t, 1, retry.Created)
	assert.Equal(t, 2, retry.Unchanged)
}

func TestIngestSourceError(t *testing.T) {
	pipeline, _ := newTestPipeline(t, fixedSource(nil), nil)

	_, err := pipeline.Ingest(context.Background(), "bgb")
	assert.Error(t, err)
}

func TestIngestInvalidCode(t *testing.T) {
	pipeline, _ := newTestPipeline(t, fixedSource(nil), nil)

	_, err := pipeline.Ingest(context.Background(), "a:b")
	assert.ErrorIs(t, err, core.ErrMalformedCode)
}

func TestIngestManyIsolatesFailures(t *testing.T) {
	source := fixedSource(map[string][]byte{
		"bgb": statuteXML(map[string]string{"§ 1": "Text eins."}),
	})
	pipeline, _ := newTestPipeline(t, source, nil)

	reports := pipeline.IngestMany(context.Background(), []string{"bgb", "missing"})
	require.Len(t, reports, 2)

	assert.NoError(t, reports[0].Err)
	assert.Equal(t, 1, reports[0].Created)

	assert.Error(t, reports[1].Err)
	assert.Equal(t, "missing", reports[1].Code)
}

func TestNewPipelineValidation(t *testing.T) {
	store, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	source := fixedSource(nil)
	embedder := mock.NewMockEmbedder()

	_, err = NewPipeline(nil, source, embedder, testConfig())
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewPipeline(store, nil, embedder, testConfig())
	assert.ErrorIs(t, err, ErrSourceRequired)

	_, err = NewPipeline(store, source, nil, testConfig())
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewPipeline(store, source, embedder, nil)
	assert.ErrorIs(t, err, ErrConfigRequired)
}
