package normstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normenwerk/normstore/ai"
	"github.com/normenwerk/normstore/ai/mock"
	"github.com/normenwerk/normstore/ingestion"
	"github.com/normenwerk/normstore/retrieval"
)

const sampleDocument = `<dokumente>
  <norm>
    <metadaten><enbez>§ 433</enbez></metadaten>
    <textdaten><text><Content>
      <P>(1) Durch den Kaufvertrag wird der Verkäufer einer Sache verpflichtet.</P>
      <P>(2) Der Käufer ist verpflichtet, den Kaufpreis zu zahlen.</P>
    </Content></text></textdaten>
  </norm>
</dokumente>`

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	source := ingestion.SourceFunc(func(ctx context.Context, code string) ([]byte, error) {
		return []byte(sampleDocument), nil
	})

	db, err := NewDatabase("",
		WithInMemory(),
		WithSource(source),
		WithEmbedder(mock.NewMockEmbedder()),
		WithAIConfig(ai.NewConfig(
			ai.WithEmbeddingModel("test-model"),
			ai.WithRetryDelay(time.Millisecond),
		)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabaseEndToEnd(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	pipeline, err := db.NewIngestionPipeline()
	require.NoError(t, err)
	defer pipeline.Release()

	report, err := pipeline.Ingest(ctx, "bgb")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)

	service, err := db.NewRetrievalService()
	require.NoError(t, err)

	unit, err := service.Lookup(ctx, "bgb", "§ 433", "1")
	require.NoError(t, err)
	assert.Contains(t, unit.Text, "Kaufvertrag")

	units, err := service.Query(ctx, "bgb", "§ 433", "")
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "1", units[0].SubSection)
	assert.Equal(t, "2", units[1].SubSection)

	results, err := service.Search(ctx, "Pflichten des Verkäufers beim Kaufvertrag", retrieval.WithCutoff(2))
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	codes, err := service.Codes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bgb"}, codes)
}

func TestDatabaseRejectsInvalidAIConfig(t *testing.T) {
	_, err := NewDatabase("", WithInMemory(), WithAIConfig(&ai.Config{}))
	assert.Error(t, err)
}
