package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verdantiq/esg-cli/internal/format"
	"github.com/verdantiq/esg-cli/internal/model"
	"github.com/verdantiq/esg-cli/internal/normalize"
	"github.com/verdantiq/esg-cli/internal/section"
	"github.com/verdantiq/esg-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const sampleCSV = `ESG Disclosure FY2023
ENVIRONMENTAL (E) METRICS
Metric,2022,2023
Scope 1 Emissions (tCO2e),1200,"1,450"
Scope 2 Emissions (tCO2e),800,N/A

Board of Directors Composition
Name,Role
A. Sharma,Chair
B. Iyer,Independent Director

Key Performance Indicators
Sugar Recovery Rate,11.2%,improving
`

func newTestImporter(t *testing.T) (*Importer, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	registry, err := section.DefaultRegistry()
	require.NoError(t, err)
	return New(registry, st), st
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()
	imp, st := newTestImporter(t)
	ctx := context.Background()

	res, err := imp.Run(ctx, Request{
		EntityID: "acme-sugar",
		Format:   format.FormatCSV,
		Data:     []byte(sampleCSV),
		FileName: "fy2023.csv",
		Actor:    "analyst",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Version)
	assert.Equal(t, 4, res.RecordsProcessed)
	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, model.ValidationValidated, res.ValidationStatus)
	assert.Equal(t, 100.0, res.DataQualityScore)

	rec, err := st.GetActiveRecord(ctx, "acme-sugar")
	require.NoError(t, err)
	assert.Equal(t, res.RecordID, rec.ID)
	assert.Equal(t, "upload", rec.ImportSource)
	assert.Equal(t, "fy2023.csv", rec.SourceFileName)
	require.Len(t, rec.Metrics, 4)

	byName := map[string]model.Metric{}
	for _, m := range rec.Metrics {
		byName[m.MetricName] = m
	}

	scope1 := byName["Scope 1 Emissions"]
	require.NotNil(t, scope1.Yearly)
	require.Len(t, scope1.Yearly.Data, 2)
	assert.Equal(t, "tCO2e", scope1.Yearly.Data[0].Unit)
	assert.Equal(t, "fy2023.csv", scope1.Yearly.Data[0].Source)
	assert.Equal(t, "analyst", scope1.Yearly.Data[0].AddedBy)

	scope2 := byName["Scope 2 Emissions"]
	require.NotNil(t, scope2.Yearly)
	require.Len(t, scope2.Yearly.Data, 2)
	assert.Nil(t, scope2.Yearly.Data[1].NumericValue, "N/A keeps raw text, no numeric value")

	board := byName["Board"]
	require.NotNil(t, board.List)
	assert.Len(t, board.List.Items, 2)

	// Re-import supersedes rather than appends.
	res2, err := imp.Run(ctx, Request{
		EntityID: "acme-sugar",
		Format:   format.FormatCSV,
		Data:     []byte(sampleCSV),
		FileName: "fy2023-revised.csv",
		Actor:    "analyst",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res2.Version)

	versions, err := st.ListVersions(ctx, "acme-sugar")
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestRunNoPartialPersistOnParseFailure(t *testing.T) {
	t.Parallel()
	imp, st := newTestImporter(t)
	ctx := context.Background()

	_, err := imp.Run(ctx, Request{
		EntityID: "acme",
		Format:   format.FormatJSON,
		Data:     []byte(`{"not": "an array"}`),
	})
	require.Error(t, err)

	_, err = st.GetActiveRecord(ctx, "acme")
	assert.True(t, eris.Is(err, store.ErrNotFound), "failed imports leave nothing behind")
}

func TestRunNoMetrics(t *testing.T) {
	t.Parallel()
	imp, _ := newTestImporter(t)

	_, err := imp.Run(context.Background(), Request{
		EntityID: "acme",
		Format:   format.FormatCSV,
		Data:     []byte("just,random\nnoise,cells\n"),
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, normalize.ErrNoMetricsExtracted))
}

func TestRunRequiresEntityID(t *testing.T) {
	t.Parallel()
	imp, _ := newTestImporter(t)

	_, err := imp.Run(context.Background(), Request{Format: format.FormatCSV, Data: []byte("a,b")})
	assert.Error(t, err)
}

func TestRunUnsupportedFormat(t *testing.T) {
	t.Parallel()
	imp, _ := newTestImporter(t)

	_, err := imp.Run(context.Background(), Request{
		EntityID: "acme",
		Format:   format.Format("pdf"),
		Data:     []byte("x"),
	})
	assert.True(t, eris.Is(err, format.ErrUnsupportedFormat))
}

func TestRunDir(t *testing.T) {
	t.Parallel()
	imp, st := newTestImporter(t)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme.csv"), []byte(sampleCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "globex.csv"), []byte(sampleCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.csv"), []byte("no,sections\nhere,at all\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	res, err := imp.RunDir(ctx, dir, "general", "batcher", 2)
	require.NoError(t, err)

	assert.Len(t, res.Imported, 2)
	require.Len(t, res.Failed, 1)
	assert.Contains(t, res.Failed, "broken.csv", "per-file failures do not abort the batch")

	rec, err := st.GetActiveRecord(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "batch", rec.ImportSource)
	assert.Equal(t, "acme.csv", rec.SourceFileName)

	_, err = st.GetActiveRecord(ctx, "globex")
	require.NoError(t, err)
}
