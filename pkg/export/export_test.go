package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/renderscope/pkg/record"
	"github.com/nicktill/renderscope/pkg/storage"
	"github.com/nicktill/renderscope/pkg/storage/file"
	"github.com/nicktill/renderscope/pkg/storage/memory"
	"github.com/nicktill/renderscope/pkg/storage/storagetest"
)

func seed(t *testing.T) *memory.Storage {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	noProps := storagetest.Record("B", 5)
	noProps.PropsUsed = nil

	for _, rec := range []record.PerformanceRecord{
		storagetest.Record("A", 50),
		noProps,
		storagetest.Record("A", 80.25),
	} {
		require.NoError(t, store.Append(ctx, rec))
	}
	return store
}

func TestExportToJSON(t *testing.T) {
	store := seed(t)
	defer store.Close()

	buf := &bytes.Buffer{}
	result, err := NewExporter(store).ExportToJSON(context.Background(), buf, ExportOptions{Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.RecordsExported)

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "json", doc.Metadata.Format)
	assert.Equal(t, FormatVersion, doc.Metadata.Version)
	assert.Equal(t, 3, doc.Metadata.RecordCount)
	require.Len(t, doc.Records, 3)
	assert.Equal(t, 80.25, doc.Records[2].ActualDuration)
	assert.Nil(t, doc.Records[1].PropsUsed)
}

func TestExportToJSON_ComponentFilter(t *testing.T) {
	store := seed(t)

	buf := &bytes.Buffer{}
	result, err := NewExporter(store).ExportToJSON(context.Background(), buf, ExportOptions{
		Components: []string{"A"},
		Format:     "json",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.RecordsExported)
}

func TestExportToJSON_EmptyLog(t *testing.T) {
	buf := &bytes.Buffer{}
	_, err := NewExporter(memory.New()).ExportToJSON(context.Background(), buf, ExportOptions{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"records": []`)
}

func TestExportToCSV(t *testing.T) {
	store := seed(t)

	buf := &bytes.Buffer{}
	result, err := NewExporter(store).ExportToCSV(context.Background(), buf, ExportOptions{Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.RecordsExported)

	rows, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, CSVHeader, rows[0])

	assert.Equal(t, "A", rows[1][0])
	assert.Equal(t, "50", rows[1][2])
	assert.Equal(t, "1", rows[1][9])
	assert.Equal(t, "", rows[2][9], "untracked propsUsed is an empty cell")
	assert.Equal(t, "80.25", rows[3][2])
	assert.Equal(t, "none", rows[3][10])
}

func TestImportFromJSON_RoundTrip(t *testing.T) {
	source := seed(t)
	buf := &bytes.Buffer{}
	_, err := NewExporter(source).ExportToJSON(context.Background(), buf, ExportOptions{})
	require.NoError(t, err)

	target := memory.New()
	require.NoError(t, target.Append(context.Background(), storagetest.Record("Existing", 1)))

	result, err := NewImporter(target).ImportFromJSON(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, 3, result.RecordsImported)
	assert.Empty(t, result.Errors)

	all, err := target.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "Existing", all[0].Component)

	latest, ok, err := target.Latest(context.Background(), "A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 80.25, latest.ActualDuration)
}

func TestImportFromJSON_BareArrayAndInvalidEntries(t *testing.T) {
	input := `[
		{"component":"A","actualDuration":1},
		{"component":"","actualDuration":2},
		{"component":"B","stateUpdates":"lots"},
		{"component":"C","actualDuration":3}
	]`

	store := memory.New()
	result, err := NewImporter(store).ImportFromJSON(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, result.RecordsImported)
	assert.Equal(t, 2, result.RecordsSkipped)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "record 1")
	assert.Contains(t, result.Errors[1], "record 2")
}

func TestImportFromJSON_Garbage(t *testing.T) {
	_, err := NewImporter(memory.New()).ImportFromJSON(context.Background(), strings.NewReader("not json"))
	require.Error(t, err)
}

type unreadableStore struct {
	*memory.Storage
}

func (unreadableStore) ReadAll(context.Context) ([]record.PerformanceRecord, error) {
	return nil, &storage.StorageError{Op: "read", Corrupt: true, Err: errors.New("bad json")}
}

func TestHandleExport(t *testing.T) {
	h := NewHandler(seed(t), nil)

	t.Run("csv", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.HandleExport(rr, httptest.NewRequest(http.MethodGet, "/v1/export?format=csv&component=B", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Header().Get("Content-Disposition"), "renderscope-export-")
		assert.Equal(t, 2, strings.Count(rr.Body.String(), "\n"))
	})

	t.Run("bad format", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.HandleExport(rr, httptest.NewRequest(http.MethodGet, "/v1/export?format=xml", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.HandleExport(rr, httptest.NewRequest(http.MethodPost, "/v1/export", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("corrupt log", func(t *testing.T) {
		broken := NewHandler(unreadableStore{memory.New()}, nil)
		rr := httptest.NewRecorder()
		broken.HandleExport(rr, httptest.NewRequest(http.MethodGet, "/v1/export", nil))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Contains(t, rr.Body.String(), "corrupt")
	})
}

func TestHandleImport(t *testing.T) {
	store := memory.New()
	h := NewHandler(store, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/import", strings.NewReader(`[{"component":"A"}]`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.HandleImport(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var result ImportResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, 1, result.RecordsImported)

	req = httptest.NewRequest(http.MethodPost, "/v1/import", strings.NewReader(`[]`))
	req.Header.Set("Content-Type", "text/plain")
	rr = httptest.NewRecorder()
	h.HandleImport(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// countingStore counts single and batch appends on top of a real backend
type countingStore struct {
	storage.Store
	appends int
	batches []int
}

func (c *countingStore) Append(ctx context.Context, rec record.PerformanceRecord) error {
	c.appends++
	return c.Store.Append(ctx, rec)
}

func (c *countingStore) AppendBatch(ctx context.Context, recs []record.PerformanceRecord) error {
	c.batches = append(c.batches, len(recs))
	return c.Store.AppendBatch(ctx, recs)
}

func TestImportFromJSON_WritesInBatches(t *testing.T) {
	fs, err := file.New(file.Config{Path: filepath.Join(t.TempDir(), "performance_logs.json")})
	require.NoError(t, err)
	defer fs.Close()
	store := &countingStore{Store: fs}

	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < 12001; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		if i == 7 {
			sb.WriteString(`{"component":"","actualDuration":1}`)
			continue
		}
		fmt.Fprintf(&sb, `{"component":"C%d","actualDuration":%d}`, i%4, i)
	}
	sb.WriteString("]")

	result, err := NewImporter(store).ImportFromJSON(context.Background(), strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, 12000, result.RecordsImported)
	assert.Equal(t, 1, result.RecordsSkipped)
	assert.Equal(t, 3, result.BatchesWritten)
	assert.Equal(t, []int{MaxImportBatchSize, MaxImportBatchSize, 2000}, store.batches)
	assert.Zero(t, store.appends)

	all, err := fs.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 12000)
	assert.Equal(t, 0.0, all[0].ActualDuration)
	assert.Equal(t, 8.0, all[7].ActualDuration)
	assert.Equal(t, 12000.0, all[11999].ActualDuration)
}

type failingBatchStore struct {
	*memory.Storage
	calls int
}

func (f *failingBatchStore) AppendBatch(ctx context.Context, recs []record.PerformanceRecord) error {
	f.calls++
	if f.calls > 1 {
		return &storage.StorageError{Op: "append", Err: errors.New("no space left on device")}
	}
	return f.Storage.AppendBatch(ctx, recs)
}

func TestImportFromJSON_PartialFailure(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < MaxImportBatchSize+10; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"component":"A","actualDuration":%d}`, i)
	}
	sb.WriteString("]")

	store := &failingBatchStore{Storage: memory.New()}
	result, err := NewImporter(store).ImportFromJSON(context.Background(), strings.NewReader(sb.String()))
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrStorage)
	require.NotNil(t, result)
	assert.Equal(t, MaxImportBatchSize, result.RecordsImported)
	assert.Equal(t, 1, result.BatchesWritten)
}

func TestHandleImport_BodyLimit(t *testing.T) {
	store := memory.New()
	h := NewHandler(store, nil)
	h.maxImportBytes = 64

	body := `[{"component":"A","actualDuration":1},{"component":"B","actualDuration":2},{"component":"C"}]`
	req := httptest.NewRequest(http.MethodPost, "/v1/import", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.HandleImport(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Contains(t, rr.Body.String(), "import body too large")

	all, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}
