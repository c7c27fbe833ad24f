package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tripflow/pkg/models"
)

func report(status models.Status) *models.RunReport {
	return &models.RunReport{
		Unit:        models.WorkUnit{Year: 2024, Month: 3},
		Status:      status,
		Stage:       models.StageDone,
		RowsRead:    100,
		RowsWritten: 90,
		RowsDropped: 10,
		Drops:       models.DropStats{NullRequired: 4, OutsideWindow: 6},
		StartedAt:   time.Unix(1_700_000_000, 0),
		Elapsed:     3 * time.Second,
		Timings:     map[models.Stage]time.Duration{models.StageFetching: time.Second},
	}
}

func TestObserveRun(t *testing.T) {
	c := NewCollector()

	c.ObserveRun(report(models.StatusSucceeded))
	failed := report(models.StatusFailed)
	failed.Stage = models.StageWriting
	failed.ErrorKind = "no_space"
	failed.RowsWritten = 0
	c.ObserveRun(failed)
	c.ObserveRun(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failures.WithLabelValues("writing", "no_space")))
	assert.Equal(t, 200.0, testutil.ToFloat64(c.rows.WithLabelValues("read")))
	assert.Equal(t, 90.0, testutil.ToFloat64(c.rows.WithLabelValues("written")))
	assert.Equal(t, 12.0, testutil.ToFloat64(c.dropped.WithLabelValues(models.DropOutsideWindow)))
	assert.Equal(t, float64(1_700_000_003), testutil.ToFloat64(c.lastSuccess.WithLabelValues("2024", "3")))

	expected := `
# HELP tripflow_rows_dropped_total Rows removed by validation, by reason
# TYPE tripflow_rows_dropped_total counter
tripflow_rows_dropped_total{reason="invalid_timestamp"} 0
tripflow_rows_dropped_total{reason="null_required"} 8
tripflow_rows_dropped_total{reason="outside_window"} 12
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "tripflow_rows_dropped_total"))
}

func TestPush(t *testing.T) {
	var path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewCollector()
	c.ObserveRun(report(models.StatusSucceeded))

	require.NoError(t, c.Push(context.Background(), srv.URL, ""))
	assert.Equal(t, "/metrics/job/tripflow", path)
	assert.NotEmpty(t, body)
}

func TestTimer(t *testing.T) {
	timer := NewTimer("fetch")
	assert.Equal(t, "fetch", timer.Name())
	assert.GreaterOrEqual(t, timer.Stop(), time.Duration(0))
}
