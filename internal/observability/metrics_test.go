package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRunFinished(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordRunStart()
	m.RecordRunFinished("ok", 1.5, 1440)
	m.RecordRunFinished("error", 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsFinished.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsFinished.WithLabelValues("error")))
	assert.Equal(t, 1440.0, testutil.ToFloat64(m.BarsProcessed))
}

func TestRecordActionAndLiquidation(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordAction("uni_lp_add_liquidity")
	m.RecordAction("uni_lp_add_liquidity")
	m.RecordLiquidation("squeeth")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActionsRecorded.WithLabelValues("uni_lp_add_liquidity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Liquidations.WithLabelValues("squeeth")))
}

func TestRecordDBQueryCountsErrors(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordDBQuery("postgres", "insert", 0.01, nil)
	m.RecordDBQuery("postgres", "insert", 0.02, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("postgres", "insert")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	m.RecordRunStart()
	m.RecordRunFinished("ok", 1, 1)
	m.RecordAction("x")
	m.RecordLiquidation("y")
	m.RecordReportGenerated()
	m.RecordDBQuery("postgres", "insert", 0, nil)
}
