package observ

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SetOnline(3)
	m.Message(OutcomeDelivered)
	m.Message(OutcomeDelivered)
	m.Message(OutcomeBlocked)
	m.Push(PushSent, 497)
	m.Push(PushRemoved, 2)
	m.Push(PushFailed, 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.online))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues(OutcomeDelivered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messages.WithLabelValues(OutcomeBlocked)))
	assert.Equal(t, 497.0, testutil.ToFloat64(m.push.WithLabelValues(PushSent)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.push.WithLabelValues(PushRemoved)))

	n, err := testutil.GatherAndCount(reg, "marketchat_push_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRegisterCacheStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	hits := int64(0)
	RegisterCacheStats(reg, func() (int64, int64, int64) { return hits, 4, 1 })

	hits = 7
	families, err := reg.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, f := range families {
		got[f.GetName()] = f.GetMetric()[0].GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{
		"marketchat_profile_cache_hits_total":   7,
		"marketchat_profile_cache_misses_total": 4,
		"marketchat_profile_cache_errors_total": 1,
	}, got)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetOnline(1)
		m.Message(OutcomeFailed)
		m.Push(PushSent, 1)
	})
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("production", "warn", "marketchat")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = NewLogger("development", "not-a-level", "")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)

	engine := gin.New()
	engine.Use(RequestLogger(zap.New(core)))
	engine.GET("/ok/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	engine.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok/42", "/missing", "/boom"} {
		engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "/ok/:id", entries[0].ContextMap()["path"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, int64(http.StatusInternalServerError), entries[2].ContextMap()["status"])
}
