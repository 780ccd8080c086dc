package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/svc-users/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ObservabilityConfig
		wantErr string
	}{
		{name: "json logger", cfg: config.ObservabilityConfig{LogLevel: "info", LogFormat: "json"}},
		{name: "console logger", cfg: config.ObservabilityConfig{LogLevel: "debug", LogFormat: "console"}},
		{name: "upper case level", cfg: config.ObservabilityConfig{LogLevel: "WARN", LogFormat: "json"}},
		{name: "invalid level", cfg: config.ObservabilityConfig{LogLevel: "verbose", LogFormat: "json"}, wantErr: "invalid log level"},
		{name: "invalid format", cfg: config.ObservabilityConfig{LogLevel: "info", LogFormat: "xml"}, wantErr: "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Nil(t, logger)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			_ = logger.Sync()
		})
	}
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ProfileCreated(nil)
	m.ProfileCreated(nil)
	m.ProfileUpdated(nil)
	m.VerificationFailed("expired")
	m.VerificationFailed("expired")
	m.VerificationFailed("invalid_audience")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.profilesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.profilesUpdated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.verificationFailures.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verificationFailures.WithLabelValues("invalid_audience")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ProfileCreated(nil)

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "svc_users_profile_created_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_GatherFailureReasons(t *testing.T) {
	m := NewMetrics()
	m.VerificationFailed("malformed")
	m.VerificationFailed("key_fetch_failed")

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var family *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "svc_users_token_verification_failures_total" {
			family = f
		}
	}
	require.NotNil(t, family)
	assert.Equal(t, dto.MetricType_COUNTER, family.GetType())

	reasons := make(map[string]float64)
	for _, metric := range family.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "reason" {
				reasons[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, map[string]float64{"malformed": 1, "key_fetch_failed": 1}, reasons)
}
