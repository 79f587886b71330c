package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"vulndash/internal/analysis"
	"vulndash/internal/logger"
	"vulndash/internal/models"
	"vulndash/internal/normalizer"
	"vulndash/internal/telemetry"
)

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()

	m, err := telemetry.NewMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	return New(analysis.Options{}, logger.Discard(), m)
}

func TestRun_MappingDocument(t *testing.T) {
	doc := `{
		"a": {"cwe_id": "CWE-79", "cvss_score": 6.1, "severity": "medium"},
		"b": {"cwe_id": "CWE-89", "cvss_score": 9.8, "severity": "critical"},
		"c": "not an object",
		"d": {"cwe_id": "CWE-89", "cvss_score": 7.0, "severity": "high"}
	}`

	rep, err := newPipeline(t).RunBytes(context.Background(), []byte(doc))
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Result.Table.Len())
	assert.Equal(t, 1, rep.Result.Rejected)
	assert.Equal(t, 2, rep.HighRisk.Len())
	assert.Equal(t, []analysis.Count{{Value: "CWE-89", Count: 2}, {Value: "CWE-79", Count: 1}}, rep.Summary.TopCWE)

	lines := strings.Split(strings.TrimSpace(string(rep.CSV)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "cwe_id,cvss_score,severity", lines[0])
	assert.Equal(t, "CWE-89,9.8,critical", lines[1])
	assert.Equal(t, "CWE-89,7.0,high", lines[2])
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		want  error
		kind  string
		level Level
	}{
		{"empty file", "", normalizer.ErrEmptyInput, KindEmptyInput, LevelWarning},
		{"whitespace only", "  \n ", normalizer.ErrEmptyInput, KindEmptyInput, LevelWarning},
		{"empty list", "[]", normalizer.ErrEmptyInput, KindEmptyInput, LevelWarning},
		{"empty mapping", "{}", normalizer.ErrEmptyInput, KindEmptyInput, LevelWarning},
		{"all rejected", `{"a": {"cvss_score": 9}}`, normalizer.ErrNoValidEntries, KindNoValidEntries, LevelError},
		{
			"mixed column shapes",
			`[{"cwe_id": "CWE-1", "cvss_score": 5, "severity": "low", "refs": "x"},
			  {"cwe_id": "CWE-2", "cvss_score": 6, "severity": "low", "refs": ["y"]}]`,
			normalizer.ErrConversion, KindConversion, LevelError,
		},
		{"truncated", `[{"cwe_id": "CWE-1"`, ErrMalformedJSON, KindMalformedJSON, LevelError},
		{"scalar document", `42`, normalizer.ErrEmptyInput, KindEmptyInput, LevelWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newPipeline(t).RunBytes(context.Background(), []byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			f := Describe(err)
			assert.Equal(t, tt.kind, f.Kind)
			assert.Equal(t, tt.level, f.Level)
			assert.NotEmpty(t, f.Message)
		})
	}
}

func TestRun_DeeplyNestedDocument(t *testing.T) {
	doc := strings.Repeat("[", 3<<20) + strings.Repeat("]", 3<<20)

	_, err := New(analysis.Options{}, nil, nil).RunBytes(context.Background(), []byte(doc))
	require.ErrorIs(t, err, ErrMalformedJSON)
	assert.ErrorIs(t, err, models.ErrTooDeep)

	f := Describe(err)
	assert.Equal(t, KindMalformedJSON, f.Kind)
	assert.Equal(t, LevelError, f.Level)
}

func TestRun_RecordsMetrics(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.NewProvider(ctx, "vulndash-test")
	require.NoError(t, err)
	defer func() { _ = provider.Shutdown(ctx) }()

	m, err := provider.Metrics()
	require.NoError(t, err)

	p := New(analysis.Options{}, nil, m)

	doc := `[
		{"cwe_id": "CWE-79", "cvss_score": 6.1, "severity": "medium"},
		{"cvss_score": 9.0},
		"junk"
	]`

	_, err = p.RunBytes(ctx, []byte(doc))
	require.NoError(t, err)

	_, err = p.RunBytes(ctx, []byte(`[]`))
	require.Error(t, err)

	_, err = p.RunBytes(ctx, []byte(`[1,`))
	require.Error(t, err)

	_, err = p.RunBytes(ctx, []byte(`{}`))
	require.Error(t, err)

	points, err := provider.Collect(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(4), telemetry.Value(points, "vulndash.uploads"))
	assert.Equal(t, int64(1), telemetry.Value(points, "vulndash.records.accepted"))
	assert.Equal(t, int64(2), telemetry.Value(points, "vulndash.records.rejected"))
	assert.Equal(t, int64(2), telemetry.Value(points, "vulndash.failures", "kind", KindEmptyInput))
	assert.Equal(t, int64(1), telemetry.Value(points, "vulndash.failures", "kind", KindMalformedJSON))
	assert.Zero(t, telemetry.Value(points, "vulndash.failures", "kind", KindConversion))
}

func TestRun_LogsWithContextLogger(t *testing.T) {
	var own, scoped bytes.Buffer

	p := New(analysis.Options{}, logger.New("debug", "json", &own), nil)
	ctx := logger.WithContext(context.Background(), logger.New("debug", "json", &scoped).With("upload_id", "u-1"))

	_, err := p.RunBytes(ctx, []byte(`[{"cwe_id": "CWE-79", "cvss_score": 6.1, "severity": "medium"}, "junk"]`))
	require.NoError(t, err)

	_, err = p.RunBytes(ctx, []byte(`[]`))
	require.Error(t, err)

	assert.Empty(t, own.String())

	var msgs []string

	for _, line := range strings.Split(strings.TrimSpace(scoped.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "u-1", entry["upload_id"], line)

		msgs = append(msgs, entry["msg"].(string))
	}

	assert.Equal(t, []string{"upload processed", "entry rejected", "upload rejected"}, msgs)
}

func TestRun_ConversionCarriesReason(t *testing.T) {
	doc := `[{"cwe_id": "CWE-1", "cvss_score": "high", "severity": "low"}]`

	_, err := newPipeline(t).RunBytes(context.Background(), []byte(doc))
	require.ErrorIs(t, err, normalizer.ErrConversion)
	assert.ErrorIs(t, err, normalizer.ErrScoreNotNumeric)
	assert.Contains(t, Describe(err).Message, "cvss_score")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(t).RunBytes(ctx, []byte(`[]`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_NoHighRiskStillExportsHeader(t *testing.T) {
	doc := `[{"cwe_id": "CWE-1", "cvss_score": 3.1, "severity": "low"}]`

	rep, err := New(analysis.Options{}, nil, nil).RunBytes(context.Background(), []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 0, rep.HighRisk.Len())
	assert.Equal(t, "cwe_id,cvss_score,severity\n", string(rep.CSV))
}

func TestDescribe_Unknown(t *testing.T) {
	f := Describe(errors.New("boom"))
	assert.Equal(t, KindInternal, f.Kind)
	assert.Equal(t, LevelError, f.Level)
}
