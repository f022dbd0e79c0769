package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/plancheck/internal/model"
)

func TestObserveCheck(t *testing.T) {
	m := New()

	report := &model.CheckReport{
		Results: []model.EvaluationResult{
			{ID: "A", Status: model.StatusPass},
			{ID: "B", Status: model.StatusFail},
			{ID: "C", Status: model.StatusUnhandled},
		},
		Summary: model.Summary{Failed: 1},
	}
	m.ObserveCheck(time.Now(), report, nil)
	m.ObserveCheck(time.Now(), nil, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChecksTotal.WithLabelValues("noncompliant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChecksTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RulesEvaluated.WithLabelValues("pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RulesEvaluated.WithLabelValues("unhandled")))
}

func TestObserveCompletionAndExtraction(t *testing.T) {
	m := New()

	m.ObserveCompletion("openai", time.Now(), nil)
	m.ObserveCompletion("openai", time.Now(), errors.New("429"))
	m.AddRulesExtracted("NCC", 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCompletions.WithLabelValues("openai", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCompletions.WithLabelValues("openai", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RulesExtracted.WithLabelValues("NCC")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCheck(time.Now(), nil, nil)
	m.ObserveCompletion("dev", time.Now(), nil)
	m.AddRulesExtracted("X", 1)
}

func TestHandler(t *testing.T) {
	m := New()
	m.AddRulesExtracted("NCC", 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `plancheck_rules_extracted_total{authority="NCC"} 1`))
}

func TestSeparateRegistries(t *testing.T) {
	// registering twice on the default registry would panic
	a, b := New(), New()
	a.AddRulesExtracted("NCC", 1)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RulesExtracted.WithLabelValues("NCC")))
}
