package executor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routinehq/routine/pkg/models"
)

func TestExecute_FetchCapturesResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"usd": 42000.5}`))
	}))
	defer server.Close()

	ec := models.NewExecutionContext()
	steps := models.Steps{
		&models.FetchStep{ID: "price", URL: server.URL},
	}

	result := NewExecutor().Execute(context.Background(), steps, ec)

	require.True(t, result.Success)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, "price", result.Outcomes[0].StepID)
	assert.Empty(t, result.Outcomes[0].Error)

	captured, ok := ec.Results["price"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, captured["status"])
	assert.Equal(t, map[string]any{"usd": 42000.5}, captured["body"])

	headers, ok := captured["headers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "application/json", headers["Content-Type"])
}

func TestExecute_FetchNon2xxIsNotFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	ec := models.NewExecutionContext()
	steps := models.Steps{&models.FetchStep{ID: "f", URL: server.URL}}

	result := NewExecutor().Execute(context.Background(), steps, ec)

	require.True(t, result.Success)

	captured := ec.Results["f"].(map[string]any)
	assert.Equal(t, http.StatusInternalServerError, captured["status"])

	// Non-JSON bodies are kept as raw strings.
	assert.Equal(t, "boom", captured["body"])
}

func TestExecute_FetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ec := models.NewExecutionContext()
	steps := models.Steps{
		&models.FetchStep{ID: "slow", URL: server.URL, Timeout: "50ms"},
		&models.LogStep{Message: "unreachable"},
	}

	result := NewExecutor().Execute(context.Background(), steps, ec)

	require.False(t, result.Success)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, "slow", result.Outcomes[0].StepID)
	assert.Contains(t, result.Outcomes[0].Error, "fetch timed out")

	// A failed fetch leaves no result entry behind.
	_, exists := ec.Results["slow"]
	assert.False(t, exists)

	require.NotEmpty(t, ec.LogLines)
	assert.Contains(t, ec.LogLines[len(ec.LogLines)-1], "step slow failed")
}

func TestExecute_FetchSendsMethodHeadersAndBody(t *testing.T) {
	var gotMethod, gotContentType, gotCustom string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotCustom = r.Header.Get("X-Token")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	ec := models.NewExecutionContext()
	steps := models.Steps{&models.FetchStep{
		ID:      "post",
		URL:     server.URL,
		Method:  "post",
		Headers: map[string]string{"X-Token": "secret"},
		Body:    `{"a": 1}`,
	}}

	result := NewExecutor().Execute(context.Background(), steps, ec)

	require.True(t, result.Success)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "secret", gotCustom)

	// JSON-looking bodies get the content type set when none was given.
	assert.Equal(t, "application/json", gotContentType)
}

func TestExecute_ConditionFalseShortCircuits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"price": 100}`))
	}))
	defer server.Close()

	ec := models.NewExecutionContext()
	steps := models.Steps{
		&models.FetchStep{ID: "fetch", URL: server.URL},
		&models.ConditionStep{Rule: models.Rule{Input: "fetch.body.price", Operator: models.OpGreater, Value: 500}},
		&models.LogStep{Message: "unreachable"},
	}

	result := NewExecutor().Execute(context.Background(), steps, ec)

	// A false condition ends the run early but does not fail it: two
	// outcomes, the third step skipped.
	require.True(t, result.Success)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, "fetch", result.Outcomes[0].StepID)
	assert.Equal(t, "condition", result.Outcomes[1].StepID)
	assert.Equal(t, map[string]any{"result": false}, result.Outcomes[1].Output)

	require.Len(t, ec.LogLines, 1)
	assert.Contains(t, ec.LogLines[0], "evaluated to false")
}

func TestExecute_ConditionTrueContinues(t *testing.T) {
	ec := models.NewExecutionContext()
	ec.Results["fetch"] = map[string]any{"price": float64(100)}

	steps := models.Steps{
		&models.ConditionStep{Rule: models.Rule{Input: "fetch.price", Operator: models.OpLess, Value: 500}},
		&models.LogStep{Message: "reached"},
	}

	result := NewExecutor().Execute(context.Background(), steps, ec)

	require.True(t, result.Success)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, "log", result.Outcomes[1].StepID)
	assert.Contains(t, ec.LogLines, "reached")
}

func TestExecute_LogicGateShortCircuits(t *testing.T) {
	ec := models.NewExecutionContext()

	steps := models.Steps{
		&models.LogicStep{
			Mode: models.LogicAnd,
			Conditions: []models.Rule{
				{Input: "nope", Operator: models.OpEqual, Value: 1},
			},
		},
		&models.LogStep{Message: "unreachable"},
	}

	result := NewExecutor().Execute(context.Background(), steps, ec)

	require.True(t, result.Success)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, "logic", result.Outcomes[0].StepID)
}

func TestExecute_Delay(t *testing.T) {
	ec := models.NewExecutionContext()
	steps := models.Steps{&models.DelayStep{Duration: "10ms"}}

	started := time.Now()
	result := NewExecutor().Execute(context.Background(), steps, ec)

	require.True(t, result.Success)
	assert.GreaterOrEqual(t, time.Since(started), 10*time.Millisecond)
	assert.Contains(t, ec.LogLines, "delayed for 10ms")
}

func TestExecute_DelayInvalidDuration(t *testing.T) {
	ec := models.NewExecutionContext()
	steps := models.Steps{&models.DelayStep{Duration: "ten seconds"}}

	result := NewExecutor().Execute(context.Background(), steps, ec)

	require.False(t, result.Success)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, "delay", result.Outcomes[0].StepID)
	assert.Contains(t, result.Outcomes[0].Error, "invalid duration")
}

func TestExecute_DelayInterruptedByContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ec := models.NewExecutionContext()
	steps := models.Steps{&models.DelayStep{Duration: "1h"}}

	result := NewExecutor().Execute(ctx, steps, ec)

	require.False(t, result.Success)
	assert.Contains(t, result.Outcomes[0].Error, "delay interrupted")
}

func TestExecute_LogStep(t *testing.T) {
	ec := models.NewExecutionContext()
	ec.Results["fetch"] = map[string]any{"price": 42000.5}

	steps := models.Steps{
		&models.LogStep{Message: "BTC at ${fetch.price}", Include: []string{"fetch", "absent"}},
	}

	result := NewExecutor().Execute(context.Background(), steps, ec)

	require.True(t, result.Success)
	require.Len(t, ec.LogLines, 1)

	// Absent include keys are skipped, present ones dumped as compact JSON.
	assert.Equal(t, `BTC at 42000.5 {"fetch":{"price":42000.5}}`, ec.LogLines[0])
	assert.Equal(t, ec.LogLines[0], result.Outcomes[0].Output)
}

func TestExecute_EmptySteps(t *testing.T) {
	result := NewExecutor().Execute(context.Background(), models.Steps{}, models.NewExecutionContext())

	require.True(t, result.Success)
	assert.Empty(t, result.Outcomes)
}
