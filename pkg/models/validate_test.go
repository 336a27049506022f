package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinition() FlowDefinition {
	return FlowDefinition{
		Name:     "BTC Price Alert",
		Schedule: "*/5 * * * *",
		Enabled:  true,
		Steps: Steps{
			&FetchStep{ID: "price", URL: "https://api.example.com/btc"},
			&ConditionStep{Rule: Rule{Input: "price.status", Operator: OpEqual, Value: float64(200)}},
			&LogStep{Message: "ok"},
		},
	}
}

func TestFlowDefinition_Validate(t *testing.T) {
	definition := validDefinition()
	require.NoError(t, definition.Validate())
}

func TestFlowDefinition_Validate_Name(t *testing.T) {
	definition := validDefinition()
	definition.Name = ""

	assert.ErrorIs(t, definition.Validate(), ErrFlowNameRequired)
}

func TestFlowDefinition_Validate_Schedule(t *testing.T) {
	definition := validDefinition()
	definition.Schedule = "every five minutes"

	assert.ErrorIs(t, definition.Validate(), ErrInvalidSchedule)
}

func TestFlowDefinition_Validate_FetchSteps(t *testing.T) {
	definition := validDefinition()
	definition.Steps = Steps{&FetchStep{URL: "https://example.com"}}
	assert.ErrorIs(t, definition.Validate(), ErrFetchIDRequired)

	definition.Steps = Steps{&FetchStep{ID: "a"}}
	assert.ErrorIs(t, definition.Validate(), ErrStepURLRequired)

	definition.Steps = Steps{
		&FetchStep{ID: "a", URL: "https://example.com"},
		&FetchStep{ID: "a", URL: "https://example.com/other"},
	}
	assert.ErrorIs(t, definition.Validate(), ErrDuplicateFetchID)

	definition.Steps = Steps{&FetchStep{ID: "a", URL: "https://example.com", Timeout: "5 seconds"}}
	assert.ErrorIs(t, definition.Validate(), ErrInvalidDuration)
}

func TestFlowDefinition_Validate_Rules(t *testing.T) {
	definition := validDefinition()
	definition.Steps = Steps{&ConditionStep{Rule: Rule{Input: "x", Operator: "=="}}}
	assert.ErrorIs(t, definition.Validate(), ErrInvalidOperator)

	definition.Steps = Steps{&LogicStep{Mode: "XOR", Conditions: []Rule{{Operator: OpEqual}}}}
	assert.ErrorIs(t, definition.Validate(), ErrInvalidLogicMode)

	definition.Steps = Steps{&LogicStep{Mode: LogicAnd}}
	assert.ErrorIs(t, definition.Validate(), ErrLogicRulesRequired)
}

func TestFlowDefinition_Validate_Notify(t *testing.T) {
	definition := validDefinition()

	definition.Steps = Steps{&NotifyStep{Method: NotifySlack, Message: "hi"}}
	assert.ErrorIs(t, definition.Validate(), ErrStepURLRequired)

	definition.Steps = Steps{&NotifyStep{Method: NotifySlack, URL: "https://hooks.example"}}
	assert.ErrorIs(t, definition.Validate(), ErrInvalidNotify)

	definition.Steps = Steps{&NotifyStep{Method: NotifyWebhook, URL: "https://hooks.example"}}
	assert.ErrorIs(t, definition.Validate(), ErrInvalidNotify)

	definition.Steps = Steps{&NotifyStep{Method: "pager", URL: "https://hooks.example", Message: "hi"}}
	assert.ErrorIs(t, definition.Validate(), ErrInvalidNotify)

	definition.Steps = Steps{&NotifyStep{Method: NotifyWebhook, URL: "https://hooks.example", RawPayload: `{"a": 1}`}}
	assert.NoError(t, definition.Validate())
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"500ms": 500 * time.Millisecond,
		"10s":   10 * time.Second,
		"5m":    5 * time.Minute,
		"1h":    time.Hour,
		"0s":    0,
	}

	for input, expected := range cases {
		actual, err := ParseDuration(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, actual, input)
	}

	for _, input := range []string{"", "10", "s", "-5s", "1.5h", "10 s", "5d", "5S"} {
		_, err := ParseDuration(input)
		assert.ErrorIs(t, err, ErrInvalidDuration, input)
	}
}

func TestValidateFlowDocument(t *testing.T) {
	valid := `{
		"name": "BTC Price Alert",
		"schedule": "*/5 * * * *",
		"steps": [
			{"type": "fetch", "id": "price", "url": "https://api.example.com/btc"},
			{"type": "log", "message": "done"}
		]
	}`
	require.NoError(t, ValidateFlowDocument([]byte(valid)))

	missingName := `{"schedule": "* * * * *", "steps": []}`
	assert.ErrorIs(t, ValidateFlowDocument([]byte(missingName)), ErrSchemaViolation)

	badStepType := `{"name": "x", "schedule": "* * * * *", "steps": [{"type": "teleport"}]}`
	assert.ErrorIs(t, ValidateFlowDocument([]byte(badStepType)), ErrSchemaViolation)

	badOperator := `{"name": "x", "schedule": "* * * * *", "steps": [{"type": "condition", "operator": "=="}]}`
	assert.ErrorIs(t, ValidateFlowDocument([]byte(badOperator)), ErrSchemaViolation)
}
