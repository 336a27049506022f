package models

// ExecutionContext is the mutable per-run state shared by sequential steps:
// captured fetch results keyed by step id, and the ordered log lines. One
// instance exists per run and is discarded when the run record is built.
type ExecutionContext struct {
	Results  map[string]any
	LogLines []string
}

func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		Results:  make(map[string]any),
		LogLines: make([]string, 0),
	}
}

// Log appends one line to the run's log.
func (ec *ExecutionContext) Log(line string) {
	ec.LogLines = append(ec.LogLines, line)
}
