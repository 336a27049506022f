package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/routinehq/routine/pkg/models"
)

// ErrFetchTimeout marks a fetch aborted by its per-step timeout, as opposed
// to any other transport failure.
var ErrFetchTimeout = errors.New("fetch timed out")

// executeFetch issues the step's HTTP request and captures
// {status, headers, body}. A non-2xx status is not a failure — callers read
// the status out of the result map — only transport errors and the per-step
// timeout are.
func (e *Executor) executeFetch(ctx context.Context, step *models.FetchStep) (map[string]any, error) {
	method := http.MethodGet
	if step.Method != "" {
		method = strings.ToUpper(step.Method)
	}

	reqCtx := ctx

	if step.Timeout != "" {
		timeout, err := models.ParseDuration(step.Timeout)
		if err != nil {
			return nil, err
		}

		var cancel context.CancelFunc

		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if step.Body != "" {
		body = strings.NewReader(step.Body)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, step.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch request: %w", err)
	}

	for key, value := range step.Headers {
		req.Header.Set(key, value)
	}

	if step.Body != "" && req.Header.Get("Content-Type") == "" && looksLikeJSON(step.Body) {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if step.Timeout != "" && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %s %s", ErrFetchTimeout, step.Timeout, method, step.URL)
		}

		return nil, fmt.Errorf("fetch request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read fetch response body: %w", err)
	}

	var parsedBody any

	err = json.Unmarshal(raw, &parsedBody)
	if err != nil {
		parsedBody = string(raw)
	}

	headers := make(map[string]any, len(resp.Header))
	for key, values := range resp.Header {
		headers[key] = strings.Join(values, ", ")
	}

	return map[string]any{
		"status":  resp.StatusCode,
		"headers": headers,
		"body":    parsedBody,
	}, nil
}

func looksLikeJSON(body string) bool {
	trimmed := strings.TrimSpace(body)

	return (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"))
}
