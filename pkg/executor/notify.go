package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/template"
)

// notifyBodyExcerpt caps how much of a failing endpoint's response body is
// carried in the step error.
const notifyBodyExcerpt = 100

var (
	// ErrNotifyRejected marks a notification endpoint answering non-2xx.
	ErrNotifyRejected = errors.New("notification rejected")

	// ErrInvalidWebhookPayload marks a webhook rawPayload that is not valid
	// JSON after interpolation.
	ErrInvalidWebhookPayload = errors.New("invalid webhook payload")
)

// executeNotify builds the channel-specific payload and POSTs it as JSON.
// A non-2xx response is a step failure carrying an excerpt of the response
// body.
func (e *Executor) executeNotify(ctx context.Context, step *models.NotifyStep, results map[string]any) (map[string]any, error) {
	payload, err := buildNotifyPayload(step, results)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notify payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, step.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create notify request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notify request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, notifyBodyExcerpt))

		return nil, fmt.Errorf("%w: %s endpoint returned %d: %s",
			ErrNotifyRejected, step.Method, resp.StatusCode, string(raw))
	}

	return map[string]any{"status": resp.StatusCode}, nil
}

func buildNotifyPayload(step *models.NotifyStep, results map[string]any) (any, error) {
	switch step.Method {
	case models.NotifySlack, models.NotifyTeams:
		return map[string]any{"text": notifyMessage(step, results)}, nil
	case models.NotifyDiscord:
		return map[string]any{"content": notifyMessage(step, results)}, nil
	case models.NotifyWebhook:
		raw := template.Interpolate(step.RawPayload, results)

		var payload any

		err := json.Unmarshal([]byte(raw), &payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidWebhookPayload, err)
		}

		if len(step.Include) > 0 {
			if doc, ok := payload.(map[string]any); ok {
				doc["include"] = includedResults(step.Include, results)
			}
		}

		return payload, nil
	default:
		return nil, fmt.Errorf("%w: unknown method %q", models.ErrInvalidNotify, step.Method)
	}
}

func notifyMessage(step *models.NotifyStep, results map[string]any) string {
	message := template.Interpolate(step.Message, results)
	if len(step.Include) > 0 {
		message += " " + includeDump(step.Include, results)
	}

	return message
}

func includedResults(keys []string, results map[string]any) map[string]any {
	included := make(map[string]any, len(keys))

	for _, key := range keys {
		value, ok := results[key]
		if !ok {
			continue
		}

		included[key] = value
	}

	return included
}
