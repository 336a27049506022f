package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/services"
	"github.com/routinehq/routine/pkg/store"
)

// readFlowDocument loads a flow definition file as JSON. YAML files are
// converted so the schema and union decoding see a single format.
func readFlowDocument(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return raw, nil
	}

	var doc any

	err = yaml.Unmarshal(raw, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	converted, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s to JSON: %w", path, err)
	}

	return converted, nil
}

func isFlowFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// seedFlows creates every flow defined in dir that does not exist yet.
// Existing flows are left untouched so operator edits survive restarts.
func seedFlows(ctx context.Context, logger *slog.Logger, flowService *services.FlowService, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read seed directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isFlowFile(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		doc, err := readFlowDocument(path)
		if err != nil {
			return err
		}

		err = models.ValidateFlowDocument(doc)
		if err != nil {
			return fmt.Errorf("invalid flow in %s: %w", path, err)
		}

		var req services.CreateFlowRequest

		err = json.Unmarshal(doc, &req)
		if err != nil {
			return fmt.Errorf("invalid flow in %s: %w", path, err)
		}

		id := models.FlowID(req.Name)

		_, err = flowService.Get(ctx, id)
		if err == nil {
			logger.DebugContext(ctx, "Seed flow already exists, skipping", "flow_id", id, "file", path)

			continue
		}

		if !store.IsFlowNotFound(err) {
			return err
		}

		created, err := flowService.Create(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to seed flow from %s: %w", path, err)
		}

		logger.InfoContext(ctx, "Seeded flow", "flow_id", created.ID, "file", path)
	}

	return nil
}
