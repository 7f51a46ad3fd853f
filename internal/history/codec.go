package history

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/agridoc/agridoc/internal/models"
)

// currentVersion is written into every envelope. Version 0 is a bare JSON array of items;
// an object without a version field is not a valid history.
const currentVersion = 1

type envelope struct {
	Version int                  `json:"version"`
	Items   []models.HistoryItem `json:"items"`
}

func encode(items []models.HistoryItem) ([]byte, error) {
	if items == nil {
		items = []models.HistoryItem{}
	}
	data, err := json.Marshal(envelope{Version: currentVersion, Items: items})
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	return data, nil
}

func decode(raw []byte) ([]models.HistoryItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty blob")
	}

	switch trimmed[0] {
	case '[':
		var items []models.HistoryItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("version 0: %w", err)
		}
		return items, nil
	case '{':
		var env struct {
			Version *int                 `json:"version"`
			Items   []models.HistoryItem `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, err
		}
		switch {
		case env.Version == nil:
			return nil, fmt.Errorf("envelope has no version")
		case *env.Version < 1, *env.Version > currentVersion:
			return nil, fmt.Errorf("unsupported history version %d", *env.Version)
		}
		return env.Items, nil
	default:
		return nil, fmt.Errorf("unexpected leading byte %q", trimmed[0])
	}
}
