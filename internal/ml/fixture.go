package ml

import (
	"context"
	"fmt"
	"os"
)

// FixtureModel replays a recorded backend response from disk. The file is re-read on every
// call so a response can be edited while the server runs.
type FixtureModel struct {
	path string
}

func NewFixtureModel(path string) *FixtureModel {
	return &FixtureModel{path: path}
}

func (m *FixtureModel) Name() string { return "fixture:" + m.path }

// Load checks that the fixture file is readable
func (m *FixtureModel) Load(ctx context.Context) error {
	if _, err := os.Stat(m.path); err != nil {
		return fmt.Errorf("fixture not readable: %w", err)
	}
	return nil
}

func (m *FixtureModel) Generate(ctx context.Context, imageData []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return "", fmt.Errorf("failed to read fixture: %w", err)
	}
	return string(data), nil
}

func (m *FixtureModel) Close() error { return nil }
