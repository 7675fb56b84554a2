package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// jsonProvider loads units from pre-dumped JSON syntax files (one Unit per
// file, produced by an external parser front end). It is the reference
// Provider implementation and the one CI fixtures use.
type jsonProvider struct{}

func init() {
	RegisterProvider("json", func() Provider { return jsonProvider{} })
}

func (jsonProvider) Name() string { return "json" }

func (jsonProvider) Match(path string) bool {
	return strings.HasSuffix(path, ".cs.json")
}

func (jsonProvider) Parse(ctx context.Context, path string) (*Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read unit: %w", err)
	}
	var unit Unit
	if err := json.Unmarshal(data, &unit); err != nil {
		return nil, fmt.Errorf("unmarshal unit: %w", err)
	}
	if unit.Path == "" {
		unit.Path = strings.TrimSuffix(path, ".json")
	}
	return &unit, nil
}
