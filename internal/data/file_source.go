package data

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/mohamedkhairy/strikeview/internal/symbols"
)

// FileSource replays saved proxy responses from a directory. It looks for
// <SYMBOL>_<EXPIRY>.json first, then <SYMBOL>.json.
type FileSource struct {
	name  string
	dir   string
	table *symbols.Table
}

// NewFileSource creates a file source rooted at config.Dir
func NewFileSource(config SourceConfig) (Source, error) {
	dir := strings.TrimSpace(config.Dir)
	if dir == "" {
		return nil, models.NewConfigError("SOURCE_DIR", config.Dir, "required for file source")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, models.NewConfigError("SOURCE_DIR", dir, err.Error())
	}
	if !info.IsDir() {
		return nil, models.NewConfigError("SOURCE_DIR", dir, "not a directory")
	}
	return &FileSource{name: "file", dir: dir, table: config.Symbols}, nil
}

// GetName returns the source name
func (f *FileSource) GetName() string {
	return f.name
}

// Fetch reads the payload file for req
func (f *FileSource) Fetch(ctx context.Context, req FetchRequest) (*RawPayload, error) {
	if err := req.Validate(f.table); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := []string{req.Symbol + ".json"}
	if req.Expiry != "" {
		candidates = append([]string{req.Symbol + "_" + req.Expiry + ".json"}, candidates...)
	}

	for _, name := range candidates {
		path := filepath.Join(f.dir, filepath.Base(name))
		body, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return &RawPayload{
			Exchange:  req.Exchange,
			Body:      body,
			Source:    f.name,
			FetchedAt: time.Now(),
		}, nil
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrPayloadNotFound, req.Symbol, f.dir)
}
