package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"TickerPulse/internal/domain/repository"
)

type universeDoc struct {
	Tickers []string `yaml:"tickers"`
}

// UniverseFile persists the tracked symbols as a YAML document.
type UniverseFile struct {
	path string
	mu   sync.Mutex
}

func NewUniverseFile(path string) *UniverseFile {
	return &UniverseFile{path: path}
}

var _ repository.UniverseRepository = (*UniverseFile)(nil)

// Load returns nil when the file does not exist yet.
func (u *UniverseFile) Load(context.Context) ([]string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	b, err := os.ReadFile(u.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read universe: %w", err)
	}
	var doc universeDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse universe: %w", err)
	}
	return doc.Tickers, nil
}

func (u *UniverseFile) Save(_ context.Context, symbols []string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	b, err := yaml.Marshal(universeDoc{Tickers: symbols})
	if err != nil {
		return fmt.Errorf("encode universe: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(u.path), 0o755); err != nil {
		return fmt.Errorf("create universe dir: %w", err)
	}
	tmp := u.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write universe: %w", err)
	}
	if err := os.Rename(tmp, u.path); err != nil {
		return fmt.Errorf("replace universe: %w", err)
	}
	return nil
}
