/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/gpillon/wakeonlan/internal/registry"
)

// FileStore keeps the target list in a local JSON or YAML file.
// The format follows the file extension (.yaml/.yml means YAML).
type FileStore struct {
	Path string
}

// NewFileStore creates a new file-backed store
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the target list. A missing file yields an empty list.
func (s *FileStore) Load(ctx context.Context) ([]registry.Target, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}

	targets, err := s.decode(b)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.Path, err)
	}
	return targets, nil
}

// Save writes the target list, replacing the previous file atomically
func (s *FileStore) Save(ctx context.Context, targets []registry.Target) error {
	if targets == nil {
		targets = []registry.Target{}
	}

	b, err := s.encode(targets)
	if err != nil {
		return fmt.Errorf("failed to encode targets: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.Path, err)
	}
	return nil
}

func (s *FileStore) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(s.Path))
	return ext == ".yaml" || ext == ".yml"
}

func (s *FileStore) encode(targets []registry.Target) ([]byte, error) {
	if s.isYAML() {
		return yaml.Marshal(targets)
	}
	return json.MarshalIndent(targets, "", "  ")
}

func (s *FileStore) decode(b []byte) ([]registry.Target, error) {
	var targets []registry.Target
	if s.isYAML() {
		if err := yaml.Unmarshal(b, &targets); err != nil {
			return nil, err
		}
		return targets, nil
	}
	if err := json.Unmarshal(b, &targets); err != nil {
		return nil, err
	}
	return targets, nil
}
