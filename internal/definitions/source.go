package definitions

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-bsm/internal/models"
)

// Source yields the complete, resolved set of business service definitions.
type Source interface {
	Load(ctx context.Context) ([]models.BusinessServiceDefinition, error)
}

// Committer is implemented by sources that want to know when the definitions from their
// latest Load were accepted by the engine.
type Committer interface {
	Commit(ctx context.Context) error
}

// Document is the on-disk and on-wire shape of a definition set.
type Document struct {
	BusinessServices []models.BusinessServiceDefinition `yaml:"businessServices" json:"businessServices"`
}

// FileSource reads definitions from a YAML document on disk.
type FileSource struct {
	path string
}

// NewFileSource constructs a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load re-reads the file on every call.
func (s *FileSource) Load(ctx context.Context) ([]models.BusinessServiceDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.path == "" {
		return nil, errors.New("definitions path not configured")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse definitions %s: %w", s.path, err)
	}
	return doc.BusinessServices, nil
}
