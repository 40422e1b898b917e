// Package qconfig loads a compiler.Config document from disk or an
// io.Reader, the way the teacher's cmd/db.go and cmd/migrate.go load their
// own on-disk JSON before handing it to an internal package.
package qconfig

import (
	"fmt"
	"io"
	"os"

	"github.com/markb/sqlcompile/internal/compiler"
)

// Load reads a Config document from path and normalizes it.
func Load(path string) (*compiler.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return LoadReader(data)
}

// LoadReader normalizes an already-read Config document. Kept distinct from
// Load so callers reading from stdin (via ReadAll) don't need a temp file.
func LoadReader(data []byte) (*compiler.Config, error) {
	cfg, err := compiler.NormalizeConfig(data)
	if err != nil {
		return nil, fmt.Errorf("normalizing config: %w", err)
	}
	return cfg, nil
}

// ReadAll reads the full contents of r, for callers that want to pass
// stdin into LoadReader.
func ReadAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config stream: %w", err)
	}
	return data, nil
}
