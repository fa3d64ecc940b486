package rawstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xab-mack/solbench/internal/model"
)

// Store retains per-job raw analyzer payloads for debugging and for
// recovering outcomes if report serialization fails. Keys combine the
// artifact content hash with the analyzer name, so identical content never
// stores twice per analyzer.
type Store struct {
	dir string
}

func New(outDir string) (*Store, error) {
	dir := filepath.Join(outDir, "raw")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Put writes the payload and returns the retained path.
func (s *Store) Put(art model.Artifact, analyzer string, raw []byte) (string, error) {
	hash := strings.TrimPrefix(art.Hash, "0x")
	if len(hash) > 16 {
		hash = hash[:16]
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s-%s.out", hash, analyzer))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
