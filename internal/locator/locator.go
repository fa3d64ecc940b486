package locator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/xab-mack/solbench/internal/model"
)

// ErrNoArtifacts means the corpus directory held nothing matching the
// selected mode. This is fatal: an empty run would only produce an empty
// report and hide an operator mistake.
var ErrNoArtifacts = errors.New("no artifacts found")

func extFor(mode model.Mode) string {
	if mode == model.ModeRuntime {
		return ".hex"
	}
	return ".sol"
}

// Enumerate walks root and returns a deduplicated, path-sorted artifact list
// for the given mode. Symlinks are not followed. Unreadable files and
// undecodable bytecode are skipped and returned as warnings.
func Enumerate(root string, mode model.Mode) ([]model.Artifact, []string, error) {
	ext := extFor(mode)
	var (
		arts  []model.Artifact
		warns []string
		seen  = make(map[string]bool)
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			warns = append(warns, fmt.Sprintf("skipping %s: %v", path, err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			warns = append(warns, fmt.Sprintf("skipping symlink %s", path))
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ext) {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			warns = append(warns, fmt.Sprintf("unreadable %s: %v", path, err))
			return nil
		}
		if mode == model.ModeRuntime {
			if _, derr := decodeBytecode(b); derr != nil {
				warns = append(warns, fmt.Sprintf("invalid bytecode %s: %v", path, derr))
				return nil
			}
		}
		hash := crypto.Keccak256Hash(b).Hex()
		if seen[hash] {
			return nil // duplicate content, first path wins
		}
		seen[hash] = true
		arts = append(arts, model.Artifact{
			Path: path,
			Mode: mode,
			Hash: hash,
			Size: int64(len(b)),
		})
		return nil
	})
	if err != nil {
		return nil, warns, err
	}
	if len(arts) == 0 {
		return nil, warns, fmt.Errorf("%w: %s (*%s)", ErrNoArtifacts, root, ext)
	}
	sort.Slice(arts, func(i, j int) bool { return arts[i].Path < arts[j].Path })
	return arts, warns, nil
}

// decodeBytecode validates a runtime artifact: hex with or without a 0x
// prefix, trailing whitespace tolerated.
func decodeBytecode(b []byte) ([]byte, error) {
	s := strings.TrimSpace(string(b))
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}
