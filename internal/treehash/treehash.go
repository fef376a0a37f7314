// Package treehash computes a content digest of a directory tree. Two trees
// have the same digest when they hold the same paths with the same types,
// permissions, link targets and file contents; timestamps and inode
// identity are ignored, so a hard-linked duplicate hashes like its source.
package treehash

import (
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// Digest is a hex BLAKE3 digest
type Digest string

func (d Digest) String() string {
	return string(d)
}

// Dir hashes the tree at root. A symbolic link at root is followed.
func Dir(root string) (Digest, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", err
	}

	h := blake3.New()

	// filepath.WalkDir visits entries in lexical order
	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		mode := info.Mode()
		switch {
		case mode.IsDir():
			fmt.Fprintf(h, "d %o %s\x00", mode.Perm(), filepath.ToSlash(rel))
		case mode&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(h, "l %s\x00%s\x00", filepath.ToSlash(rel), target)
		case mode.IsRegular():
			sum, err := fileSum(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(h, "f %o %s\x00%s\x00", mode.Perm(), filepath.ToSlash(rel), sum)
		default:
			return fmt.Errorf("%s: unsupported file type %s", path, mode.Type())
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", root, err)
	}

	return Digest(hex.EncodeToString(h.Sum(nil))), nil
}

func fileSum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
