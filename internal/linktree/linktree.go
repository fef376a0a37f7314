// Package linktree duplicates directory trees cheaply.
//
// The default duplicator behaves like "cp -al": directories are recreated,
// regular files are hard-linked so the new tree shares inode data with the
// old one, and symbolic links are recreated with the same target. Callers
// that cannot rely on hard links (other filesystems, other platforms) use
// Copier, or HardLinker with FallbackCopy.
package linktree

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Duplicator creates dst as a duplicate of src. dst must not exist.
type Duplicator interface {
	Duplicate(src, dst string) error
}

// HardLinker duplicates trees by hard-linking regular files
type HardLinker struct {
	// FallbackCopy copies a file when it cannot be linked (e.g. across devices)
	FallbackCopy bool
}

// Duplicate hard-links src into dst
func (h HardLinker) Duplicate(src, dst string) error {
	return duplicate(src, dst, h.linkFile)
}

func (h HardLinker) linkFile(src, dst string) error {
	err := os.Link(src, dst)
	if err == nil || !h.FallbackCopy {
		return err
	}

	return copyFile(src, dst)
}

// Copier duplicates trees by copying file content
type Copier struct{}

// Duplicate copies src into dst
func (Copier) Duplicate(src, dst string) error {
	return duplicate(src, dst, copyFile)
}

func duplicate(src, dst string, file func(src, dst string) error) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("destination %s already exists", dst)
	}

	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}

		return duplicateEntry(src, dst, info, file)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		return duplicateEntry(path, filepath.Join(dst, rel), info, file)
	})
}

func duplicateEntry(src, dst string, info fs.FileInfo, file func(src, dst string) error) error {
	mode := info.Mode()

	switch {
	case mode.IsDir():
		if err := os.Mkdir(dst, 0o700); err != nil {
			return err
		}

		return os.Chmod(dst, mode.Perm())
	case mode&fs.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}

		return os.Symlink(target, dst)
	case mode.IsRegular():
		if err := file(src, dst); err != nil {
			return fmt.Errorf("failed to duplicate %s: %w", src, err)
		}

		return nil
	default:
		return fmt.Errorf("unsupported file type %s: %s", mode.Type(), src)
	}
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}

	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}

	// Preserve file permissions
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	return os.Chmod(dst, srcInfo.Mode())
}
