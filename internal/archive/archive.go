// Package archive creates compressed source tarballs from checkouts.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Compression identifies the tarball compression
type Compression string

const (
	Gzip Compression = "gzip"
	XZ   Compression = "xz"
)

// ParseCompression parses a compression name. Empty means gzip.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", Gzip:
		return Gzip, nil
	case XZ:
		return XZ, nil
	default:
		return "", fmt.Errorf("unknown archive compression: %q", name)
	}
}

// Ext returns the file extension for the compression
func (c Compression) Ext() string {
	if c == XZ {
		return ".tar.xz"
	}

	return ".tar.gz"
}

// vcsNames are skipped at any depth, as with "tar --exclude-vcs"
var vcsNames = map[string]bool{
	".git":           true,
	".gitignore":     true,
	".gitattributes": true,
	".gitmodules":    true,
	".svn":           true,
	".hg":            true,
	".hgignore":      true,
	".hgtags":        true,
	".bzr":           true,
	".bzrignore":     true,
	"CVS":            true,
	".cvsignore":     true,
	"_darcs":         true,
}

// Write archives the contents of srcDir into output with every entry below
// prefix/. The file appears at output only once it is complete.
func Write(srcDir, prefix, output string, c Compression) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	zw, err := compressor(tmp, c)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(zw)
	if err := addTree(tw, srcDir, prefix); err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), output)
}

func compressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case "", Gzip:
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	case XZ:
		return xz.NewWriter(w)
	default:
		return nil, fmt.Errorf("unknown archive compression: %q", c)
	}
}

func addTree(tw *tar.Writer, srcDir, prefix string) error {
	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		if rel != "." && vcsNames[d.Name()] {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		name := prefix
		if rel != "." {
			name = prefix + "/" + filepath.ToSlash(rel)
		}
		if info.IsDir() {
			name += "/"
		}

		hdr.Name = name
		hdr.Uid, hdr.Gid = 0, 0
		hdr.Uname, hdr.Gname = "", ""

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)

		return err
	})
}
