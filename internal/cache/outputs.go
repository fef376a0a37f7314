package cache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// CollectOutputs lists the files under dir, relative to it.
// A missing directory has no outputs.
func CollectOutputs(dir string) ([]string, error) {
	var outputs []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		outputs = append(outputs, rel)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Nothing built there
		}

		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	sort.Strings(outputs)

	return outputs, nil
}
