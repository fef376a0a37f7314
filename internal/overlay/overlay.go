// Package overlay models the declarative overlay description and its
// expansion into concrete components with pinned revisions.
package overlay

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/codes"
)

// Overlay is the content of overlay.yml
type Overlay struct {
	Aliases    []Alias     `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Root       Root        `yaml:"root" json:"root"`
	Components []Component `yaml:"components" json:"components"`
}

// Alias maps "name:path" sources to a URL prefix
type Alias struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// Root configures the build root
type Root struct {
	Mock string `yaml:"mock,omitempty" json:"mock,omitempty"`
}

// Component is one buildable unit. The same type describes the declared
// component and its expanded form in the snapshot.
type Component struct {
	Name            string   `yaml:"name,omitempty" json:"name,omitempty"`
	PkgName         string   `yaml:"pkgname,omitempty" json:"pkgname,omitempty"`
	Src             string   `yaml:"src,omitempty" json:"src,omitempty"`
	Branch          string   `yaml:"branch,omitempty" json:"branch,omitempty"`
	Tag             string   `yaml:"tag,omitempty" json:"tag,omitempty"`
	Revision        string   `yaml:"revision,omitempty" json:"revision,omitempty"`
	Distgit         *Distgit `yaml:"distgit,omitempty" json:"distgit,omitempty"`
	OverrideVersion string   `yaml:"override-version,omitempty" json:"override-version,omitempty"`
	// Srcsnap is the derived source snapshot name, set during resolution
	Srcsnap string `yaml:"srcsnap,omitempty" json:"srcsnap,omitempty"`
}

// Distgit locates the packaging metadata of a component
type Distgit struct {
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
	Src      string `yaml:"src,omitempty" json:"src,omitempty"`
	Branch   string `yaml:"branch,omitempty" json:"branch,omitempty"`
	Revision string `yaml:"revision,omitempty" json:"revision,omitempty"`
	Patches  string `yaml:"patches,omitempty" json:"patches,omitempty"`
}

// Identity is the cache and lookup key of a component: the dist-git name
// when there is one, the package name otherwise.
func (c Component) Identity() string {
	if c.Distgit != nil && c.Distgit.Name != "" {
		return c.Distgit.Name
	}

	return c.PkgName
}

// Clone returns a deep copy
func (c Component) Clone() Component {
	if c.Distgit != nil {
		dg := *c.Distgit
		c.Distgit = &dg
	}

	return c
}

// Expanded is the fully resolved overlay written to snapshot.json
type Expanded struct {
	Root       Root        `json:"root"`
	Components []Component `json:"components"`
}

// Load reads an overlay from a YAML or JSON (with comments) file
func Load(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, codes.ConfigErrorf("overlay file %s not found", path)
		}

		return nil, err
	}

	var ov *Overlay
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		ov, err = ParseJSON(data)
	default:
		ov, err = ParseYAML(data)
	}

	if err != nil {
		return nil, codes.ConfigErrorf("%s: %v", filepath.Base(path), err)
	}

	return ov, nil
}

// ParseYAML decodes an overlay, rejecting unknown keys
func ParseYAML(data []byte) (*Overlay, error) {
	var ov Overlay

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ov); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return &ov, nil
}

// ParseJSON decodes an overlay written as JSON, comments and trailing
// commas allowed, rejecting unknown keys
func ParseJSON(data []byte) (*Overlay, error) {
	var ov Overlay

	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ov); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return &ov, nil
}
