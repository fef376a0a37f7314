package overlay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/codes"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/specfile"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/utils"
)

// DefaultBranch is tracked when a source names no branch, tag or revision
const DefaultBranch = "master"

// ExpandAlias rewrites "alias:path" using the overlay aliases
func (o *Overlay) ExpandAlias(src string) string {
	i := strings.Index(src, ":")
	if i <= 0 {
		return src
	}

	name, rest := src[:i], src[i+1:]
	for _, alias := range o.Aliases {
		if alias.Name == name {
			return alias.URL + rest
		}
	}

	return src
}

// Expand applies aliases and defaults to every component and validates the
// result. Revisions are not resolved.
func (o *Overlay) Expand() ([]Component, error) {
	components := make([]Component, 0, len(o.Components))
	seen := make(map[string]int)

	for i, declared := range o.Components {
		c, err := o.expandComponent(declared.Clone())
		if err != nil {
			return nil, componentError(i, c, err)
		}

		id := c.Identity()
		if prev, ok := seen[id]; ok {
			return nil, codes.ConfigErrorf("components %d and %d share the identity '%s'", prev, i, id)
		}
		seen[id] = i

		components = append(components, c)
	}

	return components, nil
}

func (o *Overlay) expandComponent(c Component) (Component, error) {
	if c.Src == "" && c.Distgit == nil {
		return c, codes.ConfigErrorf("neither src nor distgit given")
	}

	if c.Src != "" {
		c.Src = o.ExpandAlias(c.Src)
		if c.Branch == "" && c.Tag == "" && c.Revision == "" {
			c.Branch = DefaultBranch
		}
	}

	if c.Name == "" {
		switch {
		case c.Src != "":
			c.Name = utils.RepoBasename(c.Src)
		case c.Distgit.Name != "":
			c.Name = c.Distgit.Name
		default:
			c.Name = utils.RepoBasename(o.ExpandAlias(c.Distgit.Src))
		}
	}

	if c.Name == "" {
		return c, codes.MissingKey("name")
	}

	if dg := c.Distgit; dg != nil {
		if dg.Src == "" {
			return c, codes.MissingKey("distgit.src")
		}

		dg.Src = o.ExpandAlias(dg.Src)
		if dg.Name == "" {
			dg.Name = c.Name
		}

		if dg.Branch == "" && dg.Revision == "" {
			dg.Branch = DefaultBranch
		}

		if _, err := specfile.ParsePatchPolicy(dg.Patches); err != nil {
			return c, err
		}
	}

	if c.PkgName == "" {
		if c.Distgit != nil {
			c.PkgName = c.Distgit.Name
		} else {
			c.PkgName = c.Name
		}
	}

	return c, nil
}

func componentError(i int, c Component, err error) error {
	msg := err.Error()

	var cfgErr *codes.ConfigError
	if errors.As(err, &cfgErr) {
		msg = cfgErr.Msg
	}

	label := fmt.Sprintf("#%d", i)
	if c.Name != "" {
		label = c.Name
	}

	return codes.ConfigErrorf("component '%s': %s", label, msg)
}
