package overlay

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/codes"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/mirror"
)

// Override substitutes the source of one component
type Override struct {
	// GitURL selects the component whose src equals it
	GitURL string
	// GitBranch tracks a different branch
	GitBranch string
	// RepoFrom pulls the revision from a local repository
	RepoFrom string
	// RepoFromRev pins the revision expected from RepoFrom
	RepoFromRev string
}

// Active reports whether an override was requested
func (o Override) Active() bool {
	return o.GitURL != ""
}

// Validate rejects override options given without a target
func (o Override) Validate() error {
	if o.GitURL == "" && (o.GitBranch != "" || o.RepoFrom != "" || o.RepoFromRev != "") {
		return codes.ConfigErrorf("override options require --override-giturl")
	}

	if o.RepoFromRev != "" && o.RepoFrom == "" {
		return codes.ConfigErrorf("--override-gitrepo-from-rev requires --override-gitrepo-from")
	}

	return nil
}

// ResolveOptions are threaded from the command line to the resolver
type ResolveOptions struct {
	// FetchAll fetches every mirror before resolving
	FetchAll bool
	// Fetch lists components (name, pkgname, identity or src) to fetch
	Fetch    []string
	Override Override
}

func (o ResolveOptions) shouldFetch(c Component, src string) bool {
	if o.FetchAll {
		return true
	}

	for _, key := range []string{c.Name, c.PkgName, c.Identity(), src} {
		if key != "" && slices.Contains(o.Fetch, key) {
			return true
		}
	}

	return false
}

// Resolver turns a declarative overlay into an expanded one
type Resolver interface {
	Resolve(ctx context.Context, ov *Overlay, opts ResolveOptions) (*Expanded, error)
}

// MirrorResolver pins revisions through a source mirror
type MirrorResolver struct {
	Mirror mirror.Mirror
	Log    logrus.FieldLogger
}

// NewMirrorResolver creates a resolver using m
func NewMirrorResolver(m mirror.Mirror, log logrus.FieldLogger) *MirrorResolver {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &MirrorResolver{Mirror: m, Log: log}
}

// Resolve expands ov and pins every upstream and dist-git revision. It
// returns codes.ErrOverrideNotApplicable when an override names a source no
// component uses.
func (r *MirrorResolver) Resolve(ctx context.Context, ov *Overlay, opts ResolveOptions) (*Expanded, error) {
	if err := opts.Override.Validate(); err != nil {
		return nil, err
	}

	components, err := ov.Expand()
	if err != nil {
		return nil, err
	}

	target := -1
	if opts.Override.Active() {
		url := ov.ExpandAlias(opts.Override.GitURL)
		target = slices.IndexFunc(components, func(c Component) bool {
			return c.Src != "" && c.Src == url
		})

		if target < 0 {
			return nil, fmt.Errorf("%s: %w", opts.Override.GitURL, codes.ErrOverrideNotApplicable)
		}

		if opts.Override.GitBranch != "" {
			c := &components[target]
			c.Branch, c.Tag, c.Revision = opts.Override.GitBranch, "", ""
		}
	}

	for i := range components {
		c := &components[i]
		log := r.Log.WithField("component", c.Name)

		if c.Src != "" {
			if err := r.resolveUpstream(ctx, c, opts, i == target); err != nil {
				return nil, fmt.Errorf("component '%s': %w", c.Name, err)
			}
			log.WithField("revision", c.Revision).Debug("Resolved upstream")
		}

		if dg := c.Distgit; dg != nil {
			if err := r.Mirror.Ensure(ctx, dg.Src, opts.shouldFetch(*c, dg.Src)); err != nil {
				return nil, fmt.Errorf("component '%s': %w", c.Name, err)
			}

			ref := dg.Revision
			if ref == "" {
				ref = dg.Branch
			}

			rev, err := r.Mirror.ResolveRef(ctx, dg.Src, ref)
			if err != nil {
				return nil, fmt.Errorf("component '%s': %w", c.Name, err)
			}
			dg.Revision = rev
			log.WithField("revision", rev).Debug("Resolved dist-git")
		}
	}

	return &Expanded{Root: ov.Root, Components: components}, nil
}

func (r *MirrorResolver) resolveUpstream(ctx context.Context, c *Component, opts ResolveOptions, overridden bool) error {
	if err := r.Mirror.Ensure(ctx, c.Src, overridden || opts.shouldFetch(*c, c.Src)); err != nil {
		return err
	}

	if overridden && opts.Override.RepoFrom != "" {
		rev, err := r.Mirror.FetchFrom(ctx, c.Src, opts.Override.RepoFrom)
		if err != nil {
			return err
		}

		if opts.Override.RepoFromRev != "" {
			if rev, err = r.Mirror.ResolveRef(ctx, c.Src, opts.Override.RepoFromRev); err != nil {
				return err
			}
		}

		c.Revision = rev
		r.Log.WithFields(logrus.Fields{"component": c.Name, "from": opts.Override.RepoFrom}).Info("Overriding revision")

		return nil
	}

	ref := c.Revision
	switch {
	case ref != "":
	case c.Tag != "":
		ref = c.Tag
	default:
		ref = c.Branch
	}

	rev, err := r.Mirror.ResolveRef(ctx, c.Src, ref)
	if err != nil {
		return err
	}
	c.Revision = rev

	return nil
}
