// Package srcsnap produces source snapshots: a packaging directory holding a
// rewritten spec and an archive of the upstream checkout, ready for a source
// package build.
package srcsnap

import (
	"strings"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/mirror"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/overlay"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/utils"
)

// Ext is the suffix of every source snapshot directory
const Ext = ".srcsnap"

// Descriptor returns "tag-rev", or the bare rev without a tag
func Descriptor(tag, rev string) string {
	return mirror.Description{Tag: tag, Revision: rev}.Descriptor()
}

// TagPrefixes are the prefixes dropped from an upstream tag to get a version
func TagPrefixes(pkgname string) []string {
	upper := strings.ToUpper(pkgname)

	return []string{"v", pkgname + "-", pkgname + "_", upper + "-", upper + "_"}
}

// VersionRelease derives the package version and release. upstreamTag and
// upstreamRev are empty for a component without upstream source, distgitDesc
// is empty without a dist-git.
func VersionRelease(c overlay.Component, upstreamTag, upstreamRev, distgitDesc string) (string, string) {
	release := upstreamRev
	if distgitDesc != "" {
		if release != "" {
			release += "."
		}
		release += strings.ReplaceAll(distgitDesc, "-", ".")
	}

	if c.OverrideVersion != "" {
		return c.OverrideVersion, release
	}

	version := upstreamTag
	if version == "" {
		version = "0"
	}

	version = utils.StripPrefixes(version, TagPrefixes(c.PkgName)...)

	return strings.ReplaceAll(version, "-", "."), release
}

// ArtifactName returns the snapshot directory name for a package build
func ArtifactName(pkgname, version, release string) string {
	return pkgname + "-" + version + "-" + release + Ext
}

// Dirname returns the build output directory for a snapshot artifact
func Dirname(artifact string) string {
	return strings.TrimSuffix(artifact, Ext)
}
