package cache

import "github.com/devopstoday11/rpmdistro-gitoverlay/internal/fingerprint"

// Entry represents a cached build result. Fields are declared in key order
// so the saved objects are sorted like the outer mapping.
type Entry struct {
	// Dirname is the output directory, relative to the generation root
	Dirname string `json:"dirname"`

	// Fingerprint of the component description the outputs were built from
	Fingerprint fingerprint.Digest `json:"hashv0"`
}
