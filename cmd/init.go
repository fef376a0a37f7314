package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const starterOverlay = `# Components are built in order, each from an upstream git repository
# and, optionally, a dist-git repository holding its spec file.
aliases:
  - name: github
    url: https://github.com/
  - name: fedorapkgs
    url: https://src.fedoraproject.org/rpms/

root:
  mock: fedora-rawhide-x86_64

components: []
#  - src: github:ostreedev/ostree
#    distgit:
#      src: fedorapkgs:ostree
#      patches: drop
`

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a working directory",
		Long:  `Create the src/ mirror directory and a starter overlay.yml.`,
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	layout := a.run.Layout

	if err := os.MkdirAll(layout.Src(), 0o755); err != nil {
		return fmt.Errorf("failed to create src/: %w", err)
	}

	overlayPath := layout.Overlay()
	if _, err := os.Stat(overlayPath); err == nil {
		a.log.WithField("path", overlayPath).Info("Keeping existing overlay")
		return nil
	}

	if err := os.WriteFile(overlayPath, []byte(starterOverlay), 0o644); err != nil {
		return fmt.Errorf("failed to write overlay: %w", err)
	}

	a.log.WithField("path", layout.Root).Info("Initialized working directory")

	return nil
}
