package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/codes"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/version"
)

// newRootCmd builds the command tree
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rpmdistro-gitoverlay",
		Short: "Build RPMs from an overlay of git repositories",
		Long: `Track upstream git repositories on top of a base distribution: resolve
the overlay into a snapshot of pinned revisions, then incrementally build the
changed components and publish them as a yum repository.

` + exitStatusHelp(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	rootCmd.PersistentFlags().StringP("workdir", "C", "", "Working directory (default: current directory)")
	rootCmd.PersistentFlags().String("config", "", "Configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write run metrics to this node-exporter textfile")

	rootCmd.AddCommand(newInitCmd(), newResolveCmd(), newBuildCmd(), newHistoryCmd())

	return rootCmd
}

// Execute runs the command line and exits with the mapped status
func Execute() {
	os.Exit(executeArgs(os.Args[1:], os.Stdout, os.Stderr))
}

func executeArgs(args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
	if err == nil {
		return codes.ExitSuccess
	}

	code := codes.ExitCode(err)
	if codes.IsSuccess(code) {
		fmt.Fprintf(stderr, "%v (exit status %d)\n", err, code)
	} else {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}

	return code
}

// exitStatusHelp lists the exit statuses for the help text
func exitStatusHelp() string {
	statuses := make([]int, 0, len(codes.ExitCodes))
	for code := range codes.ExitCodes {
		statuses = append(statuses, code)
	}
	sort.Ints(statuses)

	var b strings.Builder
	b.WriteString("Exit status:\n")
	for _, code := range statuses {
		fmt.Fprintf(&b, "  %-3d %s\n", code, codes.GetErrorMessage(code))
	}

	return strings.TrimSuffix(b.String(), "\n")
}
