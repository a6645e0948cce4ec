package version

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestVersionCommandPrintsFullVersion checks the attached subcommand output.
func TestVersionCommandPrintsFullVersion(t *testing.T) {
	t.Parallel()

	root := &cobra.Command{Use: "opsguard"}
	AttachCobraVersionCommand(root)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())

	require.Contains(t, out.String(), "opsguard dev (commit: unknown)")
}

// TestGetReportsBuildMetadata checks the defaults and the Go runtime version.
func TestGetReportsBuildMetadata(t *testing.T) {
	t.Parallel()

	info := Get()
	require.Equal(t, "dev", info.Version)
	require.Equal(t, "unknown", info.Commit)
	require.Equal(t, runtime.Version(), info.GoVersion)
	require.Contains(t, Full(), runtime.Version())
}
