package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/conneroisu/kbdebug/internal/version"
	"github.com/spf13/cobra"
)

var (
	versionFormat string
	versionShort  bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for kbdebug.

Examples:
  kbdebug version               # Version, commit and platform
  kbdebug version --detailed    # Every known build field
  kbdebug version --format json # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().Bool("detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	detailed, _ := cmd.Flags().GetBool("detailed")

	switch versionFormat {
	case "json":
		return writeVersionJSON(out)
	case "text":
		switch {
		case versionShort:
			_, err := fmt.Fprintln(out, version.GetShortVersion())
			return err
		case detailed:
			return writeVersionDetailed(out)
		default:
			return writeVersionDefault(out)
		}
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}
}

func writeVersionDefault(out io.Writer) error {
	info := version.GetBuildInfo()

	line := "kbdebug " + info.Version
	if info.GitCommit != "unknown" && len(info.GitCommit) >= 7 {
		line += " (" + info.GitCommit[:7] + ")"
	}
	if version.IsDirty() {
		line += " (dirty)"
	}

	_, err := fmt.Fprintf(out, "%s\nGo: %s\nPlatform: %s\n", line, info.GoVersion, info.Platform)
	return err
}

func writeVersionDetailed(out io.Writer) error {
	buildType := "development"
	if version.IsRelease() {
		buildType = "release"
	}
	_, err := fmt.Fprintf(out, "%s\nBuild type: %s\n", version.GetDetailedVersion(), buildType)
	return err
}

func writeVersionJSON(out io.Writer) error {
	info := version.GetBuildInfo()

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		*version.BuildInfo
		IsRelease bool `json:"is_release"`
		IsDirty   bool `json:"is_dirty"`
	}{info, version.IsRelease(), version.IsDirty()})
}
