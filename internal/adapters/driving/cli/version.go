package cli

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	versionShort bool
	versionJSON  bool
)

// Replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// buildDetails describes the running binary.
type buildDetails struct {
	Version  string `json:"version"`
	Commit   string `json:"commit,omitempty"`
	Built    string `json:"built,omitempty"`
	Modified bool   `json:"modified,omitempty"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the version and build details",
	Annotations: map[string]string{noServices: "true"},
	RunE:        runVersion,
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print the version number only")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(versionCmd)
}

func currentBuild() buildDetails {
	details := buildDetails{
		Version:  version,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	info, ok := readBuildInfo()
	if !ok {
		return details
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			details.Commit = setting.Value
			if len(details.Commit) > 12 {
				details.Commit = details.Commit[:12]
			}
		case "vcs.time":
			details.Built = setting.Value
		case "vcs.modified":
			details.Modified = setting.Value == "true"
		}
	}
	return details
}

func runVersion(cmd *cobra.Command, _ []string) error {
	if versionShort {
		cmd.Println(version)
		return nil
	}
	details := currentBuild()
	if versionJSON {
		return printJSON(cmd, details)
	}

	cmd.Printf("lexindex version %s\n", details.Version)
	if details.Commit != "" {
		commit := details.Commit
		if details.Modified {
			commit += " (modified)"
		}
		cmd.Printf("  commit:   %s\n", commit)
	}
	if details.Built != "" {
		cmd.Printf("  built:    %s\n", details.Built)
	}
	cmd.Printf("  go:       %s\n", details.Go)
	cmd.Printf("  platform: %s\n", details.Platform)
	return nil
}
