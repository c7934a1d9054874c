package helpers

import (
	"os"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/config"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var ciVars = []string{
	"CI",
	"JENKINS_HOME",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"CIRCLECI",
	"TRAVIS",
	"BUILDKITE",
	"DRONE",
	"TF_BUILD",         // Azure DevOps
	"BITBUCKET_COMMIT", // Bitbucket Pipelines
	"CODEBUILD_BUILD_ID",
	"TEAMCITY_VERSION",
	"CONTINUOUS_INTEGRATION",
}

// isRunningInCI checks if we're running in a CI/CD environment
func isRunningInCI() bool {
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// isInteractiveEnvironment reports whether a person is likely reading stdout.
func isInteractiveEnvironment(cfg *config.Config) bool {
	if cfg.CLI.Interactive {
		return true
	}
	if isRunningInCI() {
		return false
	}
	if !isTerminal(os.Stdout) {
		return false
	}
	term := os.Getenv("TERM")
	return term != "dumb" && term != ""
}

// ModeFor resolves the output mode from configuration: an explicit json or
// text wins, auto picks text on interactive terminals and JSON otherwise.
func ModeFor(cfg *config.Config) Mode {
	switch cfg.CLI.Output {
	case OutputJSON:
		return ModeJSON
	case OutputText:
		return ModeText
	}
	if isInteractiveEnvironment(cfg) {
		return ModeText
	}
	return ModeJSON
}

// DetectMode resolves the output mode of cmd from the configuration in its context.
func DetectMode(cmd *cobra.Command) Mode {
	return ModeFor(config.FromContext(cmd.Context()))
}

// UseColor reports whether text output may be styled.
func UseColor(cfg *config.Config) bool {
	if cfg.CLI.NoColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	if !isTerminal(os.Stdout) || isRunningInCI() {
		return false
	}
	term := os.Getenv("TERM")
	return term != "dumb" && term != ""
}
