package version

import (
	"fmt"
	"io"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/crmarques/mobilectl/internal/cli/common"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

type info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
}

func NewCommand(globalFlags *common.GlobalFlags) *cobra.Command {
	var require string

	command := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(require) != "" {
				if err := CheckConstraint(Version, require); err != nil {
					return err
				}
			}

			value := info{Version: Version, Commit: Commit, BuildDate: BuildDate}
			return common.WriteQueriedOutput(cmd, common.ResolveOutputFormat(globalFlags), globalFlags.Query, value, func(w io.Writer, item info) error {
				_, err := fmt.Fprintf(w, "%s (%s) %s\n", item.Version, item.Commit, item.BuildDate)
				return err
			})
		},
	}
	command.Flags().StringVar(&require, "require", "", "fail unless the CLI version satisfies this constraint, e.g. \">= 1.2\"")

	return command
}

// CheckConstraint reports a validation error when current does not satisfy
// the semantic version constraint.
func CheckConstraint(current string, constraint string) error {
	parsedConstraint, err := semver.NewConstraint(constraint)
	if err != nil {
		return common.ValidationError(fmt.Sprintf("invalid version constraint %q", constraint), err)
	}

	parsedVersion, err := semver.NewVersion(strings.TrimSpace(current))
	if err != nil {
		return common.ValidationError(fmt.Sprintf("version %q is not a release version", current), err)
	}

	if ok, reasons := parsedConstraint.Validate(parsedVersion); !ok {
		message := fmt.Sprintf("version %s does not satisfy %q", parsedVersion, constraint)
		if len(reasons) > 0 {
			message += ": " + reasons[0].Error()
		}
		return common.ValidationError(message, nil)
	}
	return nil
}
