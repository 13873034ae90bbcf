package mobile

import (
	"fmt"
	"io"

	"github.com/crmarques/mobilectl/internal/cli/common"
	mobiledomain "github.com/crmarques/mobilectl/mobile"
	"github.com/spf13/cobra"
)

func newScaleCommand(env *commandEnv) *cobra.Command {
	command := &cobra.Command{
		Use:   "scale",
		Short: "Manage the scale of a mobile service",
		Args:  cobra.NoArgs,
	}
	command.AddCommand(newScaleShowCommand(env), newScaleChangeCommand(env))
	return command
}

func newScaleShowCommand(env *commandEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "show [service]",
		Short: "Show the scale settings of a mobile service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			service, client, err := env.serviceAndClient(command, args)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Getting scale settings")
			_, webspace, err := client.ServiceWebspace(command.Context(), service)
			spinner.Stop()
			if err != nil {
				return err
			}

			return writeResult(env, command, webspace, func(w io.Writer, value mobiledomain.Webspace) error {
				renderWebspace(w, value)
				return nil
			})
		},
	}
}

func renderWebspace(w io.Writer, webspace mobiledomain.Webspace) {
	common.RenderKeyValues(w,
		"webspace", valueOrNA(webspace.Name),
		"computeMode", mobiledomain.ComputeModeView(webspace.ComputeMode),
		"numberOfInstances", webspace.NumberOfInstances,
	)
}

func newScaleChangeCommand(env *commandEnv) *cobra.Command {
	var (
		computeMode string
		instances   int
	)

	command := &cobra.Command{
		Use:   "change [service]",
		Short: "Change the scale settings of a mobile service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			request := mobiledomain.ScaleRequest{NumberOfInstances: instances}
			if computeMode != "" {
				mode, err := mobiledomain.ParseComputeMode(computeMode)
				if err != nil {
					return err
				}
				request.ComputeMode = mode
			}
			if err := request.Validate(); err != nil {
				return err
			}

			service, client, err := env.serviceAndClient(command, args)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Rescaling the mobile service")
			webspace, changed, err := client.Rescale(command.Context(), service, request)
			spinner.Stop()
			if err != nil {
				return err
			}
			if !changed {
				env.info(command, "Current scale settings of the service already match the requested settings. No changes are made.")
			}

			return writeResult(env, command, webspace, func(w io.Writer, value mobiledomain.Webspace) error {
				if !changed {
					return nil
				}
				_, err := fmt.Fprintf(w, "Scale changed to %s with %d instances.\n", mobiledomain.ComputeModeView(value.ComputeMode), value.NumberOfInstances)
				return err
			})
		},
	}

	command.Flags().StringVarP(&computeMode, "compute-mode", "c", "", "Free or Reserved")
	command.Flags().IntVarP(&instances, "instances", "i", 0, "number of instances in Reserved mode")
	common.RegisterFlagValueCompletions(command, "compute-mode", []string{"Free", "Reserved"})
	return command
}
