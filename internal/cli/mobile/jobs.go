package mobile

import (
	"fmt"
	"io"
	"time"

	"github.com/crmarques/mobilectl/internal/cli/common"
	mobiledomain "github.com/crmarques/mobilectl/mobile"
	"github.com/spf13/cobra"
)

const jobLabel = "job name"

func newJobCommand(env *commandEnv) *cobra.Command {
	command := &cobra.Command{
		Use:   "job",
		Short: "Manage mobile service scheduled jobs",
		Args:  cobra.NoArgs,
	}
	command.AddCommand(
		newJobListCommand(env),
		newJobCreateCommand(env),
		newJobUpdateCommand(env),
		newJobDeleteCommand(env),
	)
	return command
}

func (e *commandEnv) serviceJobAndClient(command *cobra.Command, args []string) (string, string, *mobiledomain.Client, error) {
	service, err := e.arg(command, args, 0, serviceLabel)
	if err != nil {
		return "", "", nil, err
	}
	job, err := e.arg(command, args, 1, jobLabel)
	if err != nil {
		return "", "", nil, err
	}
	client, err := e.client(command)
	if err != nil {
		return "", "", nil, err
	}
	return service, job, client, nil
}

func newJobListCommand(env *commandEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "list [service]",
		Short: "List mobile service scheduled jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			service, client, err := env.serviceAndClient(command, args)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Getting scheduled jobs")
			jobs, err := client.ListJobs(command.Context(), service)
			spinner.Stop()
			if err != nil {
				return err
			}

			return writeResult(env, command, jobs, func(w io.Writer, value []mobiledomain.Job) error {
				if len(value) == 0 {
					return common.WriteEmptyMessage(w, "There are no scheduled jobs. You can create scheduled jobs using \"mobilectl mobile job create\".")
				}
				table := common.NewTable(w, "JOB NAME", "SCRIPT NAME", "STATUS", "INTERVAL", "LAST RUN", "NEXT RUN")
				for _, job := range value {
					table.AppendRow([]any{job.Name, job.ScriptName().String(), job.Status, job.IntervalView(), valueOrNA(job.LastRun), valueOrNA(job.NextRun)})
				}
				table.Render()
				return nil
			})
		},
	}
}

type jobFlags struct {
	interval     int
	intervalUnit string
	startTime    string
	status       string
}

func bindJobFlags(command *cobra.Command, flags *jobFlags, intervalDefault int, unitDefault string) {
	command.Flags().IntVarP(&flags.interval, "interval", "i", intervalDefault, "job interval as an integer")
	command.Flags().StringVarP(&flags.intervalUnit, "unit", "u", unitDefault, "interval unit: minute, hour, day, month or none")
	command.Flags().StringVarP(&flags.startTime, "start-time", "t", "", "time of the first run in ISO format")
	common.RegisterFlagValueCompletions(command, "unit", mobiledomain.JobIntervalUnits)
}

func newJobCreateCommand(env *commandEnv) *cobra.Command {
	flags := &jobFlags{}

	command := &cobra.Command{
		Use:   "create [service] [job]",
		Short: "Create a mobile service scheduled job",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			service, job, client, err := env.serviceJobAndClient(command, args)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Creating scheduled job")
			err = client.CreateJob(command.Context(), service, mobiledomain.NewJob{
				Name:         job,
				Interval:     flags.interval,
				IntervalUnit: flags.intervalUnit,
				StartTime:    flags.startTime,
			}, time.Now)
			spinner.Stop()
			if err != nil {
				return err
			}
			env.info(command, "Job was created in disabled state. You can enable the job using \"mobilectl mobile job update\".")
			env.info(command, "You can upload the script of the job using \"mobilectl mobile script upload %s scheduler/%s\".", service, job)
			return nil
		},
	}

	bindJobFlags(command, flags, mobiledomain.DefaultJobInterval, mobiledomain.DefaultJobUnit)
	return command
}

func newJobUpdateCommand(env *commandEnv) *cobra.Command {
	flags := &jobFlags{}

	command := &cobra.Command{
		Use:   "update [service] [job]",
		Short: "Update a mobile service scheduled job",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			update := mobiledomain.JobUpdate{
				Interval:     flags.interval,
				IntervalUnit: flags.intervalUnit,
				StartTime:    flags.startTime,
				Status:       flags.status,
			}
			if err := update.Validate(); err != nil {
				return err
			}

			service, job, client, err := env.serviceJobAndClient(command, args)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Updating scheduled job")
			changed, err := client.UpdateJob(command.Context(), service, job, update)
			spinner.Stop()
			if err != nil {
				return err
			}
			if !changed {
				env.info(command, "The scheduled job settings already match the requested settings. No changes are made.")
			}
			return nil
		},
	}

	bindJobFlags(command, flags, 0, "")
	command.Flags().StringVar(&flags.status, "status", "", "enabled or disabled")
	common.RegisterFlagValueCompletions(command, "status", []string{mobiledomain.JobEnabled, mobiledomain.JobDisabled})
	return command
}

func newJobDeleteCommand(env *commandEnv) *cobra.Command {
	var quiet bool

	command := &cobra.Command{
		Use:   "delete [service] [job]",
		Short: "Delete a mobile service scheduled job",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			service, job, client, err := env.serviceJobAndClient(command, args)
			if err != nil {
				return err
			}
			if proceed, err := env.confirm(command, quiet, fmt.Sprintf("Do you want to delete the scheduled job %s and its script?", job)); err != nil || !proceed {
				return err
			}

			spinner := env.spin(command, "Deleting scheduled job")
			err = client.DeleteJob(command.Context(), service, job)
			spinner.Stop()
			return err
		},
	}

	common.BindQuietFlag(command, &quiet)
	return command
}
