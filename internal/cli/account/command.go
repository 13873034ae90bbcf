package account

import (
	"fmt"
	"io"
	"strings"

	configdomain "github.com/crmarques/mobilectl/config"
	"github.com/crmarques/mobilectl/faults"
	"github.com/crmarques/mobilectl/internal/cli/common"
	"github.com/spf13/cobra"
)

const maskedSecret = "REDACTED"

func NewCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags, prompter common.Prompter) *cobra.Command {
	command := &cobra.Command{
		Use:   "account",
		Short: "Manage management API accounts",
		Args:  cobra.NoArgs,
	}

	command.AddCommand(
		newAddCommand(deps, globalFlags, prompter),
		newListCommand(deps, globalFlags),
		newShowCommand(deps, globalFlags),
		newUseCommand(deps, globalFlags, prompter),
		newRemoveCommand(deps, globalFlags, prompter),
		newRenameCommand(deps, globalFlags, prompter),
	)

	return command
}

type addFlags struct {
	input      common.InputFlags
	account    configdomain.Account
	setCurrent bool
}

func newAddCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags, prompter common.Prompter) *cobra.Command {
	var flags addFlags

	command := &cobra.Command{
		Use:   "add [name]",
		Short: "Add an account from flags, a payload file, or prompts",
		Example: strings.Join([]string{
			"  mobilectl account add prod --subscription 0000-1111 --pem-file ~/.mobilectl/prod.pem",
			"  mobilectl account add --payload account.yaml --set-current",
		}, "\n"),
		Args: cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			accounts, err := common.RequireAccounts(deps, globalFlags)
			if err != nil {
				return err
			}

			account, err := resolveAddAccount(command, prompter, flags, args)
			if err != nil {
				return err
			}
			if err := accounts.Validate(command.Context(), account); err != nil {
				return err
			}
			if err := accounts.Create(command.Context(), account); err != nil {
				return err
			}
			if flags.setCurrent {
				return accounts.SetCurrent(command.Context(), account.Name)
			}
			return nil
		},
	}

	command.Flags().StringVarP(&flags.input.Payload, "payload", "f", "", "account file path (use '-' to read from stdin)")
	command.Flags().StringVarP(&flags.input.Format, "format", "i", common.OutputYAML, "payload format: json|yaml")
	command.Flags().StringVar(&flags.account.SubscriptionID, "subscription", "", "subscription id")
	command.Flags().StringVar(&flags.account.ManagementEndpoint, "management-endpoint", "", "management API base URL")
	command.Flags().StringVar(&flags.account.SQLManagementEndpoint, "sql-management-endpoint", "", "SQL management API base URL")
	command.Flags().StringVar(&flags.account.APIVersion, "api-version", "", "management API version header")
	command.Flags().StringVar(&flags.account.Certificate.PEMFile, "pem-file", "", "PEM file holding the management certificate and key")
	command.Flags().StringVar(&flags.account.Certificate.CertFile, "cert-file", "", "management certificate file")
	command.Flags().StringVar(&flags.account.Certificate.KeyFile, "key-file", "", "management certificate key file")
	command.Flags().StringVar(&flags.account.Certificate.PFXFile, "pfx-file", "", "PKCS#12 management certificate")
	command.Flags().StringVar(&flags.account.Certificate.PFXPassword, "pfx-password", "", "PKCS#12 password")
	command.Flags().BoolVar(&flags.setCurrent, "set-current", false, "make the new account current")
	common.RegisterInputFormatFlagCompletion(command)
	return command
}

func resolveAddAccount(command *cobra.Command, prompter common.Prompter, flags addFlags, args []string) (configdomain.Account, error) {
	name := ""
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	if strings.TrimSpace(flags.input.Payload) != "" {
		account, err := common.DecodeInput[configdomain.Account](command, flags.input)
		if err != nil {
			return configdomain.Account{}, err
		}
		if name != "" && account.Name != "" && account.Name != name {
			return configdomain.Account{}, common.ValidationError(
				fmt.Sprintf("account name conflict: argument %q differs from payload name %q", name, account.Name),
				nil,
			)
		}
		if account.Name == "" {
			account.Name = name
		}
		if account.Name == "" {
			return configdomain.Account{}, common.ValidationError("account name is required", nil)
		}
		return account, nil
	}

	account := flags.account
	var err error
	account.Name, err = common.RequireArg(command, prompter, args, 0, "account name")
	if err != nil {
		return configdomain.Account{}, err
	}
	if strings.TrimSpace(account.SubscriptionID) == "" {
		account.SubscriptionID, err = promptRequired(command, prompter, "subscription id")
		if err != nil {
			return configdomain.Account{}, err
		}
	}
	if !hasCertificate(account.Certificate) {
		account.Certificate, err = promptCertificate(command, prompter)
		if err != nil {
			return configdomain.Account{}, err
		}
	}
	return account, nil
}

func promptRequired(command *cobra.Command, prompter common.Prompter, label string) (string, error) {
	if prompter == nil || !prompter.IsInteractive(command) {
		return "", common.ValidationError(label+" is required", nil)
	}
	return prompter.Input(command, label+":", true)
}

func promptCertificate(command *cobra.Command, prompter common.Prompter) (configdomain.Certificate, error) {
	if prompter == nil || !prompter.IsInteractive(command) {
		return configdomain.Certificate{}, common.ValidationError("certificate is required: use --pem-file, --cert-file and --key-file, or --pfx-file", nil)
	}

	kind, err := prompter.Select(command, "Certificate source", []string{"pem-file", "cert-file", "pfx-file"})
	if err != nil {
		return configdomain.Certificate{}, err
	}

	certificate := configdomain.Certificate{}
	switch kind {
	case "pem-file":
		certificate.PEMFile, err = prompter.Input(command, "PEM file:", true)
	case "cert-file":
		if certificate.CertFile, err = prompter.Input(command, "Certificate file:", true); err == nil {
			certificate.KeyFile, err = prompter.Input(command, "Key file:", true)
		}
	default:
		if certificate.PFXFile, err = prompter.Input(command, "PFX file:", true); err == nil {
			certificate.PFXPassword, err = prompter.Secret(command, "PFX password:")
		}
	}
	return certificate, err
}

func hasCertificate(certificate configdomain.Certificate) bool {
	return certificate.PEMFile != "" || certificate.CertFile != "" || certificate.PFXFile != ""
}

type accountRow struct {
	Name               string `json:"name" yaml:"name"`
	SubscriptionID     string `json:"subscriptionId" yaml:"subscription-id"`
	ManagementEndpoint string `json:"managementEndpoint" yaml:"management-endpoint"`
	Current            bool   `json:"current" yaml:"current"`
}

func newListCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			accounts, err := common.RequireAccounts(deps, globalFlags)
			if err != nil {
				return err
			}
			items, err := accounts.List(command.Context())
			if err != nil {
				return err
			}

			currentName := ""
			current, err := accounts.GetCurrent(command.Context())
			switch {
			case err == nil:
				currentName = current.Name
			case !faults.IsCategory(err, faults.NotFoundError):
				return err
			}

			rows := make([]accountRow, 0, len(items))
			for _, item := range items {
				rows = append(rows, accountRow{
					Name:               item.Name,
					SubscriptionID:     item.SubscriptionID,
					ManagementEndpoint: item.EffectiveManagementEndpoint(),
					Current:            item.Name == currentName,
				})
			}

			return common.WriteQueriedOutput(command, common.ResolveOutputFormat(globalFlags), globalFlags.Query, rows, renderAccountRows)
		},
	}
}

func renderAccountRows(w io.Writer, rows []accountRow) error {
	if len(rows) == 0 {
		return common.WriteEmptyMessage(w, "No accounts configured. Add one with: mobilectl account add")
	}

	table := common.NewTable(w, "", "NAME", "SUBSCRIPTION", "ENDPOINT")
	for _, row := range rows {
		marker := ""
		if row.Current {
			marker = "*"
		}
		table.AppendRow([]any{marker, row.Name, row.SubscriptionID, row.ManagementEndpoint})
	}
	table.Render()
	return nil
}

func newShowCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	command := &cobra.Command{
		Use:   "show [name]",
		Short: "Show an account with environment overrides applied",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			accounts, err := common.RequireAccounts(deps, globalFlags)
			if err != nil {
				return err
			}

			selection := configdomain.AccountSelection{Name: strings.TrimSpace(globalFlags.Account)}
			if len(args) > 0 {
				selection.Name = strings.TrimSpace(args[0])
			}
			account, err := accounts.ResolveAccount(command.Context(), selection)
			if err != nil {
				return err
			}

			format := common.ResolveOutputFormat(globalFlags)
			if format == common.OutputText && strings.TrimSpace(globalFlags.Output) == common.OutputAuto {
				format = common.OutputYAML
			}
			return common.WriteQueriedOutput(command, format, globalFlags.Query, maskAccount(account), renderAccount)
		},
	}
	registerAccountArgCompletion(command, deps, globalFlags)
	return command
}

func maskAccount(account configdomain.Account) configdomain.Account {
	if account.Certificate.PFXPassword != "" {
		account.Certificate.PFXPassword = maskedSecret
	}
	return account
}

func renderAccount(w io.Writer, account configdomain.Account) error {
	certificate := account.Certificate.PEMFile
	switch {
	case account.Certificate.CertFile != "":
		certificate = account.Certificate.CertFile + " (key " + account.Certificate.KeyFile + ")"
	case account.Certificate.PFXFile != "":
		certificate = account.Certificate.PFXFile
	}

	common.RenderKeyValues(w,
		"Name", account.Name,
		"Subscription", account.SubscriptionID,
		"Management endpoint", account.EffectiveManagementEndpoint(),
		"SQL management endpoint", account.EffectiveSQLManagementEndpoint(),
		"API version", account.EffectiveAPIVersion(),
		"Certificate", certificate,
		"Request timeout", account.EffectiveTimeout(),
		"Poll interval", account.EffectivePollInterval(),
	)
	return nil
}

func newUseCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags, prompter common.Prompter) *cobra.Command {
	command := &cobra.Command{
		Use:   "use [name]",
		Short: "Set the current account (interactive when name is omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			accounts, err := common.RequireAccounts(deps, globalFlags)
			if err != nil {
				return err
			}

			name, err := accountNameArg(command, accounts, prompter, args, "use")
			if err != nil {
				return err
			}
			return accounts.SetCurrent(command.Context(), name)
		},
	}
	registerAccountArgCompletion(command, deps, globalFlags)
	return command
}

func newRemoveCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags, prompter common.Prompter) *cobra.Command {
	var quiet bool

	command := &cobra.Command{
		Use:     "remove [name]",
		Aliases: []string{"delete"},
		Short:   "Remove an account (interactive when name is omitted)",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			accounts, err := common.RequireAccounts(deps, globalFlags)
			if err != nil {
				return err
			}

			name, err := accountNameArg(command, accounts, prompter, args, "remove")
			if err != nil {
				return err
			}
			if proceed, err := common.ConfirmDestructive(command, prompter, quiet, fmt.Sprintf("Remove account %q?", name)); err != nil || !proceed {
				return err
			}
			return accounts.Delete(command.Context(), name)
		},
	}
	common.BindQuietFlag(command, &quiet)
	registerAccountArgCompletion(command, deps, globalFlags)
	return command
}

func newRenameCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags, prompter common.Prompter) *cobra.Command {
	command := &cobra.Command{
		Use:   "rename [from] [to]",
		Short: "Rename an account (interactive when args are omitted)",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			accounts, err := common.RequireAccounts(deps, globalFlags)
			if err != nil {
				return err
			}

			fromName, err := accountNameArg(command, accounts, prompter, args, "rename")
			if err != nil {
				return err
			}
			toName, err := common.RequireArg(command, prompter, args, 1, "new account name")
			if err != nil {
				return err
			}
			return accounts.Rename(command.Context(), fromName, toName)
		},
	}
	registerAccountArgCompletion(command, deps, globalFlags)
	return command
}

func accountNameArg(
	command *cobra.Command,
	accounts configdomain.AccountService,
	prompter common.Prompter,
	args []string,
	action string,
) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}

	items, err := accounts.List(command.Context())
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", common.ValidationError("no accounts available", nil)
	}
	if prompter == nil || !prompter.IsInteractive(command) {
		return "", common.ValidationError(fmt.Sprintf("account name is required: mobilectl account %s <name>", action), nil)
	}

	options := make([]string, 0, len(items))
	for _, item := range items {
		options = append(options, item.Name)
	}
	return prompter.Select(command, "Choose account", options)
}

func registerAccountArgCompletion(command *cobra.Command, deps common.CommandDependencies, globalFlags *common.GlobalFlags) {
	command.ValidArgsFunction = func(
		_ *cobra.Command,
		args []string,
		toComplete string,
	) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return common.CompleteAccountNames(deps, globalFlags, toComplete)
	}
}
