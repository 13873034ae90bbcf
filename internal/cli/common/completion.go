package common

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const completionTimeout = 2 * time.Second

var (
	outputCompletionValues      = []string{OutputAuto, OutputText, OutputJSON, OutputYAML}
	inputFormatCompletionValues = []string{OutputJSON, OutputYAML}
)

func RegisterOutputFlagCompletion(command *cobra.Command) {
	RegisterFlagValueCompletions(command, "output", outputCompletionValues)
}

func RegisterInputFormatFlagCompletion(command *cobra.Command) {
	RegisterFlagValueCompletions(command, "format", inputFormatCompletionValues)
}

func RegisterFlagValueCompletions(command *cobra.Command, flagName string, values []string) {
	_ = command.RegisterFlagCompletionFunc(flagName, func(
		_ *cobra.Command,
		_ []string,
		toComplete string,
	) ([]string, cobra.ShellCompDirective) {
		return CompleteValues(values, toComplete)
	})
}

// RegisterAccountFlagCompletion completes --account with the names in the
// account catalog.
func RegisterAccountFlagCompletion(command *cobra.Command, deps CommandDependencies, globalFlags *GlobalFlags) {
	_ = command.RegisterFlagCompletionFunc("account", func(
		_ *cobra.Command,
		_ []string,
		toComplete string,
	) ([]string, cobra.ShellCompDirective) {
		return CompleteAccountNames(deps, globalFlags, toComplete)
	})
}

func CompleteAccountNames(deps CommandDependencies, globalFlags *GlobalFlags, toComplete string) ([]string, cobra.ShellCompDirective) {
	accounts, err := RequireAccounts(deps, globalFlags)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()

	items, err := accounts.List(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return CompleteValues(names, toComplete)
}

func CompleteValues(values []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	prefix := strings.TrimSpace(toComplete)
	unique := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if prefix != "" && !strings.HasPrefix(trimmed, prefix) {
			continue
		}
		unique[trimmed] = struct{}{}
	}

	items := make([]string, 0, len(unique))
	for value := range unique {
		items = append(items, value)
	}
	sort.Strings(items)
	return items, cobra.ShellCompDirectiveNoFileComp
}
