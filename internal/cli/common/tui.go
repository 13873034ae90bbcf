package common

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// DeclinedMessage is printed when a confirmation is answered with no.
const DeclinedMessage = "Operation terminated with no changes made."

// Prompter asks for values the command line left out.
type Prompter interface {
	IsInteractive(command *cobra.Command) bool
	Input(command *cobra.Command, prompt string, required bool) (string, error)
	Secret(command *cobra.Command, prompt string) (string, error)
	Select(command *cobra.Command, prompt string, options []string) (string, error)
	Confirm(command *cobra.Command, prompt string, defaultYes bool) (bool, error)
}

type TerminalPrompter struct{}

func (TerminalPrompter) IsInteractive(command *cobra.Command) bool {
	return IsInteractiveTerminal(command)
}

func (TerminalPrompter) Input(command *cobra.Command, prompt string, required bool) (string, error) {
	return PromptInput(command, prompt, required)
}

func (TerminalPrompter) Secret(command *cobra.Command, prompt string) (string, error) {
	return PromptSecret(command, prompt)
}

func (TerminalPrompter) Select(command *cobra.Command, prompt string, options []string) (string, error) {
	return PromptSelect(command, prompt, options)
}

func (TerminalPrompter) Confirm(command *cobra.Command, prompt string, defaultYes bool) (bool, error) {
	return PromptConfirm(command, prompt, defaultYes)
}

// RequireArg returns args[index], prompting for it on an interactive
// terminal when it is missing.
func RequireArg(command *cobra.Command, prompter Prompter, args []string, index int, label string) (string, error) {
	if index < len(args) {
		if value := strings.TrimSpace(args[index]); value != "" {
			return value, nil
		}
	}
	if prompter == nil || !prompter.IsInteractive(command) {
		return "", requiredError(label)
	}
	return prompter.Input(command, label+":", true)
}

// ConfirmDestructive asks before a destructive action unless quiet is set.
// Without a terminal the caller must pass --quiet. A declined prompt is not
// an error: it reports that nothing changed and returns false.
func ConfirmDestructive(command *cobra.Command, prompter Prompter, quiet bool, prompt string) (bool, error) {
	if quiet {
		return true, nil
	}
	if prompter == nil || !prompter.IsInteractive(command) {
		return false, ValidationError("confirmation required: rerun with --quiet to proceed without a terminal", nil)
	}

	confirmed, err := prompter.Confirm(command, prompt, false)
	if err != nil {
		return false, err
	}
	if !confirmed {
		_, _ = fmt.Fprintln(command.ErrOrStderr(), DeclinedMessage)
		return false, nil
	}
	return true, nil
}

func PromptInput(command *cobra.Command, prompt string, required bool) (string, error) {
	if !IsInteractiveTerminal(command) {
		return "", ValidationError("interactive terminal is required", nil)
	}

	value := ""
	field := huh.NewInput().
		Title(normalizePrompt(prompt)).
		Value(&value)
	if required {
		field.Validate(huh.ValidateNotEmpty())
	}

	if err := runInteractiveField(command, field); err != nil {
		return "", err
	}

	value = strings.TrimSpace(value)
	if required && value == "" {
		return "", ValidationError("value is required", nil)
	}
	return value, nil
}

func PromptSecret(command *cobra.Command, prompt string) (string, error) {
	if !IsInteractiveTerminal(command) {
		return "", ValidationError("interactive terminal is required", nil)
	}

	value := ""
	field := huh.NewInput().
		Title(normalizePrompt(prompt)).
		Value(&value).
		EchoMode(huh.EchoModePassword).
		Validate(huh.ValidateNotEmpty())

	if err := runInteractiveField(command, field); err != nil {
		return "", err
	}
	return value, nil
}

func PromptSelect(command *cobra.Command, prompt string, options []string) (string, error) {
	if len(options) == 0 {
		return "", ValidationError("no options available", nil)
	}
	if !IsInteractiveTerminal(command) {
		return "", ValidationError("interactive terminal is required", nil)
	}

	selected := options[0]
	values := make([]huh.Option[string], 0, len(options))
	for _, option := range options {
		values = append(values, huh.NewOption(option, option))
	}

	field := huh.NewSelect[string]().
		Title(normalizePrompt(prompt)).
		Options(values...).
		Value(&selected)

	if err := runInteractiveField(command, field); err != nil {
		return "", err
	}
	return selected, nil
}

func PromptConfirm(command *cobra.Command, prompt string, defaultYes bool) (bool, error) {
	if !IsInteractiveTerminal(command) {
		return false, ValidationError("interactive terminal is required", nil)
	}

	value := defaultYes
	field := huh.NewConfirm().
		Title(normalizePrompt(prompt)).
		Value(&value)

	if err := runInteractiveField(command, field); err != nil {
		return false, err
	}
	return value, nil
}

func runInteractiveField(command *cobra.Command, field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field)).
		WithInput(command.InOrStdin()).
		WithOutput(command.OutOrStdout()).
		WithShowHelp(false)

	err := form.Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return ValidationError("interactive prompt interrupted", nil)
	}
	return err
}

func normalizePrompt(prompt string) string {
	title := strings.TrimSpace(prompt)
	title = strings.TrimSuffix(title, ":")
	if title == "" {
		return "Input"
	}
	return title
}
