package common

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/crmarques/mobilectl/internal/cli/commandmeta"
	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

const (
	OutputAuto = "auto"
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

type outputOptionsKey struct{}

// OutputOptions are the global flags that shape structured output.
type OutputOptions struct {
	Format string
	Query  string
}

func ValidateOutputFormat(format string) error {
	switch format {
	case OutputAuto, OutputText, OutputJSON, OutputYAML:
		return nil
	default:
		return ValidationError("invalid output format: use auto, text, json, or yaml", nil)
	}
}

func ValidateOutputFormatForCommandPath(commandPath string, format string) error {
	switch strings.TrimSpace(format) {
	case "", OutputAuto, OutputText:
		return nil
	}

	if commandmeta.OutputPolicyForPath(commandPath) == commandmeta.OutputPolicyTextOnly {
		return ValidationError("command supports only text output; use --output text or --output auto", nil)
	}
	return nil
}

// ValidateQuery compiles expression so a bad --query fails before any
// request is sent.
func ValidateQuery(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return nil
	}
	if _, err := gojq.Parse(expression); err != nil {
		return ValidationError("invalid --query expression", err)
	}
	return nil
}

// ResolveOutputFormat maps auto to text; a non-empty query implies json.
func ResolveOutputFormat(globalFlags *GlobalFlags) string {
	if globalFlags == nil {
		return OutputText
	}
	format := strings.TrimSpace(globalFlags.Output)
	switch format {
	case "", OutputAuto:
		if strings.TrimSpace(globalFlags.Query) != "" {
			return OutputJSON
		}
		return OutputText
	default:
		return format
	}
}

func WriteOutput[T any](command *cobra.Command, format string, value T, renderText func(io.Writer, T) error) error {
	return WriteQueriedOutput(command, format, "", value, renderText)
}

// WriteQueriedOutput renders value as text through renderText, or as
// json/yaml after applying the jq expression in query.
func WriteQueriedOutput[T any](command *cobra.Command, format string, query string, value T, renderText func(io.Writer, T) error) error {
	if isNilOutputValue(value) {
		return nil
	}

	if strings.TrimSpace(query) != "" && format != OutputYAML {
		format = OutputJSON
	}

	switch format {
	case OutputAuto, OutputText:
		if renderText != nil {
			return renderText(command.OutOrStdout(), value)
		}
		_, err := fmt.Fprintln(command.OutOrStdout(), value)
		return err
	case OutputJSON, OutputYAML:
		results, err := applyQuery(query, value)
		if err != nil {
			return err
		}
		for _, result := range results {
			if err := writeStructured(command.OutOrStdout(), format, result); err != nil {
				return err
			}
		}
		return nil
	default:
		return ValidationError("invalid output format: use auto, text, json, or yaml", nil)
	}
}

func WriteText(command *cobra.Command, format string, text string) error {
	return WriteOutput(command, format, text, func(w io.Writer, value string) error {
		_, err := fmt.Fprintln(w, value)
		return err
	})
}

func writeStructured(w io.Writer, format string, value any) error {
	if format == OutputYAML {
		encoded, err := yaml.Marshal(value)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, string(encoded))
		return err
	}

	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}

func applyQuery(expression string, value any) ([]any, error) {
	if strings.TrimSpace(expression) == "" {
		return []any{value}, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, ValidationError("invalid --query expression", err)
	}

	// gojq only walks plain JSON values.
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var input any
	if err := json.Unmarshal(encoded, &input); err != nil {
		return nil, err
	}

	results := []any{}
	iter := query.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := result.(error); isErr {
			return nil, ValidationError("--query evaluation failed", err)
		}
		results = append(results, result)
	}
	return results, nil
}

func isNilOutputValue[T any](value T) bool {
	anyValue := any(value)
	if anyValue == nil {
		return true
	}

	reflected := reflect.ValueOf(anyValue)
	switch reflected.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return reflected.IsNil()
	default:
		return false
	}
}
