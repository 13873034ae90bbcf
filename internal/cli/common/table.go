package common

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// NewTable returns a writer that renders to w in the CLI's table style.
func NewTable(w io.Writer, headers ...string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	if len(headers) > 0 {
		row := make(table.Row, 0, len(headers))
		for _, header := range headers {
			row = append(row, header)
		}
		t.AppendHeader(row)
	}
	return t
}

// RenderKeyValues prints one row per pair. pairs alternates key and value.
func RenderKeyValues(w io.Writer, pairs ...any) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	for i := 0; i+1 < len(pairs); i += 2 {
		t.AppendRow(table.Row{fmt.Sprint(pairs[i]), pairs[i+1]})
	}
	t.Render()
}

func WriteEmptyMessage(w io.Writer, message string) error {
	_, err := fmt.Fprintln(w, text.FgYellow.Sprint(message))
	return err
}
