package app

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/RyanBlaney/latency-benchmark-common/output"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tabular is implemented by reports that can render as rows
type Tabular interface {
	Caption() []string
	Table() (headers []string, rows [][]string)
}

// NewFormatter returns the formatter for an output format name. JSON and YAML
// come straight from the common output package; table and csv understand
// Tabular reports.
func NewFormatter(format string) (output.Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return &output.JSONFormatter{}, nil
	case "yaml":
		return &output.YAMLFormatter{}, nil
	case "csv":
		return &CSVFormatter{}, nil
	case "", "table":
		return &TableFormatter{}, nil
	}
	return nil, fmt.Errorf("unsupported output format %q", format)
}

// TableFormatter renders Tabular reports as aligned columns. Anything else
// falls back to YAML.
type TableFormatter struct{}

func (f *TableFormatter) Format(data any, prettyPrint bool) ([]byte, error) {
	t, ok := data.(Tabular)
	if !ok {
		return (&output.YAMLFormatter{}).Format(data, prettyPrint)
	}

	var buf bytes.Buffer
	for _, line := range t.Caption() {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	headers, rows := t.Table()
	if len(headers) == 0 {
		return buf.Bytes(), nil
	}
	if buf.Len() > 0 {
		buf.WriteByte('\n')
	}

	title := cases.Title(language.English)
	titled := make([]string, len(headers))
	for i, h := range headers {
		titled[i] = title.String(strings.ReplaceAll(h, "_", " "))
	}

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(titled, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render table: %w", err)
	}

	return buf.Bytes(), nil
}

// CSVFormatter writes the rows of a Tabular report under its raw column
// names. Other data is flattened into a single record.
type CSVFormatter struct{}

func (f *CSVFormatter) Format(data any, prettyPrint bool) ([]byte, error) {
	var headers []string
	var rows [][]string

	if t, ok := data.(Tabular); ok {
		headers, rows = t.Table()
	} else {
		flat := output.ConvertToStringMap(output.ExtractFlattenedData(data, ""))
		headers = make([]string, 0, len(flat))
		for k := range flat {
			headers = append(headers, k)
		}
		slices.Sort(headers)

		row := make([]string, len(headers))
		for i, k := range headers {
			row[i] = flat[k]
		}
		rows = [][]string{row}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write CSV records: %w", err)
	}
	return buf.Bytes(), nil
}
