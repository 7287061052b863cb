// Package helpers holds output formatting and flag helpers shared by whotalks commands.
package helpers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"
)

// OutputFormat represents the desired output format.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
)

// SupportedFormats lists every format NewFormatter accepts.
var SupportedFormats = []OutputFormat{FormatTable, FormatJSON, FormatCSV}

// Formatter writes a slice of rows in one output format.
type Formatter interface {
	Format(data interface{}, writer io.Writer) error
}

// NewFormatter creates a new Formatter for the given format.
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case FormatTable:
		return &TableFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	case FormatCSV:
		return &CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// JSONFormatter formats data as indented JSON using json struct tags.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(data interface{}, writer io.Writer) error {
	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// TableFormatter formats a slice of structs as an aligned table. Columns are
// the fields carrying a `header` tag. Cells are sanitized for the terminal
// since they hold data read from the remote host.
type TableFormatter struct{}

func (f *TableFormatter) Format(data interface{}, writer io.Writer) error {
	headers, rows, err := tabulate(data)
	if err != nil || rows == nil {
		return err
	}

	w := tabwriter.NewWriter(writer, 0, 0, 3, ' ', 0)
	if _, err := fmt.Fprintln(w, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		for i, cell := range row {
			row[i] = SanitizeTerminal(cell)
		}
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return w.Flush()
}

// CSVFormatter formats a slice of structs as CSV using `header` tags.
type CSVFormatter struct{}

func (f *CSVFormatter) Format(data interface{}, writer io.Writer) error {
	headers, rows, err := tabulate(data)
	if err != nil || rows == nil {
		return err
	}

	w := csv.NewWriter(writer)
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// tabulate converts a slice of structs into header names and string rows.
// rows is nil for an empty slice.
func tabulate(data interface{}) ([]string, [][]string, error) {
	val := reflect.ValueOf(data)
	if val.Kind() != reflect.Slice {
		return nil, nil, fmt.Errorf("data must be a slice")
	}
	if val.Len() == 0 {
		return nil, nil, nil
	}

	headers := getHeaders(val.Index(0).Type())
	rows := make([][]string, val.Len())
	for i := range rows {
		rows[i] = getRowValues(val.Index(i))
	}
	return headers, rows, nil
}

func getHeaders(t reflect.Type) []string {
	var headers []string
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("header"); tag != "" {
			headers = append(headers, tag)
		}
	}
	return headers
}

func getRowValues(v reflect.Value) []string {
	var values []string
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).Tag.Get("header") != "" {
			values = append(values, cellString(v.Field(i)))
		}
	}
	return values
}

// cellString renders one field. String slices are space-joined and
// Stringers use their String method.
func cellString(v reflect.Value) string {
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.String {
		return strings.Join(v.Interface().([]string), " ")
	}
	return fmt.Sprintf("%v", v.Interface())
}
