package main

import (
	"encoding/json"
	"io"
	"strings"
	"text/tabwriter"
)

const (
	outputFormatJSON = "json"
	outputFormatTab  = "tab"
)

func newTabwriter(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
}

func outputFormatIsValid(format string) bool {
	return format == outputFormatJSON || format == outputFormatTab
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func makeExample(examples ...string) string {
	var buf strings.Builder
	for _, example := range examples {
		buf.WriteString("  " + example + "\n")
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
