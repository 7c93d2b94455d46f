package main

import (
	"encoding/json"
	"fmt"
	"html"
	"io"

	"github.com/fatih/color"

	"github.com/doxsearch/mcp-server/internal/searchdata"
)

var (
	errorText = color.New(color.FgRed, color.Bold).SprintFunc()
	warnText  = color.New(color.FgYellow).SprintFunc()
	okText    = color.New(color.FgGreen).SprintFunc()
	labelText = color.New(color.FgCyan, color.Bold).SprintFunc()
	dimText   = color.New(color.Faint).SprintFunc()
)

func printFinding(w io.Writer, f searchdata.Finding) {
	severity := warnText(string(f.Severity))
	if f.Severity == searchdata.SeverityError {
		severity = errorText(string(f.Severity))
	}
	loc := f.File
	if f.Entry >= 0 {
		loc = fmt.Sprintf("%s[%d] %s", f.File, f.Entry, f.Key)
	}
	fmt.Fprintf(w, "%s: %s: %s %s\n", loc, severity, f.Message, dimText("("+f.Code+")"))
}

func printEntry(w io.Writer, e searchdata.SearchEntry) {
	fmt.Fprintf(w, "%s %s\n", labelText(html.UnescapeString(e.Label)), dimText(e.Key))
	for _, occ := range e.Occurrences {
		fmt.Fprintf(w, "  %s  %s\n", occ.Href(), html.UnescapeString(occ.Scope))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
