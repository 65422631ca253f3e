package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// outputResult prints a query result in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return outputResultText(result)
}

// outputError prints an error envelope and marks it handled so main()
// doesn't double-print.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	return err
}

// formatEntitiesText formats CLIEntity results as aligned columns.
func formatEntitiesText(w io.Writer, ents []CLIEntity) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tFILE\tSTART\tEND")
	for _, e := range ents {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", e.Name, e.Kind, e.File, e.Start, e.End)
	}
	tw.Flush()
}

// formatNamespaceText formats a merged namespace as grouped sections.
func formatNamespaceText(w io.Writer, ns CLINamespace) {
	fmt.Fprintf(w, "Namespace: %s\n", ns.Name)
	sections := []struct {
		title string
		ents  []CLIEntity
	}{
		{"Classes", ns.Classes},
		{"Interfaces", ns.Interfaces},
		{"Traits", ns.Traits},
		{"Functions", ns.Functions},
		{"Defines", ns.Defines},
		{"Variables", ns.Variables},
	}
	for _, s := range sections {
		if len(s.ents) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", s.title)
		for _, e := range s.ents {
			fmt.Fprintf(w, "  %s  (%s:%d)\n", e.Name, e.File, e.Start)
		}
	}
}

// formatScopeText formats an offset-to-scope answer.
func formatScopeText(w io.Writer, sc CLIScope) {
	fmt.Fprintf(w, "%s %s [%d-%d] in %s\n",
		sc.Scope.Kind, sc.Scope.Name, sc.Scope.Start, sc.Scope.End, sc.Scope.File)
	for _, e := range sc.Enclosing {
		fmt.Fprintf(w, "  enclosed by %s %s [%d-%d]\n", e.Kind, e.Name, e.Start, e.End)
	}
}

// formatStatsText formats index counters as readable text.
func formatStatsText(w io.Writer, stats CLIStats) {
	fmt.Fprintf(w, "Directory: %s\n", stats.Directory)
	fmt.Fprintf(w, "Files: %d (%d loaded, %d errors)\n", stats.Total, stats.Loaded, stats.Errors)
	fmt.Fprintf(w, "Symbols: %d\n", stats.Symbols)
	fmt.Fprintf(w, "Size: %d bytes\n", stats.Size)
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := result.Results.(type) {
	case []CLIEntity:
		formatEntitiesText(w, v)
	case CLIEntity:
		formatEntitiesText(w, []CLIEntity{v})
	case CLINamespace:
		formatNamespaceText(w, v)
	case CLIScope:
		formatScopeText(w, v)
	case CLIStats:
		formatStatsText(w, v)
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
	case nil:
		// No output for nil results (e.g., scope query with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if result.TotalCount != nil {
		count := *result.TotalCount
		if shown := resultLen(result.Results); shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLIEntity:
		return len(r)
	case []string:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
