package main

// CLIResult is the top-level JSON envelope for all query commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIEntity is a JSON-friendly entity representation. Offsets are 0-based
// byte offsets.
type CLIEntity struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	File  string `json:"file,omitempty"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Doc   string `json:"doc,omitempty"`
}

// CLINamespace is the merged cross-file view of a namespace.
type CLINamespace struct {
	Name       string      `json:"name"`
	Classes    []CLIEntity `json:"classes,omitempty"`
	Interfaces []CLIEntity `json:"interfaces,omitempty"`
	Traits     []CLIEntity `json:"traits,omitempty"`
	Functions  []CLIEntity `json:"functions,omitempty"`
	Defines    []CLIEntity `json:"defines,omitempty"`
	Variables  []CLIEntity `json:"variables,omitempty"`
}

// CLIScope is the innermost scope answer for an offset query, with the
// chain of enclosing scopes from innermost to the file root.
type CLIScope struct {
	Scope     CLIEntity   `json:"scope"`
	Enclosing []CLIEntity `json:"enclosing,omitempty"`
}

// CLIStats is a JSON-friendly view of the index counters.
type CLIStats struct {
	Directory string `json:"directory"`
	Total     int    `json:"total"`
	Loaded    int    `json:"loaded"`
	Errors    int    `json:"errors"`
	Symbols   int    `json:"symbols"`
	Size      int64  `json:"size"`
}
