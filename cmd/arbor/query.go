package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/arbor"
	"github.com/jward/arbor/internal/store"
)

var (
	flagLimit int
	flagDir   string
)

func init() {
	for _, cmd := range []*cobra.Command{lookupCmd, nsCmd, scopeCmd, statsCmd} {
		cmd.Flags().StringVar(&flagDir, "dir", ".", "indexed directory")
	}
	lookupCmd.Flags().IntVar(&flagLimit, "limit", 100, "maximum results (0 = unbounded)")
}

// loadIndex rebuilds an Index from the cache snapshot written by `arbor
// index`. Queries run against the snapshot; they never trigger parses.
func loadIndex() (*arbor.Index, error) {
	targetDir, err := resolveTargetDir([]string{flagDir})
	if err != nil {
		return nil, err
	}
	st, err := store.Open(resolveCachePath(targetDir))
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	defer st.Close()

	var snap arbor.Snapshot
	found, err := st.LoadSnapshot(targetDir, &snap)
	if err != nil {
		return nil, fmt.Errorf("loading cache: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no index for %s — run `arbor index` first", targetDir)
	}

	ix := arbor.New(targetDir)
	if err := ix.Load(&snap); err != nil {
		return nil, fmt.Errorf("loading cache: %w", err)
	}
	return ix, nil
}

func toCLIEntity(e *arbor.Entity) CLIEntity {
	out := CLIEntity{
		Name:  e.Name,
		Kind:  e.Kind.String(),
		Start: e.Range.Start,
		End:   e.Range.End,
		Doc:   e.Doc,
	}
	if f := e.File(); f != nil {
		out.File = f.Entity.Name
	}
	return out
}

func toCLIEntities(ents []*arbor.Entity) []CLIEntity {
	out := make([]CLIEntity, 0, len(ents))
	for _, e := range ents {
		out = append(out, toCLIEntity(e))
	}
	return out
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <kind> [name]",
	Short: "Find declarations by kind, optionally filtered by exact name",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := arbor.KindFromString(args[0])
		if kind == arbor.KindInvalid || kind == arbor.KindFile {
			return outputError("lookup", fmt.Errorf("unknown kind %q", args[0]))
		}

		ix, err := loadIndex()
		if err != nil {
			return outputError("lookup", err)
		}

		var ents []*arbor.Entity
		if len(args) == 2 {
			ents = ix.GetByName(kind, args[1], flagLimit)
		} else {
			ents = ix.GetByType(kind, flagLimit)
		}
		total := len(ents)
		return outputResult(CLIResult{
			Command:    "lookup",
			Results:    toCLIEntities(ents),
			TotalCount: &total,
		})
	},
}

var nsCmd = &cobra.Command{
	Use:   "ns <name>",
	Short: "Show the merged cross-file view of a namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := loadIndex()
		if err != nil {
			return outputError("ns", err)
		}

		ns, ok := ix.GetNamespace(args[0])
		if !ok {
			return outputError("ns", fmt.Errorf("namespace %q not declared by any file", args[0]))
		}
		return outputResult(CLIResult{
			Command: "ns",
			Results: CLINamespace{
				Name:       ns.Name,
				Classes:    toCLIEntities(ns.Classes),
				Interfaces: toCLIEntities(ns.Interfaces),
				Traits:     toCLIEntities(ns.Traits),
				Functions:  toCLIEntities(ns.Functions),
				Defines:    toCLIEntities(ns.Defines),
				Variables:  toCLIEntities(ns.Variables),
			},
		})
	},
}

var scopeCmd = &cobra.Command{
	Use:   "scope <file> <offset>",
	Short: "Show the innermost scope at a byte offset",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		offset, err := strconv.Atoi(args[1])
		if err != nil {
			return outputError("scope", fmt.Errorf("offset %q: %w", args[1], err))
		}

		ix, err := loadIndex()
		if err != nil {
			return outputError("scope", err)
		}

		// The index keys files by absolute path.
		file, err := filepath.Abs(args[0])
		if err != nil {
			return outputError("scope", err)
		}
		sc, ok := ix.ScopeAt(file, offset)
		if !ok {
			return outputResult(CLIResult{Command: "scope", Results: nil})
		}

		out := CLIScope{Scope: toCLIEntity(sc)}
		for p := sc.Parent(); p != nil; p = p.Parent() {
			out.Enclosing = append(out.Enclosing, toCLIEntity(p))
		}
		return outputResult(CLIResult{Command: "scope", Results: out})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := loadIndex()
		if err != nil {
			return outputError("stats", err)
		}
		c := ix.Stats()
		return outputResult(CLIResult{
			Command: "stats",
			Results: CLIStats{
				Directory: ix.Directory(),
				Total:     c.Total,
				Loaded:    c.Loaded,
				Errors:    c.Errors,
				Symbols:   c.Symbols,
				Size:      c.Size,
			},
		})
	},
}
