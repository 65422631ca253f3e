package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/arbor"
	"github.com/jward/arbor/internal/store"
	"github.com/jward/arbor/internal/watch"
)

var (
	flagCache   string
	flagFormat  string
	flagVerbose bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "arbor",
	Short:         "Incremental cross-file symbol index",
	Long:          "Arbor walks parsed source trees into a typed symbol graph and answers name, namespace, and offset queries across a repository.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagCache, "cache", "", "cache path (default: .arbor/index.db relative to target)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "log lifecycle events to stderr")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(nsCmd)
	rootCmd.AddCommand(scopeCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(watchCmd)
}

var flagForce bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a directory tree",
	Long:  "Scans source files under the target directory, builds the symbol graph, and saves a cache snapshot for warm starts.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "ignore the cache snapshot and rebuild from scratch")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	ix, st, err := openIndex(targetDir, !flagForce)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := ix.Scan(context.Background()); err != nil {
		return fmt.Errorf("scanning: %w", err)
	}
	if err := st.SaveSnapshot(targetDir, ix.Snapshot()); err != nil {
		return fmt.Errorf("saving cache: %w", err)
	}

	stats := ix.Stats()
	fmt.Fprintf(os.Stderr, "Indexed %s in %s (%d files, %d symbols)\n",
		targetDir, time.Since(start).Round(time.Millisecond), stats.Loaded, stats.Symbols)
	fmt.Fprintf(os.Stderr, "Cache: %s\n", resolveCachePath(targetDir))
	return nil
}

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Index a directory tree and keep it fresh",
	Long:  "Indexes the target directory, then watches the filesystem and refreshes changed files until interrupted.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	ix, st, err := openIndex(targetDir, true)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if err := ix.Scan(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "scan: %s\n", err)
	}

	w, err := watch.New(func(path string) bool {
		_, loaded := ix.GetFile(path)
		return loaded || filepath.Ext(path) == ".php"
	})
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	err = w.Watch(targetDir, func(c watch.Change) {
		if c.Removed {
			if ix.Remove(c.Path) {
				fmt.Fprintf(os.Stderr, "removed %s\n", c.Path)
			}
			return
		}
		if _, err := ix.Refresh(ctx, c.Path); err != nil {
			fmt.Fprintf(os.Stderr, "refresh %s: %s\n", c.Path, err)
		}
	})
	if err != nil {
		return fmt.Errorf("watching %s: %w", targetDir, err)
	}

	stats := ix.Stats()
	fmt.Fprintf(os.Stderr, "Watching %s (%d files, %d symbols). Ctrl-C to stop.\n",
		targetDir, stats.Loaded, stats.Symbols)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	if err := st.SaveSnapshot(targetDir, ix.Snapshot()); err != nil {
		return fmt.Errorf("saving cache: %w", err)
	}
	return nil
}

// openIndex creates an Index for targetDir, warm-started from the cache
// snapshot when one exists and useCache is set.
func openIndex(targetDir string, useCache bool) (*arbor.Index, *store.Store, error) {
	cachePath := resolveCachePath(targetDir)
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", filepath.Dir(cachePath), err)
	}

	st, err := store.Open(cachePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening cache: %w", err)
	}

	var opts []arbor.Option
	if flagVerbose {
		opts = append(opts, arbor.WithObserver(func(ev arbor.Event) {
			if ev.Err != nil {
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", ev.Type, ev.Filename, ev.Err)
			} else {
				fmt.Fprintf(os.Stderr, "%s %s\n", ev.Type, ev.Filename)
			}
		}))
	}
	ix := arbor.New(targetDir, opts...)

	if useCache {
		var snap arbor.Snapshot
		found, err := st.LoadSnapshot(targetDir, &snap)
		if err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("loading cache: %w", err)
		}
		if found {
			if err := ix.Load(&snap); err != nil {
				// A stale or partial snapshot is not fatal: Scan re-parses
				// whatever failed to import.
				fmt.Fprintf(os.Stderr, "cache: %s\n", err)
			}
		}
	}
	return ix, st, nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// resolveCachePath returns the cache path from the --cache flag or the
// default under the target directory.
func resolveCachePath(targetDir string) string {
	if flagCache != "" {
		if filepath.IsAbs(flagCache) {
			return flagCache
		}
		return filepath.Join(targetDir, flagCache)
	}
	return filepath.Join(targetDir, ".arbor", "index.db")
}
