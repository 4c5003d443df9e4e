package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var matroskaExts = map[string]bool{
	".mkv":  true,
	".mka":  true,
	".mks":  true,
	".mk3d": true,
	".webm": true,
}

// isMatroskaFile matches Matroska extensions, optionally xz-compressed.
func isMatroskaFile(name string) bool {
	name = strings.TrimSuffix(strings.ToLower(name), ".xz")
	return matroskaExts[filepath.Ext(name)]
}

func (a *app) batchCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "batch [flags] <dir>",
		Short: "Validate every Matroska file under a directory",
		Long: `batch walks a directory and validates each .mkv, .mka, .mks, .mk3d and
.webm file (also .xz compressed). Each file gets diagnostics.jsonl and
acceptance.json in its own directory under --out-dir.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			err := filepath.WalkDir(args[0], func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && isMatroskaFile(d.Name()) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return &ExitError{Code: exitFatal, Err: err}
			}
			if len(files) == 0 {
				return &ExitError{Code: exitUsage, Err: fmt.Errorf("no Matroska files under %s", args[0])}
			}

			worst := exitValid
			for _, path := range files {
				rel, err := filepath.Rel(args[0], path)
				if err != nil {
					rel = filepath.Base(path)
				}
				dir := filepath.Join(outDir, strings.TrimSuffix(rel, filepath.Ext(rel)))
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return &ExitError{Code: exitFatal, Err: err}
				}
				rc := a.run
				rc.quiet = true
				rc.diagnostics = filepath.Join(dir, "diagnostics.jsonl")
				rc.acceptance = filepath.Join(dir, "acceptance.json")

				code, err := a.validatePath(cmd.Context(), path, rc, a.stdout)
				status := map[int]string{exitValid: "PASS", exitInvalid: "FAIL", exitFatal: "FATAL"}[code]
				if err != nil {
					fmt.Fprintf(a.stdout, "%-5s %s: %v\n", status, rel, err)
				} else {
					fmt.Fprintf(a.stdout, "%-5s %s\n", status, rel)
				}
				if code > worst {
					worst = code
				}
			}
			if worst != exitValid {
				return &ExitError{Code: worst}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "out", "results directory")
	return cmd
}
