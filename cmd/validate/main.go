// Command validate checks a simulation output directory against the input
// table without writing anything: the table parses, every row has exactly
// one output file, and every file holds a readable, plausible trajectory.
//
// Usage:
//
//	validate --input LocationDateForBruce.xlsx --output-dir z_output
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/drift-batch/internal/adapter/netcdf"
	"github.com/couchcryptid/drift-batch/internal/adapter/table"
	"github.com/couchcryptid/drift-batch/internal/config"
	"github.com/couchcryptid/drift-batch/internal/domain"
	"github.com/couchcryptid/drift-batch/internal/merge"
	"github.com/couchcryptid/drift-batch/internal/observability"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var input, outputDir string
	cmd := &cobra.Command{
		Use:           "validate",
		Short:         "Check simulation outputs against the input table",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !run(cmd.Context(), cmd.OutOrStdout(), cfg, input, outputDir) {
				return errors.New("validation failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", cfg.MergeInput, "input table (.xlsx or .csv)")
	cmd.Flags().StringVar(&outputDir, "output-dir", cfg.OutputDir, "directory holding simulation output files")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, cfg *config.Config, input, outputDir string) bool {
	fmt.Fprintln(w, "=== Drift Output Validation ===")
	fmt.Fprintln(w)

	// Validation output is the report below; keep library logs quiet.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := table.NewStore()
	reader := netcdf.NewReader()

	tbl, err := store.Read(input)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load input table: %v\n", err)
		return false
	}
	files, err := merge.ListOutputs(outputDir)
	if err != nil {
		fmt.Fprintf(w, "FATAL: %v\n", err)
		return false
	}

	m := merge.New(store, reader, logger, observability.NewUnregisteredMetrics(), merge.Options{
		OutputDir:        outputDir,
		Join:             cfg.MergeJoin,
		SkipFill:         cfg.MergeSkipFill,
		IdentifierColumn: cfg.Settings.Columns.Identifier,
		Columns:          cfg.Settings.Merge,
	})

	phases := []*phase{
		validateTable(tbl, cfg.Settings),
		validatePairing(ctx, m, input),
		validateTrajectories(reader, files),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Rows: %d, output files: %d, join: %s\n", tbl.Len(), len(files), m.Join())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return true
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return false
}

func validateTable(tbl *domain.Table, s config.Settings) *phase {
	p := &phase{name: "Phase 1: Input Table"}
	if _, err := tbl.Records(s.Columns, s.TimeLayout); err != nil {
		p.errorf("%v", err)
	}
	return p
}

func validatePairing(ctx context.Context, m *merge.Merger, input string) *phase {
	p := &phase{name: "Phase 2: Output Files (one per row)"}
	err := m.Validate(ctx, input)
	if err == nil {
		return p
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			p.errorf("%v", e)
		}
		return p
	}
	p.errorf("%v", err)
	return p
}

func validateTrajectories(reader *netcdf.Reader, files []string) *phase {
	p := &phase{name: "Phase 3: Trajectory Sanity"}
	for _, f := range files {
		tr, err := reader.ReadTrajectory(f)
		if err != nil {
			// Reported by phase 2.
			continue
		}
		pos, err := tr.Terminal(true)
		if err != nil {
			p.errorf("%s: %v", filepath.Base(f), err)
			continue
		}
		if pos.Lat < -90 || pos.Lat > 90 || pos.Lon < -360 || pos.Lon > 360 {
			p.errorf("%s: terminal position (%s, %s) outside valid range", filepath.Base(f), pos.FormatLat(), pos.FormatLon())
		}
	}
	return p
}
