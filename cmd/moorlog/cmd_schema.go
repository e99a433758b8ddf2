package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Add missing columns and back-fill renamed ones",
	Long: `Brings every record table up to the current column catalog.

Columns that exist under any accepted name are left alone. Values in
deprecated columns are copied into their replacement where it is empty.
With migrations.bootstrap set, missing tables are created first.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show how each record field resolves against the live tables",
	Args:  cobra.NoArgs,
	RunE:  runInspect,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := opContext(cmd)
	defer cancel()

	m, err := openMapper(ctx, true)
	if err != nil {
		return err
	}
	res, err := m.Migrate(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, t := range res.Created {
		fmt.Fprintf(out, "created table %s\n", t)
	}
	for _, c := range res.Added {
		fmt.Fprintf(out, "added column %s\n", c)
	}
	copied := make([]string, 0, len(res.Copied))
	for k, n := range res.Copied {
		if n > 0 {
			copied = append(copied, k)
		}
	}
	sort.Strings(copied)
	for _, k := range copied {
		fmt.Fprintf(out, "back-filled %s: %d rows\n", k, res.Copied[k])
	}
	fmt.Fprintf(out, "%d tables created, %d columns added, %d already present (%s)\n",
		len(res.Created), len(res.Added), res.Skipped, res.Duration.Round(time.Millisecond))
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx, cancel := opContext(cmd)
	defer cancel()

	m, err := openMapper(ctx, false)
	if err != nil {
		return err
	}
	reports, err := m.Inspect(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tTABLE\tCOLUMNS\tRESOLVED\tUNRESOLVED")
	for _, r := range reports {
		if !r.Exists {
			fmt.Fprintf(w, "%s\t%s\t-\t-\ttable missing\n", r.Kind, r.Table)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", r.Kind, r.Table, r.Columns, len(r.Resolved), len(r.Unresolved))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, r := range reports {
		if r.Exists && len(r.Unresolved) > 0 {
			fmt.Fprintf(out, "\n%s fields with no column in %s:\n  %s\n", r.Kind, r.Table, strings.Join(r.Unresolved, ", "))
		}
	}
	if verbose {
		for _, r := range reports {
			renamed := make([]string, 0)
			for field, col := range r.Resolved {
				if field != col {
					renamed = append(renamed, fmt.Sprintf("%s -> %s", field, col))
				}
			}
			sort.Strings(renamed)
			if len(renamed) > 0 {
				fmt.Fprintf(out, "\n%s fields stored under another name:\n  %s\n", r.Kind, strings.Join(renamed, "\n  "))
			}
		}
	}
	return nil
}
