package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"moorlog/internal/codec"
	"moorlog/internal/mapping"
)

var (
	saveFile string
	saveID   int64

	searchSite      string
	searchMooring   string
	searchCruise    string
	searchPersonnel string
)

var saveCmd = &cobra.Command{
	Use:   "save <kind>",
	Short: "Insert or update a record from form values",
	Long: `Reads form values from a YAML or JSON file and saves them as a
deployment, recovery or repair record.

Without --id a new record is inserted. With --id the existing record is
updated in place, touching only the fields present in the file.`,
	Args: cobra.ExactArgs(1),
	RunE: runSave,
}

var showCmd = &cobra.Command{
	Use:   "show <kind> <id>",
	Short: "Print a stored record with its documents decoded",
	Args:  cobra.ExactArgs(2),
	RunE:  runShow,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <kind> <id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(2),
	RunE:  runDelete,
}

var searchCmd = &cobra.Command{
	Use:   "search <kind>",
	Short: "List records matching the given criteria",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var sitesCmd = &cobra.Command{
	Use:   "sites <kind>",
	Short: "List the distinct sites recorded for a kind",
	Args:  cobra.ExactArgs(1),
	RunE:  runSites,
}

func runSave(cmd *cobra.Command, args []string) error {
	kind, err := mapping.ParseKind(args[0])
	if err != nil {
		return err
	}
	in, err := readInput(cmd, saveFile)
	if err != nil {
		return err
	}

	ctx, cancel := opContext(cmd)
	defer cancel()
	m, err := openMapper(ctx, false)
	if err != nil {
		return err
	}

	outcome := m.Submit(ctx, kind, saveID, in)
	if !outcome.Success {
		return fmt.Errorf("%s", outcome.Message)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, outcome.Message)
	labels := make([]string, 0, len(outcome.Confirmed))
	for l := range outcome.Confirmed {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Fprintf(out, "  %s: %v\n", l, outcome.Confirmed[l])
	}
	for _, w := range outcome.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	return nil
}

// readInput decodes form values from path. JSON is accepted as YAML.
func readInput(cmd *cobra.Command, path string) (mapping.Input, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var in mapping.Input
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", codec.ErrMalformedInput, err)
	}
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: %s has no form values", codec.ErrMalformedInput, path)
	}
	return in, nil
}

func parseRecordArgs(args []string) (mapping.KindName, int64, error) {
	kind, err := mapping.ParseKind(args[0])
	if err != nil {
		return "", 0, err
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("invalid record id %q", args[1])
	}
	return kind, id, nil
}

func runShow(cmd *cobra.Command, args []string) error {
	kind, id, err := parseRecordArgs(args)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(cmd)
	defer cancel()
	m, err := openMapper(ctx, false)
	if err != nil {
		return err
	}

	rec, err := m.Load(ctx, kind, id)
	if err != nil {
		return err
	}
	view := map[string]any{
		"kind":      rec.Kind,
		"row":       rec.Row,
		"documents": rec.Documents,
	}
	if len(rec.Slots) > 0 {
		view["slots"] = slotViews(rec.Slots)
	}
	b, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

// timingView shows the clock error as M:SS instead of its stored integer.
type timingView struct {
	mapping.ClockErrorEntry
	ClockError *string `json:"clock_error"`
}

type slotView struct {
	Position   int                     `json:"position"`
	Instrument mapping.InstrumentEntry `json:"instrument"`
	Timing     timingView              `json:"timing"`
}

func slotViews(slots mapping.Slots) []slotView {
	out := make([]slotView, len(slots))
	for i, s := range slots {
		out[i] = slotView{
			Position:   s.Position,
			Instrument: s.Instrument,
			Timing:     timingView{ClockErrorEntry: s.Timing},
		}
		if s.Timing.ClockError != nil {
			display := codec.FormatClockError(*s.Timing.ClockError)
			out[i].Timing.ClockError = &display
		}
	}
	return out
}

func runDelete(cmd *cobra.Command, args []string) error {
	kind, id, err := parseRecordArgs(args)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(cmd)
	defer cancel()
	m, err := openMapper(ctx, false)
	if err != nil {
		return err
	}

	if err := m.Delete(ctx, kind, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s record %d.\n", kind, id)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	kind, err := mapping.ParseKind(args[0])
	if err != nil {
		return err
	}
	criteria := make(map[string]string)
	for name, value := range map[string]string{
		"site":      searchSite,
		"mooring":   searchMooring,
		"cruise":    searchCruise,
		"personnel": searchPersonnel,
	} {
		if value != "" {
			criteria[name] = value
		}
	}

	ctx, cancel := opContext(cmd)
	defer cancel()
	m, err := openMapper(ctx, false)
	if err != nil {
		return err
	}
	k, err := m.Kind(kind)
	if err != nil {
		return err
	}
	rows, err := m.Search(ctx, kind, criteria)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprint(w, "ID")
	for _, sf := range k.Search {
		fmt.Fprintf(w, "\t%s", sf.Name)
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		fmt.Fprintf(w, "%v", row["id"])
		for _, sf := range k.Search {
			fmt.Fprintf(w, "\t%s", firstValue(row, sf.Columns))
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d %s records\n", len(rows), kind)
	return nil
}

func firstValue(row map[string]any, columns []string) string {
	for _, c := range columns {
		if v, ok := row[c]; ok && codec.Present(v) {
			return codec.Text(v)
		}
	}
	return ""
}

func runSites(cmd *cobra.Command, args []string) error {
	kind, err := mapping.ParseKind(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := opContext(cmd)
	defer cancel()
	m, err := openMapper(ctx, false)
	if err != nil {
		return err
	}

	sites, err := m.Sites(ctx, kind)
	if err != nil {
		return err
	}
	for _, s := range sites {
		fmt.Fprintln(cmd.OutOrStdout(), s)
	}
	return nil
}
