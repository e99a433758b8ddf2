package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"moorlog/internal/codec"
	"moorlog/internal/mapping"
)

var (
	serialsOnly bool

	spoolSerial    string
	spoolStatus    string
	spoolYear      string
	spoolNotes     string
	spoolEV50      string
	spoolMinLength string
	spoolMaxLength string

	releaseSerial    string
	releaseType      string
	releaseIntFreq   string
	releaseReplyFreq string
)

var cruisesCmd = &cobra.Command{
	Use:   "cruises <kind>",
	Short: "List the distinct cruises recorded for a kind",
	Args:  cobra.ExactArgs(1),
	RunE:  runCruises,
}

var spoolCmd = &cobra.Command{
	Use:   "spool <serial>",
	Short: "Show the deployments that carried a nylon spool",
	Long: `Searches the nylon spools of every deployment, newest first.

Rows of the legacy flat deployments table are included unless a
normalized record already covers the same mooring and date.`,
	Args: cobra.ExactArgs(1),
	RunE: runSpool,
}

var spoolsCmd = &cobra.Command{
	Use:   "spools",
	Short: "Search the spool inventory",
	Args:  cobra.NoArgs,
	RunE:  runSpools,
}

var releaseCmd = &cobra.Command{
	Use:   "release <serial>",
	Short: "Show the deployments that carried an acoustic release",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelease,
}

var releasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "Search the acoustic releases recorded on deployments",
	Args:  cobra.NoArgs,
	RunE:  runReleases,
}

func init() {
	spoolsCmd.Flags().BoolVar(&serialsOnly, "serials", false, "Print serial numbers only")
	spoolsCmd.Flags().StringVar(&spoolSerial, "serial", "", "Serial number contains")
	spoolsCmd.Flags().StringVar(&spoolStatus, "status", "", "Status")
	spoolsCmd.Flags().StringVar(&spoolYear, "year", "", "Year")
	spoolsCmd.Flags().StringVar(&spoolNotes, "notes", "", "Notes contain")
	spoolsCmd.Flags().StringVar(&spoolEV50, "ev50", "", "EV50 flag")
	spoolsCmd.Flags().StringVar(&spoolMinLength, "min-length", "", "Minimum length")
	spoolsCmd.Flags().StringVar(&spoolMaxLength, "max-length", "", "Maximum length")

	releasesCmd.Flags().BoolVar(&serialsOnly, "serials", false, "Print serial numbers only")
	releasesCmd.Flags().StringVar(&releaseSerial, "serial", "", "Serial number contains")
	releasesCmd.Flags().StringVar(&releaseType, "type", "", "Release type contains")
	releasesCmd.Flags().StringVar(&releaseIntFreq, "int-freq", "", "Interrogate frequency contains")
	releasesCmd.Flags().StringVar(&releaseReplyFreq, "reply-freq", "", "Reply frequency contains")

	rootCmd.AddCommand(cruisesCmd, spoolCmd, spoolsCmd, releaseCmd, releasesCmd)
}

func runCruises(cmd *cobra.Command, args []string) error {
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

	cruises, err := m.Cruises(ctx, kind)
	if err != nil {
		return err
	}
	for _, c := range cruises {
		fmt.Fprintln(cmd.OutOrStdout(), c)
	}
	return nil
}

func runSpool(cmd *cobra.Command, args []string) error {
	ctx, cancel := opContext(cmd)
	defer cancel()
	m, err := openMapper(ctx, false)
	if err != nil {
		return err
	}

	uses, err := m.FindSpool(ctx, args[0])
	if err != nil {
		return err
	}
	if len(uses) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "spool %s not found in any deployment\n", strings.TrimSpace(args[0]))
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tMOORING\tSITE\tDEPTH\tPOSITION\tLENGTH")
	for _, u := range uses {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", u.DepDate, u.MooringID, u.Site, u.Depth, u.Position, codec.Text(u.Length))
	}
	return w.Flush()
}

func parseLength(flag, value string) (*float64, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q", flag, value)
	}
	return &f, nil
}

func runSpools(cmd *cobra.Command, args []string) error {
	minLength, err := parseLength("min-length", spoolMinLength)
	if err != nil {
		return err
	}
	maxLength, err := parseLength("max-length", spoolMaxLength)
	if err != nil {
		return err
	}

	ctx, cancel := opContext(cmd)
	defer cancel()
	m, err := openMapper(ctx, false)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if serialsOnly {
		serials, err := m.SpoolSerials(ctx)
		if err != nil {
			return err
		}
		for _, s := range serials {
			fmt.Fprintln(out, s)
		}
		return nil
	}

	spools, err := m.SearchSpools(ctx, mapping.SpoolQuery{
		Serial:    spoolSerial,
		Notes:     spoolNotes,
		Status:    spoolStatus,
		Year:      spoolYear,
		EV50:      spoolEV50,
		MinLength: minLength,
		MaxLength: maxLength,
	})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERIAL\tLENGTH\tSTATUS\tYEAR\tEV50\tNOTES")
	for _, s := range spools {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", s.Serial, codec.Text(s.Length), s.Status, s.Year, s.EV50, s.Notes)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d spools\n", len(spools))
	return nil
}

func runRelease(cmd *cobra.Command, args []string) error {
	ctx, cancel := opContext(cmd)
	defer cancel()
	m, err := openMapper(ctx, false)
	if err != nil {
		return err
	}

	uses, err := m.FindRelease(ctx, args[0])
	if err != nil {
		return err
	}
	if len(uses) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "release %s not found in any deployment\n", strings.TrimSpace(args[0]))
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tMOORING\tSITE\tDEPTH\tPOSITION\tTYPE\tINT\tREPLY")
	for _, u := range uses {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			u.DepDate, u.MooringID, u.Site, u.Depth, u.Position, u.Type, u.IntFreq, u.ReplyFreq)
	}
	return w.Flush()
}

func runReleases(cmd *cobra.Command, args []string) error {
	ctx, cancel := opContext(cmd)
	defer cancel()
	m, err := openMapper(ctx, false)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if serialsOnly {
		serials, err := m.ReleaseSerials(ctx)
		if err != nil {
			return err
		}
		for _, s := range serials {
			fmt.Fprintln(out, s)
		}
		return nil
	}

	releases, err := m.SearchReleases(ctx, mapping.ReleaseQuery{
		Serial:    releaseSerial,
		Type:      releaseType,
		IntFreq:   releaseIntFreq,
		ReplyFreq: releaseReplyFreq,
	})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERIAL\tTYPE\tINT\tREPLY\tRELEASE\tDISABLE\tENABLE")
	for _, r := range releases {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.Serial, r.Type, r.IntFreq, r.ReplyFreq, r.Release, r.Disable, r.Enable)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d releases\n", len(releases))
	return nil
}
