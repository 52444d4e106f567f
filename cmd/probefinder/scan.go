package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/russellvd/probefinder/internal/probe"
	"github.com/russellvd/probefinder/internal/transport/goble"
	"github.com/russellvd/probefinder/registry"
	"github.com/russellvd/probefinder/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby probes",
	Long: `Scan for probe devices and display their names, identities,
signal strength, and proximity estimates.`,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanRefresh  time.Duration
	scanFormat   string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (0 uses the configured default)")
	scanCmd.Flags().DurationVar(&scanRefresh, "refresh", 0, "Periodic re-scan interval to refresh signal readings")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "", "Output format (table, json)")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if scanDuration > 0 {
		cfg.ScanDuration = scanDuration
	}
	if scanRefresh > 0 {
		cfg.RefreshInterval = scanRefresh
	}
	if scanFormat != "" {
		cfg.OutputFormat = scanFormat
	}
	if cfg.OutputFormat != "table" && cfg.OutputFormat != "json" {
		return fmt.Errorf("invalid format %q: must be table or json", cfg.OutputFormat)
	}

	cmd.SilenceUsage = true

	provider := goble.NewProvider(logger)
	if err := provider.Initialize(); err != nil {
		return err
	}

	reg := registry.New(logger)
	sess := scanner.NewSession(provider, reg, logger)

	opts := scanner.DefaultOptions()
	opts.Duration = cfg.ScanDuration
	opts.RefreshInterval = cfg.RefreshInterval

	if err := sess.Start(opts); err != nil {
		return err
	}
	defer func() { _ = sess.Stop() }()

	// Wait for the session to auto-stop, or for Ctrl+C.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	deadline := time.NewTimer(cfg.ScanDuration)
	defer deadline.Stop()

	fmt.Printf("Scanning for probes (%s)...\n", cfg.ScanDuration)
	select {
	case <-deadline.C:
	case <-sigCh:
		fmt.Println("\nScan interrupted")
	}
	_ = sess.Stop()

	return displayRecords(reg.List(), cfg.OutputFormat)
}

func displayRecords(records []*registry.Record, format string) error {
	if len(records) == 0 {
		fmt.Println("No probes discovered")
		return nil
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tID\tMODEL\tSERIAL\tBATTERY\tRSSI\tPROXIMITY")
	for _, rec := range records {
		model, serial, battery := "-", "-", "-"
		if rec.Identity != nil {
			model = rec.Identity.ModelName()
			serial = rec.Identity.SerialNumber
			battery = fmt.Sprintf("%d%%", rec.Identity.Battery)
		}
		prox := rec.Proximity()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d dBm\t%s\n",
			rec.DisplayName(), rec.ID, model, serial, battery, rec.RSSI, colorizeProximity(prox))
	}
	return w.Flush()
}

func colorizeProximity(p probe.Proximity) string {
	switch p.Severity {
	case probe.SeverityStrong:
		return color.GreenString(p.Label)
	case probe.SeverityGood:
		return color.CyanString(p.Label)
	case probe.SeverityWeak:
		return color.YellowString(p.Label)
	case probe.SeverityVeryWeak:
		return color.RedString(p.Label)
	default:
		return p.Label
	}
}
