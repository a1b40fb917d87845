package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"beacon-calibrator.klederson.com/internal/app"
	"beacon-calibrator.klederson.com/internal/beacon"
	"beacon-calibrator.klederson.com/internal/bluetooth"
	"beacon-calibrator.klederson.com/internal/calibration"
	"beacon-calibrator.klederson.com/internal/config"
	"beacon-calibrator.klederson.com/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagDemo        bool
	flagDemoCrowded bool
	flagConfig      string
	flagVerbose     bool
	flagLogFile     string
	flagUUID        string
	flagMajor       int
	flagMinor       int
	flagDuration    time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "beacon-calibrator",
		Short: "Beacon Calibrator - measure the 1 meter power of an iBeacon",
		Long: `Beacon Calibrator ranges a single iBeacon for a fixed window, discards
outlying RSSI samples and reports the beacon's measured power at 1 meter.

Hold the device one meter from the beacon for the whole run. The run fails
if more than one beacon of the selected region is visible.

Requires sudo or CAP_NET_ADMIN capability for real Bluetooth scanning.
Use --demo flag for demonstration mode without Bluetooth hardware.`,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
		RunE:              runCalibrate,
	}

	rootCmd.PersistentFlags().BoolVar(&flagDemo, "demo", false, "Run in demo mode with fake beacons (no Bluetooth required)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Write logs to this file")

	rootCmd.Flags().BoolVar(&flagDemoCrowded, "demo-crowded", false, "In demo mode, let a second beacon appear in the same region")
	rootCmd.Flags().StringVar(&flagUUID, "uuid", config.SupportedProximityUUIDs[0], "Proximity UUID of the beacon to calibrate")
	rootCmd.Flags().IntVar(&flagMajor, "major", -1, "Major value to match (-1 matches any)")
	rootCmd.Flags().IntVar(&flagMinor, "minor", -1, "Minor value to match (-1 matches any)")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "List nearby beacons of the supported regions, grouped by proximity",
		Args:  cobra.NoArgs,
		RunE:  runScan,
	}
	scanCmd.Flags().DurationVar(&flagDuration, "duration", 5*time.Second, "How long to range before listing")
	rootCmd.AddCommand(scanCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	if flagVerbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	switch {
	case flagLogFile != "":
		f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return pkgerrors.Wrapf(err, "failed to open log file %s", flagLogFile)
		}
		logrus.SetOutput(f)
	case cmd.Name() != "scan":
		// The TUI owns the terminal.
		logrus.SetOutput(io.Discard)
	}
	return nil
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	logrus.WithFields(cfg.LogrusFields()).Debug("config loaded")

	region, err := targetRegion()
	if err != nil {
		return err
	}

	port, source := newScanner(cfg)

	model := app.New(port, region, source, cfg)
	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithFPS(config.TargetFPS),
	)
	model.Attach(p)
	defer model.Close()

	_, err = p.Run()
	return err
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	regions := make([]beacon.Region, 0, len(cfg.ProximityUUIDs))
	for _, u := range cfg.ProximityUUIDs {
		r, err := beacon.NewRegion(u)
		if err != nil {
			return err
		}
		regions = append(regions, r)
	}

	scanner, _ := newScanner(cfg)
	batches, err := scanner.Range(regions...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
		fmt.Fprintln(os.Stderr, "Bluetooth scanning requires elevated permissions.")
		fmt.Fprintln(os.Stderr, "Try one of:")
		fmt.Fprintln(os.Stderr, "  sudo ./beacon-calibrator scan")
		fmt.Fprintln(os.Stderr, "  sudo setcap cap_net_admin+ep ./beacon-calibrator")
		fmt.Fprintln(os.Stderr, "  ./beacon-calibrator scan --demo    (demo mode, no hardware needed)")
		return err
	}

	store := bluetooth.NewBeaconStore(cfg.PathLossExponent)
	fmt.Fprintf(os.Stderr, "Ranging %d regions for %s...\n", len(regions), flagDuration)

	n := store.Collect(batches, flagDuration, config.SightingTimeout)
	scanner.Stop()

	logrus.WithField("beacons", n).Debug("ranging finished")
	fmt.Println(ui.RenderBeaconList(store.ByProximity(), 80))
	return nil
}

func targetRegion() (beacon.Region, error) {
	region, err := beacon.NewRegion(flagUUID)
	if err != nil {
		return beacon.Region{}, err
	}
	if flagMajor >= 0 {
		if flagMajor > 0xFFFF {
			return beacon.Region{}, fmt.Errorf("major out of range: %d", flagMajor)
		}
		region = region.WithMajor(uint16(flagMajor))
	}
	if flagMinor >= 0 {
		if flagMinor > 0xFFFF {
			return beacon.Region{}, fmt.Errorf("minor out of range: %d", flagMinor)
		}
		region = region.WithMinor(uint16(flagMinor))
	}
	return region, nil
}

// newScanner picks the mock or the BLE scanner, plus a label for the menu bar.
func newScanner(cfg *config.File) (*bluetooth.Scanner, string) {
	if flagDemo {
		return bluetooth.NewMockScanner(cfg.ScanInterval, flagDemoCrowded), "demo"
	}
	return bluetooth.NewBLEScanner(cfg.ScanInterval), "ble"
}

var _ calibration.ScanningPort = (*bluetooth.Scanner)(nil)
