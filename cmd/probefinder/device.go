package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/russellvd/probefinder/internal/probe"
	"github.com/russellvd/probefinder/internal/transport/goble"
	"github.com/russellvd/probefinder/pkg/config"
	"github.com/russellvd/probefinder/session"
)

var batteryCmd = &cobra.Command{
	Use:   "battery <address>",
	Short: "Read the probe's battery state of charge",
	Args:  cobra.ExactArgs(1),
	RunE:  runBattery,
}

var beepCmd = &cobra.Command{
	Use:   "beep <address>",
	Short: "Make the probe emit a locator beep",
	Args:  cobra.ExactArgs(1),
	RunE:  runBeep,
}

var serialCmd = &cobra.Command{
	Use:   "serial <address>",
	Short: "Request the probe's serial number",
	Long: `Connect, subscribe to command acknowledgments, and send the
request-serial command. The serial arrives asynchronously in an
acknowledgment frame.`,
	Args: cobra.ExactArgs(1),
	RunE: runSerial,
}

var pointsCmd = &cobra.Command{
	Use:   "points <address>",
	Short: "List the probe's services and characteristics",
	Args:  cobra.ExactArgs(1),
	RunE:  runPoints,
}

var (
	batteryWatch bool
	serialWait   time.Duration
)

func init() {
	batteryCmd.Flags().BoolVarP(&batteryWatch, "watch", "w", false, "Poll the battery level until interrupted")
	serialCmd.Flags().DurationVar(&serialWait, "wait", 10*time.Second, "How long to wait for the acknowledgment")
}

// withSession connects to a probe, runs fn, and always disconnects.
func withSession(cmd *cobra.Command, address string, fn func(*session.Session, *config.Config, *logrus.Logger) error) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	provider := goble.NewProvider(logger)
	if err := provider.Initialize(); err != nil {
		return err
	}

	sess := session.New(provider, address, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	if err := sess.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = sess.Disconnect() }()

	return fn(sess, cfg, logger)
}

func runBattery(cmd *cobra.Command, args []string) error {
	return withSession(cmd, args[0], func(sess *session.Session, cfg *config.Config, logger *logrus.Logger) error {
		status, err := sess.ReadStatus()
		if err != nil {
			return err
		}
		fmt.Printf("Battery: %d%%\n", status)

		if !batteryWatch {
			return nil
		}

		pollErr := make(chan error, 1)
		err = sess.StartPolling(cfg.PollInterval,
			func(status uint8) { fmt.Printf("Battery: %d%%\n", status) },
			func(err error) { pollErr <- err },
		)
		if err != nil {
			return err
		}
		defer sess.StopPolling()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case <-sigCh:
			return nil
		case err := <-pollErr:
			return fmt.Errorf("battery polling stopped: %w", err)
		}
	})
}

func runBeep(cmd *cobra.Command, args []string) error {
	return withSession(cmd, args[0], func(sess *session.Session, _ *config.Config, _ *logrus.Logger) error {
		if err := sess.SendCommand(probe.CommandBeep); err != nil {
			return err
		}
		fmt.Println("Beep command sent")
		return nil
	})
}

func runSerial(cmd *cobra.Command, args []string) error {
	return withSession(cmd, args[0], func(sess *session.Session, _ *config.Config, logger *logrus.Logger) error {
		frames := make(chan *probe.AckFrame, 1)
		err := sess.RequestSerialNumber(
			func(frame *probe.AckFrame) {
				select {
				case frames <- frame:
				default:
				}
			},
			func(err error) {
				logger.WithError(err).Warn("Undecodable acknowledgment")
			},
		)
		if err != nil {
			return err
		}

		select {
		case frame := <-frames:
			fmt.Printf("Acknowledgment: type=%c code=0x%02X seq=%d status=%d\n",
				frame.CommandType, frame.CommandCode, frame.CommandNumber, frame.CommandStatus)
			return nil
		case <-time.After(serialWait):
			return fmt.Errorf("no acknowledgment within %s", serialWait)
		}
	})
}

func runPoints(cmd *cobra.Command, args []string) error {
	return withSession(cmd, args[0], func(sess *session.Session, _ *config.Config, _ *logrus.Logger) error {
		services, err := sess.InteractionPoints()
		if err != nil {
			return err
		}

		uuids := make([]string, 0, len(services))
		for svc := range services {
			uuids = append(uuids, svc)
		}
		sort.Strings(uuids)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SERVICE\tCHARACTERISTIC")
		for _, svc := range uuids {
			for _, char := range services[svc] {
				fmt.Fprintf(w, "%s\t%s\n", svc, char)
			}
		}
		return w.Flush()
	})
}
