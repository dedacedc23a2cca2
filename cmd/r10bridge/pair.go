package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/r10bridge/internal/gattbus"
)

var (
	pairDeviceAddr string
	pairHCIIndex   int
	pairTimeout    time.Duration
)

var pairCmd = &cobra.Command{
	Use:   "pair <device-address>",
	Short: "Register the pairing agent and bond with an R10",
	Long: `One-time host pairing helper: registers a NoInputNoOutput pairing agent
(the R10 rejects any pairing attempt carrying the MITM flag BlueZ's built-in
default agent sets) and connects once to trigger in-band bonding. Run this
before 'r10bridge run' if the device has never been bonded at the host level.`,
	Args: cobra.ExactArgs(1),
	RunE: runPair,
}

func init() {
	pairCmd.Flags().IntVar(&pairHCIIndex, "hci", 0, "Local adapter HCI index")
	pairCmd.Flags().DurationVar(&pairTimeout, "timeout", 30*time.Second, "Connect/bond timeout")
}

func runPair(cmd *cobra.Command, args []string) error {
	pairDeviceAddr = args[0]

	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return err
	}
	log := logrus.NewEntry(logger)
	cmd.SilenceUsage = true

	bus, err := gattbus.Dial()
	if err != nil {
		return err
	}
	defer bus.Close()

	if err := bus.EnsureAgent(); err != nil {
		return fmt.Errorf("register pairing agent: %w", err)
	}
	log.Info("pairing agent registered as default")

	ctx, cancel := context.WithTimeout(context.Background(), pairTimeout)
	defer cancel()

	adapter := gattbus.Adapter{HCIIndex: pairHCIIndex}
	transport, err := gattbus.Connect(ctx, bus, log, adapter, pairDeviceAddr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", pairDeviceAddr, err)
	}
	defer transport.Close()

	if err := transport.EnableProtectedNotifier(ctx); err != nil {
		return fmt.Errorf("enable protected notifier (triggers in-band pairing): %w", err)
	}

	fmt.Printf("Paired and bonded with %s\n", pairDeviceAddr)
	return nil
}
