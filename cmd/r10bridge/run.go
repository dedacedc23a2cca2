package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/r10bridge/internal/gattbus"
	"github.com/srg/r10bridge/internal/launchmonitor"
	"github.com/srg/r10bridge/internal/lmproto"
	"github.com/srg/r10bridge/internal/normalize"
	"github.com/srg/r10bridge/internal/r10errors"
	"github.com/srg/r10bridge/internal/sink"
	"github.com/srg/r10bridge/pkg/config"
)

var (
	runDeviceAddr string
	runHCIIndex   int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to an R10 and bridge its shots to the configured sinks",
	Long: `Connect to a Garmin Approach R10, perform the handshake and startup
sequence, and stream decoded shots to the TCP client sink, the text-line
server sink, and the putting-camera HTTP endpoint. Reconnects on disconnect
with the configured delay until interrupted.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runDeviceAddr, "device", "", "R10 MAC address (overrides config)")
	runCmd.Flags().IntVar(&runHCIIndex, "hci", -1, "Local adapter HCI index (overrides config)")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	if runDeviceAddr != "" {
		cfg.Device.Address = runDeviceAddr
	}
	if runHCIIndex >= 0 {
		cfg.Adapter.HCIIndex = runHCIIndex
	}
	if cfg.Device.Address == "" {
		return ErrDeviceAddressRequired
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}

	cmd.SilenceUsage = true
	log := logrus.NewEntry(cfg.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		log.Info("shutdown requested")
		cancel()
	}()

	bus, err := gattbus.Dial()
	if err != nil {
		return err
	}
	defer bus.Close()
	if err := bus.EnsureAgent(); err != nil {
		return fmt.Errorf("register pairing agent: %w", err)
	}

	fanout, stopSinks, err := buildSinks(cfg, log)
	if err != nil {
		return err
	}
	defer stopSinks()

	adapter := gattbus.Adapter{Address: cfg.Adapter.Address, HCIIndex: cfg.Adapter.HCIIndex}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := runOneSession(ctx, bus, adapter, cfg, log, fanout); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Warn("session ended, reconnecting")
		}

		backoff := NewCountdownProgressPrinter("Reconnecting", "waiting", cfg.Device.ReconnectDelay)
		backoff.Start()
		select {
		case <-ctx.Done():
			backoff.Stop()
			return nil
		case <-time.After(cfg.Device.ReconnectDelay):
			backoff.Stop()
		}
	}
}

// runOneSession connects, runs setupSession, and blocks until the device
// disconnects or the context is cancelled, mirroring the reconnect-loop
// teardown spec.md §4.6 describes: a fresh Session and header byte on
// every reconnect, cancellation propagated into the transport's close.
func runOneSession(ctx context.Context, bus *gattbus.Bus, adapter gattbus.Adapter, cfg *config.Config, log *logrus.Entry, fanout *sink.Fanout) error {
	progress := NewProgressPrinter(fmt.Sprintf("Connecting to %s", cfg.Device.Address), "Connecting", "Running")
	progress.Start()
	defer progress.Stop()

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Device.ConnectTimeout)
	transport, err := gattbus.Connect(connectCtx, bus, log, adapter, cfg.Device.Address)
	cancel()
	if err != nil {
		return err
	}
	defer transport.Close()

	mon := launchmonitor.New(transport, log, launchmonitor.Config{
		AutoWake:           cfg.AutoWake,
		CalibrateOnStartup: cfg.CalibrateOnStartup,
		ShotConfig: lmproto.ShotConfigRequest{
			TemperatureF: cfg.ShotConfig.TemperatureF,
			Humidity:     cfg.ShotConfig.Humidity,
			AltitudeM:    cfg.ShotConfig.AltitudeM,
			AirDensity:   cfg.ShotConfig.AirDensity,
			TeeRangeM:    cfg.ShotConfig.TeeRangeM,
		},
	})
	mon.OnShot(func(metrics *lmproto.ShotMetrics) { fanout.OnShot(normalize.Shot(metrics)) })
	mon.OnReadinessChanged(fanout.OnReadinessChanged)
	mon.OnError(fanout.OnError)

	if err := mon.Setup(ctx); err != nil {
		return err
	}
	progress.Callback()("Running")
	log.WithField("device", cfg.Device.Address).Info("r10bridge: session ready")

	select {
	case <-ctx.Done():
		return nil
	case <-transport.Disconnected():
		return r10errors.ErrDisconnected
	}
}

func buildSinks(cfg *config.Config, log *logrus.Entry) (*sink.Fanout, func(), error) {
	var sinks []sink.Sink
	var closers []func()

	tcpClient := sink.NewTCPShotClient(cfg.Sinks.TCPShotAddr, log, cfg.Device.ReconnectDelay)
	sinks = append(sinks, tcpClient)
	closers = append(closers, func() { _ = tcpClient.Close() })

	textServer := sink.NewTextLineServer(log)
	ln, err := net.Listen("tcp", cfg.Sinks.TextLineAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("text line server listen: %w", err)
	}
	go textServer.Serve(ln)
	sinks = append(sinks, textServer)
	closers = append(closers, func() { textServer.Close(); _ = ln.Close() })

	fanout := sink.NewFanout(sinks...)

	puttingHandler := sink.NewPuttingHTTPHandler(fanout, log)
	mux := http.NewServeMux()
	mux.Handle("/putt", puttingHandler)
	httpServer := &http.Server{Addr: cfg.Sinks.PuttingHTTPAddr, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("putting http server stopped")
		}
	}()
	closers = append(closers, func() { _ = httpServer.Close() })

	stop := func() {
		for _, c := range closers {
			c()
		}
	}
	return fanout, stop, nil
}

func loadConfigFromFlags(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}
