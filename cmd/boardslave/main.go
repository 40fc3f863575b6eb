package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"runtime"

	"github.com/mdouchement/boardlink"
	showcurves "github.com/mdouchement/boardlink/cmd/boardslave/show_curves"
	"github.com/mdouchement/boardlink/protocol"
	"github.com/mdouchement/logger"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cpath string
	port  string
	baud  int
)

func main() {
	cmd := &cobra.Command{
		Use:     "boardslave",
		Short:   "An emulated slave board answering boardlink frames on a serial port",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.NoArgs,
		RunE:    daemon,
	}
	cmd.Flags().StringVarP(&cpath, "config", "c", "/etc/boardlink/boardlink.yml", "Configfile path")
	cmd.Flags().StringVarP(&port, "port", "p", "", "Serial port (overrides link.port)")
	cmd.Flags().IntVarP(&baud, "baud", "b", 0, "Baud rate (overrides link.baud_rate)")
	cmd.AddCommand(showcurves.Command())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for boardslave",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(cmd.Version)
		},
	})

	if err := cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func daemon(_ *cobra.Command, args []string) error {
	cfg, err := boardlink.Load(cpath)
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Link.Port = port
	}
	if baud > 0 {
		cfg.Link.BaudRate = baud
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	h := logger.NewSlogTextHandler(os.Stdout, &logger.SlogTextOption{
		Level:            level,
		ForceColors:      true,
		ForceFormatting:  true,
		PrefixRE:         regexp.MustCompile(`^(\[.*?\])\s`),
		DisableTimestamp: true, // Provided by journalctl
	})
	log := logger.WrapSlogHandler(h)
	ctx := logger.WithLogger(context.Background(), log)

	log.Infof("boardslave version %s", version)

	var link *protocol.Link
	if cfg.Link.Port == "" {
		link, err = protocol.OpenAuto(cfg.Link.BaudRate)
	} else {
		link, err = protocol.Open(cfg.Link.Port, cfg.Link.BaudRate)
	}
	if err != nil {
		return fmt.Errorf("link: %w", err)
	}
	if cfg.Debug {
		link.SetLogger(log)
	}
	defer link.Close()

	log.Infof("Listening frames on `%s` @ %d baud", link.Port(), cfg.Link.BaudRate)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics := boardlink.NewMetrics()
	var monitor *boardlink.Monitor
	if cfg.Socket != "" {
		monitor, err = boardlink.NewMonitor(cfg.Socket, metrics)
		if err != nil {
			return err
		}
		monitor.Launch(ctx)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	err = boardlink.Supervise(ctx, link, boardlink.DummySlave(cfg, log, metrics, monitor))
	if err != nil {
		return err
	}

	log.Info("Gracefully shutdown")
	return nil
}
