package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/mdouchement/boardlink"
	"github.com/mdouchement/boardlink/cmd/boardmaster/monitor"
	"github.com/mdouchement/boardlink/cmd/boardmaster/ports"
	"github.com/mdouchement/boardlink/cmd/boardmaster/tester"
	"github.com/mdouchement/boardlink/protocol"
	"github.com/mdouchement/logger"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v4"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"
)

func main() {
	var (
		cpath string
		dummy bool
		cfg   = boardlink.Default()
	)

	cmd := &cobra.Command{
		Use:     "boardmaster",
		Short:   "Relay console commands to a slave board",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cpath != "" {
				c, err := boardlink.Load(cpath)
				if err != nil {
					return err
				}
				cfg = c
			}

			if cmd.Flags().Changed("port") {
				cfg.Link.Port, _ = cmd.Flags().GetString("port")
			}
			if cmd.Flags().Changed("baud") {
				cfg.Link.BaudRate, _ = cmd.Flags().GetInt("baud")
			}
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return console(cfg, dummy)
		},
	}
	cmd.PersistentFlags().StringVarP(&cpath, "config", "c", "", "Configfile path (defaults are used when empty)")
	cmd.PersistentFlags().StringP("port", "p", "", "Serial port (overrides link.port)")
	cmd.PersistentFlags().IntP("baud", "b", protocol.DefaultBaudRate, "Baud rate (overrides link.baud_rate)")
	cmd.Flags().BoolVarP(&dummy, "dummy", "", false, "Relay to an in-process emulated slave")
	cmd.AddCommand(ports.Command())
	cmd.AddCommand(tester.Command(func() boardlink.Config { return cfg }))
	cmd.AddCommand(monitor.Command(findSocket))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for boardmaster",
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

func console(cfg boardlink.Config, dummy bool) error {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	h := logger.NewSlogTextHandler(os.Stderr, &logger.SlogTextOption{
		Level:           level,
		ForceColors:     true,
		ForceFormatting: true,
		PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	log := logger.WrapSlogHandler(h)
	ctx := logger.WithLogger(context.Background(), log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	var link io.ReadWriter
	status := "link dummy"

	if dummy {
		local, remote := net.Pipe()
		defer local.Close()
		defer remote.Close()

		go func() {
			err := boardlink.Supervise(ctx, remote, boardlink.DummySlave(cfg, log, nil, nil))
			if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				log.WithError(err).Error("Dummy slave stopped")
			}
		}()
		link = local
	} else {
		var l *protocol.Link
		var err error
		if cfg.Link.Port == "" {
			l, err = protocol.OpenAuto(cfg.Link.BaudRate)
		} else {
			l, err = protocol.Open(cfg.Link.Port, cfg.Link.BaudRate)
		}
		if err != nil {
			return fmt.Errorf("link: %w", err)
		}
		if cfg.Debug {
			l.SetLogger(log)
		}
		defer l.Close()

		link = l
		status = fmt.Sprintf("link %s @ %d baud", l.Port(), cfg.Link.BaudRate)
	}

	fmt.Println("Commands: ping | reset | status | pwm <1-4> <0-255> | servo <0-180> | neo <0|1|2|3|ff> | digital <pinid> <0|1>")

	m := boardlink.NewMaster(link, os.Stdout, log)
	m.SetStatus(func() string {
		return status
	})

	err := m.Run(ctx, os.Stdin)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

//
//
//

type config struct {
	Socket string `yaml:"socket"`
}

func findSocket() (string, error) {
	socket := "/run/boardlink/boardslave.sock"
	if _, err := os.Stat(socket); err == nil {
		return socket, nil
	}

	u, err := user.Current()
	if err != nil {
		return "", err
	}

	var cfg config
	cpath := filepath.Join(u.HomeDir, ".config", "boardmaster", "boardmaster.yml") // Does not follow XDG..
	if p, err := os.ReadFile(cpath); err == nil {
		err = yaml.Unmarshal(p, &cfg)
		if err != nil {
			return "", err
		}

		if _, err = os.Stat(cfg.Socket); err == nil {
			return cfg.Socket, nil
		}

		fmt.Println("Invalid socket path:", cfg.Socket)
	}

	fmt.Print("Enter a socket path: ")
	r := bufio.NewReader(os.Stdin)
	socket, err = r.ReadString('\n')
	if err != nil {
		return "", err
	}

	socket = strings.TrimSpace(socket)

	if err = os.MkdirAll(filepath.Dir(cpath), 0o755); err != nil {
		return "", err
	}

	cfg.Socket = socket
	p, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	return socket, os.WriteFile(cpath, p, 0o600)
}
