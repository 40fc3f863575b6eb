package tester

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mdouchement/boardlink"
	"github.com/mdouchement/boardlink/protocol"
	"github.com/spf13/cobra"
)

func Command(config func() boardlink.Config) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "tester",
		Short: "Start the interactive board tester",
		Long: `Start the interactive board tester.

In master mode, commands are sent as text lines to a master board which relays them.
In slave mode, commands are encoded and the frames are sent directly to a slave board.
Prefix a command with "raw" to send it untouched (hex bytes in slave mode).`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			if mode != ModeMaster && mode != ModeSlave {
				return fmt.Errorf("invalid mode %q (%s|%s)", mode, ModeMaster, ModeSlave)
			}

			cfg := config()

			var link *protocol.Link
			var err error
			if cfg.Link.Port == "" {
				link, err = protocol.OpenAuto(cfg.Link.BaudRate)
			} else {
				link, err = protocol.Open(cfg.Link.Port, cfg.Link.BaudRate)
			}
			if err != nil {
				return fmt.Errorf("link: %w", err)
			}
			defer link.Close()

			m := newTUI(link, mode, fmt.Sprintf("%s @ %d baud", link.Port(), cfg.Link.BaudRate))
			tui := tea.NewProgram(m, tea.WithAltScreen())

			go func() {
				var splitter boardlink.StreamSplitter
				buf := make([]byte, 64)

				for {
					n, err := link.Read(buf)
					if err != nil {
						tui.Send(lostMsg{err: err})
						return
					}

					splitter.Feed(buf[:n])
					for {
						chunk, ok := splitter.Next()
						if !ok {
							break
						}
						tui.Send(chunk)
					}
				}
			}()

			_, err = tui.Run()
			return err
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", ModeMaster, "Board mode: master (text) or slave (binary)")

	return cmd
}
