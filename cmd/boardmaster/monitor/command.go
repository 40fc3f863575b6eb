package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mdouchement/boardlink"
	"github.com/spf13/cobra"
)

func Command(findSocket func() (string, error)) *cobra.Command {
	var socket string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Start the TUI monitor display of a boardslave",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			if socket == "" {
				var err error
				socket, err = findSocket()
				if err != nil {
					return err
				}
			}

			client := &http.Client{
				Transport: &http.Transport{
					DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
						var d net.Dialer
						return d.DialContext(ctx, "unix", socket)
					},
				},
			}

			resp, err := client.Get("http://unix/monitor")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode >= 300 { // Should never happen
				b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
				return fmt.Errorf("sse bad status: %s body=%q", resp.Status, string(b))
			}

			m := newTUI()
			tui := tea.NewProgram(m, tea.WithAltScreen())

			go func() {
				for {
					event, err := boardlink.ReadSSE(resp.Body)
					if err != nil {
						tui.Quit()
						fmt.Println("ERR:", err)
						os.Exit(1)
					}
					if len(event) == 0 {
						continue
					}

					var state boardlink.BoardState
					err = json.Unmarshal(event, &state)
					if err != nil {
						tui.Quit()
						fmt.Println("ERR:", err)
						os.Exit(1)
					}

					tui.Send(state)
				}
			}()

			_, err = tui.Run()
			return err
		},
	}
	cmd.Flags().StringVarP(&socket, "socket", "s", "", "boardslave monitor socket")

	return cmd
}
