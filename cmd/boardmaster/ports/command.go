package ports

import (
	"fmt"

	"github.com/mdouchement/boardlink/protocol"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "Show the available serial ports",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			ports, err := protocol.Ports()
			if err != nil {
				return err
			}

			if len(ports) == 0 {
				fmt.Println("No serial port found")
				return nil
			}

			for _, p := range ports {
				if !p.IsUSB {
					fmt.Printf("%-20s\n", p.Name)
					continue
				}

				bridge, ok := protocol.Bridge(p)
				if !ok {
					bridge = "unknown bridge"
				}
				fmt.Printf("%-20s %s:%s  %-16s SN: %s\n", p.Name, p.VID, p.PID, bridge, p.SerialNumber)
			}

			return nil
		},
	}
}
