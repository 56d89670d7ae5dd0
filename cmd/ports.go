package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/labshed/gpibctl/transport"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available serial ports",
	Long:  "List the serial devices present on the system, with USB details where known.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ports, err := transport.ListPorts()
		if err != nil {
			cobra.CheckErr(err)
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
			return
		}
		for _, p := range ports {
			if p.VID != "" {
				fmt.Printf("%s (USB VID=%s PID=%s SN=%s)\n", p.Name, p.VID, p.PID, p.SerialNumber)
			} else {
				fmt.Println(p.Name)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
