package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/labshed/gpibctl/catalog"
	"github.com/labshed/gpibctl/console"
)

var rootCmd = &cobra.Command{
	Use:   "gpibctl",
	Short: "Drive lab test instruments over a serial link",
	Long: "gpibctl drives lab test instruments (power supplies, DC loads, an HP 3478A\n" +
		"multimeter) over a serial link, encoding instrument-specific commands and\n" +
		"streaming back numeric measurements.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	Run: func(cmd *cobra.Command, args []string) {
		cat, err := catalog.Default()
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to load instrument catalog: %w", err))
		}

		c := console.New(cat, os.Stdout)
		if err := c.Run(os.Stdin); err != nil {
			cobra.CheckErr(err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
