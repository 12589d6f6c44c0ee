package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/sigrun/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write a default configuration file",
	Long: `Config writes the built-in defaults to a file. The extension picks
the format: .yaml/.yml writes YAML, anything else writes JSON.`,
	RunE: runConfig,
}

var configOut string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVarP(&configOut, "out", "o", "sigrun.yaml", "output path")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := config.Default().SaveToFile(configOut); err != nil {
		return err
	}
	fmt.Printf("wrote defaults to %s\n", configOut)
	return nil
}
