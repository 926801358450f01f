package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and print lint warnings",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadSettings(viper.GetViper())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		warnings := st.Engine.Lint()
		for _, w := range warnings {
			fmt.Fprintf(out, "warning [%s]: %s\n", w.Code, w.Message)
		}
		fmt.Fprintf(out, "configuration valid (%d warnings)\n", len(warnings))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
