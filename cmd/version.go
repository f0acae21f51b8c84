package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Get().String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
