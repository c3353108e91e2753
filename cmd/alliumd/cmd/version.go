package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1aeo/allium-sub000/meta"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print git revision",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(meta.GitSHAFull)
	},
}

func init() {
	if meta.Populated() {
		rootCmd.AddCommand(versionCmd)
	}
}
