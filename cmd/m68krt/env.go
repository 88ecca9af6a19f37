package main

import (
	"os"

	"github.com/spf13/cobra"

	"omibyte.io/m68krt/builder"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print m68krt environment information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		builder.Environment().Print(os.Stdout)
	},
}
