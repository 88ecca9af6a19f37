package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set by the linker for release builds.
var version = ""

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the m68krt version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		v := version
		if v == "" {
			v = "devel"
			if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
				v = info.Main.Version
			}
		}
		fmt.Printf("m68krt version %s %s %s/%s\n", v, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
