package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"omibyte.io/m68krt/diagnostics"
)

var (
	globalOpts = struct {
		project string
		board   string
		devices []string
		verbose bool
	}{}

	rootCmd = &cobra.Command{
		Use:   "m68krt",
		Short: "Startup runtime and handler generator for m68k targets",
		Long: `m68krt transforms annotated handler functions into the trampolines the m68k
vector table expects and emits the linker script, startup assembly and vector
table image of a program.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&globalOpts.project, "project", "", "project file (default "+projectFile+" if present)")
	rootCmd.PersistentFlags().StringVarP(&globalOpts.board, "board", "b", "", "target board")
	rootCmd.PersistentFlags().StringSliceVarP(&globalOpts.devices, "device", "d", nil, "device description file or builtin device name")
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false, "print progress")

	rootCmd.AddCommand(genCmd, linkCmd, deviceCmd, vectorsCmd, envCmd, boardsCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		report(err)
		os.Exit(1)
	}
}

// report prints err on standard error, one diagnostic per line.
func report(err error) {
	w, color := diagnostics.Stderr()
	wd, _ := os.Getwd()
	diagnostics.CreateDiagnostics(err).WriteTo(w, wd, color)
}
