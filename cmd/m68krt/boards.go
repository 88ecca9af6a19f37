package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"omibyte.io/m68krt/targets"
)

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List the known boards",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tCPU\tROM\tRAM\tPOLICY\tDEVICES")
		for _, b := range targets.All() {
			fmt.Fprintf(tw, "%s\t%s\t%#x+%#x\t%#x+%#x\t%s\t%s\n", b.Name, b.Cpu, b.ROM.Origin, b.ROM.Length, b.RAM.Origin, b.RAM.Length, b.Policy, strings.Join(b.Devices, ","))
		}
		tw.Flush()
	},
}
