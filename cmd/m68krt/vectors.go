package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"omibyte.io/m68krt/builder"
)

var (
	vectorsOpts = struct {
		output string
	}{}

	vectorsCmd = &cobra.Command{
		Use:   "vectors [image.elf]",
		Short: "Show the vector table or dump it from a linked image",
		Long: `Without an argument, print the layout of the vector table of the board.
With a linked image, resolve every vector through its symbols and write the
table as Intel HEX.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(len(args) > 0)
			if err != nil {
				return err
			}
			table, err := c.table()
			if err != nil {
				return err
			}
			layout := builder.VectorLayout(table)
			if len(args) == 0 {
				printLayout(os.Stdout, layout)
				return nil
			}

			tc, err := builder.FindToolchain(builder.Environment())
			if err != nil {
				return err
			}
			syms, err := tc.Symbols(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			img, err := builder.BuildVectorImage(layout, syms, c.board.ROM.Origin)
			if err != nil {
				return err
			}

			var w io.Writer = os.Stdout
			if vectorsOpts.output != "" {
				f, err := os.Create(vectorsOpts.output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := img.WriteHex(w); err != nil {
				return err
			}
			log.Printf("%d vectors, %s, crc16 %#04x", img.Len(), img.Size(), img.Checksum)
			return nil
		},
	}
)

func init() {
	vectorsCmd.Flags().StringVarP(&vectorsOpts.output, "output", "o", "", "Intel HEX output file (default stdout)")
}

func printLayout(w io.Writer, layout []builder.Entry) {
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	fmt.Fprintln(tw, "VECTOR\tOFFSET\tSYMBOL\tSECTION\tDESCRIPTION")
	for _, e := range layout {
		symbol := e.Symbol
		switch {
		case symbol == "":
			symbol = "-"
		case e.Weak:
			symbol += "*"
		}
		fmt.Fprintf(tw, "%d\t%#05x\t%s\t%s\t%s\n", e.Vector, 4*e.Vector, symbol, e.Section, e.Comment)
	}
	tw.Flush()
}
