package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/inhies/go-bytesize"
	"github.com/spf13/cobra"

	"omibyte.io/m68krt/builder"
	"omibyte.io/m68krt/rt"
)

const (
	linkScript     = "link.x"
	startupAsm     = "startup.s"
	startupObj     = "startup.o"
	outputPerms    = 0640
	outputDirPerms = 0750
)

var (
	linkOpts = struct {
		output   string
		assemble bool
	}{}

	linkCmd = &cobra.Command{
		Use:   "link",
		Short: "Write the linker script and startup assembly of a board",
		Long: `Write link.x, device.x and startup.s for the board. The linker script
places the vector table at the origin of ROM and aliases every unbound vector
to DefaultHandler. The aliases of device interrupts live in device.x, which
link.x includes after its own.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(true)
			if err != nil {
				return err
			}
			table, err := c.table()
			if err != nil {
				return err
			}
			if err := writeLinkFiles(linkOpts.output, c, table); err != nil {
				return err
			}
			if !linkOpts.assemble {
				return nil
			}

			tc, err := builder.FindToolchain(builder.Environment())
			if err != nil {
				return err
			}
			obj := filepath.Join(linkOpts.output, startupObj)
			if err := tc.Assemble(cmd.Context(), filepath.Join(linkOpts.output, startupAsm), obj, c.board.Cpu); err != nil {
				return err
			}
			if globalOpts.verbose {
				log.Printf("assembled %s", obj)
			}
			return nil
		},
	}
)

func init() {
	linkCmd.Flags().StringVarP(&linkOpts.output, "output", "o", ".", "output directory")
	linkCmd.Flags().BoolVar(&linkOpts.assemble, "assemble", false, "assemble the startup code with the m68k binutils")
}

func writeLinkFiles(dir string, c *config, table *rt.Table) error {
	policy, err := c.policy()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, outputDirPerms); err != nil {
		return err
	}

	var script bytes.Buffer
	opts := builder.LinkOptions{
		ROM:    c.board.ROM,
		RAM:    c.board.RAM,
		Policy: policy,
		Device: len(table.Interrupts()) > 0,
	}
	if err := builder.WriteLinkScript(&script, table, opts); err != nil {
		return err
	}
	files := map[string][]byte{linkScript: script.Bytes()}

	if opts.Device {
		var device bytes.Buffer
		if err := builder.WriteDeviceScript(&device, table); err != nil {
			return err
		}
		files[builder.DeviceScript] = device.Bytes()
	}

	var startup bytes.Buffer
	if err := builder.WriteStartup(&startup, builder.VectorLayout(table), policy); err != nil {
		return err
	}
	files[startupAsm] = startup.Bytes()

	for name, b := range files {
		fname := filepath.Join(dir, name)
		if err := os.WriteFile(fname, b, outputPerms); err != nil {
			return err
		}
		if globalOpts.verbose {
			log.Printf("wrote %s (%s)", fname, bytesize.New(float64(len(b))))
		}
	}
	fmt.Printf("%s: %s policy, ROM %#x+%#x, RAM %#x+%#x\n", c.board.Name, policy, c.board.ROM.Origin, c.board.ROM.Length, c.board.RAM.Origin, c.board.RAM.Length)
	return nil
}
