package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"omibyte.io/m68krt/builder"
	"omibyte.io/m68krt/device"
)

var (
	deviceOpts = struct {
		output string
		pkg    string
		list   bool
	}{}

	deviceCmd = &cobra.Command{
		Use:   "device [description]",
		Short: "Generate the Go package declaring the interrupts of a device",
		Long: `Generate the Go package declaring the interrupts of a device, together with
the device.x fragment of weak aliases. The description is a YAML or SVD file,
or the name of a builtin device.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deviceOpts.list || len(args) == 0 {
				for _, name := range device.Builtins() {
					fmt.Println(name)
				}
				return nil
			}

			d, err := device.Resolve(args[0])
			if err != nil {
				return err
			}
			if deviceOpts.pkg != "" {
				d.Package = deviceOpts.pkg
			}

			var src bytes.Buffer
			if err := device.WriteGo(&src, d); err != nil {
				return err
			}
			var script bytes.Buffer
			table, err := (&config{devices: []*device.Device{d}}).table()
			if err != nil {
				return err
			}
			if err := builder.WriteDeviceScript(&script, table); err != nil {
				return err
			}

			if err := os.MkdirAll(deviceOpts.output, outputDirPerms); err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(deviceOpts.output, "interrupts.go"), src.Bytes(), outputPerms); err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(deviceOpts.output, builder.DeviceScript), script.Bytes(), outputPerms); err != nil {
				return err
			}
			fmt.Printf("package %s: %d interrupts written to %s\n", d.PackageName(), len(d.Interrupts), deviceOpts.output)
			return nil
		},
	}
)

func init() {
	deviceCmd.Flags().StringVarP(&deviceOpts.output, "output", "o", ".", "output directory")
	deviceCmd.Flags().StringVar(&deviceOpts.pkg, "package", "", "import path of the generated package")
	deviceCmd.Flags().BoolVarP(&deviceOpts.list, "list", "l", false, "list the builtin devices")
}
