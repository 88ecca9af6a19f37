package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"omibyte.io/m68krt/builder"
	"omibyte.io/m68krt/device"
)

var (
	genOpts = struct {
		output string
		tags   string
		jobs   int
		copy   bool
		link   bool
	}{}

	genCmd = &cobra.Command{
		Use:   "gen [packages]",
		Short: "Transform the handlers of packages",
		Long: `Transform the handlers of packages and stage the result in the output
directory. Files without handlers are linked into the staged package
unchanged. Nothing is written when any handler is rejected.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(genOpts.link)
			if err != nil {
				return err
			}

			opts := builder.Options{
				Packages:    args,
				Output:      genOpts.output,
				NumJobs:     genOpts.jobs,
				Environment: builder.Environment(),
				Verbose:     globalOpts.verbose,
				Copy:        genOpts.copy,
			}
			if len(genOpts.tags) > 0 {
				opts.BuildTags = strings.Split(genOpts.tags, ",")
			}
			for _, d := range c.devices {
				opts.Devices = append(opts.Devices, d.Transform())
			}
			c.project.Apply(&opts)

			result, err := builder.Generate(cmd.Context(), opts)
			if err != nil {
				return err
			}

			// Bind everything once now so that a handler the runtime would
			// reject fails the build instead of the first reset.
			table, err := result.Table(device.DeclareAll(c.devices))
			if err != nil {
				return err
			}
			fmt.Printf("%d handlers in %d packages staged in %s\n", len(result.Handlers()), len(result.Packages), result.Output)

			if genOpts.link {
				return writeLinkFiles(result.Output, c, table)
			}
			return nil
		},
	}
)

func init() {
	genCmd.Flags().StringVarP(&genOpts.output, "output", "o", "", "staging directory (default ./build)")
	genCmd.Flags().StringVarP(&genOpts.tags, "tags", "t", "", "comma separated build tags")
	genCmd.Flags().IntVarP(&genOpts.jobs, "jobs", "j", runtime.NumCPU(), "number of packages transformed concurrently")
	genCmd.Flags().BoolVar(&genOpts.copy, "copy", false, "copy unchanged files instead of linking them")
	genCmd.Flags().BoolVar(&genOpts.link, "link", false, "also write the linker script and startup assembly")
}
