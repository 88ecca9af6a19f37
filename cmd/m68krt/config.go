package main

import (
	"errors"
	"log"

	"omibyte.io/m68krt/builder"
	"omibyte.io/m68krt/device"
	"omibyte.io/m68krt/rt"
	"omibyte.io/m68krt/targets"
)

const projectFile = builder.ProjectFile

var errNoBoard = errors.New("no board selected: use --board or set board in " + projectFile)

// config is what every command derives from the project file and the global
// flags.
type config struct {
	project *builder.Project
	board   targets.Board
	devices []*device.Device
}

func loadConfig(needBoard bool) (*config, error) {
	project, err := builder.LoadProject(globalOpts.project)
	if err != nil {
		return nil, err
	}
	if globalOpts.board != "" {
		project.Board = globalOpts.board
	}

	c := &config{project: project}
	if needBoard && project.Board == "" && project.ROM == nil {
		return nil, errNoBoard
	}
	if project.Board != "" || project.ROM != nil {
		if c.board, err = project.Target(); err != nil {
			return nil, err
		}
	}

	var names []string
	names = append(names, c.board.Devices...)
	names = append(names, project.DevicePaths()...)
	names = append(names, globalOpts.devices...)
	seen := map[string]bool{}
	for _, name := range names {
		d, err := device.Resolve(name)
		if err != nil {
			return nil, err
		}
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		if d.Package == "" {
			d.Package = project.DevicePackages[d.Name]
		}
		if globalOpts.verbose {
			log.Printf("device %s: %d interrupts", d.Name, len(d.Interrupts))
		}
		c.devices = append(c.devices, d)
	}
	return c, nil
}

func (c *config) policy() (rt.MemoryPolicy, error) {
	return rt.ParseMemoryPolicy(c.board.Policy)
}

// table is the vector table of the devices alone, as the linker sees it
// before any handler is bound.
func (c *config) table() (*rt.Table, error) {
	t := rt.NewTable()
	if err := device.DeclareAll(c.devices)(t); err != nil {
		return nil, err
	}
	return t, nil
}
