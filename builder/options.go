package builder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"omibyte.io/m68krt/rt"
	"omibyte.io/m68krt/targets"
	"omibyte.io/m68krt/transform"
)

// ProjectFile is looked up in the working directory when no project is
// given on the command line.
const ProjectFile = "m68krt.yaml"

type Options struct {
	Packages    []string
	Output      string
	Dir         string
	BuildTags   []string
	NumJobs     int
	Devices     []transform.Device
	Environment Env
	Verbose     bool

	// Copy stages unchanged files by copying them instead of linking.
	Copy bool
}

// Project is the optional project file. Values given on the command line
// take precedence.
type Project struct {
	Board    string          `yaml:"board"`
	Packages []string        `yaml:"packages"`
	Output   string          `yaml:"output"`
	Tags     []string        `yaml:"tags"`
	Devices  []string        `yaml:"devices"`
	Policy   string          `yaml:"policy"`
	ROM      *targets.Region `yaml:"rom"`
	RAM      *targets.Region `yaml:"ram"`

	// DevicePackages maps device names to the import paths of their
	// generated Go packages.
	DevicePackages map[string]string `yaml:"devicePackages"`

	// Dir is the directory the project file was read from. Relative paths
	// in the file are resolved against it.
	Dir string `yaml:"-"`
}

// LoadProject reads a project file. A missing default project file is not an
// error; the zero project is returned instead.
func LoadProject(path string) (*Project, error) {
	explicit := path != ""
	if !explicit {
		path = ProjectFile
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return &Project{Dir: "."}, nil
	} else if err != nil {
		return nil, err
	}

	var p Project
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, errors.Join(ErrInvalidProject, err)
	}
	if _, err := rt.ParseMemoryPolicy(p.Policy); err != nil {
		return nil, errors.Join(ErrInvalidProject, err)
	}
	p.Dir = filepath.Dir(path)
	return &p, nil
}

// Path resolves a path from the project file.
func (p *Project) Path(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Dir, path)
}

// DevicePaths returns the device description files named by the project.
func (p *Project) DevicePaths() []string {
	var result []string
	for _, d := range p.Devices {
		result = append(result, p.Path(d))
	}
	return result
}

// Apply fills the options not set on the command line.
func (p *Project) Apply(o *Options) {
	if len(o.Packages) == 0 {
		o.Packages = append(o.Packages, p.Packages...)
	}
	if o.Output == "" {
		o.Output = p.Path(p.Output)
	}
	o.BuildTags = append(o.BuildTags, p.Tags...)
	if board, err := p.Target(); err == nil && board.Name != "" {
		o.BuildTags = append(o.BuildTags, board.Tags...)
	}
	o.BuildTags = dedup(o.BuildTags)
}

// Target returns the board of the project with the memory map and policy
// overrides of the project applied.
func (p *Project) Target() (targets.Board, error) {
	var board targets.Board
	if p.Board != "" {
		var err error
		if board, err = targets.All().Find(p.Board); err != nil {
			return targets.Board{}, err
		}
	}
	if p.ROM != nil {
		board.ROM = *p.ROM
	}
	if p.RAM != nil {
		board.RAM = *p.RAM
	}
	if p.Policy != "" {
		board.Policy = p.Policy
	}
	if board.Name == "" {
		board.Name = "custom"
	}
	if err := board.Validate(); err != nil {
		return targets.Board{}, fmt.Errorf("%w: %v", ErrMemoryLayout, err)
	}
	return board, nil
}

func dedup(list []string) []string {
	seen := map[string]bool{}
	result := list[:0]
	for _, s := range list {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		result = append(result, s)
	}
	return result
}
