// Package targets describes the boards the runtime knows how to lay out:
// the memory map, the RAM initialization policy and the build tags the
// board's packages are built with.
package targets

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

//go:embed targets.yaml
var rawTargets []byte

var targets Targets

var (
	ErrBoardNotFound = errors.New("board not found")
	ErrInvalidRegion = errors.New("invalid memory region")
)

func All() Targets {
	return targets
}

// Region is one block of the memory map.
type Region struct {
	Origin uint32 `yaml:"origin"`
	Length uint32 `yaml:"length"`
}

func (r Region) End() uint64 {
	return uint64(r.Origin) + uint64(r.Length)
}

func (r Region) Overlaps(o Region) bool {
	return uint64(r.Origin) < o.End() && uint64(o.Origin) < r.End()
}

type Board struct {
	Name        string   `yaml:"name"`
	Aliases     []string `yaml:"aliases"`
	Cpu         string   `yaml:"cpu"`
	Description string   `yaml:"description"`
	ROM         Region   `yaml:"rom"`
	RAM         Region   `yaml:"ram"`
	Policy      string   `yaml:"policy"`
	Tags        []string `yaml:"tags"`
	Devices     []string `yaml:"devices"`
}

// Validate checks the memory map of the board.
func (b Board) Validate() error {
	if b.ROM.Length == 0 {
		return fmt.Errorf("%w: %s has an empty ROM", ErrInvalidRegion, b.Name)
	}
	if b.RAM.Length == 0 {
		return fmt.Errorf("%w: %s has an empty RAM", ErrInvalidRegion, b.Name)
	}
	if b.ROM.End() > 1<<32 || b.RAM.End() > 1<<32 {
		return fmt.Errorf("%w: %s exceeds the address space", ErrInvalidRegion, b.Name)
	}
	if b.ROM.Overlaps(b.RAM) {
		return fmt.Errorf("%w: %s ROM and RAM overlap", ErrInvalidRegion, b.Name)
	}
	if b.ROM.Origin%4 != 0 || b.RAM.Origin%4 != 0 {
		return fmt.Errorf("%w: %s regions must be long aligned", ErrInvalidRegion, b.Name)
	}
	return nil
}

type Targets []Board

func (t Targets) Find(name string) (Board, error) {
	name = strings.ToLower(name)
	for _, board := range t {
		if board.Name == name || slices.Contains(board.Aliases, name) {
			return board, nil
		}
	}
	return Board{}, fmt.Errorf("%w: %s", ErrBoardNotFound, name)
}

func (t Targets) FindByCpu(cpu string) Targets {
	var result Targets
	for _, board := range t {
		if board.Cpu == strings.ToLower(cpu) {
			result = append(result, board)
		}
	}
	return result
}

// Parse decodes a list of boards in the format of the embedded table.
func Parse(b []byte) (Targets, error) {
	var t struct {
		Elements Targets `yaml:"targets"`
	}
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, err
	}
	for _, board := range t.Elements {
		if err := board.Validate(); err != nil {
			return nil, err
		}
	}
	return t.Elements, nil
}

func init() {
	var err error
	if targets, err = Parse(rawTargets); err != nil {
		panic(err)
	}
}
