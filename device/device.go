// Package device loads device descriptions: the interrupts a board's
// peripherals raise and the vectors they raise them on. Descriptions are
// written in YAML or taken from a CMSIS-SVD file.
package device

import (
	"embed"
	"errors"
	"fmt"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"omibyte.io/m68krt/device/svd"
	"omibyte.io/m68krt/rt"
	"omibyte.io/m68krt/transform"
)

//go:embed descriptions/*.yaml
var builtin embed.FS

var (
	ErrInvalidDevice = errors.New("invalid device description")
	ErrUnknownDevice = errors.New("unknown device")
	ErrUnknownFormat = errors.New("unknown device description format")
)

type Interrupt struct {
	Name        string `yaml:"name"`
	Vector      int    `yaml:"vector"`
	Level       int    `yaml:"level,omitempty"`
	Description string `yaml:"description,omitempty"`
}

type Peripheral struct {
	Name        string `yaml:"name"`
	BaseAddress uint32 `yaml:"base"`
	Description string `yaml:"description,omitempty"`
}

type Device struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Cpu         string       `yaml:"cpu,omitempty"`
	Package     string       `yaml:"package,omitempty"`
	Peripherals []Peripheral `yaml:"peripherals,omitempty"`
	Interrupts  []Interrupt  `yaml:"interrupts"`
}

// Load reads a description from a file. The format follows the extension:
// .yaml and .yml for YAML, .svd and .xml for CMSIS-SVD.
func Load(fname string) (*Device, error) {
	b, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	var d *Device
	switch strings.ToLower(filepath.Ext(fname)) {
	case ".yaml", ".yml":
		d, err = Parse(b)
	case ".svd", ".xml":
		d, err = ParseSVD(b)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, fname)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	return d, nil
}

// Builtin returns one of the descriptions shipped with the runtime.
func Builtin(name string) (*Device, error) {
	b, err := builtin.ReadFile(path.Join("descriptions", strings.ToLower(name)+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
	return Parse(b)
}

// Builtins lists the names of the shipped descriptions.
func Builtins() []string {
	entries, _ := builtin.ReadDir("descriptions")
	var result []string
	for _, entry := range entries {
		result = append(result, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	return result
}

// Resolve loads a description by file name or, failing that, by builtin
// name.
func Resolve(name string) (*Device, error) {
	if _, err := os.Stat(name); err == nil {
		return Load(name)
	}
	return Builtin(name)
}

func Parse(b []byte) (*Device, error) {
	var d Device
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, errors.Join(ErrInvalidDevice, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseSVD converts a CMSIS-SVD description. The value of an SVD interrupt
// is its number in the user vector area.
func ParseSVD(b []byte) (*Device, error) {
	dev, err := svd.Decode(b)
	if err != nil {
		return nil, errors.Join(ErrInvalidDevice, err)
	}
	d := &Device{
		Name:        strings.ToLower(dev.Name),
		Description: strings.Join(strings.Fields(dev.Description), " "),
		Cpu:         strings.ToLower(dev.CPU.Name),
	}
	for _, p := range dev.Peripherals.Elements {
		d.Peripherals = append(d.Peripherals, Peripheral{
			Name:        p.Name,
			BaseAddress: uint32(p.BaseAddress),
			Description: strings.Join(strings.Fields(p.Description), " "),
		})
		// Derived peripherals share the interrupts of their base.
		if len(p.DerivedFrom) > 0 {
			continue
		}
		for _, irq := range p.Interrupts {
			d.Interrupts = append(d.Interrupts, Interrupt{
				Name:        irq.Name,
				Vector:      rt.VectorUser + int(irq.Value),
				Description: strings.Join(strings.Fields(irq.Description), " "),
			})
		}
	}

	// SVD files list an interrupt under every peripheral raising it.
	slices.SortStableFunc(d.Interrupts, func(a, b Interrupt) bool {
		return a.Vector < b.Vector
	})
	d.Interrupts = slices.CompactFunc(d.Interrupts, func(a, b Interrupt) bool {
		return a.Name == b.Name && a.Vector == b.Vector
	})

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks that every interrupt can be bound by a handler: exported
// Go identifiers distinct from the core exceptions, on distinct vectors a
// device may use.
func (d *Device) Validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("device has no name"))
	}
	names := map[string]bool{}
	vectors := map[int]string{}
	for _, irq := range d.Interrupts {
		if !token.IsIdentifier(irq.Name) || !token.IsExported(irq.Name) {
			errs = append(errs, fmt.Errorf("interrupt %q is not an exported Go identifier", irq.Name))
		}
		if _, ok := rt.LookupException(irq.Name); ok {
			errs = append(errs, fmt.Errorf("interrupt %s shadows a core exception", irq.Name))
		}
		if names[irq.Name] {
			errs = append(errs, fmt.Errorf("interrupt %s declared twice", irq.Name))
		}
		names[irq.Name] = true
		if !rt.ValidInterruptVector(irq.Vector) {
			errs = append(errs, fmt.Errorf("interrupt %s: vector %d is not available to devices", irq.Name, irq.Vector))
		} else if prev, ok := vectors[irq.Vector]; ok {
			errs = append(errs, fmt.Errorf("interrupt %s: vector %d already used by %s", irq.Name, irq.Vector, prev))
		}
		vectors[irq.Vector] = irq.Name
		if irq.Level < 0 || irq.Level > 7 {
			errs = append(errs, fmt.Errorf("interrupt %s: level %d out of range", irq.Name, irq.Level))
		}
		if irq.Vector > rt.VectorSpurious && irq.Vector < rt.VectorTrap && irq.Level != 0 && irq.Level != irq.Vector-rt.VectorAutovector {
			errs = append(errs, fmt.Errorf("interrupt %s: autovector %d is raised at level %d", irq.Name, irq.Vector, irq.Vector-rt.VectorAutovector))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDevice, d.Name, errors.Join(errs...))
	}
	return nil
}

// Declare adds the interrupts to t.
func (d *Device) Declare(t *rt.Table) error {
	for _, irq := range d.Interrupts {
		if err := t.Declare(irq.Name, uint8(irq.Vector)); err != nil {
			return fmt.Errorf("%s: %w", d.Name, err)
		}
	}
	return nil
}

// Transform returns what the handler transform needs to know about d.
func (d *Device) Transform() transform.Device {
	td := transform.Device{Path: d.Package, Name: d.PackageName()}
	for _, irq := range d.Interrupts {
		td.Interrupts = append(td.Interrupts, irq.Name)
	}
	return td
}

// PackageName is the name of the generated Go package.
func (d *Device) PackageName() string {
	if d.Package != "" {
		return sanitize(path.Base(d.Package))
	}
	return sanitize(d.Name)
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9' && b.Len() > 0) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 || token.IsKeyword(b.String()) {
		return "device"
	}
	return b.String()
}

// DeclareAll declares the interrupts of every device in t.
func DeclareAll(devices []*Device) func(*rt.Table) error {
	return func(t *rt.Table) error {
		for _, d := range devices {
			if err := d.Declare(t); err != nil {
				return err
			}
		}
		return nil
	}
}
