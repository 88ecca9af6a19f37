package builder

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Symbols maps symbol names to addresses.
type Symbols map[string]uint32

// ReadSymbols parses the output of nm in its default BSD format. Undefined
// symbols are skipped.
func ReadSymbols(r io.Reader) (Symbols, error) {
	result := Symbols{}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		switch {
		case len(fields) == 0:
			continue
		case len(fields) == 2 && (fields[0] == "U" || fields[0] == "w" || fields[0] == "v"):
			continue
		case len(fields) != 3:
			// Archive member headers and file names.
			if strings.HasSuffix(fields[len(fields)-1], ":") {
				continue
			}
			return nil, fmt.Errorf("nm output line %d: unexpected %q", line, scanner.Text())
		}
		addr, err := strconv.ParseUint(fields[0], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("nm output line %d: %w", line, err)
		}
		result[fields[2]] = uint32(addr)
	}
	return result, scanner.Err()
}

// Lookup resolves name, falling back to the default handler the linker
// script aliases unbound vectors to.
func (s Symbols) Lookup(name string, weak bool) (uint32, error) {
	if addr, ok := s[name]; ok {
		return addr, nil
	}
	if weak {
		if addr, ok := s[defaultHandler]; ok {
			return addr, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUndefinedSymbol, name)
}
