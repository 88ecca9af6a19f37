package builder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/inhies/go-bytesize"
	"github.com/marcinbor85/gohex"
	"github.com/sigurn/crc16"
)

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// VectorImage is the resolved vector table of a linked program: one big
// endian long word per vector, starting at Base.
type VectorImage struct {
	Base     uint32
	Data     []byte
	Checksum uint16
}

// BuildVectorImage resolves the symbols of layout. Every unresolved symbol
// is reported.
func BuildVectorImage(layout []Entry, syms Symbols, base uint32) (*VectorImage, error) {
	data := make([]byte, 4*len(layout))
	var errs []error
	for i, e := range layout {
		if e.Symbol == "" {
			continue
		}
		addr, err := syms.Lookup(e.Symbol, e.Weak)
		if err != nil {
			errs = append(errs, fmt.Errorf("vector %d: %w", e.Vector, err))
			continue
		}
		binary.BigEndian.PutUint32(data[4*i:], addr)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &VectorImage{Base: base, Data: data, Checksum: crcOf(data)}, nil
}

// Entry returns the address stored for vector v.
func (img *VectorImage) Entry(v int) uint32 {
	if v < 0 || 4*v+4 > len(img.Data) {
		return 0
	}
	return binary.BigEndian.Uint32(img.Data[4*v:])
}

func (img *VectorImage) Len() int {
	return len(img.Data) / 4
}

func (img *VectorImage) Size() bytesize.ByteSize {
	return bytesize.New(float64(len(img.Data)))
}

// WriteHex writes the image as Intel HEX.
func (img *VectorImage) WriteHex(w io.Writer) error {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(img.Base, img.Data); err != nil {
		return err
	}
	return mem.DumpIntelHex(w, 16)
}

// ReadVectorImage reads an image written by WriteHex.
func ReadVectorImage(r io.Reader) (*VectorImage, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, err
	}
	segments := mem.GetDataSegments()
	if len(segments) != 1 {
		return nil, fmt.Errorf("vector image has %d segments, want 1", len(segments))
	}
	seg := segments[0]
	if len(seg.Data)%4 != 0 {
		return nil, fmt.Errorf("vector image length %d is not a multiple of 4", len(seg.Data))
	}
	return &VectorImage{Base: seg.Address, Data: seg.Data, Checksum: crcOf(seg.Data)}, nil
}

func crcOf(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
