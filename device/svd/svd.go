// Package svd decodes the parts of a CMSIS-SVD device description that
// describe interrupts and peripheral base addresses.
package svd

import (
	"encoding/xml"
	"strconv"
	"strings"
)

type Integer uint64

func (h *Integer) UnmarshalXML(d *xml.Decoder, start xml.StartElement) (err error) {
	var v string
	if err = d.DecodeElement(&v, &start); err != nil {
		return err
	}
	value, err := ParseInteger(v)
	if err != nil {
		return err
	}
	*h = Integer(value)
	return nil
}

// ParseInteger parses the scaled non-negative integers of SVD: decimal,
// 0x hexadecimal and # binary.
func ParseInteger(v string) (uint64, error) {
	v = strings.TrimSpace(v)
	switch {
	case strings.HasPrefix(v, "0x"), strings.HasPrefix(v, "0X"):
		return strconv.ParseUint(v[2:], 16, 64)
	case strings.HasPrefix(v, "#"):
		return strconv.ParseUint(v[1:], 2, 64)
	}
	return strconv.ParseUint(v, 10, 64)
}

type DeviceElement struct {
	Name        string             `xml:"name"`
	Description string             `xml:"description"`
	Series      string             `xml:"series"`
	Version     string             `xml:"version"`
	Vendor      string             `xml:"vendor"`
	CPU         CPUElement         `xml:"cpu"`
	BitWidth    Integer            `xml:"width"`
	Peripherals PeripheralsElement `xml:"peripherals"`
}

type CPUElement struct {
	Name     string `xml:"name"`
	Revision string `xml:"revision"`
	Endian   string `xml:"endian"`
}

type PeripheralsElement struct {
	Elements []PeripheralElement `xml:"peripheral"`
}

func (p PeripheralsElement) Find(name string) (int, bool) {
	if len(name) > 0 {
		for i, pp := range p.Elements {
			if pp.Name == name {
				return i, true
			}
		}
	}
	return -1, false
}

type PeripheralElement struct {
	Name        string             `xml:"name"`
	Description string             `xml:"description"`
	Group       string             `xml:"groupName"`
	BaseAddress Integer            `xml:"baseAddress"`
	Interrupts  []InterruptElement `xml:"interrupt"`
	DerivedFrom string             `xml:"derivedFrom,attr"`
}

type InterruptElement struct {
	Name        string  `xml:"name"`
	Description string  `xml:"description"`
	Value       Integer `xml:"value"`
}

func Decode(b []byte) (*DeviceElement, error) {
	var device DeviceElement
	if err := xml.Unmarshal(b, &device); err != nil {
		return nil, err
	}
	return &device, nil
}
