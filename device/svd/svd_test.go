package svd

import "testing"

const testSVD = `<?xml version="1.0" encoding="utf-8"?>
<device schemaVersion="1.3">
  <name>NANO</name>
  <description>m68k nano board</description>
  <width>32</width>
  <cpu>
    <name>M68000</name>
    <endian>big</endian>
  </cpu>
  <peripherals>
    <peripheral>
      <name>VDP</name>
      <baseAddress>0x800000</baseAddress>
      <interrupt>
        <name>VBLANK</name>
        <description>Vertical blank</description>
        <value>6</value>
      </interrupt>
    </peripheral>
    <peripheral derivedFrom="VDP">
      <name>VDP2</name>
      <baseAddress>0X800100</baseAddress>
    </peripheral>
    <peripheral>
      <name>UART</name>
      <baseAddress> 8388864 </baseAddress>
      <interrupt><name>RX</name><value>#1000</value></interrupt>
      <interrupt><name>TX</name><value>9</value></interrupt>
    </peripheral>
  </peripherals>
</device>
`

func TestDecode(t *testing.T) {
	device, err := Decode([]byte(testSVD))
	if err != nil {
		t.Fatal(err)
	}
	if device.Name != "NANO" || device.CPU.Name != "M68000" || device.BitWidth != 32 {
		t.Fatalf("device = %+v", device)
	}
	if len(device.Peripherals.Elements) != 3 {
		t.Fatalf("%d peripherals", len(device.Peripherals.Elements))
	}

	i, ok := device.Peripherals.Find("VDP2")
	if !ok {
		t.Fatal("VDP2 not found")
	}
	vdp2 := device.Peripherals.Elements[i]
	if vdp2.DerivedFrom != "VDP" || vdp2.BaseAddress != 0x800100 {
		t.Errorf("VDP2 = %+v", vdp2)
	}

	uart := device.Peripherals.Elements[2]
	if uart.BaseAddress != 0x800100 {
		t.Errorf("UART base = %#x", uart.BaseAddress)
	}
	if len(uart.Interrupts) != 2 || uart.Interrupts[0].Value != 8 {
		t.Errorf("UART interrupts = %+v", uart.Interrupts)
	}
	if _, ok := device.Peripherals.Find(""); ok {
		t.Error("found peripheral without name")
	}
}

func TestDecodeBadInteger(t *testing.T) {
	if _, err := Decode([]byte(`<device><width>0xZZ</width></device>`)); err == nil {
		t.Fatal("bad integer accepted")
	}
}

func TestParseInteger(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"42", 42},
		{"0x2A", 42},
		{"0X2a", 42},
		{"#101010", 42},
		{"  42\n", 42},
	}
	for _, tt := range tests {
		got, err := ParseInteger(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseInteger(%q) = %d, %v", tt.in, got, err)
		}
	}
}
