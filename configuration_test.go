package ads101x

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fields is a comparable view of every field of a Configuration.
type fields struct {
	Operation          Operation
	Multiplexer        Multiplexer
	FSR                FSR
	Mode               Mode
	DataRate           DataRate
	ComparatorMode     ComparatorMode
	ComparatorPolarity ComparatorPolarity
	ComparatorLatch    ComparatorLatch
	ComparatorQueue    ComparatorQueue
}

func fieldsOf(c Configuration) fields {
	return fields{
		Operation:          c.Operation(),
		Multiplexer:        c.Multiplexer(),
		FSR:                c.FSR(),
		Mode:               c.Mode(),
		DataRate:           c.DataRate(),
		ComparatorMode:     c.ComparatorMode(),
		ComparatorPolarity: c.ComparatorPolarity(),
		ComparatorLatch:    c.ComparatorLatch(),
		ComparatorQueue:    c.ComparatorQueue(),
	}
}

func (f fields) configuration() Configuration {
	var c Configuration
	c.SetOperation(f.Operation)
	c.SetMultiplexer(f.Multiplexer)
	c.SetFSR(f.FSR)
	c.SetMode(f.Mode)
	c.SetDataRate(f.DataRate)
	c.SetComparatorMode(f.ComparatorMode)
	c.SetComparatorPolarity(f.ComparatorPolarity)
	c.SetComparatorLatch(f.ComparatorLatch)
	c.SetComparatorQueue(f.ComparatorQueue)
	return c
}

func TestMasksPartitionRegister(t *testing.T) {
	masks := []uint16{
		maskOperation, maskMultiplexer, maskFSR, maskMode, maskDataRate,
		maskComparatorMode, maskComparatorPolarity, maskComparatorLatch, maskComparatorQueue,
	}

	var union uint16
	for i, m := range masks {
		if union&m != 0 {
			t.Errorf("Mask %d (0x%04x) overlaps earlier masks (0x%04x)", i, m, union)
		}
		union |= m
	}
	if union != 0xffff {
		t.Errorf("Masks cover 0x%04x, expected 0xffff", union)
	}
}

func TestRoundTrip(t *testing.T) {
	for x := 0; x <= 0xffff; x++ {
		c := Decode(uint16(x))
		if got := c.Encode(); got != uint16(x) {
			t.Fatalf("Decode(0x%04x).Encode() = 0x%04x", x, got)
		}

		// Rebuilding from the decoded fields, starting from zero, must land on the same bits.
		if got := fieldsOf(c).configuration().Encode(); got != uint16(x) {
			t.Fatalf("Rebuilt 0x%04x as 0x%04x", x, got)
		}
	}
}

func TestNewConfiguration(t *testing.T) {
	if got := NewConfiguration().Encode(); got != 0x0583 {
		t.Errorf("Got 0x%04x, expected 0x0583", got)
	}
}

func TestDecodePowerOnDefault(t *testing.T) {
	want := fields{
		Operation:          Convert,
		Multiplexer:        MuxAIN0AIN1,
		FSR:                FSR2V048,
		Mode:               SingleShot,
		DataRate:           SPS1600,
		ComparatorMode:     Traditional,
		ComparatorPolarity: ActiveLow,
		ComparatorLatch:    NonLatching,
		ComparatorQueue:    QueueDisabled,
	}

	c := Decode(0x8583)
	if diff := cmp.Diff(fieldsOf(c), want); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}
	if got := c.Encode(); got != 0x8583 {
		t.Errorf("Got 0x%04x, expected 0x8583", got)
	}
}

func TestFieldIsolation(t *testing.T) {
	type fieldCase struct {
		name string
		raw  uint16
		set  func(c *Configuration)
		get  func(c Configuration) uint16
	}

	var cases []fieldCase
	add := func(name string, raw uint16, set func(c *Configuration), get func(c Configuration) uint16) {
		cases = append(cases, fieldCase{name, raw, set, get})
	}

	for _, v := range []Operation{Idle, Convert} {
		v := v
		add("operation_"+v.String(), uint16(v), func(c *Configuration) { c.SetOperation(v) },
			func(c Configuration) uint16 { return uint16(c.Operation()) })
	}
	for _, v := range []Multiplexer{MuxAIN0AIN1, MuxAIN0AIN3, MuxAIN1AIN3, MuxAIN2AIN3, MuxAIN0, MuxAIN1, MuxAIN2, MuxAIN3} {
		v := v
		add("multiplexer_"+v.String(), uint16(v), func(c *Configuration) { c.SetMultiplexer(v) },
			func(c Configuration) uint16 { return uint16(c.Multiplexer()) })
	}
	for _, v := range []FSR{FSR6V144, FSR4V096, FSR2V048, FSR1V024, FSR0V512, FSR0V256} {
		v := v
		add("fsr_"+v.String(), uint16(v), func(c *Configuration) { c.SetFSR(v) },
			func(c Configuration) uint16 { return uint16(c.FSR()) })
	}
	for _, v := range []Mode{Continuous, SingleShot} {
		v := v
		add("mode_"+v.String(), uint16(v), func(c *Configuration) { c.SetMode(v) },
			func(c Configuration) uint16 { return uint16(c.Mode()) })
	}
	for _, v := range []DataRate{SPS128, SPS250, SPS490, SPS920, SPS1600, SPS2400, SPS3300} {
		v := v
		add("data_rate_"+v.String(), uint16(v), func(c *Configuration) { c.SetDataRate(v) },
			func(c Configuration) uint16 { return uint16(c.DataRate()) })
	}
	for _, v := range []ComparatorMode{Traditional, Window} {
		v := v
		add("comparator_mode_"+v.String(), uint16(v), func(c *Configuration) { c.SetComparatorMode(v) },
			func(c Configuration) uint16 { return uint16(c.ComparatorMode()) })
	}
	for _, v := range []ComparatorPolarity{ActiveLow, ActiveHigh} {
		v := v
		add("comparator_polarity_"+v.String(), uint16(v), func(c *Configuration) { c.SetComparatorPolarity(v) },
			func(c Configuration) uint16 { return uint16(c.ComparatorPolarity()) })
	}
	for _, v := range []ComparatorLatch{NonLatching, Latching} {
		v := v
		add("comparator_latch_"+v.String(), uint16(v), func(c *Configuration) { c.SetComparatorLatch(v) },
			func(c Configuration) uint16 { return uint16(c.ComparatorLatch()) })
	}
	for _, v := range []ComparatorQueue{After1, After2, After4, QueueDisabled} {
		v := v
		add("comparator_queue_"+v.String(), uint16(v), func(c *Configuration) { c.SetComparatorQueue(v) },
			func(c Configuration) uint16 { return uint16(c.ComparatorQueue()) })
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := Decode(0x0000)
			c.set(&cfg)
			if got := c.get(cfg); got != c.raw {
				t.Errorf("Got 0x%04x, expected 0x%04x", got, c.raw)
			}
			if got := cfg.Encode(); got != c.raw {
				t.Errorf("Bitfield is 0x%04x, expected 0x%04x", got, c.raw)
			}

			// Setting over an all-ones bitfield must only touch the field's own bits.
			cfg = Decode(0xffff)
			c.set(&cfg)
			if got := c.get(cfg); got != c.raw {
				t.Errorf("Over 0xffff got 0x%04x, expected 0x%04x", got, c.raw)
			}
		})
	}
}

func TestSetterIgnoresBitsOutsideField(t *testing.T) {
	c := Decode(0x0000)
	c.SetComparatorQueue(ComparatorQueue(0xffff))
	if got := c.Encode(); got != 0x0003 {
		t.Errorf("Got 0x%04x, expected 0x0003", got)
	}
}

func TestConfigurationString(t *testing.T) {
	got := Decode(0x8583).String()
	want := "0x8583{CONVERT AIN0_AIN1 2.048 SINGLESHOT 1600 TRADITIONAL ACTIVE_LOW NONLATCHING DISABLED}"
	if got != want {
		t.Errorf("Got %q, expected %q", got, want)
	}
}

func TestReservedPatterns(t *testing.T) {
	c := Decode(0x0ee0)
	if got := c.FSR().String(); got != "FSR(0x0e00)" {
		t.Errorf("Got %q, expected %q", got, "FSR(0x0e00)")
	}
	if got := c.FSR().Volts(); got != 0.256 {
		t.Errorf("Got %v, expected 0.256", got)
	}
	if got := c.DataRate().String(); got != "DataRate(0x00e0)" {
		t.Errorf("Got %q, expected %q", got, "DataRate(0x00e0)")
	}
	if got := c.DataRate().SamplesPerSecond(); got != 3300 {
		t.Errorf("Got %d, expected 3300", got)
	}
	if _, err := c.FSR().MarshalText(); err == nil {
		t.Errorf("Expected error marshaling reserved FSR")
	}
}

func TestUnmarshalText(t *testing.T) {
	cases := []struct {
		text    string
		target  interface{ UnmarshalText([]byte) error }
		want    uint16
		wantErr bool
	}{
		{"AIN0", new(Multiplexer), uint16(MuxAIN0), false},
		{"ain2_ain3", new(Multiplexer), uint16(MuxAIN2AIN3), false},
		{"AIN4", new(Multiplexer), 0, true},
		{"2.048", new(FSR), uint16(FSR2V048), false},
		{"6.144", new(FSR), uint16(FSR6V144), false},
		{"3.3", new(FSR), 0, true},
		{"singleshot", new(Mode), uint16(SingleShot), false},
		{"CONTINUOUS", new(Mode), uint16(Continuous), false},
		{"sometimes", new(Mode), 0, true},
		{"3300", new(DataRate), uint16(SPS3300), false},
		{"128", new(DataRate), uint16(SPS128), false},
		{"860", new(DataRate), 0, true},
		{"fast", new(DataRate), 0, true},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%T_%s", c.target, c.text), func(t *testing.T) {
			err := c.target.UnmarshalText([]byte(c.text))
			if c.wantErr {
				if err == nil {
					t.Errorf("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			var got uint16
			switch v := c.target.(type) {
			case *Multiplexer:
				got = uint16(*v)
			case *FSR:
				got = uint16(*v)
			case *Mode:
				got = uint16(*v)
			case *DataRate:
				got = uint16(*v)
			}
			if got != c.want {
				t.Errorf("Got 0x%04x, expected 0x%04x", got, c.want)
			}
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	for m := range multiplexerNames {
		b, err := m.MarshalText()
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		var got Multiplexer
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got != m {
			t.Errorf("Got %v, expected %v", got, m)
		}
	}
}
