package ads101x

import (
	"fmt"
	"strconv"
	"strings"
)

// Field masks of the CONFIG register. They are pairwise disjoint and together cover all 16 bits.
const (
	maskOperation          uint16 = 0b1000000000000000
	maskMultiplexer        uint16 = 0b0111000000000000
	maskFSR                uint16 = 0b0000111000000000
	maskMode               uint16 = 0b0000000100000000
	maskDataRate           uint16 = 0b0000000011100000
	maskComparatorMode     uint16 = 0b0000000000010000
	maskComparatorPolarity uint16 = 0b0000000000001000
	maskComparatorLatch    uint16 = 0b0000000000000100
	maskComparatorQueue    uint16 = 0b0000000000000011
)

// DefaultConfiguration is the bitfield produced by NewConfiguration: the chip's power-on default
// with the operation bit clear, so writing it does not start a conversion.
const DefaultConfiguration uint16 = 0x0583

// Operation is the operational status bit. Writing Convert starts a single-shot conversion.
type Operation uint16

const (
	Idle    Operation = 0b0000000000000000
	Convert Operation = 0b1000000000000000
)

// Multiplexer selects the input pair. The AINx_AINy values are differential measurements; the
// single AINx values measure against GND.
type Multiplexer uint16

const (
	MuxAIN0AIN1 Multiplexer = 0b0000000000000000
	MuxAIN0AIN3 Multiplexer = 0b0001000000000000
	MuxAIN1AIN3 Multiplexer = 0b0010000000000000
	MuxAIN2AIN3 Multiplexer = 0b0011000000000000
	MuxAIN0     Multiplexer = 0b0100000000000000
	MuxAIN1     Multiplexer = 0b0101000000000000
	MuxAIN2     Multiplexer = 0b0110000000000000
	MuxAIN3     Multiplexer = 0b0111000000000000
)

// FSR is the full-scale range of the programmable gain amplifier.
type FSR uint16

const (
	FSR6V144 FSR = 0b0000000000000000
	FSR4V096 FSR = 0b0000001000000000
	FSR2V048 FSR = 0b0000010000000000
	FSR1V024 FSR = 0b0000011000000000
	FSR0V512 FSR = 0b0000100000000000
	FSR0V256 FSR = 0b0000101000000000
)

// Mode selects continuous or single-shot (power-down) conversion.
type Mode uint16

const (
	Continuous Mode = 0b0000000000000000
	SingleShot Mode = 0b0000000100000000
)

// DataRate is the sampling rate.
type DataRate uint16

const (
	SPS128  DataRate = 0b0000000000000000
	SPS250  DataRate = 0b0000000000100000
	SPS490  DataRate = 0b0000000001000000
	SPS920  DataRate = 0b0000000001100000
	SPS1600 DataRate = 0b0000000010000000
	SPS2400 DataRate = 0b0000000010100000
	SPS3300 DataRate = 0b0000000011000000
)

// ComparatorMode selects when the ALERT/RDY pin asserts. Traditional asserts above HI_THRESH and
// deasserts below LO_THRESH; Window asserts outside the thresholds.
type ComparatorMode uint16

const (
	Traditional ComparatorMode = 0b0000000000000000
	Window      ComparatorMode = 0b0000000000010000
)

// ComparatorPolarity is the asserted level of the ALERT/RDY pin.
type ComparatorPolarity uint16

const (
	ActiveLow  ComparatorPolarity = 0b0000000000000000
	ActiveHigh ComparatorPolarity = 0b0000000000001000
)

// ComparatorLatch controls whether an asserted ALERT/RDY pin stays asserted until the conversion
// register is read.
type ComparatorLatch uint16

const (
	NonLatching ComparatorLatch = 0b0000000000000000
	Latching    ComparatorLatch = 0b0000000000000100
)

// ComparatorQueue is the number of successive conversions past a threshold before ALERT/RDY
// asserts. QueueDisabled turns the comparator off and puts the pin in high impedance.
type ComparatorQueue uint16

const (
	After1        ComparatorQueue = 0b0000000000000000
	After2        ComparatorQueue = 0b0000000000000001
	After4        ComparatorQueue = 0b0000000000000010
	QueueDisabled ComparatorQueue = 0b0000000000000011
)

// Configuration is the content of the CONFIG register. The zero value is the all-zero bitfield;
// use NewConfiguration for the default.
type Configuration struct {
	bitfield uint16
}

// NewConfiguration returns a Configuration holding DefaultConfiguration.
func NewConfiguration() Configuration {
	return Configuration{bitfield: DefaultConfiguration}
}

// Decode returns the Configuration for a value read from the CONFIG register. Every 16-bit
// pattern decodes, including reserved field values.
func Decode(bitfield uint16) Configuration {
	return Configuration{bitfield: bitfield}
}

// Encode returns the value to write to the CONFIG register.
func (c Configuration) Encode() uint16 {
	return c.bitfield
}

func (c *Configuration) set(mask, value uint16) {
	c.bitfield = (c.bitfield &^ mask) | (value & mask)
}

func (c Configuration) Operation() Operation {
	return Operation(c.bitfield & maskOperation)
}

func (c Configuration) Multiplexer() Multiplexer {
	return Multiplexer(c.bitfield & maskMultiplexer)
}

func (c Configuration) FSR() FSR {
	return FSR(c.bitfield & maskFSR)
}

func (c Configuration) Mode() Mode {
	return Mode(c.bitfield & maskMode)
}

func (c Configuration) DataRate() DataRate {
	return DataRate(c.bitfield & maskDataRate)
}

func (c Configuration) ComparatorMode() ComparatorMode {
	return ComparatorMode(c.bitfield & maskComparatorMode)
}

func (c Configuration) ComparatorPolarity() ComparatorPolarity {
	return ComparatorPolarity(c.bitfield & maskComparatorPolarity)
}

func (c Configuration) ComparatorLatch() ComparatorLatch {
	return ComparatorLatch(c.bitfield & maskComparatorLatch)
}

func (c Configuration) ComparatorQueue() ComparatorQueue {
	return ComparatorQueue(c.bitfield & maskComparatorQueue)
}

func (c *Configuration) SetOperation(v Operation) {
	c.set(maskOperation, uint16(v))
}

func (c *Configuration) SetMultiplexer(v Multiplexer) {
	c.set(maskMultiplexer, uint16(v))
}

func (c *Configuration) SetFSR(v FSR) {
	c.set(maskFSR, uint16(v))
}

func (c *Configuration) SetMode(v Mode) {
	c.set(maskMode, uint16(v))
}

func (c *Configuration) SetDataRate(v DataRate) {
	c.set(maskDataRate, uint16(v))
}

func (c *Configuration) SetComparatorMode(v ComparatorMode) {
	c.set(maskComparatorMode, uint16(v))
}

func (c *Configuration) SetComparatorPolarity(v ComparatorPolarity) {
	c.set(maskComparatorPolarity, uint16(v))
}

func (c *Configuration) SetComparatorLatch(v ComparatorLatch) {
	c.set(maskComparatorLatch, uint16(v))
}

func (c *Configuration) SetComparatorQueue(v ComparatorQueue) {
	c.set(maskComparatorQueue, uint16(v))
}

func (c Configuration) String() string {
	return fmt.Sprintf("0x%04x{%v %v %v %v %v %v %v %v %v}", c.bitfield,
		c.Operation(), c.Multiplexer(), c.FSR(), c.Mode(), c.DataRate(),
		c.ComparatorMode(), c.ComparatorPolarity(), c.ComparatorLatch(), c.ComparatorQueue())
}

func (v Operation) String() string {
	if v == Convert {
		return "CONVERT"
	}
	return "IDLE"
}

var multiplexerNames = map[Multiplexer]string{
	MuxAIN0AIN1: "AIN0_AIN1",
	MuxAIN0AIN3: "AIN0_AIN3",
	MuxAIN1AIN3: "AIN1_AIN3",
	MuxAIN2AIN3: "AIN2_AIN3",
	MuxAIN0:     "AIN0",
	MuxAIN1:     "AIN1",
	MuxAIN2:     "AIN2",
	MuxAIN3:     "AIN3",
}

func (v Multiplexer) String() string {
	if name, ok := multiplexerNames[v]; ok {
		return name
	}
	return fmt.Sprintf("Multiplexer(0x%04x)", uint16(v))
}

func (v Multiplexer) MarshalText() ([]byte, error) {
	if _, ok := multiplexerNames[v]; !ok {
		return nil, fmt.Errorf("ads101x: invalid multiplexer 0x%04x", uint16(v))
	}
	return []byte(v.String()), nil
}

func (v *Multiplexer) UnmarshalText(text []byte) error {
	s := strings.ToUpper(strings.TrimSpace(string(text)))
	for m, name := range multiplexerNames {
		if s == name {
			*v = m
			return nil
		}
	}
	return fmt.Errorf("ads101x: unknown multiplexer %q", string(text))
}

// fsrVolts holds the positive full-scale voltage of each FSR. The two reserved patterns alias
// 0.256V on the chip.
var fsrVolts = map[FSR]float64{
	FSR6V144:           6.144,
	FSR4V096:           4.096,
	FSR2V048:           2.048,
	FSR1V024:           1.024,
	FSR0V512:           0.512,
	FSR0V256:           0.256,
	0b0000110000000000: 0.256,
	0b0000111000000000: 0.256,
}

// Volts returns the positive end of the range, e.g. 2.048 for FSR2V048.
func (v FSR) Volts() float64 {
	return fsrVolts[v&FSR(maskFSR)]
}

func (v FSR) String() string {
	if v&FSR(maskFSR) != v || v > FSR0V256 {
		return fmt.Sprintf("FSR(0x%04x)", uint16(v))
	}
	return strconv.FormatFloat(v.Volts(), 'f', 3, 64)
}

func (v FSR) MarshalText() ([]byte, error) {
	if v&FSR(maskFSR) != v || v > FSR0V256 {
		return nil, fmt.Errorf("ads101x: invalid fsr 0x%04x", uint16(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText accepts the range in volts with three decimals, e.g. "2.048".
func (v *FSR) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	for _, f := range []FSR{FSR6V144, FSR4V096, FSR2V048, FSR1V024, FSR0V512, FSR0V256} {
		if f.String() == s {
			*v = f
			return nil
		}
	}
	return fmt.Errorf("ads101x: unknown fsr %q", string(text))
}

func (v Mode) String() string {
	if v == SingleShot {
		return "SINGLESHOT"
	}
	return "CONTINUOUS"
}

func (v Mode) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(v.String())), nil
}

func (v *Mode) UnmarshalText(text []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(text))) {
	case "CONTINUOUS":
		*v = Continuous
	case "SINGLESHOT":
		*v = SingleShot
	default:
		return fmt.Errorf("ads101x: unknown mode %q", string(text))
	}
	return nil
}

var dataRateSPS = map[DataRate]int{
	SPS128:  128,
	SPS250:  250,
	SPS490:  490,
	SPS920:  920,
	SPS1600: 1600,
	SPS2400: 2400,
	SPS3300: 3300,
}

// SamplesPerSecond returns the nominal rate. The reserved pattern 0b111 runs at 3300 SPS.
func (v DataRate) SamplesPerSecond() int {
	if sps, ok := dataRateSPS[v]; ok {
		return sps
	}
	return 3300
}

func (v DataRate) String() string {
	if sps, ok := dataRateSPS[v]; ok {
		return strconv.Itoa(sps)
	}
	return fmt.Sprintf("DataRate(0x%04x)", uint16(v))
}

func (v DataRate) MarshalText() ([]byte, error) {
	if _, ok := dataRateSPS[v]; !ok {
		return nil, fmt.Errorf("ads101x: invalid data rate 0x%04x", uint16(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText accepts the rate in samples per second, e.g. "1600".
func (v *DataRate) UnmarshalText(text []byte) error {
	n, err := strconv.Atoi(strings.TrimSpace(string(text)))
	if err == nil {
		for r, sps := range dataRateSPS {
			if sps == n {
				*v = r
				return nil
			}
		}
	}
	return fmt.Errorf("ads101x: unknown data rate %q", string(text))
}

func (v ComparatorMode) String() string {
	if v == Window {
		return "WINDOW"
	}
	return "TRADITIONAL"
}

func (v ComparatorPolarity) String() string {
	if v == ActiveHigh {
		return "ACTIVE_HIGH"
	}
	return "ACTIVE_LOW"
}

func (v ComparatorLatch) String() string {
	if v == Latching {
		return "LATCHING"
	}
	return "NONLATCHING"
}

func (v ComparatorQueue) String() string {
	switch v {
	case After1:
		return "AFTER_1"
	case After2:
		return "AFTER_2"
	case After4:
		return "AFTER_4"
	}
	return "DISABLED"
}
