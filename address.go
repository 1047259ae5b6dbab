package ads101x

import (
	"fmt"
	"strconv"
	"strings"
)

// RegisterAddress is the pointer-register value selecting one of the four 16-bit registers.
type RegisterAddress uint8

const (
	Conversion RegisterAddress = 0x00
	Config     RegisterAddress = 0x01
	LoThresh   RegisterAddress = 0x02
	HiThresh   RegisterAddress = 0x03
)

func (r RegisterAddress) String() string {
	switch r {
	case Conversion:
		return "CONVERSION"
	case Config:
		return "CONFIG"
	case LoThresh:
		return "LO_THRESH"
	case HiThresh:
		return "HI_THRESH"
	}
	return fmt.Sprintf("RegisterAddress(0x%02x)", uint8(r))
}

// SlaveAddress is the 7-bit I2C address of the chip, selected by what its ADDR pin is wired to.
type SlaveAddress uint8

const (
	GND SlaveAddress = 0x48
	VDD SlaveAddress = 0x49
	SDA SlaveAddress = 0x4A
	SCL SlaveAddress = 0x4B
)

var slaveAddressNames = map[SlaveAddress]string{
	GND: "GND",
	VDD: "VDD",
	SDA: "SDA",
	SCL: "SCL",
}

func (a SlaveAddress) String() string {
	if name, ok := slaveAddressNames[a]; ok {
		return name
	}
	return fmt.Sprintf("SlaveAddress(0x%02x)", uint8(a))
}

func (a SlaveAddress) MarshalText() ([]byte, error) {
	if _, ok := slaveAddressNames[a]; !ok {
		return nil, fmt.Errorf("ads101x: invalid slave address 0x%02x", uint8(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText accepts the ADDR pin name ("GND", "VDD", "SDA", "SCL") or one of the four
// addresses as a number, e.g. "0x49".
func (a *SlaveAddress) UnmarshalText(text []byte) error {
	s := strings.ToUpper(strings.TrimSpace(string(text)))
	for addr, name := range slaveAddressNames {
		if s == name {
			*a = addr
			return nil
		}
	}

	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return fmt.Errorf("ads101x: invalid slave address %q", string(text))
	}
	if _, ok := slaveAddressNames[SlaveAddress(n)]; !ok {
		return fmt.Errorf("ads101x: invalid slave address %q", string(text))
	}
	*a = SlaveAddress(n)
	return nil
}
