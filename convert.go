package ads101x

import (
	"context"
	"time"
)

// Signed sign-extends a raw 12-bit two's-complement conversion result.
func Signed(raw uint16) int16 {
	return int16(raw<<4) >> 4
}

// Volts converts a raw 12-bit conversion result taken with the given full-scale range.
func Volts(raw uint16, fsr FSR) float64 {
	return float64(Signed(raw)) * fsr.Volts() / 2048
}

// ConversionDelay is how long a single-shot conversion at rate takes to complete: one sample
// period plus the datasheet's 10% oscillator tolerance and a fixed wake-up margin.
func ConversionDelay(rate DataRate) time.Duration {
	period := time.Second / time.Duration(rate.SamplesPerSecond())
	return period + period/10 + 100*time.Microsecond
}

// ReadSingleShot starts a single-shot conversion with cfg, waits for it to complete and returns
// the raw 12-bit result. The operation and mode fields of cfg are overridden.
func (d *Driver) ReadSingleShot(ctx context.Context, cfg Configuration) (uint16, error) {
	cfg.SetOperation(Convert)
	cfg.SetMode(SingleShot)
	if err := d.WriteConfig(cfg); err != nil {
		return 0, err
	}

	t := time.NewTimer(ConversionDelay(cfg.DataRate()))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-t.C:
	}

	return d.ReadConversion()
}
