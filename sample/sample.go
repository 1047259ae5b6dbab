// Package sample holds ADC readings in a form that can be published, spooled to disk and
// summarized.
package sample

import (
	"fmt"
	"strings"
	"time"

	"github.com/mtraver/ads101x"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"periph.io/x/conn/v3/physic"
)

// Used for separating the parts of a Key. Device IDs are validated not to contain it.
const keySep = "#"

// Sample is one reading of one multiplexer channel.
type Sample struct {
	DeviceID string
	// Timestamp is when the conversion was read.
	Timestamp time.Time
	// UploadTimestamp is set when a spooled Sample is published late.
	UploadTimestamp time.Time
	Channel         ads101x.Multiplexer
	// Raw is the signed 12-bit conversion result.
	Raw   int16
	Volts float64
}

// New builds a Sample from a conversion result read with the given full-scale range.
func New(deviceID string, ts time.Time, channel ads101x.Multiplexer, raw uint16, fsr ads101x.FSR) Sample {
	return Sample{
		DeviceID:  deviceID,
		Timestamp: ts,
		Channel:   channel,
		Raw:       ads101x.Signed(raw),
		Volts:     ads101x.Volts(raw, fsr),
	}
}

// Key identifies the device and channel a Sample was read from.
func (s Sample) Key() string {
	return strings.Join([]string{s.DeviceID, s.Channel.String()}, keySep)
}

// Potential returns Volts as a periph physical quantity.
func (s Sample) Potential() physic.ElectricPotential {
	return physic.ElectricPotential(s.Volts * float64(physic.Volt))
}

func (s Sample) String() string {
	delay := ""
	if !s.UploadTimestamp.IsZero() {
		delay = fmt.Sprintf(" (%v upload delay)", s.UploadTimestamp.Sub(s.Timestamp))
	}

	return fmt.Sprintf("%s %v %v (%d) %s%s", s.DeviceID, s.Channel, s.Potential(), s.Raw, s.Timestamp.Format(time.RFC3339), delay)
}

// Proto returns the Sample as a protobuf Struct. Timestamps are RFC 3339 strings.
func (s Sample) Proto() (*structpb.Struct, error) {
	channel, err := s.Channel.MarshalText()
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"device_id": s.DeviceID,
		"timestamp": s.Timestamp.UTC().Format(time.RFC3339Nano),
		"channel":   string(channel),
		"raw":       int(s.Raw),
		"volts":     s.Volts,
	}
	if !s.UploadTimestamp.IsZero() {
		fields["upload_timestamp"] = s.UploadTimestamp.UTC().Format(time.RFC3339Nano)
	}

	return structpb.NewStruct(fields)
}

// MarshalJSON encodes the Sample with protojson.
func (s Sample) MarshalJSON() ([]byte, error) {
	pb, err := s.Proto()
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(pb)
}

// UnmarshalJSON decodes JSON produced by MarshalJSON.
func (s *Sample) UnmarshalJSON(b []byte) error {
	var pb structpb.Struct
	if err := protojson.Unmarshal(b, &pb); err != nil {
		return err
	}

	parsed, err := FromProto(&pb)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// FromProto is the inverse of Proto.
func FromProto(pb *structpb.Struct) (Sample, error) {
	f := pb.GetFields()

	var s Sample
	s.DeviceID = f["device_id"].GetStringValue()
	if s.DeviceID == "" {
		return Sample{}, fmt.Errorf("sample: missing device_id")
	}

	ts, err := time.Parse(time.RFC3339Nano, f["timestamp"].GetStringValue())
	if err != nil {
		return Sample{}, fmt.Errorf("sample: bad timestamp: %w", err)
	}
	s.Timestamp = ts

	if v, ok := f["upload_timestamp"]; ok {
		uts, err := time.Parse(time.RFC3339Nano, v.GetStringValue())
		if err != nil {
			return Sample{}, fmt.Errorf("sample: bad upload_timestamp: %w", err)
		}
		s.UploadTimestamp = uts
	}

	if err := s.Channel.UnmarshalText([]byte(f["channel"].GetStringValue())); err != nil {
		return Sample{}, fmt.Errorf("sample: %w", err)
	}

	raw := f["raw"].GetNumberValue()
	if raw < -2048 || raw > 2047 {
		return Sample{}, fmt.Errorf("sample: raw value %v out of 12-bit range", raw)
	}
	s.Raw = int16(raw)
	s.Volts = f["volts"].GetNumberValue()

	return s, nil
}
