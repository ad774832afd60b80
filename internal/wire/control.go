package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"epigrid/internal/sim"
)

// ControlUpdate field numbers.
const (
	controlTransmission protowire.Number = 1
	controlLockdown     protowire.Number = 2
	controlCapacity     protowire.Number = 3
	controlOverload     protowire.Number = 4
	controlProbability  protowire.Number = 5
	controlMobility     protowire.Number = 6
	controlOverloaded   protowire.Number = 7
)

// EncodeSettings serializes only the client-settable knobs. Every knob is
// written, zero values included, so the message replaces all four.
func EncodeSettings(settings sim.ControlSettings) []byte {
	var b []byte
	b = appendDouble(b, controlTransmission, settings.TransmissionModifier)
	b = appendBool(b, controlLockdown, settings.LockdownEnabled)
	b = appendInt(b, controlCapacity, settings.HospitalCapacity)
	return appendDouble(b, controlOverload, settings.DeathRateOverloadMultiplier)
}

// EncodeControl serializes the control state sent back to clients.
func EncodeControl(state sim.ControlState) []byte {
	b := EncodeSettings(state.ControlSettings)
	b = appendDouble(b, controlProbability, state.InfectionProbability)
	b = appendDouble(b, controlMobility, state.MobilityModifier)
	return appendBool(b, controlOverloaded, state.Overloaded)
}

// DecodeControl applies the settable fields present in data on top of current,
// so a client may send a partial update. Presence is explicit: a knob encoded
// as false or 0 is applied, an absent one is kept. Server-only fields are
// ignored.
func DecodeControl(data []byte, current sim.ControlSettings) (sim.ControlSettings, error) {
	out := current
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == controlTransmission && typ == protowire.Fixed64Type:
			return consumeDouble(b, &out.TransmissionModifier)
		case num == controlOverload && typ == protowire.Fixed64Type:
			return consumeDouble(b, &out.DeathRateOverloadMultiplier)
		case num == controlCapacity && typ == protowire.VarintType:
			return consumeInt(b, &out.HospitalCapacity)
		case num == controlLockdown && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			out.LockdownEnabled = protowire.DecodeBool(v)
			return n, nil
		}
		return skip(num, typ, b)
	})
	if err != nil {
		return current, fmt.Errorf("decode control update: %w", err)
	}
	return out, nil
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func consumeDouble(b []byte, dst *float64) (int, error) {
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return n, protowire.ParseError(n)
	}
	*dst = math.Float64frombits(v)
	return n, nil
}
