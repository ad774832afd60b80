// Package wire encodes simulation frames and control updates in the protobuf
// wire format described by proto/epigrid.proto.
package wire

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"epigrid/internal/sim"
)

// Frame field numbers.
const (
	frameStep       protowire.Number = 1
	frameXs         protowire.Number = 2
	frameYs         protowire.Number = 3
	frameColors     protowire.Number = 4
	frameCounts     protowire.Number = 5
	frameViolations protowire.Number = 6

	countState protowire.Number = 1
	countValue protowire.Number = 2
)

var errMalformed = errors.New("malformed message")

// EncodeFrame serializes a snapshot as a Frame message.
func EncodeFrame(snap sim.Snapshot) []byte {
	var b []byte
	b = appendInt(b, frameStep, snap.Step)
	b = appendPacked(b, frameXs, snap.X)
	b = appendPacked(b, frameYs, snap.Y)
	for _, c := range snap.Colors {
		b = protowire.AppendTag(b, frameColors, protowire.BytesType)
		b = protowire.AppendString(b, c)
	}
	for _, state := range sim.HealthStates() {
		var entry []byte
		entry = protowire.AppendTag(entry, countState, protowire.BytesType)
		entry = protowire.AppendString(entry, state.String())
		entry = appendInt(entry, countValue, snap.Counts.Get(state))

		b = protowire.AppendTag(b, frameCounts, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	b = appendInt(b, frameViolations, snap.Violations)
	return b
}

// DecodeFrame parses a Frame message. Unknown fields are skipped.
func DecodeFrame(data []byte) (sim.Snapshot, error) {
	var snap sim.Snapshot
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == frameStep && typ == protowire.VarintType:
			return consumeInt(b, &snap.Step)
		case (num == frameXs || num == frameYs) && typ == protowire.BytesType:
			dst := &snap.X
			if num == frameYs {
				dst = &snap.Y
			}
			return consumePacked(b, dst)
		case num == frameColors && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			snap.Colors = append(snap.Colors, v)
			return n, nil
		case num == frameCounts && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			return n, decodeCount(v, &snap.Counts)
		case num == frameViolations && typ == protowire.VarintType:
			return consumeInt(b, &snap.Violations)
		}
		return skip(num, typ, b)
	})
	if err != nil {
		return sim.Snapshot{}, fmt.Errorf("decode frame: %w", err)
	}
	if len(snap.X) != len(snap.Y) || len(snap.X) != len(snap.Colors) {
		return sim.Snapshot{}, fmt.Errorf("decode frame: %d xs, %d ys, %d colors: %w",
			len(snap.X), len(snap.Y), len(snap.Colors), errMalformed)
	}
	return snap, nil
}

func decodeCount(data []byte, counts *sim.Counts) error {
	var (
		name  string
		value int
	)
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == countState && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			name = v
			return n, nil
		case num == countValue && typ == protowire.VarintType:
			return consumeInt(b, &value)
		}
		return skip(num, typ, b)
	})
	if err != nil {
		return err
	}
	for _, state := range sim.HealthStates() {
		if state.String() == name {
			counts[state] = value
			return nil
		}
	}
	// states this build does not know about are ignored
	return nil
}

// walk calls field for each tag in data; field consumes the value and
// returns its length.
func walk(data []byte, field func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		m, err := field(num, typ, data)
		if err != nil {
			return err
		}
		data = data[m:]
	}
	return nil
}

func skip(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return n, protowire.ParseError(n)
	}
	return n, nil
}

// Integer fields are int32 on the wire; larger values saturate when encoded
// so a round trip never wraps.
func appendInt(b []byte, num protowire.Number, v int) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(toInt32(v))))
}

func toInt32(v int) int32 {
	switch {
	case int64(v) > math.MaxInt32:
		return math.MaxInt32
	case int64(v) < math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

func consumeInt(b []byte, dst *int) (int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return n, protowire.ParseError(n)
	}
	*dst = int(int32(v))
	return n, nil
}

func appendPacked(b []byte, num protowire.Number, vs []int) []byte {
	if len(vs) == 0 {
		return b
	}
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, uint64(int64(toInt32(v))))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

func consumePacked(b []byte, dst *[]int) (int, error) {
	packed, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, protowire.ParseError(n)
	}
	for len(packed) > 0 {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			return m, protowire.ParseError(m)
		}
		*dst = append(*dst, int(int32(v)))
		packed = packed[m:]
	}
	return n, nil
}
