// Package keypad turns USB keypad presses into push-to-talk and camera
// triggers by reading Linux evdev nodes.
package keypad

import (
	"encoding/binary"
	"errors"
	"time"
)

// EventSize is the size of struct input_event on 64-bit Linux.
const EventSize = 24

// Event types and values from linux/input-event-codes.h.
const (
	TypeKey   uint16 = 0x01
	KeyUp     int32  = 0
	KeyDown   int32  = 1
	KeyRepeat int32  = 2
)

// ErrShortEvent is returned by Decode for a truncated record.
var ErrShortEvent = errors.New("keypad: short input event")

// Event is one decoded input_event.
type Event struct {
	Time  time.Time
	Type  uint16
	Code  uint16
	Value int32
}

// Decode parses one input_event record.
func Decode(b []byte) (Event, error) {
	if len(b) < EventSize {
		return Event{}, ErrShortEvent
	}
	sec := int64(binary.LittleEndian.Uint64(b[0:8]))
	usec := int64(binary.LittleEndian.Uint64(b[8:16]))
	return Event{
		Time:  time.Unix(sec, usec*int64(time.Microsecond)),
		Type:  binary.LittleEndian.Uint16(b[16:18]),
		Code:  binary.LittleEndian.Uint16(b[18:20]),
		Value: int32(binary.LittleEndian.Uint32(b[20:24])),
	}, nil
}

// Encode renders e as an input_event record.
func Encode(e Event) []byte {
	b := make([]byte, EventSize)
	binary.LittleEndian.PutUint64(b[0:8], uint64(e.Time.Unix()))
	binary.LittleEndian.PutUint64(b[8:16], uint64(e.Time.Nanosecond()/int(time.Microsecond)))
	binary.LittleEndian.PutUint16(b[16:18], e.Type)
	binary.LittleEndian.PutUint16(b[18:20], e.Code)
	binary.LittleEndian.PutUint32(b[20:24], uint32(e.Value))
	return b
}

// IsKeyDown reports whether e is a key press.
func (e Event) IsKeyDown() bool {
	return e.Type == TypeKey && e.Value == KeyDown
}
