// Package hub fans events out to websocket clients using a single
// goroutine that owns the client set.
package hub

import (
	"encoding/json"
	"time"
)

// Message is one frame queued for clients.
type Message struct {
	Data []byte
}

// Envelope is the JSON shape of every published event.
type Envelope struct {
	Topic string    `json:"topic"`
	Time  time.Time `json:"time"`
	Data  any       `json:"data"`
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}

func encode(topic string, v any, now time.Time) (Message, error) {
	data, err := json.Marshal(Envelope{Topic: topic, Time: now, Data: v})
	if err != nil {
		return Message{}, err
	}
	return NewJSONMessage(data), nil
}
