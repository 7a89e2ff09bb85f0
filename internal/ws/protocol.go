// Package ws is the transport: one goroutine pair (read pump, write pump)
// per connection, fanning typed events into the room package and session
// registry, the way the teacher's internal/ws wires gorilla/websocket to
// its hub/room/client trio.
package ws

import "encoding/json"

// envelope is the wire frame: a named event carrying a single JSON-string
// payload, as §6 specifies. remove_from_matchmaking is the one inbound
// event whose Data is the raw user_id, not a JSON-encoded payload.
type envelope struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

func decodeEnvelope(raw []byte) (envelope, error) {
	var e envelope
	err := json.Unmarshal(raw, &e)
	return e, err
}

func decodePayload[T any](data string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(data), &v)
	return v, err
}

func encodeEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: event, Data: string(data)})
}
