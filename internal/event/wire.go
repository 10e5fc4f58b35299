package event

import "encoding/json"

// envelope is the serialized form used by external observers.
type envelope struct {
	Kind    Kind  `json:"kind"`
	Payload Event `json:"payload"`
}

// Marshal encodes an event with its kind tag for stream consumers.
func Marshal(ev Event) ([]byte, error) {
	return json.Marshal(envelope{Kind: ev.Kind(), Payload: ev})
}
