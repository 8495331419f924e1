package ws

import (
	"encoding/json"

	"aethermeet/domain/event"
)

// OpFrame is the envelope for every operation a client sends over the
// socket. Type selects the operation; unused fields stay empty.
type OpFrame struct {
	Type            string `json:"type"`
	Target          string `json:"target,omitempty"`
	Vote            string `json:"vote,omitempty"`
	Admit           bool   `json:"admit,omitempty"`
	Mode            string `json:"mode,omitempty"`
	Content         string `json:"content,omitempty"`
	Media           bool   `json:"media,omitempty"`
	Action          string `json:"action,omitempty"`
	Reason          string `json:"reason,omitempty"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
}

const (
	frameVote        = "vote"
	frameResolve     = "resolve"
	frameLeave       = "leave"
	frameKick        = "kick"
	frameModerate    = "moderate"
	framePostMessage = "post_message"
)

// EventFrame is the outbound envelope: the event name plus its payload.
type EventFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func toEventFrame(e event.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(EventFrame{Type: e.Name(), Data: data})
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func toErrorFrame(err error) []byte {
	b, _ := json.Marshal(errorFrame{Type: "error", Message: err.Error()})
	return b
}

type ackFrame struct {
	Type string `json:"type"`
	Op   string `json:"op"`
}

func toAckFrame(op string) []byte {
	b, _ := json.Marshal(ackFrame{Type: "ack", Op: op})
	return b
}
