package ws

import (
	"encoding/json"
	"errors"
)

// Kind is the closed set of inbound event variants.
type Kind int

const (
	KindUnknown Kind = iota
	KindChatMessage
	KindCallOffer
	KindCallAnswer
	KindIceCandidate
	KindCallEnd
	KindCallReject
	KindTyping
)

var kindNames = map[Kind]string{
	KindUnknown:      "unknown",
	KindChatMessage:  "message",
	KindCallOffer:    "call-offer",
	KindCallAnswer:   "call-answer",
	KindIceCandidate: "ice-candidate",
	KindCallEnd:      "call-end",
	KindCallReject:   "call-reject",
	KindTyping:       "typing",
}

var kindsByTag = map[string]Kind{
	"message":       KindChatMessage,
	"call-offer":    KindCallOffer,
	"call-answer":   KindCallAnswer,
	"ice-candidate": KindIceCandidate,
	"call-end":      KindCallEnd,
	"call-reject":   KindCallReject,
	"typing":        KindTyping,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// IsCallSignal reports whether k is relayed opaquely to the peer.
func (k Kind) IsCallSignal() bool {
	switch k {
	case KindCallOffer, KindCallAnswer, KindIceCandidate, KindCallEnd, KindCallReject:
		return true
	}
	return false
}

var errNotObject = errors.New("frame is not a JSON object")

// Event is one decoded inbound frame.
type Event struct {
	Kind Kind
	// Text is the chat payload; empty for other kinds.
	Text string
	// Fields holds every top level field as received.
	Fields map[string]json.RawMessage
}

// ParseEvent classifies a text frame by its type tag. Frames without a tag use the web
// client's older shapes: {"message": "..."} is a chat message, {"typing": true} a typing hint.
func ParseEvent(data []byte) (Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Event{}, err
	}
	if fields == nil {
		return Event{}, errNotObject
	}
	ev := Event{Fields: fields}

	var tag string
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &tag); err != nil {
			return ev, nil
		}
		ev.Kind = kindsByTag[tag]
	} else {
		ev.Kind = legacyKind(fields)
	}
	if ev.Kind == KindChatMessage {
		if raw, ok := fields["message"]; ok {
			_ = json.Unmarshal(raw, &ev.Text)
		}
	}
	return ev, nil
}

func legacyKind(fields map[string]json.RawMessage) Kind {
	if _, ok := fields["message"]; ok {
		return KindChatMessage
	}
	if raw, ok := fields["typing"]; ok {
		var typing bool
		if json.Unmarshal(raw, &typing) == nil && typing {
			return KindTyping
		}
	}
	return KindUnknown
}
