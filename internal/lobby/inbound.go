// internal/lobby/inbound.go
package lobby

import (
	"encoding/json"
	"errors"
)

type inboundKind int

const (
	inboundChat inboundKind = iota + 1
	inboundTypingStart
	inboundTypingStop
)

type inbound struct {
	kind    inboundKind
	message string
}

// Client-visible parse failures.
var (
	errInvalidJSON    = errors.New("invalid JSON")
	errUnknownType    = errors.New("unknown message type")
	errInvalidPayload = errors.New("message must be a string")
)

// parseInbound decodes a client text frame into one of the accepted kinds.
func parseInbound(data []byte) (inbound, error) {
	var env struct {
		Type    string          `json:"type"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return inbound{}, errInvalidJSON
	}

	switch env.Type {
	case "chat_message":
		in := inbound{kind: inboundChat}
		if len(env.Message) > 0 && string(env.Message) != "null" {
			if err := json.Unmarshal(env.Message, &in.message); err != nil {
				return inbound{}, errInvalidPayload
			}
		}
		return in, nil
	case "typing_start":
		return inbound{kind: inboundTypingStart}, nil
	case "typing_stop":
		return inbound{kind: inboundTypingStop}, nil
	}
	return inbound{}, errUnknownType
}
