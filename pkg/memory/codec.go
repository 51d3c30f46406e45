package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// observationEnvelope is the wire form of an Observation. The payload shape
// is selected by type.
type observationEnvelope struct {
	ID       string          `json:"id,omitempty"`
	Type     Kind            `json:"type"`
	EntityID string          `json:"entity_id,omitempty"`
	Message  string          `json:"message,omitempty"`
	At       *time.Time      `json:"at,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

func (o Observation) MarshalJSON() ([]byte, error) {
	env := observationEnvelope{
		ID:       o.ID,
		Type:     o.Kind(),
		EntityID: o.EntityID,
		Message:  o.Message,
	}
	if !o.At.IsZero() {
		at := o.At
		env.At = &at
	}
	if o.Payload != nil {
		raw, err := json.Marshal(o.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", o.Kind(), err)
		}
		if !bytes.Equal(raw, []byte("{}")) {
			env.Payload = raw
		}
	}
	return json.Marshal(env)
}

func (o *Observation) UnmarshalJSON(data []byte) error {
	parsed, err := ParseObservation(data)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseObservation decodes one wire observation. It fails with
// ErrMalformedObservation when the record is not valid JSON or has no type,
// and with ErrUnknownKind when the type is not one the detectors handle.
func ParseObservation(data []byte) (Observation, error) {
	var env observationEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Observation{}, fmt.Errorf("%w: %v", ErrMalformedObservation, err)
	}
	env.Type = Kind(strings.TrimSpace(string(env.Type)))
	if env.Type == "" {
		return Observation{}, fmt.Errorf("%w: missing type", ErrMalformedObservation)
	}
	if !env.Type.Valid() {
		return Observation{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}

	payload, err := decodePayload(env.Type, env.Payload)
	if err != nil {
		return Observation{}, fmt.Errorf("%w: %s payload: %v", ErrMalformedObservation, env.Type, err)
	}
	obs := Observation{
		ID:       env.ID,
		EntityID: env.EntityID,
		Message:  env.Message,
		Payload:  payload,
	}
	if env.At != nil {
		obs.At = *env.At
	}
	return obs, nil
}

func decodePayload(kind Kind, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = json.RawMessage("{}")
	}
	switch kind {
	case KindUserMessage:
		var p UserMessage
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindAgentAction:
		var p AgentAction
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindCodeChange:
		var p CodeChange
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindWorkflowExecution:
		var p WorkflowExecution
		err := json.Unmarshal(raw, &p)
		return p, err
	case KindError:
		var p ErrorEvent
		err := json.Unmarshal(raw, &p)
		return p, err
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
