package wire

import "encoding/json"

// DecodeEvent turns one SSE frame's JSON payload into a typed Event.
// eventName is the frame's `event:` line when present; if empty, the
// discriminator field "type" on the payload itself is used instead, per
// §4.2 ("dispatched to the typed event constructor by the event: name, or
// by a discriminator field when absent").
func DecodeEvent(eventName string, payload []byte) (Event, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(payload, &root); err != nil {
		return nil, &DecodeError{Kind: MalformedJSON, Value: err.Error()}
	}

	kind := eventName
	if kind == "" {
		var typ string
		if raw, ok := root["type"]; ok {
			_ = json.Unmarshal(raw, &typ)
		}
		kind = typ
	}

	switch kind {
	case "start":
		var id string
		if raw, ok := root["interaction_id"]; ok {
			_ = json.Unmarshal(raw, &id)
		}
		if id == "" {
			return nil, &DecodeError{Kind: MissingRequiredField, Path: "interaction_id"}
		}
		return StartEvent{InteractionID: id}, nil

	case "status_update":
		var status string
		if raw, ok := root["status"]; ok {
			_ = json.Unmarshal(raw, &status)
		}
		return StatusUpdateEvent{Status: status}, nil

	case "content_delta":
		var idx int
		var delta string
		if raw, ok := root["part_index"]; ok {
			_ = json.Unmarshal(raw, &idx)
		}
		if raw, ok := root["delta"]; ok {
			_ = json.Unmarshal(raw, &delta)
		}
		return ContentDeltaEvent{PartIndex: idx, Delta: delta}, nil

	case "tool_call_fragment":
		var idx int
		var callID, name, argsDelta string
		if raw, ok := root["call_index"]; ok {
			_ = json.Unmarshal(raw, &idx)
		}
		if raw, ok := root["call_id"]; ok {
			_ = json.Unmarshal(raw, &callID)
		}
		if raw, ok := root["name"]; ok {
			_ = json.Unmarshal(raw, &name)
		}
		if raw, ok := root["args_delta"]; ok {
			_ = json.Unmarshal(raw, &argsDelta)
		}
		return ToolCallFragmentEvent{CallIndex: idx, CallID: callID, Name: name, ArgsDelta: argsDelta}, nil

	case "error":
		var msg string
		if raw, ok := root["message"]; ok {
			_ = json.Unmarshal(raw, &msg)
		}
		return ErrorEvent{Err: &DecodeError{Kind: TypeMismatch, Path: "error", Value: msg}}, nil

	case "complete":
		var parts []Part
		var toolCalls []FunctionCall
		var usage Usage
		var finish FinishReason
		var interactionID string
		if raw, ok := root["interaction_id"]; ok {
			_ = json.Unmarshal(raw, &interactionID)
		}
		if raw, ok := root["parts"]; ok {
			_ = json.Unmarshal(raw, &parts)
		}
		if raw, ok := root["tool_calls"]; ok {
			_ = json.Unmarshal(raw, &toolCalls)
		}
		if raw, ok := root["usage"]; ok {
			_ = json.Unmarshal(raw, &usage)
		}
		if raw, ok := root["finish_reason"]; ok {
			_ = json.Unmarshal(raw, &finish)
		}
		return CompleteEvent{InteractionID: interactionID, Parts: parts, ToolCalls: toolCalls, Usage: usage, FinishReason: finish}, nil

	default:
		return nil, &DecodeError{Kind: UnknownDiscriminator, Path: "event", Value: kind}
	}
}
