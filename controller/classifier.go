package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"trigger-capture/models"
)

// Classify turns one trigger-channel payload into a Message.
//
//   - blank input is MessageEmpty;
//   - a JSON object decodes into a TriggerEvent (missing or unknown fields
//     are fine) and is MessageEvent;
//   - text that is not JSON at all is MessageText, which is how control
//     words such as "kill" travel;
//   - valid JSON of the wrong shape is MessageMalformed.
//
// Classify has no side effects.
func Classify(raw string) models.Message {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return models.NoMessage
	}

	var ev models.TriggerEvent
	err := json.Unmarshal([]byte(trimmed), &ev)
	if err == nil {
		if trimmed[0] != '{' {
			// Only a bare null decodes into a struct without an object.
			return models.MalformedMessage(errors.New("trigger payload is JSON null, not an object"))
		}
		return models.EventMessage(ev)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || !json.Valid([]byte(trimmed)) {
		return models.TextMessage(trimmed)
	}
	return models.MalformedMessage(fmt.Errorf("decode trigger payload: %w", err))
}
