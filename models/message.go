package models

import "strings"

// MessageKind is the outcome of classifying one trigger-channel payload.
type MessageKind int

const (
	MessageEmpty MessageKind = iota
	MessageEvent
	MessageText
	MessageMalformed
)

var messageKindNames = [...]string{"empty", "event", "text", "malformed"}

func (k MessageKind) String() string {
	if int(k) < len(messageKindNames) {
		return messageKindNames[k]
	}
	return "unknown"
}

// KillWord is the bare-text control word that ends a capture session.
const KillWord = "kill"

// Message is a classified trigger-channel payload. Exactly one of Event,
// Text or Err is meaningful, selected by Kind.
type Message struct {
	Kind  MessageKind
	Event TriggerEvent // MessageEvent
	Text  string       // MessageText
	Err   error        // MessageMalformed
}

// NoMessage is what a cycle without any received payload carries.
var NoMessage = Message{Kind: MessageEmpty}

// EventMessage wraps a decoded trigger.
func EventMessage(e TriggerEvent) Message { return Message{Kind: MessageEvent, Event: e} }

// TextMessage wraps a bare control word or other plain text.
func TextMessage(s string) Message { return Message{Kind: MessageText, Text: s} }

// MalformedMessage wraps a payload that looked structured but did not fit the schema.
func MalformedMessage(err error) Message { return Message{Kind: MessageMalformed, Err: err} }

// IsKill reports whether the message is the kill control word.
func (m Message) IsKill() bool {
	return m.Kind == MessageText && strings.TrimSpace(m.Text) == KillWord
}
