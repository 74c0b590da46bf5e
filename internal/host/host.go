// Package host talks back to the agent host: toasts for the countdown and
// prompt injection for the continuation itself.
package host

import (
	"encoding/json"
	"time"
)

// Variant is the toast severity understood by the host.
type Variant string

const (
	VariantInfo    Variant = "info"
	VariantSuccess Variant = "success"
	VariantWarning Variant = "warning"
	VariantError   Variant = "error"
)

// Toast is a transient notification.
type Toast struct {
	Title    string
	Message  string
	Variant  Variant
	Duration time.Duration
}

// MarshalJSON emits the host's wire shape, with duration in milliseconds.
func (t Toast) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Title    string  `json:"title,omitempty"`
		Message  string  `json:"message"`
		Variant  Variant `json:"variant"`
		Duration int64   `json:"duration,omitempty"`
	}{
		Title:    t.Title,
		Message:  t.Message,
		Variant:  t.Variant,
		Duration: t.Duration.Milliseconds(),
	})
}

// Part is one piece of an injected prompt.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextPart wraps text as a prompt part.
func TextPart(text string) Part {
	return Part{Type: "text", Text: text}
}
