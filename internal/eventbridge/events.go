package eventbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// ProtocolVersion identifies the bridge contract version exposed via /health.
	ProtocolVersion = "1.0.0"
	// EventSchemaVersion is the currently supported inbound event version.
	EventSchemaVersion = 1
)

// Host event types forwarded by the OpenCode plugin.
const (
	TypeSessionIdle        = "session.idle"
	TypeSessionError       = "session.error"
	TypeSessionDeleted     = "session.deleted"
	TypeMessageUpdated     = "message.updated"
	TypeMessagePartUpdated = "message.part.updated"
	TypeToolExecuteBefore  = "tool.execute.before"
	TypeToolExecuteAfter   = "tool.execute.after"
)

// Message roles carried by message events.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Event is one host lifecycle notification: {type, properties}. The envelope
// fields are filled in by the bridge when the plugin leaves them out.
type Event struct {
	Version    int             `json:"version,omitempty"`
	EventID    string          `json:"event_id,omitempty"`
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties,omitempty"`
	ServerTime time.Time       `json:"server_time,omitempty"`
}

// Normalize applies defaults and canonical formatting before validation.
func (e *Event) Normalize() {
	if e == nil {
		return
	}
	if e.Version == 0 {
		e.Version = EventSchemaVersion
	}
	e.EventID = strings.TrimSpace(e.EventID)
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	e.Type = strings.TrimSpace(e.Type)
}

// StampServerTime overwrites ServerTime with the supplied clock reading (UTC).
func (e *Event) StampServerTime(now time.Time) {
	if e == nil {
		return
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	e.ServerTime = now.UTC()
}

// Validate enforces baseline schema requirements for incoming events.
func (e Event) Validate() error {
	if e.Version != EventSchemaVersion {
		return fmt.Errorf("version %d not supported", e.Version)
	}
	if e.Type == "" {
		return errors.New("type is required")
	}
	if len(e.Properties) > 0 && !json.Valid(e.Properties) {
		return errors.New("properties must be valid JSON")
	}
	return nil
}

type messageInfo struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionID"`
	Role      string `json:"role"`
}

type messagePart struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
}

type eventProperties struct {
	SessionID string       `json:"sessionID"`
	Info      *messageInfo `json:"info"`
	Part      *messagePart `json:"part"`
}

func (e Event) properties() eventProperties {
	var props eventProperties
	if len(e.Properties) == 0 {
		return props
	}
	// Malformed properties read as empty; the event is then ignored upstream.
	_ = json.Unmarshal(e.Properties, &props)
	return props
}

// SessionID extracts the session the event refers to. Each host event keeps it
// in a different place; "" means the event names no session.
func (e Event) SessionID() string {
	props := e.properties()
	var id string
	switch e.Type {
	case TypeSessionDeleted:
		if props.Info != nil {
			id = props.Info.ID
		}
	case TypeMessageUpdated:
		if props.Info != nil {
			id = props.Info.SessionID
		}
	case TypeMessagePartUpdated:
		if props.Part != nil {
			id = props.Part.SessionID
		}
		if id == "" && props.Info != nil {
			id = props.Info.SessionID
		}
	}
	if strings.TrimSpace(id) == "" {
		id = props.SessionID
	}
	return strings.TrimSpace(id)
}

// Role returns the message author role for message events, lower-cased.
func (e Event) Role() string {
	props := e.properties()
	if props.Info == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(props.Info.Role))
}

// EventProcessor consumes validated events.
type EventProcessor interface {
	HandleEvent(Event) error
}

// EventProcessorFunc adapts a function into an EventProcessor.
type EventProcessorFunc func(Event) error

// HandleEvent executes f(e).
func (f EventProcessorFunc) HandleEvent(e Event) error {
	if f == nil {
		return nil
	}
	return f(e)
}

// Logger records bridge status information. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	RouterReady   bool   `json:"router_ready"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type eventResponse struct {
	Status     string    `json:"status"`
	EventID    string    `json:"event_id"`
	ServerTime time.Time `json:"server_time"`
}
