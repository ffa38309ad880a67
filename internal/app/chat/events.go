package chat

import (
	"encoding/json"
	"time"
)

// Event names carried in the envelope "type" field.
const (
	EventHistory          = "history"
	EventMOTD             = "motd"
	EventChatMessage      = "chat-message"
	EventPrivateMessage   = "private-message"
	EventUsernameAccepted = "username-accepted"
	EventOnlineUsers      = "online-users"
	EventUserStatusChange = "user-status-change"
	EventVoiceUsers       = "vc-user-list-update"
	EventMessageEdited    = "message-edited"
	EventMessageDeleted   = "message-deleted"
	EventTyping           = "typing"
	EventError            = "error"

	EventSetUsername   = "set-username"
	EventEditMessage   = "edit-message"
	EventDeleteMessage = "delete-message"
	EventVoiceJoin     = "vc-join"
	EventVoiceLeave    = "vc-leave"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outboundEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// EncodeEnvelope marshals an outbound frame.
func EncodeEnvelope(event string, payload any) ([]byte, error) {
	return json.Marshal(outboundEnvelope{Type: event, Payload: payload})
}

// Transport delivers events to live connections. Implementations never block the caller.
type Transport interface {
	PublishToOne(connID, event string, payload any)
	PublishToAll(event string, payload any)
	Terminate(connID string)
}

// EventHandler receives what a connection reads off the wire.
type EventHandler interface {
	HandleEvent(connID, event string, payload json.RawMessage)
	Disconnect(connID string)
}

// StatusChange is the user-status-change payload.
type StatusChange struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
	Avatar   string `json:"avatar,omitempty"`
}

// EditRequest is the edit-message payload.
type EditRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// DeleteRequest is the delete-message payload; the same shape is broadcast as message-deleted.
type DeleteRequest struct {
	ID string `json:"id"`
}

// TypingRequest is the inbound typing payload.
type TypingRequest struct {
	Active bool `json:"active"`
}

// TypingNotice is relayed to the other connections.
type TypingNotice struct {
	Username string `json:"username"`
	Active   bool   `json:"active"`
}

// MOTDUpdate is mirrored when an administrator changes the message of the day.
type MOTDUpdate struct {
	Text      string    `json:"text"`
	UpdatedBy string    `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}
