/*
Package message defines the canonical chat message record and the normalization of
inbound message payloads into it.

Records are immutable once built except for the text and IsEdited flag of an edit by
the original sender.
*/
package message

import (
	"encoding/json"
	"strings"
	"time"

	"chatrelay/internal/pkg/randx"
)

// Kind classifies a record.
type Kind string

const (
	KindSystem    Kind = "system"
	KindDirect    Kind = "direct"
	KindBroadcast Kind = "broadcast"
)

const (
	// SystemSender is the reserved sender of join, leave and notice messages.
	SystemSender = "System"

	// AnnouncementSender is the reserved sender of administrator announcements.
	AnnouncementSender = "Announcement"

	// TimeLayout formats the human-readable Time field.
	TimeLayout = "3:04 PM"
)

// Record is the canonical message delivered to clients and stored durably.
type Record struct {
	ID        string          `json:"id"`
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient,omitempty"`
	Text      string          `json:"text"`
	Image     string          `json:"image,omitempty"`
	Avatar    string          `json:"avatar,omitempty"`
	Time      string          `json:"time"`
	ReplyTo   json.RawMessage `json:"replyTo,omitempty"`
	Kind      Kind            `json:"type"`
	IsEdited  bool            `json:"isEdited"`
	Timestamp time.Time       `json:"timestamp"`
}

// IsReservedSender reports whether name is one of the system identities, ignoring case.
func IsReservedSender(name string) bool {
	return strings.EqualFold(name, SystemSender) || strings.EqualFold(name, AnnouncementSender)
}

// DeriveKind returns the kind of a record sent by sender.
func DeriveKind(sender string, direct bool) Kind {
	switch {
	case sender == SystemSender || sender == AnnouncementSender:
		return KindSystem
	case direct:
		return KindDirect
	default:
		return KindBroadcast
	}
}

// New builds a record for sender from a normalized body. recipient is empty for broadcasts.
func New(sender, recipient string, body Body, avatar string, now time.Time) Record {
	return Record{
		ID:        randx.MessageID(),
		Sender:    sender,
		Recipient: recipient,
		Text:      body.Text,
		Image:     body.Image,
		Avatar:    avatar,
		Time:      now.Format(TimeLayout),
		ReplyTo:   body.ReplyTo,
		Kind:      DeriveKind(sender, recipient != ""),
		Timestamp: now,
	}
}

// NewSystem builds a System notice.
func NewSystem(text string, now time.Time) Record {
	return New(SystemSender, "", Body{Text: text}, "", now)
}

// NewAnnouncement builds an administrator announcement.
func NewAnnouncement(text string, now time.Time) Record {
	return New(AnnouncementSender, "", Body{Text: text}, "", now)
}
