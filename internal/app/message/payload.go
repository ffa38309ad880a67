package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformedPayload is returned for payloads that are neither a JSON string nor an object.
var ErrMalformedPayload = errors.New("malformed message payload")

// Body is the normalized content of an inbound chat or direct message.
type Body struct {
	Text    string          `json:"text"`
	Image   string          `json:"image,omitempty"`
	ReplyTo json.RawMessage `json:"replyTo,omitempty"`

	// Avatar optionally overrides the sender's cached avatar for this message.
	Avatar string `json:"avatar,omitempty"`
}

// Empty reports whether the body carries neither text nor an image.
func (b Body) Empty() bool {
	return b.Text == "" && b.Image == ""
}

// DirectBody is a Body addressed to a single user.
type DirectBody struct {
	To string `json:"to"`
	Body
}

// ParseBody accepts either a bare JSON string or {text, image?, replyTo?, avatar?}
// and returns the normalized body. Text is trimmed.
func ParseBody(raw json.RawMessage) (Body, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Body{}, ErrMalformedPayload
	}

	var body Body

	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &body.Text); err != nil {
			return Body{}, ErrMalformedPayload
		}
	case '{':
		if err := json.Unmarshal(trimmed, &body); err != nil {
			return Body{}, ErrMalformedPayload
		}
	default:
		return Body{}, ErrMalformedPayload
	}

	return body.normalize(), nil
}

// ParseDirect decodes {to, text, image?, replyTo?}. The bare-string form has no target
// and is rejected.
func ParseDirect(raw json.RawMessage) (DirectBody, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return DirectBody{}, ErrMalformedPayload
	}

	var direct DirectBody
	if err := json.Unmarshal(trimmed, &direct); err != nil {
		return DirectBody{}, ErrMalformedPayload
	}

	direct.To = strings.TrimSpace(direct.To)
	direct.Body = direct.Body.normalize()
	return direct, nil
}

func (b Body) normalize() Body {
	b.Text = strings.TrimSpace(b.Text)
	b.Image = strings.TrimSpace(b.Image)
	b.Avatar = strings.TrimSpace(b.Avatar)
	if len(b.ReplyTo) == 0 || bytes.Equal(bytes.TrimSpace(b.ReplyTo), []byte("null")) {
		b.ReplyTo = nil
	}
	return b
}
