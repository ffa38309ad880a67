/*
Package user contains the identity a connection registers under and the
normalization of set-username requests.
*/
package user

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxNameLength is the maximum username length in runes.
const MaxNameLength = 32

// ErrMalformedRequest is returned for set-username payloads that are neither a string nor an object.
var ErrMalformedRequest = errors.New("malformed identity request")

// Identity is the display identity bound to one live connection.
type Identity struct {
	// ConnID is the transport-assigned connection identifier.
	ConnID string `json:"-"`

	Username string `json:"username"`

	// Avatar is an upload key, URL or the placeholder image.
	Avatar string `json:"avatar"`
}

// Presence is the public view of an identified user.
type Presence struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Presence returns the public view of i.
func (i Identity) Presence() Presence {
	return Presence{Username: i.Username, Avatar: i.Avatar}
}

// Request is a normalized set-username payload.
type Request struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// ParseRequest accepts a bare JSON string or {username, avatar?}. The name is trimmed.
func ParseRequest(raw json.RawMessage) (Request, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Request{}, ErrMalformedRequest
	}

	var req Request

	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &req.Username); err != nil {
			return Request{}, ErrMalformedRequest
		}
	case '{':
		if err := json.Unmarshal(trimmed, &req); err != nil {
			return Request{}, ErrMalformedRequest
		}
	default:
		return Request{}, ErrMalformedRequest
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Avatar = strings.TrimSpace(req.Avatar)
	return req, nil
}

// ValidName reports whether name is non-empty and at most MaxNameLength runes.
func ValidName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n > 0 && n <= MaxNameLength
}
