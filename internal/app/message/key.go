package message

import (
	"sort"
	"strings"
)

// ConversationKey addresses a direct-message thread: the two participants,
// lowercased and sorted so that either direction yields the same key.
type ConversationKey struct {
	A string
	B string
}

// NewConversationKey canonicalizes the pair (x, y).
func NewConversationKey(x, y string) ConversationKey {
	pair := []string{strings.ToLower(x), strings.ToLower(y)}
	sort.Strings(pair)
	return ConversationKey{A: pair[0], B: pair[1]}
}

// String returns "a:b".
func (k ConversationKey) String() string {
	return k.A + ":" + k.B
}
