package randx

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestMessageIDIsUUID(t *testing.T) {
	id := MessageID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("MessageID() = %q is not a UUID: %v", id, err)
	}
	if id == MessageID() {
		t.Error("two message IDs collided")
	}
}

func TestFileKeyRoundTrip(t *testing.T) {
	key, err := FileKey("images", ".PNG")
	if err != nil {
		t.Fatalf("FileKey: %v", err)
	}
	if !strings.HasPrefix(key, "images/") || !strings.HasSuffix(key, ".png") {
		t.Errorf("unexpected key %q", key)
	}
	if !IsValidFileKey(key, "images") {
		t.Errorf("IsValidFileKey(%q) = false", key)
	}
	if IsValidFileKey(key, "avatars") {
		t.Error("key accepted under the wrong prefix")
	}
}

func TestIsValidFileKeyRejects(t *testing.T) {
	for _, key := range []string{
		"images/short.png",
		"images/../../etc/passwd",
		"images/AAAAAAAAAAAAAAAA/x.png",
		"images/AAAAAAAA-AAAAAAA.png",
	} {
		if IsValidFileKey(key, "images") {
			t.Errorf("IsValidFileKey(%q) = true", key)
		}
	}
}
