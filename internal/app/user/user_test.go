package user

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseRequest(t *testing.T) {
	got, err := ParseRequest(json.RawMessage(`"  Alice "`))
	if err != nil || got.Username != "Alice" || got.Avatar != "" {
		t.Fatalf("bare string: %+v, %v", got, err)
	}

	got, err = ParseRequest(json.RawMessage(`{"username":"bob","avatar":"avatars/x.png"}`))
	if err != nil || got.Username != "bob" || got.Avatar != "avatars/x.png" {
		t.Fatalf("object: %+v, %v", got, err)
	}

	if _, err := ParseRequest(json.RawMessage(`[1]`)); err == nil {
		t.Error("array accepted")
	}
}

func TestValidName(t *testing.T) {
	if ValidName("") {
		t.Error("empty name accepted")
	}
	if !ValidName(strings.Repeat("é", MaxNameLength)) {
		t.Error("multi-byte name at the limit rejected")
	}
	if ValidName(strings.Repeat("a", MaxNameLength+1)) {
		t.Error("over-long name accepted")
	}
}
