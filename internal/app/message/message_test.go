package message

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDeriveKind(t *testing.T) {
	tests := []struct {
		sender string
		direct bool
		want   Kind
	}{
		{SystemSender, false, KindSystem},
		{AnnouncementSender, true, KindSystem},
		{"alice", true, KindDirect},
		{"alice", false, KindBroadcast},
	}

	for _, tt := range tests {
		if got := DeriveKind(tt.sender, tt.direct); got != tt.want {
			t.Errorf("DeriveKind(%q, %v) = %s, want %s", tt.sender, tt.direct, got, tt.want)
		}
	}
}

func TestNewRecord(t *testing.T) {
	now := time.Date(2024, 3, 1, 15, 4, 0, 0, time.UTC)
	reply := json.RawMessage(`{"id":"m1","snippet":"hi"}`)

	rec := New("alice", "", Body{Text: "hello", ReplyTo: reply}, "/a.png", now)

	if rec.ID == "" || rec.Kind != KindBroadcast || rec.Time != "3:04 PM" {
		t.Errorf("unexpected record %+v", rec)
	}
	if string(rec.ReplyTo) != string(reply) {
		t.Errorf("replyTo not carried verbatim: %s", rec.ReplyTo)
	}

	direct := New("alice", "bob", Body{Text: "psst"}, "", now)
	if direct.Kind != KindDirect || direct.Recipient != "bob" {
		t.Errorf("direct record = %+v", direct)
	}

	if NewSystem("x", now).Kind != KindSystem || NewAnnouncement("y", now).Sender != AnnouncementSender {
		t.Error("system constructors produced the wrong sender or kind")
	}
}

func TestIsReservedSender(t *testing.T) {
	for _, name := range []string{"System", "system", "ANNOUNCEMENT"} {
		if !IsReservedSender(name) {
			t.Errorf("%q should be reserved", name)
		}
	}
	if IsReservedSender("Systems") {
		t.Error("Systems is not reserved")
	}
}

func TestRecordJSONFieldNames(t *testing.T) {
	rec := New("alice", "", Body{Text: "hi"}, "", time.Now())
	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"id", "sender", "text", "time", "type", "isEdited", "timestamp"} {
		if _, ok := fields[name]; !ok {
			t.Errorf("missing field %q in %s", name, raw)
		}
	}
	if _, ok := fields["replyTo"]; ok {
		t.Error("empty replyTo should be omitted")
	}
}
