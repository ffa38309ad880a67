package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T) Service {
	t.Helper()

	svc, err := NewService(context.Background(), ServiceConfig{
		S3BucketName:      "chat-uploads",
		S3Endpoint:        "http://127.0.0.1:9000",
		S3AccessKeyID:     "test-access",
		S3SecretAccessKey: "test-secret",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestPresignUploadSignsPathStyleURL(t *testing.T) {
	svc := newTestService(t)

	raw, err := svc.PresignUpload(context.Background(), "images/abc.png", "image/png", 1024, 5*time.Minute)
	if err != nil {
		t.Fatalf("PresignUpload: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	if u.Host != "127.0.0.1:9000" {
		t.Errorf("host = %q", u.Host)
	}
	if u.Path != "/chat-uploads/images/abc.png" {
		t.Errorf("path = %q", u.Path)
	}
	if u.Query().Get("X-Amz-Signature") == "" {
		t.Error("missing signature")
	}
	if got := u.Query().Get("X-Amz-Expires"); got != "300" {
		t.Errorf("expires = %q, want 300", got)
	}
}

func TestPresignDownload(t *testing.T) {
	svc := newTestService(t)

	raw, err := svc.PresignDownload(context.Background(), "avatars/xyz.jpg", time.Hour)
	if err != nil {
		t.Fatalf("PresignDownload: %v", err)
	}
	if !strings.Contains(raw, "/chat-uploads/avatars/xyz.jpg") {
		t.Errorf("url = %q", raw)
	}
}
