package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/message"
	"chatrelay/internal/app/storage"
	"chatrelay/internal/app/store"
	"chatrelay/internal/configs"
	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/pow"
	"chatrelay/internal/pkg/randx"
)

const testSecret = "test-secret"

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fakeStorage struct {
	objects map[string]storage.ObjectInfo
}

func (f *fakeStorage) PresignUpload(_ context.Context, key, _ string, _ int64, _ time.Duration) (string, error) {
	return "https://s3.test/put/" + key, nil
}

func (f *fakeStorage) PresignDownload(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://s3.test/get/" + key, nil
}

func (f *fakeStorage) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	info, ok := f.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return info, nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

type testServer struct {
	*httptest.Server
	deps *AppDeps
}

func newTestServer(t *testing.T, difficulty int, objects storage.Service) *testServer {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	cfg := &configs.AppConfig{
		Environment:   "development",
		JWTSecret:     testSecret,
		AdminUsername: "admin",
		DefaultAvatar: "/img/default.png",
		DefaultMOTD:   "Welcome!",
		HistorySize:   chat.DefaultHistorySize,
	}

	hub := chat.NewHub()
	deps := chat.Deps{Transport: hub, Store: store.NewMemory()}
	if objects != nil {
		deps.Objects = objects
	}
	manager := chat.NewManager(deps, chat.Options{
		HistorySize:   cfg.HistorySize,
		AdminUsername: cfg.AdminUsername,
		DefaultAvatar: cfg.DefaultAvatar,
		DefaultMOTD:   cfg.DefaultMOTD,
	})

	appDeps := &AppDeps{
		Config:  cfg,
		Manager: manager,
		Hub:     hub,
		Storage: objects,
		PoW:     pow.NewPoWManager(ctx, difficulty),
	}

	srv := httptest.NewServer(Router(ctx, appDeps))
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
		_ = manager.Shutdown(context.Background())
		cancel()
	})

	return &testServer{Server: srv, deps: appDeps}
}

func (s *testServer) wsURL(query string) string {
	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func (s *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(s.wsURL(query), nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial: %v (status %d)", err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (s *testServer) getJSON(t *testing.T, path string) (int, apiResponse) {
	t.Helper()

	res, err := http.Get(s.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer res.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return res.StatusCode, body
}

func (s *testServer) postJSON(t *testing.T, path, payload string) (int, apiResponse) {
	t.Helper()

	res, err := http.Post(s.URL+path, "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer res.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return res.StatusCode, body
}

func send(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()

	data, err := chat.EncodeEnvelope(event, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil skips frames until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) chat.Envelope {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("deadline: %v", err)
		}

		var env chat.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %q: %v", event, err)
		}
		if env.Type == event {
			return env
		}
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, 0, nil)

	status, body := srv.getJSON(t, "/health")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	var data struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Status != "ok" || data.Clients != 0 {
		t.Fatalf("unexpected health payload: %+v", data)
	}
}

func TestWebSocketJoinAndChat(t *testing.T) {
	srv := newTestServer(t, 0, nil)

	alice := srv.dial(t, "")

	first := readUntil(t, alice, chat.EventHistory)
	if string(first.Payload) != "[]" {
		t.Fatalf("history = %s, want []", first.Payload)
	}
	readUntil(t, alice, chat.EventVoiceUsers)

	motd := readUntil(t, alice, chat.EventMOTD)
	var text string
	if err := json.Unmarshal(motd.Payload, &text); err != nil || text != "Welcome!" {
		t.Fatalf("motd = %s", motd.Payload)
	}

	send(t, alice, chat.EventSetUsername, "alice")
	accepted := readUntil(t, alice, chat.EventUsernameAccepted)
	if !strings.Contains(string(accepted.Payload), `"username":"alice"`) {
		t.Fatalf("username-accepted = %s", accepted.Payload)
	}

	joined := readUntil(t, alice, chat.EventChatMessage)
	var rec message.Record
	if err := json.Unmarshal(joined.Payload, &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Text != "alice joined the chat" || rec.Kind != message.KindSystem {
		t.Fatalf("join record = %+v", rec)
	}

	bob := srv.dial(t, "")
	history := readUntil(t, bob, chat.EventHistory)
	if !strings.Contains(string(history.Payload), "alice joined the chat") {
		t.Fatalf("bob history = %s", history.Payload)
	}

	send(t, alice, chat.EventChatMessage, map[string]string{"text": "hello there"})

	got := readUntil(t, bob, chat.EventChatMessage)
	if err := json.Unmarshal(got.Payload, &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Sender != "alice" || rec.Text != "hello there" {
		t.Fatalf("bob received %+v", rec)
	}

	if n := srv.deps.Hub.Count(); n != 2 {
		t.Fatalf("hub count = %d, want 2", n)
	}
}

func TestWebSocketAdminToken(t *testing.T) {
	srv := newTestServer(t, 0, nil)

	anon := srv.dial(t, "")
	readUntil(t, anon, chat.EventMOTD)
	send(t, anon, chat.EventSetUsername, "Admin")
	notice := readUntil(t, anon, chat.EventChatMessage)
	if !strings.Contains(string(notice.Payload), "The name Admin is reserved.") {
		t.Fatalf("notice = %s", notice.Payload)
	}

	token, err := jwt.GenerateToken(&jwt.Payload{Username: "admin", Role: jwt.RoleAdmin}, testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	admin := srv.dial(t, "token="+token)
	readUntil(t, admin, chat.EventMOTD)
	send(t, admin, chat.EventSetUsername, "admin")
	readUntil(t, admin, chat.EventUsernameAccepted)

	send(t, admin, chat.EventChatMessage, "/motd Be nice")
	motd := readUntil(t, admin, chat.EventMOTD)
	if string(motd.Payload) != `"Be nice"` {
		t.Fatalf("motd = %s", motd.Payload)
	}
	if got := srv.deps.Manager.MOTD(); got != "Be nice" {
		t.Fatalf("manager motd = %q", got)
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	srv := newTestServer(t, 0, nil)

	forged, err := jwt.GenerateToken(&jwt.Payload{Username: "admin", Role: jwt.RoleAdmin}, "other-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	_, resp, err := websocket.DefaultDialer.Dial(srv.wsURL("token="+forged), nil)
	if err == nil {
		t.Fatal("dial with forged token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func solve(t *testing.T, nonce string, difficulty int) string {
	t.Helper()

	prefix := strings.Repeat("0", difficulty)
	for i := 0; i < 1_000_000; i++ {
		counter := strconv.Itoa(i)
		hash := sha256.Sum256([]byte(nonce + counter))
		if strings.HasPrefix(hex.EncodeToString(hash[:]), prefix) {
			return counter
		}
	}
	t.Fatal("no solution found")
	return ""
}

func TestWebSocketRequiresProofOfWork(t *testing.T) {
	srv := newTestServer(t, 1, nil)

	_, resp, err := websocket.DefaultDialer.Dial(srv.wsURL(""), nil)
	if err == nil {
		t.Fatal("dial without proof token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}

	_, challenge := srv.getJSON(t, "/api/pow/challenge")
	var c struct {
		Nonce      string `json:"nonce"`
		Difficulty int    `json:"difficulty"`
	}
	if err := json.Unmarshal(challenge.Data, &c); err != nil {
		t.Fatal(err)
	}
	if c.Nonce == "" || c.Difficulty != 1 {
		t.Fatalf("challenge = %+v", c)
	}

	status, _ := srv.postJSON(t, "/api/pow/verify", `{"nonce":"unknown","counter":"1"}`)
	if status != http.StatusForbidden {
		t.Fatalf("unknown nonce status = %d", status)
	}

	counter := solve(t, c.Nonce, c.Difficulty)
	status, verified := srv.postJSON(t, "/api/pow/verify", `{"nonce":"`+c.Nonce+`","counter":"`+counter+`"}`)
	if status != http.StatusOK {
		t.Fatalf("verify status = %d (%s)", status, verified.Message)
	}

	var v struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(verified.Data, &v); err != nil {
		t.Fatal(err)
	}

	conn := srv.dial(t, pow.TokenQueryKey+"="+v.Token)
	readUntil(t, conn, chat.EventHistory)

	_, resp, err = websocket.DefaultDialer.Dial(srv.wsURL(pow.TokenQueryKey+"="+v.Token), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatal("proof token was accepted twice")
	}
}

func TestPowChallengeDisabled(t *testing.T) {
	srv := newTestServer(t, 0, nil)

	_, body := srv.getJSON(t, "/api/pow/challenge")
	if string(body.Data) != `{"difficulty":0}` {
		t.Fatalf("challenge = %s", body.Data)
	}
}

func TestFileEndpointsDisabled(t *testing.T) {
	srv := newTestServer(t, 0, nil)

	status, body := srv.postJSON(t, "/api/file/presign-upload", `{"fileName":"a.png","mimeType":"image/png","fileSize":10}`)
	if status != http.StatusServiceUnavailable || body.Code != errs.ErrFileStorageDisabled {
		t.Fatalf("upload: status %d code %d", status, body.Code)
	}

	status, body = srv.getJSON(t, "/api/file/download?k=images/x.png")
	if status != http.StatusServiceUnavailable || body.Code != errs.ErrFileStorageDisabled {
		t.Fatalf("download: status %d code %d", status, body.Code)
	}
}

func TestPresignUpload(t *testing.T) {
	srv := newTestServer(t, 0, &fakeStorage{objects: map[string]storage.ObjectInfo{}})

	tests := []struct {
		name   string
		body   string
		code   int
		prefix string
	}{
		{"image", `{"fileName":"cat.PNG","mimeType":"image/png","fileSize":1024}`, 0, chat.ImageKeyPrefix + "/"},
		{"avatar", `{"fileName":"me.jpg","mimeType":"image/jpeg","fileSize":1024,"purpose":"avatar"}`, 0, chat.AvatarKeyPrefix + "/"},
		{"bad purpose", `{"fileName":"me.jpg","mimeType":"image/jpeg","fileSize":1024,"purpose":"video"}`, errs.ErrInvalidParams, ""},
		{"too large", `{"fileName":"big.png","mimeType":"image/png","fileSize":52428800}`, errs.ErrFileSizeTooLarge, ""},
		{"mismatched type", `{"fileName":"cat.gif","mimeType":"image/png","fileSize":10}`, errs.ErrUnsupportedMediaType, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, body := srv.postJSON(t, "/api/file/presign-upload", tt.body)
			if body.Code != tt.code {
				t.Fatalf("code = %d (%s), want %d", body.Code, body.Message, tt.code)
			}
			if tt.code != 0 {
				return
			}

			var data struct {
				PresignedURL string `json:"presignedUrl"`
				FileKey      string `json:"fileKey"`
			}
			if err := json.Unmarshal(body.Data, &data); err != nil {
				t.Fatal(err)
			}
			if !strings.HasPrefix(data.FileKey, tt.prefix) || !chat.IsUploadKey(data.FileKey) {
				t.Fatalf("file key = %q", data.FileKey)
			}
			if data.PresignedURL != "https://s3.test/put/"+data.FileKey {
				t.Fatalf("presigned url = %q", data.PresignedURL)
			}
		})
	}
}

func TestPresignDownload(t *testing.T) {
	key, err := randx.FileKey(chat.ImageKeyPrefix, ".png")
	if err != nil {
		t.Fatal(err)
	}
	missing, err := randx.FileKey(chat.ImageKeyPrefix, ".png")
	if err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(t, 0, &fakeStorage{objects: map[string]storage.ObjectInfo{
		key: {ContentType: "image/png", Size: 10},
	}})

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	res, err := client.Get(srv.URL + "/api/file/download?k=" + key)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusFound || res.Header.Get("Location") != "https://s3.test/get/"+key {
		t.Fatalf("redirect: status %d location %q", res.StatusCode, res.Header.Get("Location"))
	}

	_, body := srv.getJSON(t, "/api/file/download?k="+missing)
	if body.Code != errs.ErrAttachmentKeyInvalid {
		t.Fatalf("missing key code = %d", body.Code)
	}

	_, body = srv.getJSON(t, "/api/file/download?k=../etc/passwd")
	if body.Code != errs.ErrInvalidParams {
		t.Fatalf("bad key code = %d", body.Code)
	}
}
