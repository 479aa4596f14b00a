package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	netmail "net/mail"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/openfroyo/leadflow/pkg/engine"
)

var (
	testFrom = netmail.Address{Name: "Jane Doe", Address: "jane@studio.example"}
	testNow  = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
)

func testLead() engine.Lead {
	return engine.Lead{
		Email:      "Sam@Acme.example",
		Attributes: engine.Attributes{FirstName: "Sam", LastName: "Lee", Company: "Acme"},
	}
}

func testContent() engine.Content {
	return engine.Content{Subject: "Stories for Acme – café", Body: "Hi Sam,\nA long line.\n\nBest,\nJane"}
}

func TestMessageBytes(t *testing.T) {
	msg, err := NewMessage(testFrom, testLead(), testContent(), testNow)
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}
	msg.MessageID = "abc@leadflow"

	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}

	parsed, err := netmail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("rendered message does not parse: %v", err)
	}

	if got := parsed.Header.Get("To"); got != `"Sam Lee" <Sam@Acme.example>` {
		t.Errorf("To = %q", got)
	}
	if got := parsed.Header.Get("Message-ID"); got != "<abc@leadflow>" {
		t.Errorf("Message-ID = %q", got)
	}

	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	if err != nil || subject != testContent().Subject {
		t.Errorf("Subject = %q (%v)", subject, err)
	}

	date, err := parsed.Header.Date()
	if err != nil || !date.Equal(testNow) {
		t.Errorf("Date = %v (%v)", date, err)
	}

	body, _ := io.ReadAll(parsed.Body)
	if !strings.Contains(string(body), "Hi Sam,\r\n") {
		t.Errorf("body lines must end in CRLF, got %q", body)
	}
}

func TestNewMessageInvalidRecipient(t *testing.T) {
	lead := testLead()
	lead.Email = "not an address"

	_, err := NewMessage(testFrom, lead, testContent(), testNow)
	if engine.ClassOf(err) != engine.ErrorClassPermanent || engine.CodeOf(err) != engine.ErrCodeRecipient {
		t.Errorf("expected permanent recipient error, got %v", err)
	}
}

type gmailServer struct {
	mu       sync.Mutex
	raw      string
	query    string
	status   int
	messages int
}

func newGmail(t *testing.T, gs *gmailServer) *Gmail {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gs.mu.Lock()
		defer gs.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if gs.status != 0 {
			w.WriteHeader(gs.status)
			fmt.Fprint(w, `{"error": {"message": "failure"}}`)
			return
		}

		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/users/me/messages/send"):
			var body struct {
				Raw string `json:"raw"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			gs.raw = body.Raw
			fmt.Fprint(w, `{"id": "msg-1", "threadId": "thread-1"}`)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/users/me/messages"):
			gs.query = r.URL.Query().Get("q")
			var ids []string
			for i := 0; i < gs.messages; i++ {
				ids = append(ids, fmt.Sprintf(`{"id": "m%d"}`, i))
			}
			fmt.Fprintf(w, `{"messages": [%s], "resultSizeEstimate": %d}`, strings.Join(ids, ","), gs.messages)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error": {"message": "unexpected request"}}`)
		}
	}))
	t.Cleanup(server.Close)

	g, err := NewGmail(context.Background(), testFrom, zerolog.Nop(),
		option.WithEndpoint(server.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewGmail failed: %v", err)
	}
	g.now = func() time.Time { return testNow }
	return g
}

func TestGmailSend(t *testing.T) {
	gs := &gmailServer{}
	g := newGmail(t, gs)

	receipt, err := g.Send(context.Background(), testLead(), testContent())
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if receipt.MessageID != "msg-1" || !receipt.SentAt.Equal(testNow) {
		t.Errorf("unexpected receipt %+v", receipt)
	}

	raw, err := base64.URLEncoding.DecodeString(gs.raw)
	if err != nil {
		t.Fatalf("raw is not base64url: %v", err)
	}
	parsed, err := netmail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("sent message does not parse: %v", err)
	}
	if parsed.Header.Get("From") != testFrom.String() {
		t.Errorf("From = %q", parsed.Header.Get("From"))
	}
}

func TestGmailSendErrors(t *testing.T) {
	tests := []struct {
		status int
		class  engine.ErrorClass
	}{
		{http.StatusTooManyRequests, engine.ErrorClassThrottled},
		{http.StatusBadGateway, engine.ErrorClassTransient},
		{http.StatusUnauthorized, engine.ErrorClassPermanent},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			g := newGmail(t, &gmailServer{status: tt.status})
			_, err := g.Send(context.Background(), testLead(), testContent())
			if got := engine.ClassOf(err); got != tt.class {
				t.Errorf("class = %s, want %s (%v)", got, tt.class, err)
			}
		})
	}
}

func TestGmailHasRepliedSince(t *testing.T) {
	since := time.Unix(1709280000, 0)

	gs := &gmailServer{}
	g := newGmail(t, gs)

	replied, err := g.HasRepliedSince(context.Background(), testLead(), since)
	if err != nil {
		t.Fatalf("HasRepliedSince failed: %v", err)
	}
	if replied {
		t.Error("expected no reply")
	}
	if gs.query != "from:sam@acme.example after:1709280000" {
		t.Errorf("query = %q", gs.query)
	}

	gs.mu.Lock()
	gs.messages = 2
	gs.mu.Unlock()

	replied, err = g.HasRepliedSince(context.Background(), testLead(), since)
	if err != nil {
		t.Fatalf("HasRepliedSince failed: %v", err)
	}
	if !replied {
		t.Error("expected reply")
	}

	gs.mu.Lock()
	gs.status = http.StatusServiceUnavailable
	gs.mu.Unlock()
	if _, err := g.HasRepliedSince(context.Background(), testLead(), since); !engine.IsRetryable(err) {
		t.Errorf("expected retryable error, got %v", err)
	}
}

func TestOutbox(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "outbox")
	outbox, err := NewOutbox(dir, testFrom, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewOutbox failed: %v", err)
	}
	outbox.now = func() time.Time { return testNow }

	first, err := outbox.Send(context.Background(), testLead(), testContent())
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	second, err := outbox.Send(context.Background(), testLead(), testContent())
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if first.MessageID == second.MessageID {
		t.Error("message ids must be unique")
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.eml"))
	if err != nil || len(files) != 2 {
		t.Fatalf("expected 2 .eml files, got %v (%v)", files, err)
	}

	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	parsed, err := netmail.ReadMessage(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("outbox message does not parse: %v", err)
	}
	id := parsed.Header.Get("Message-ID")
	if id != "<"+first.MessageID+">" && id != "<"+second.MessageID+">" {
		t.Errorf("Message-ID %q does not match a receipt", id)
	}

	lead := testLead()
	lead.Email = "@@"
	if _, err := outbox.Send(context.Background(), lead, testContent()); engine.ClassOf(err) != engine.ErrorClassPermanent {
		t.Errorf("expected permanent error, got %v", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	tests := []struct {
		name    string
		dir     func(t *testing.T) string
		wantErr bool
	}{
		{
			name: "writes into existing directory",
			dir:  func(t *testing.T) string { return t.TempDir() },
		},
		{
			name:    "missing directory",
			dir:     func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing") },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.dir(t)
			path := filepath.Join(dir, "message.eml")

			err := writeFileAtomic(path, []byte("Subject: hi\r\n\r\nbody"), 0o600)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("writeFileAtomic failed: %v", err)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("failed to read file: %v", err)
			}
			if string(data) != "Subject: hi\r\n\r\nbody" {
				t.Errorf("unexpected content %q", data)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("stat failed: %v", err)
			}
			if info.Mode().Perm() != 0o600 {
				t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
			}
			leftovers, _ := filepath.Glob(filepath.Join(dir, ".tmp-*"))
			if len(leftovers) != 0 {
				t.Errorf("temp files left behind: %v", leftovers)
			}
		})
	}
}

func TestReplyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replies.yaml")
	replies := NewReplyFile(path)
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	replied, err := replies.HasRepliedSince(context.Background(), testLead(), since)
	if err != nil || replied {
		t.Fatalf("missing file must mean no replies, got %v, %v", replied, err)
	}

	content := `- email: SAM@acme.example
  replied_at: 2024-03-02T10:00:00Z
- email: old@acme.example
  replied_at: 2024-02-01T10:00:00Z
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write replies: %v", err)
	}

	tests := []struct {
		email string
		want  bool
	}{
		{"sam@acme.example", true},
		{"old@acme.example", false},
		{"other@acme.example", false},
	}
	for _, tt := range tests {
		got, err := replies.HasRepliedSince(context.Background(), engine.Lead{Email: tt.email}, since)
		if err != nil {
			t.Fatalf("HasRepliedSince(%s) failed: %v", tt.email, err)
		}
		if got != tt.want {
			t.Errorf("HasRepliedSince(%s) = %v, want %v", tt.email, got, tt.want)
		}
	}

	if err := os.WriteFile(path, []byte("email: [unclosed"), 0o644); err != nil {
		t.Fatalf("failed to write replies: %v", err)
	}
	if _, err := replies.HasRepliedSince(context.Background(), testLead(), since); !engine.IsRetryable(err) {
		t.Errorf("expected retryable error for malformed file, got %v", err)
	}
}
