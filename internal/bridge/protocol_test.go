package bridge_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nhle/mistral-chat/internal/bridge"
	"github.com/nhle/mistral-chat/internal/completion"
	"github.com/nhle/mistral-chat/internal/credential"
	"github.com/nhle/mistral-chat/internal/model"
	"github.com/nhle/mistral-chat/internal/store"
	"github.com/nhle/mistral-chat/internal/testutil"
)

type fixture struct {
	store    *store.SQLiteStore
	vault    *credential.MemoryVault
	orch     *completion.Orchestrator
	writer   *testutil.RecordingWriter
	protocol *bridge.Protocol
}

func newFixture(t *testing.T, handler http.Handler) *fixture {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := testutil.NewTestStore(t)
	testutil.SeedAccount(t, s, "a1", "alice")

	tr := completion.NewTransport(srv.URL, "mistral-chat/test", 5*time.Second, nil)
	orch := completion.NewOrchestrator(tr, completion.Options{
		Settings: completion.Settings{Model: "mistral-small", MaxTokens: 1000, Temperature: 0.7, HostName: "Terminal"},
	})
	w := testutil.NewRecordingWriter()
	v := credential.NewMemoryVault()

	p := bridge.New(bridge.Config{Store: s, Vault: v, Submitter: orch, Writer: w})
	return &fixture{store: s, vault: v, orch: orch, writer: w, protocol: p}
}

func (f *fixture) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.orch.Wait(ctx); err != nil {
		t.Fatalf("waiting for requests: %v", err)
	}
}

var handle = model.ConversationHandle{AccountID: "a1", Buddy: model.AssistantBuddyName}

func TestLoginWithoutKey(t *testing.T) {
	f := newFixture(t, http.NotFoundHandler())

	err := f.protocol.Login(context.Background(), "a1")
	if !errors.Is(err, bridge.ErrMissingAPIKey) {
		t.Fatalf("Login: got %v, want ErrMissingAPIKey", err)
	}
	if err.Error() != "missing api key" {
		t.Errorf("error text = %q", err.Error())
	}
	if f.protocol.Connected("a1") {
		t.Error("account connected without a key")
	}
}

func TestLoginUnknownAccount(t *testing.T) {
	f := newFixture(t, http.NotFoundHandler())
	if err := f.protocol.Login(context.Background(), "ghost"); !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("got %v, want ErrAccountNotFound", err)
	}
}

func TestLoginMarksBuddyAvailable(t *testing.T) {
	f := newFixture(t, http.NotFoundHandler())
	_ = f.vault.Set(credential.APIKeyName("a1"), "sk-1")

	if err := f.protocol.Login(context.Background(), "a1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	buddies, err := f.store.GetBuddies(context.Background(), "a1")
	if err != nil {
		t.Fatalf("GetBuddies failed: %v", err)
	}
	if len(buddies) != 1 {
		t.Fatalf("got %d buddies", len(buddies))
	}
	b := buddies[0]
	if b.Name != "mistral-ai" || b.Alias != "Mistral AI" || b.StatusID != model.StatusAvailable {
		t.Errorf("buddy = %+v", b)
	}

	if err := f.protocol.Close(context.Background(), "a1"); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	buddies, _ = f.store.GetBuddies(context.Background(), "a1")
	if buddies[0].Online() {
		t.Error("buddy still online after Close")
	}
}

func TestSendMessageWritesReplyOnce(t *testing.T) {
	var mu sync.Mutex
	var gotAuth, gotBody string
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		gotBody = string(body)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Hello!"}}]}`))
	}))
	_ = f.vault.Set(credential.APIKeyName("a1"), "sk-1")
	if err := f.protocol.Login(context.Background(), "a1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := f.protocol.SetStatus(context.Background(), "a1", model.StatusAway, "brb"); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	if res := f.protocol.SendMessage(handle, "Hi"); res != bridge.SendAccepted {
		t.Fatalf("SendMessage = %v", res)
	}
	f.wait(t)

	lines := f.writer.Lines()
	if len(lines) != 1 {
		t.Fatalf("got %d writes, want 1", len(lines))
	}
	if lines[0].Text != "Hello!" || lines[0].Sender != "Mistral AI" || lines[0].Flags.Has(model.FlagError) {
		t.Errorf("write = %+v", lines[0])
	}
	if lines[0].Handle != handle {
		t.Errorf("handle = %+v", lines[0].Handle)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotAuth != "Bearer sk-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if !strings.Contains(gotBody, "status: away, status message: brb") {
		t.Errorf("system line missing presence: %s", gotBody)
	}
}

func TestSendMessageAPIErrorIsFlagged(t *testing.T) {
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Unauthorized"}}`))
	}))
	_ = f.vault.Set(credential.APIKeyName("a1"), "sk-bad")
	if err := f.protocol.Login(context.Background(), "a1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	f.protocol.SendMessage(handle, "Hi")
	f.wait(t)

	lines := f.writer.Lines()
	if len(lines) != 1 {
		t.Fatalf("got %d writes", len(lines))
	}
	if lines[0].Text != "Mistral API Error (unknown): Unauthorized (Code: unknown)" {
		t.Errorf("text = %q", lines[0].Text)
	}
	if !lines[0].Flags.Has(model.FlagError) {
		t.Error("error flag missing")
	}
}

func TestSendMessageNotConnected(t *testing.T) {
	f := newFixture(t, http.NotFoundHandler())
	if res := f.protocol.SendMessage(handle, "Hi"); res != bridge.SendNotConnected {
		t.Fatalf("SendMessage = %v", res)
	}
}

// lockedVault fails every read, like a keyring that refuses access.
type lockedVault struct{ credential.MemoryVault }

var errLocked = errors.New("keyring locked")

func (*lockedVault) Get(string) (string, error) { return "", errLocked }

func TestLoginReportsVaultFailure(t *testing.T) {
	s := testutil.NewTestStore(t)
	testutil.SeedAccount(t, s, "a1", "alice")
	p := bridge.New(bridge.Config{
		Store:  s,
		Vault:  &lockedVault{},
		Writer: testutil.NewRecordingWriter(),
	})

	err := p.Login(context.Background(), "a1")
	if !errors.Is(err, errLocked) {
		t.Fatalf("Login: got %v, want the vault error", err)
	}
	if errors.Is(err, bridge.ErrMissingAPIKey) {
		t.Error("vault failure reported as a missing key")
	}
	if p.Connected("a1") {
		t.Error("account connected after vault failure")
	}
}

func TestEnvKeyOverridesVault(t *testing.T) {
	s := testutil.NewTestStore(t)
	testutil.SeedAccount(t, s, "a1", "alice")
	p := bridge.New(bridge.Config{
		Store:     s,
		Vault:     credential.NewMemoryVault(),
		Writer:    testutil.NewRecordingWriter(),
		EnvAPIKey: "sk-env",
	})
	if err := p.Login(context.Background(), "a1"); err != nil {
		t.Fatalf("Login with env key failed: %v", err)
	}
}

func TestStatusProvider(t *testing.T) {
	p := bridge.New(bridge.Config{})
	types := p.StatusTypes()
	if len(types) != 2 || types[0].ID != "available" || types[1].ID != "offline" {
		t.Errorf("StatusTypes = %+v", types)
	}
	if p.ListIcon() != "mistral-logo" {
		t.Errorf("ListIcon = %q", p.ListIcon())
	}
	if info := p.Info(); info.ID != "prpl-mistral" || info.Name != "Mistral AI" {
		t.Errorf("Info = %+v", info)
	}
}
