package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mistral-chat/internal/completion"
	"github.com/nhle/mistral-chat/internal/credential"
	"github.com/nhle/mistral-chat/internal/model"
	"github.com/nhle/mistral-chat/internal/store"
)

// Version is reported in plugin metadata and the User-Agent header.
const Version = "1.0"

const (
	// SenderLabel is the name replies are written under.
	SenderLabel = model.AssistantBuddyAlias

	listIcon = "mistral-logo"
)

// ErrMissingAPIKey is returned by Login when the account has no key.
var ErrMissingAPIKey = errors.New("missing api key")

// MissingKeyHint is the user-facing text for ErrMissingAPIKey.
const MissingKeyHint = "Mistral API key not configured. Please set your API key in account settings."

// Submitter schedules completion requests.
type Submitter interface {
	Submit(rc completion.RequestContext, apiKey string, sink completion.Sink) (string, error)
}

// session is the runtime state of a connected account.
type session struct {
	apiKey        string
	username      string
	statusID      string
	statusMessage string
}

// Protocol implements LoginHandler, SendHandler and StatusProvider on top
// of a completion Submitter.
type Protocol struct {
	store     store.Store
	vault     credential.Vault
	submitter Submitter
	writer    ConversationWriter
	log       *zap.SugaredLogger

	// envKey, when set, overrides the vault for every account.
	envKey string

	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

var (
	_ LoginHandler   = (*Protocol)(nil)
	_ SendHandler    = (*Protocol)(nil)
	_ StatusProvider = (*Protocol)(nil)
)

// Config wires a Protocol.
type Config struct {
	Store     store.Store
	Vault     credential.Vault
	Submitter Submitter
	Writer    ConversationWriter
	Logger    *zap.SugaredLogger
	EnvAPIKey string
}

func New(cfg Config) *Protocol {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Protocol{
		store:     cfg.Store,
		vault:     cfg.Vault,
		submitter: cfg.Submitter,
		writer:    cfg.Writer,
		log:       log,
		envKey:    cfg.EnvAPIKey,
		sessions:  make(map[string]*session),
		now:       time.Now,
	}
}

// Info returns the plugin registration metadata.
func (p *Protocol) Info() Info { return PluginInfo() }

// PluginInfo is the metadata the protocol registers with.
func PluginInfo() Info {
	return Info{
		ID:          "prpl-mistral",
		Name:        "Mistral AI",
		Version:     Version,
		Summary:     "Mistral AI protocol for terminal chat",
		Description: "Chat with Mistral AI models from a buddy list",
		Homepage:    "https://docs.mistral.ai",
	}
}

func (p *Protocol) apiKey(accountID string) (string, error) {
	if p.envKey != "" {
		return p.envKey, nil
	}
	key, err := p.vault.Get(credential.APIKeyName(accountID))
	if errors.Is(err, credential.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return key, nil
}

// HasAPIKey reports whether a key is available for accountID, from the
// environment or the vault.
func (p *Protocol) HasAPIKey(accountID string) bool {
	key, err := p.apiKey(accountID)
	return err == nil && key != ""
}

// Login connects an account. It performs no network I/O: it only checks
// that a key is configured, then marks the account and its assistant buddy
// available.
func (p *Protocol) Login(ctx context.Context, accountID string) error {
	acct, err := p.store.GetAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	key, err := p.apiKey(accountID)
	if err != nil {
		p.log.Warnw("reading api key", "account", accountID, "error", err)
		return fmt.Errorf("logging in: %w", err)
	}
	if key == "" {
		p.log.Infow("login refused", "account", accountID, "reason", ErrMissingAPIKey)
		return ErrMissingAPIKey
	}

	if err := p.store.SetAccountStatus(ctx, acct.ID, model.StatusAvailable, acct.StatusMessage); err != nil {
		return fmt.Errorf("logging in: %w", err)
	}
	err = p.store.UpsertBuddy(ctx, model.Buddy{
		AccountID: acct.ID,
		Name:      model.AssistantBuddyName,
		Alias:     model.AssistantBuddyAlias,
		StatusID:  model.StatusAvailable,
		Icon:      listIcon,
	})
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	p.mu.Lock()
	p.sessions[acct.ID] = &session{
		apiKey:        key,
		username:      acct.Username,
		statusID:      model.StatusAvailable,
		statusMessage: acct.StatusMessage,
	}
	p.mu.Unlock()

	p.log.Infow("account connected", "account", acct.ID, "username", acct.Username)
	return nil
}

// Close disconnects an account. Requests already submitted still deliver.
func (p *Protocol) Close(ctx context.Context, accountID string) error {
	p.mu.Lock()
	delete(p.sessions, accountID)
	p.mu.Unlock()

	if err := p.store.SetBuddyStatus(ctx, accountID, model.AssistantBuddyName, model.StatusOffline); err != nil {
		return fmt.Errorf("closing account %s: %w", accountID, err)
	}
	p.log.Infow("account disconnected", "account", accountID)
	return nil
}

// Connected reports whether accountID has an active session.
func (p *Protocol) Connected(accountID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sessions[accountID]
	return ok
}

// SendMessage snapshots the account's presence and submits text. The reply,
// or an error line, is written to h exactly once, later.
func (p *Protocol) SendMessage(h model.ConversationHandle, text string) SendResult {
	p.mu.Lock()
	sess, ok := p.sessions[h.AccountID]
	var (
		key string
		rc  completion.RequestContext
	)
	if ok {
		key = sess.apiKey
		rc = completion.RequestContext{
			Message:       text,
			Username:      sess.username,
			StatusID:      sess.statusID,
			StatusMessage: sess.statusMessage,
		}
	}
	p.mu.Unlock()
	if !ok {
		return SendNotConnected
	}

	sink := func(d completion.Delivery) {
		flags := model.FlagReceived
		if completion.IsError(d.Outcome) {
			flags |= model.FlagError
		}
		p.writer.WriteToConversation(h, SenderLabel, d.Text(), p.now(), flags)
	}

	id, err := p.submitter.Submit(rc, key, sink)
	if err != nil {
		p.log.Errorw("submitting request", "conversation", h.String(), "error", err)
		go p.writer.WriteToConversation(h, SenderLabel,
			completion.TransportFailure{Reason: err.Error()}.Text(),
			p.now(), model.FlagReceived|model.FlagError)
		return SendAccepted
	}

	p.log.Debugw("message submitted", "conversation", h.String(), "request_id", id)
	return SendAccepted
}

// StatusTypes lists the presence states the assistant account supports.
func (p *Protocol) StatusTypes() []StatusType {
	return []StatusType{
		{ID: model.StatusAvailable, Name: "Available", Available: true},
		{ID: model.StatusOffline, Name: "Offline", Available: false},
	}
}

// ListIcon names the buddy list icon for this protocol.
func (p *Protocol) ListIcon() string { return listIcon }

// SetStatus updates the local account's presence, which the next request
// reports in its system line.
func (p *Protocol) SetStatus(ctx context.Context, accountID, statusID, message string) error {
	if !model.ValidStatus(statusID) {
		return fmt.Errorf("unknown status %q", statusID)
	}
	if err := p.store.SetAccountStatus(ctx, accountID, statusID, message); err != nil {
		return err
	}

	p.mu.Lock()
	if sess, ok := p.sessions[accountID]; ok {
		sess.statusID = statusID
		sess.statusMessage = message
	}
	p.mu.Unlock()
	return nil
}

// SetUsername updates the name reported for a connected account.
func (p *Protocol) SetUsername(accountID, username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sess, ok := p.sessions[accountID]; ok {
		sess.username = username
	}
}
