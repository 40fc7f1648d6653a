package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nhle/mistral-chat/internal/bridge"
	"github.com/nhle/mistral-chat/internal/completion"
	"github.com/nhle/mistral-chat/internal/credential"
	"github.com/nhle/mistral-chat/internal/logging"
	"github.com/nhle/mistral-chat/internal/metrics"
	"github.com/nhle/mistral-chat/internal/model"
	"github.com/nhle/mistral-chat/internal/store"
)

// shutdownTimeout bounds how long exit waits for in-flight requests.
const shutdownTimeout = 5 * time.Second

// stack holds the services shared by the run and send commands.
type stack struct {
	cfg   *model.AppConfig
	log   *zap.SugaredLogger
	store *store.SQLiteStore
	vault credential.Vault
	orch  *completion.Orchestrator

	closeLog      func() error
	cancelMetrics context.CancelFunc
}

// loadConfig reads the file named by --config.
func loadConfig(c *cli.Context) (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(c.String(ConfigFlag.Name))
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	return cfg, nil
}

// newVault is replaced in tests.
var newVault = func() credential.Vault {
	return credential.NewKeyringVault(model.ConfigDir())
}

// setup builds logging, storage, the vault and the orchestrator.
func setup(c *cli.Context) (*stack, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logging.New(logging.Options{
		Path:  cfg.Log.Path,
		Level: cfg.Log.Level,
		Debug: c.Bool(DebugFlag.Name),
	})
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		_ = closeLog()
		return nil, cli.Exit(fmt.Sprintf("creating data directory: %v", err), 1)
	}
	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		_ = closeLog()
		return nil, cli.Exit(err.Error(), 1)
	}

	transport := completion.NewTransport(
		cfg.API.Endpoint,
		"mistral-chat/"+bridge.Version,
		cfg.API.Timeout(),
		log,
	)
	orch := completion.NewOrchestrator(transport, completion.Options{
		Settings: completion.Settings{
			Model:       cfg.API.Model,
			MaxTokens:   cfg.API.MaxTokens,
			Temperature: cfg.API.Temperature,
			HostName:    cfg.Account.HostName,
		},
		MaxResponseBytes: cfg.API.MaxResponseBytes,
		Logger:           log,
	})

	st := &stack{
		cfg:           cfg,
		log:           log,
		store:         s,
		vault:         newVault(),
		orch:          orch,
		closeLog:      closeLog,
		cancelMetrics: func() {},
	}

	if addr := c.String(MetricsAddrFlag.Name); addr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		st.cancelMetrics = cancel
		go func() {
			if err := metrics.Serve(ctx, addr); err != nil {
				log.Errorw("metrics server stopped", "addr", addr, "error", err)
			}
		}()
		log.Infow("serving metrics", "addr", addr)
	}

	log.Infow("starting",
		"version", bridge.Version,
		"endpoint", cfg.API.Endpoint,
		"model", cfg.API.Model,
		"store", cfg.Store.Path,
	)
	return st, nil
}

// protocol builds the bridge for this stack, writing replies to w.
func (st *stack) protocol(w bridge.ConversationWriter) *bridge.Protocol {
	return bridge.New(bridge.Config{
		Store:     st.store,
		Vault:     st.vault,
		Submitter: st.orch,
		Writer:    w,
		Logger:    st.log,
		EnvAPIKey: os.Getenv(APIKeyEnv),
	})
}

// ensureAccount returns the account row for id, creating it if needed.
func (st *stack) ensureAccount(ctx context.Context, id string) (*model.Account, error) {
	acct, err := st.store.GetAccount(ctx, id)
	if !errors.Is(err, store.ErrAccountNotFound) {
		return acct, err
	}

	username := st.cfg.Account.Username
	if username == "" {
		username = id
	}
	fresh := model.Account{ID: id, Username: username, StatusID: model.StatusOffline}
	if err := st.store.UpsertAccount(ctx, fresh); err != nil {
		return nil, err
	}
	return st.store.GetAccount(ctx, id)
}

// shutdown waits for in-flight requests, then releases resources. Requests
// still running after the timeout are abandoned.
func (st *stack) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := st.orch.Close(ctx); err != nil {
		pending := st.orch.Snapshot()
		st.log.Warnw("shutdown timed out", "pending", len(pending), "error", err)
		logAbandoned(st.log, pending, time.Now())
	}
	st.cancelMetrics()
	if err := st.store.Close(); err != nil {
		st.log.Errorw("closing store", "error", err)
	}
	st.log.Infow("stopped")
	_ = st.log.Sync()
	_ = st.closeLog()
}

// logAbandoned records each request dropped at exit.
func logAbandoned(log *zap.SugaredLogger, reqs []completion.InFlightRequest, now time.Time) {
	for _, r := range reqs {
		log.Warnw("abandoning request",
			"request_id", r.ID,
			"state", r.State.String(),
			"age", now.Sub(r.SubmittedAt),
		)
	}
}
