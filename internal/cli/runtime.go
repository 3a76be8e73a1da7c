package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/dl-alexandre/drivemirror/internal/api"
	"github.com/dl-alexandre/drivemirror/internal/auth"
	"github.com/dl-alexandre/drivemirror/internal/config"
	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/render"
	"github.com/dl-alexandre/drivemirror/internal/sync"
	"github.com/dl-alexandre/drivemirror/internal/sync/ledger"
	"github.com/dl-alexandre/drivemirror/internal/utils"
	"github.com/dl-alexandre/drivemirror/internal/vcs"
)

// itemTimeoutFactor bounds one item relative to the per-call timeout; a
// convert-then-export item makes three calls.
const itemTimeoutFactor = 4

// runtimeEnv is everything a sync or plan run needs, built from the loaded
// configuration.
type runtimeEnv struct {
	syncConfig config.SyncConfig
	repoRoot   string
	account    *auth.ServiceAccount
	client     *api.Client
	ledger     *ledger.DB
	engine     *sync.Engine
}

func (r *runtimeEnv) Close() error {
	if r == nil {
		return nil
	}
	return r.ledger.Close()
}

// loadSyncConfig resolves the sync document path against the repo root.
func loadSyncConfig() (config.SyncConfig, string, error) {
	repoRoot, err := filepath.Abs(globalFlags.RepoRoot)
	if err != nil {
		return config.SyncConfig{}, "", utils.NewValidationError(utils.ErrCodeInvalidArgument, err.Error())
	}
	cfgPath := globalFlags.SyncConfig
	if !filepath.IsAbs(cfgPath) {
		cfgPath = filepath.Join(repoRoot, cfgPath)
	}
	cfg, err := config.LoadSyncConfig(cfgPath)
	if err != nil {
		return config.SyncConfig{}, "", err
	}
	return cfg, repoRoot, nil
}

// driveClient loads the service account and builds the Drive client.
func driveClient(ctx context.Context, cfg *config.Config) (*auth.ServiceAccount, *api.Client, error) {
	sa, err := auth.LoadServiceAccount(ctx, cfg.CredentialsFile)
	if err != nil {
		return nil, nil, err
	}
	service, err := sa.DriveService(ctx, debugTransport)
	if err != nil {
		return nil, nil, err
	}
	client := api.NewClient(service, api.ClientOptions{
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.GetRetryBaseDelay(),
		RequestTimeout:    cfg.GetRequestTimeout(),
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, logger)
	return sa, client, nil
}

func newRuntime(ctx context.Context) (*runtimeEnv, error) {
	syncCfg, repoRoot, err := loadSyncConfig()
	if err != nil {
		return nil, err
	}
	sa, client, err := driveClient(ctx, runtimeConfig)
	if err != nil {
		return nil, err
	}

	env := &runtimeEnv{
		syncConfig: syncCfg,
		repoRoot:   repoRoot,
		account:    sa,
		client:     client,
	}
	if runtimeConfig.LedgerPath != "" {
		db, err := ledger.Open(runtimeConfig.LedgerPath)
		if err != nil {
			return nil, utils.WrapAppError(utils.NewCLIError(utils.ErrCodeInvalidConfig,
				"failed to open ledger: "+err.Error()).Build(), err)
		}
		env.ledger = db
	}

	opts := sync.Options{
		RepoRoot:              repoRoot,
		ServiceIdentity:       sa.Email,
		Concurrency:           runtimeConfig.Concurrency,
		PermissionConcurrency: runtimeConfig.PermissionConcurrency,
		ItemTimeout:           itemTimeoutFactor * runtimeConfig.GetRequestTimeout(),
	}
	if syncCfg.Render.Enabled {
		opts.Renderer = render.NewRenderer(vcs.NewCommandExecutor(logger), logger)
		opts.Resolution = syncCfg.Render.Resolution
	}
	env.engine = sync.NewEngine(afero.NewOsFs(), client, env.ledger, opts, logger)

	logger.Debug("Runtime ready",
		logging.F("repo", syncCfg.Source.Repo),
		logging.F("forks", len(syncCfg.Targets.Forks)),
		logging.F("identity", sa.Email),
		logging.F("ledger", runtimeConfig.LedgerPath != ""),
		logging.F("itemTimeout", opts.ItemTimeout.String()),
	)
	return env, nil
}

// publishTimeout bounds the whole publish phase. The retry loop alone can
// sleep for 5s+10s.
func publishTimeout(cfg *config.Config) time.Duration {
	return time.Duration(utils.DefaultPublishAttempts+2) * cfg.GetRequestTimeout()
}
