package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/InstaWP/iwp-mu/internal/config"
	"github.com/InstaWP/iwp-mu/internal/logging"
	"github.com/InstaWP/iwp-mu/internal/output"
	"github.com/InstaWP/iwp-mu/internal/sitestatus"
	"github.com/InstaWP/iwp-mu/internal/state"
	"github.com/InstaWP/iwp-mu/internal/update"
)

// env is everything a command needs once the config is loaded.
type env struct {
	cfg     *config.Config
	store   state.Store
	updater *update.Updater
	out     *output.Writer
}

// loadEnv finds and loads the config, re-initializes logging from it,
// and opens the state store.
func loadEnv(cmd *cobra.Command) (*env, error) {
	out, err := newWriter(cmd)
	if err != nil {
		return nil, err
	}

	path, err := config.FindConfig(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	if err := logging.Init(effectiveLogLevel(cfg.Log.Level), effectiveLogFile(cfg.Log.File)); err != nil {
		return nil, err
	}
	log.WithField("config", path).Debug("loaded config")

	store, err := openStore(cmd.Context(), cfg.Database)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:     cfg,
		store:   store,
		updater: newUpdater(cfg, afero.NewOsFs(), store),
		out:     out,
	}, nil
}

// Close releases the state store.
func (e *env) Close() error {
	return e.store.Close()
}

func openStore(ctx context.Context, database string) (state.Store, error) {
	if database != state.MemoryDatabase {
		if err := os.MkdirAll(filepath.Dir(database), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := state.Open(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database %s: %w", database, err)
	}
	return store, nil
}

func newUpdater(cfg *config.Config, fs afero.Fs, store update.Store) *update.Updater {
	opts := update.Options{
		CurrentVersion: cfg.CurrentVersion,
		Source: update.Source{
			RepoURL:  cfg.RepoURL,
			Branch:   cfg.Branch,
			MainFile: cfg.MainFile,
			Suffixes: cfg.ArchiveSuffixes,
		},
		PluginDir:       cfg.PluginDir,
		ScratchDir:      cfg.ScratchDir,
		CheckInterval:   cfg.CheckInterval.Duration,
		LockTTL:         cfg.LockTTL.Duration,
		CheckTimeout:    cfg.CheckTimeout.Duration,
		DownloadTimeout: cfg.DownloadTimeout.Duration,
		MinArtifactSize: cfg.MinArtifactSize,
		CompanionPlugin: cfg.CompanionPlugin,
	}
	return update.New(opts, fs, store, update.OnUpdated(announceUpdate))
}

// announceUpdate is the post-update notification.
func announceUpdate(ctx context.Context, slug, version string) {
	log.WithContext(ctx).WithFields(log.Fields{
		"plugin":  slug,
		"version": version,
	}).Info("plugin updated")
}

func newSiteStatusService(cfg *config.Config, store state.OptionStore) *sitestatus.Service {
	client := sitestatus.NewClient(cfg.StatusAPIURL, sitestatus.DefaultTimeout)
	return sitestatus.NewService(client, store, cfg.SiteURL, cfg.StatusCacheTTL.Duration)
}

func newWriter(cmd *cobra.Command) (*output.Writer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewWriter(cmd.OutOrStdout(), format), nil
}

// triggerContext tags the command's context so log entries name the trigger.
func triggerContext(cmd *cobra.Command, trigger string) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.WithTrigger(ctx, trigger)
}

// render prints view in text format and data in structured formats.
func render(out *output.Writer, view fmt.Stringer, data interface{}) error {
	if out.Format() == output.FormatText {
		return out.Write(view)
	}
	return out.Write(data)
}
