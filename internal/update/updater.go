package update

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/InstaWP/iwp-mu/internal/backup"
	"github.com/InstaWP/iwp-mu/internal/state"
	"github.com/InstaWP/iwp-mu/internal/sync"
	"github.com/InstaWP/iwp-mu/internal/types"
)

// Store is the persistence the pipeline needs.
type Store interface {
	state.RecordStore
	state.Locker
}

// Options configures an Updater.
type Options struct {
	// CurrentVersion is used when the installed main file carries no
	// readable Version header.
	CurrentVersion  string
	Source          Source
	PluginDir       string
	ScratchDir      string
	CheckInterval   time.Duration
	LockTTL         time.Duration
	CheckTimeout    time.Duration
	DownloadTimeout time.Duration
	MinArtifactSize int64
	// CompanionPlugin is the plugin file whose install, update, or
	// activation forces a check.
	CompanionPlugin string
}

// UpdatedFunc is called after a successful update with the plugin slug
// and the version now installed.
type UpdatedFunc func(ctx context.Context, slug, version string)

// Updater runs version checks and the self-update pipeline for one
// install directory. Processes sharing a Store serialize through its lock.
type Updater struct {
	opts      Options
	fs        afero.Fs
	store     Store
	checker   Checker
	fetcher   Fetcher
	unpacker  Unpacker
	backups   *backup.Manager
	sync      *sync.Synchronizer
	now       func() time.Time
	onUpdated []UpdatedFunc
}

// Option customizes an Updater
type Option func(*Updater)

// WithChecker replaces the remote version checker
func WithChecker(c Checker) Option {
	return func(u *Updater) { u.checker = c }
}

// WithFetcher replaces the archive downloader
func WithFetcher(f Fetcher) Option {
	return func(u *Updater) { u.fetcher = f }
}

// WithUnpacker replaces the archive extractor
func WithUnpacker(p Unpacker) Option {
	return func(u *Updater) { u.unpacker = p }
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(u *Updater) { u.now = now }
}

// OnUpdated registers a callback fired after every successful update
func OnUpdated(fn UpdatedFunc) Option {
	return func(u *Updater) { u.onUpdated = append(u.onUpdated, fn) }
}

// New creates an Updater. Components not replaced through options are
// built from opts on fs.
func New(opts Options, fs afero.Fs, store Store, options ...Option) *Updater {
	u := &Updater{
		opts:    opts,
		fs:      fs,
		store:   store,
		checker: NewMarkerChecker(opts.Source, opts.CheckTimeout),
		fetcher: NewHTTPDownloader(fs, opts.DownloadTimeout, opts.MinArtifactSize),
		unpacker: NewExtractor(fs, filepath.Base(filepath.Clean(opts.PluginDir)),
			opts.Source.MainFile, opts.Source.PayloadSuffixes()),
		backups: backup.NewManager(fs, opts.ScratchDir),
		sync:    sync.NewSynchronizer(fs),
		now:     time.Now,
	}
	for _, option := range options {
		option(u)
	}
	u.backups = u.backups.WithClock(u.now)
	return u
}

// Slug returns the plugin directory name
func (u *Updater) Slug() string {
	return filepath.Base(filepath.Clean(u.opts.PluginDir))
}

// Backups returns the scratch manager
func (u *Updater) Backups() *backup.Manager {
	return u.backups
}

// InstalledVersion reads the Version header of the installed main file,
// falling back to the configured version.
func (u *Updater) InstalledVersion() string {
	content, err := afero.ReadFile(u.fs, filepath.Join(u.opts.PluginDir, u.opts.Source.MainFile))
	if err == nil {
		if v, ok := ExtractVersion(content); ok {
			if _, err := ParseVersion(v); err == nil {
				return NormalizeVersion(v)
			}
		}
	}
	return NormalizeVersion(u.opts.CurrentVersion)
}

// Record returns the persisted update record, or nil before the first check
func (u *Updater) Record(ctx context.Context) (*state.UpdateRecord, error) {
	return u.store.GetRecord(ctx, state.UpdateRecordKey)
}

// MaybeCheck checks for an update unless the last check is more recent
// than the check interval. A skipped check makes no network call and
// returns a result in StageIdle.
func (u *Updater) MaybeCheck(ctx context.Context) (*Result, error) {
	rec, err := u.Record(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read update record: %w", err)
	}

	if rec != nil && u.now().Sub(rec.LastChecked) < u.opts.CheckInterval {
		log.WithContext(ctx).WithFields(log.Fields{
			"last_checked": rec.LastChecked,
			"interval":     u.opts.CheckInterval,
		}).Debug("skipping update check")
		now := u.now()
		return &Result{
			Stage:       types.StageIdle,
			FromVersion: rec.CurrentVersion,
			StartedAt:   now,
			FinishedAt:  now,
		}, nil
	}

	return u.check(ctx)
}

// ForceCheck checks for an update regardless of the check interval
func (u *Updater) ForceCheck(ctx context.Context) (*Result, error) {
	return u.check(ctx)
}

// Apply runs the pipeline without a version check, reinstalling the
// branch head over the install directory.
func (u *Updater) Apply(ctx context.Context) (*Result, error) {
	current := u.InstalledVersion()
	result := &Result{
		Stage:       types.StageUpdateAvailable,
		FromVersion: current,
		StartedAt:   u.now(),
	}
	if rec, err := u.Record(ctx); err == nil && rec != nil {
		result.ToVersion = rec.RemoteVersion
	}
	return u.apply(ctx, result)
}

func (u *Updater) check(ctx context.Context) (*Result, error) {
	current := u.InstalledVersion()
	result := &Result{
		Stage:       types.StageChecking,
		FromVersion: current,
		Checked:     true,
		StartedAt:   u.now(),
	}

	info, err := u.checker.CheckForUpdate(ctx, current)
	if err != nil {
		log.WithContext(ctx).WithFields(log.Fields{
			"source":  u.opts.Source.RepoURL,
			"version": current,
		}).Warnf("update check failed: %v", err)
	}
	if info == nil {
		info = &UpdateInfo{CurrentVersion: current, RemoteVersion: current}
	}

	rec := &state.UpdateRecord{
		LastChecked:     u.now(),
		CurrentVersion:  current,
		RemoteVersion:   info.RemoteVersion,
		UpdateAvailable: info.Available,
	}
	if prev, err := u.Record(ctx); err == nil && prev != nil {
		rec.LastUpdated = prev.LastUpdated
	}
	if err := u.store.PutRecord(ctx, state.UpdateRecordKey, rec); err != nil {
		return nil, fmt.Errorf("failed to write update record: %w", err)
	}

	if !info.Available {
		result.Stage = types.StageUpToDate
		result.ToVersion = info.RemoteVersion
		result.FinishedAt = u.now()
		return result, nil
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"version":        current,
		"remote_version": info.RemoteVersion,
	}).Info("update available")

	result.Stage = types.StageUpdateAvailable
	result.ToVersion = info.RemoteVersion
	return u.apply(ctx, result)
}

// run carries the scratch paths of one pipeline pass for cleanup.
type run struct {
	lock      *Lock
	artifact  string
	payload   string
	backupDir string
	replacer  *DirectoryReplacer
}

func (u *Updater) apply(ctx context.Context, result *Result) (*Result, error) {
	logger := log.WithContext(ctx).WithFields(log.Fields{
		"source":         u.opts.Source.RepoURL,
		"version":        result.FromVersion,
		"remote_version": result.ToVersion,
	})

	r := &run{lock: NewLock(u.store, state.UpdateLockName).WithClock(u.now)}

	result.Stage = types.StageLocking
	acquired, err := r.lock.Acquire(ctx, u.opts.LockTTL)
	if err != nil {
		return u.fail(logger, result, stageError(types.StageLocking, ErrLockContention, err))
	}
	if !acquired {
		logger.Debug("update lock held elsewhere, skipping")
		result.Stage = types.StageLockFailed
		result.Error = stageError(types.StageLocking, ErrLockContention, nil).Error()
		result.FinishedAt = u.now()
		return result, nil
	}
	result.Stage = types.StageLocked

	defer func() {
		if errs := u.cleanup(r); errs != nil {
			for _, e := range errs.Errors {
				result.CleanupErrors = append(result.CleanupErrors, e.Error())
			}
			logger.Warnf("update cleanup incomplete: %v", errs)
		}
	}()

	// Another process may have installed the version while this one waited.
	if result.Checked {
		if newer, err := IsNewer(result.ToVersion, u.InstalledVersion()); err == nil && !newer {
			logger.Info("remote version already installed")
			result.Stage = types.StageUpToDate
			result.FinishedAt = u.now()
			return result, nil
		}
	}

	u.sweep(logger)

	result.Stage = types.StageFetching
	r.artifact, err = u.fetcher.Fetch(ctx, u.opts.Source.ArchiveURL(), u.backups.ScratchDir())
	if err != nil {
		return u.fail(logger, result, stageError(types.StageFetching, ErrDownload, err))
	}

	result.Stage = types.StageExtracting
	root, err := u.unpacker.Extract(r.artifact, u.backups.ScratchDir())
	if rmErr := u.backups.Remove(r.artifact); rmErr == nil {
		r.artifact = ""
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPayload):
			return u.fail(logger, result, stageError(types.StageValidating, ErrInvalidPayload, err))
		case errors.Is(err, ErrPayloadNotFound):
			return u.fail(logger, result, stageError(types.StageValidating, ErrPayloadNotFound, err))
		default:
			return u.fail(logger, result, stageError(types.StageExtracting, ErrExtract, err))
		}
	}
	r.payload = filepath.Dir(root)

	result.Stage = types.StageValidating
	if v := u.payloadVersion(root); v != "" {
		result.ToVersion = v
	}

	result.Stage = types.StageBackingUp
	r.backupDir, err = u.backups.Snapshot(u.opts.PluginDir)
	if err != nil {
		return u.fail(logger, result, stageError(types.StageBackingUp, ErrBackup, err))
	}
	r.replacer = NewDirectoryReplacer(u.fs, u.sync, u.opts.PluginDir, r.backupDir)

	result.Stage = types.StageSyncing
	if err := r.lock.Refresh(ctx); err != nil {
		return u.fail(logger, result, stageError(types.StageSyncing, ErrLockLost, err))
	}

	if err := r.replacer.Replace(root); err != nil {
		return u.rollback(logger, result, r, stageError(types.StageSyncing, ErrSync, err))
	}

	result.Stage = types.StageVerifying
	if err := r.replacer.Verify(u.opts.Source.MainFile); err != nil {
		return u.rollback(logger, result, r, stageError(types.StageVerifying, ErrVerify, err))
	}

	result.Stage = types.StageSuccess
	result.FinishedAt = u.now()

	if err := u.recordSuccess(ctx, result); err != nil {
		logger.Errorf("update installed but record not saved: %v", err)
	}

	logger.WithField("installed", result.ToVersion).Info("update installed")
	for _, fn := range u.onUpdated {
		fn(ctx, u.Slug(), result.ToVersion)
	}

	return result, nil
}

func (u *Updater) payloadVersion(root string) string {
	content, err := afero.ReadFile(u.fs, filepath.Join(root, u.opts.Source.MainFile))
	if err != nil {
		return ""
	}
	v, ok := ExtractVersion(content)
	if !ok {
		return ""
	}
	if _, err := ParseVersion(v); err != nil {
		return ""
	}
	return NormalizeVersion(v)
}

func (u *Updater) recordSuccess(ctx context.Context, result *Result) error {
	rec, err := u.Record(ctx)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &state.UpdateRecord{LastChecked: result.StartedAt}
	}

	now := u.now()
	rec.UpdateAvailable = false
	rec.LastUpdated = &now
	if result.ToVersion != "" {
		rec.CurrentVersion = result.ToVersion
		rec.RemoteVersion = result.ToVersion
	}
	return u.store.PutRecord(ctx, state.UpdateRecordKey, rec)
}

// sweep removes scratch entries abandoned by runs that died while holding
// the lock. Anything older than the lock TTL cannot belong to a live run.
func (u *Updater) sweep(logger *log.Entry) {
	swept, err := u.backups.Sweep(u.opts.LockTTL)
	if err != nil {
		logger.Warnf("failed to sweep stale scratch entries: %v", err)
		return
	}
	for _, info := range swept.Deleted {
		logger.WithField("path", info.Path).Info("removed stale scratch entry")
	}
}

func (u *Updater) fail(logger *log.Entry, result *Result, err *StageError) (*Result, error) {
	result.Stage = types.StageFailed
	result.Error = err.Error()
	result.FinishedAt = u.now()

	logger.WithField("stage", err.Stage).Errorf("update failed: %v", err.Err)
	return result, err
}

func (u *Updater) rollback(logger *log.Entry, result *Result, r *run, cause *StageError) (*Result, error) {
	logger.WithField("stage", cause.Stage).Errorf("update failed, rolling back: %v", cause.Err)
	result.Stage = types.StageRollingBack

	if err := r.replacer.Rollback(); err != nil {
		logger.WithFields(log.Fields{
			"stage":    types.StageRollbackFailed,
			"severity": "critical",
		}).Errorf("rollback failed, install directory may be broken: %v", err)

		result.Stage = types.StageRollbackFailed
		result.FinishedAt = u.now()
		rbErr := stageError(types.StageRollingBack, ErrRollback, errors.Join(cause, err))
		result.Error = rbErr.Error()
		return result, rbErr
	}

	logger.WithField("stage", types.StageRolledBack).Warn("install directory restored from backup")
	result.Stage = types.StageRolledBack
	result.Error = cause.Error()
	result.FinishedAt = u.now()
	return result, cause
}

// cleanup removes every scratch entry of the run and releases the lock.
func (u *Updater) cleanup(r *run) *multierror.Error {
	var errs *multierror.Error

	for _, path := range []string{r.artifact, r.payload, r.backupDir} {
		if err := u.backups.Remove(path); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	// Release must happen even if the caller's context is done.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.lock.Release(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}

	return errs
}
