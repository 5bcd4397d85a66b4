// Package manager orchestrates backup creation, restore, retention and
// status reporting for a single SQLite database. Operation failures are
// reported through a structured Result at the operation boundary; nothing
// here panics or crashes the host process.
package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/litevault/litevault/internal/alert"
	"github.com/litevault/litevault/internal/checksum"
	"github.com/litevault/litevault/internal/crypto"
	"github.com/litevault/litevault/internal/metadata"
	"github.com/litevault/litevault/internal/progress"
	"github.com/litevault/litevault/internal/remote"
	"github.com/litevault/litevault/internal/sqlite"
)

// MetadataFileName is the catalog document kept inside the backup directory.
const MetadataFileName = "backup_metadata.json"

var (
	ErrSourceCorrupt   = errors.New("source database failed integrity check")
	ErrBackupCorrupt   = errors.New("backup copy failed integrity check")
	ErrHashMismatch    = errors.New("backup content hash mismatch")
	ErrRestoredCorrupt = errors.New("restored database failed integrity check")
	ErrNotFound        = errors.New("backup not found")
	ErrInvalidType     = errors.New("invalid backup type")
)

// Retention caps the number of retained backups per tier. Types outside the
// three tiers (manual, full, emergency) are never cleaned up automatically.
type Retention struct {
	Daily   int
	Weekly  int
	Monthly int
}

// DefaultRetention returns the standard 7/4/12 tier caps.
func DefaultRetention() Retention {
	return Retention{Daily: 7, Weekly: 4, Monthly: 12}
}

// Options configures a Manager.
type Options struct {
	// DBPath is the live SQLite database under protection.
	DBPath string
	// BackupDir holds artifacts, the metadata document and the events dir.
	BackupDir string
	// Compress enables gzip compression of new artifacts by default.
	Compress  bool
	Retention Retention

	// Schedule, when set, overwrites the schedule stored in the metadata
	// document so the scheduler picks up the configured times.
	Schedule metadata.Schedule

	// Encrypt enables AES-256-GCM encryption of new artifacts. Password is
	// also used to decrypt encrypted artifacts during restore and verify.
	Encrypt  bool
	Password string

	// Remote is an optional replication backend; nil disables replication.
	Remote remote.Backend
	// Quiet suppresses progress bars on replication transfers.
	Quiet bool

	Logger zerolog.Logger
}

// Result is the outcome of a manager operation. Err carries the sentinel
// error chain for callers that branch on failure kind; Success and Message
// are the caller-facing summary.
type Result struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Record  *metadata.Record `json:"record,omitempty"`
	Removed []string         `json:"removed,omitempty"`

	Err error `json:"-"`
}

// Manager owns the backup directory and its metadata document. All
// operations on one Manager are serialized by an internal mutex; the
// metadata file itself is not locked against other processes.
type Manager struct {
	opts   Options
	store  *metadata.Store
	alerts *alert.Notifier
	log    zerolog.Logger

	mu sync.Mutex

	now              func() time.Time
	checkFn          func(path string) (bool, string)
	schedulerRunning func() bool
}

// New creates the backup directory if needed and loads the metadata
// document.
func New(opts Options) (*Manager, error) {
	if opts.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if opts.BackupDir == "" {
		return nil, fmt.Errorf("backup directory is required")
	}
	if opts.Encrypt && opts.Password == "" {
		return nil, fmt.Errorf("encryption requires a password")
	}
	if opts.Retention == (Retention{}) {
		opts.Retention = DefaultRetention()
	}

	if err := os.MkdirAll(opts.BackupDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	store, err := metadata.Open(filepath.Join(opts.BackupDir, MetadataFileName))
	if err != nil {
		return nil, err
	}
	opts.Logger.Debug().Str("path", store.Path()).Msg("metadata document loaded")

	if opts.Schedule != (metadata.Schedule{}) && opts.Schedule != store.Schedule() {
		if err := opts.Schedule.Validate(); err != nil {
			return nil, fmt.Errorf("invalid backup schedule: %w", err)
		}
		if err := store.SetSchedule(opts.Schedule); err != nil {
			return nil, fmt.Errorf("failed to store backup schedule: %w", err)
		}
	}

	return &Manager{
		opts:             opts,
		store:            store,
		alerts:           alert.NewNotifier(opts.BackupDir, alert.DefaultCooldown, opts.Logger),
		log:              opts.Logger,
		now:              time.Now,
		checkFn:          sqlite.Check,
		schedulerRunning: func() bool { return false },
	}, nil
}

// Store exposes the metadata store for read access (schedule, records).
func (m *Manager) Store() *metadata.Store {
	return m.store
}

// DefaultCompress reports the configured compression default.
func (m *Manager) DefaultCompress() bool {
	return m.opts.Compress
}

// SetSchedulerProbe installs the callback Status uses to report whether the
// scheduler loop is running.
func (m *Manager) SetSchedulerProbe(probe func() bool) {
	if probe != nil {
		m.schedulerRunning = probe
	}
}

// CreateBackup takes a verified online snapshot of the live database and
// records it. The artifact is only recorded after both the source and the
// fresh copy pass an integrity check; a copy that fails its check is
// deleted, never retained.
func (m *Manager) CreateBackup(ctx context.Context, typ metadata.BackupType, compress bool) *Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !metadata.ValidType(typ) {
		return m.fail("", fmt.Errorf("%w: %q", ErrInvalidType, typ))
	}

	now := m.now()
	name := fmt.Sprintf("backup_%s_%s", typ, now.Format("20060102_150405"))
	log := m.log.With().Str("backup", name).Logger()
	log.Info().Str("type", string(typ)).Msg("creating backup")

	if ok, msg := m.checkFn(m.opts.DBPath); !ok {
		m.alerts.Alert("source_corrupt", fmt.Sprintf("live database failed integrity check: %s", msg))
		return m.fail(name, fmt.Errorf("%w: %s", ErrSourceCorrupt, msg))
	}

	rawPath := filepath.Join(m.opts.BackupDir, name+".db")
	if err := sqlite.Snapshot(m.opts.DBPath, rawPath); err != nil {
		removeIfExists(rawPath)
		return m.fail(name, fmt.Errorf("failed to snapshot database: %w", err))
	}

	if ok, msg := m.checkFn(rawPath); !ok {
		removeIfExists(rawPath)
		m.alerts.Alert("backup_corrupt", fmt.Sprintf("backup %s failed integrity check: %s", name, msg))
		return m.fail(name, fmt.Errorf("%w: %s", ErrBackupCorrupt, msg))
	}

	// Hash covers the plain uncompressed bytes; restore decompresses and
	// decrypts before comparing.
	hash, err := checksum.FileSHA256(rawPath)
	if err != nil {
		removeIfExists(rawPath)
		return m.fail(name, fmt.Errorf("failed to hash backup: %w", err))
	}

	info, err := os.Stat(rawPath)
	if err != nil {
		removeIfExists(rawPath)
		return m.fail(name, fmt.Errorf("failed to stat backup: %w", err))
	}
	originalSize := info.Size()

	artifactPath := rawPath
	if compress {
		gzPath := rawPath + ".gz"
		if err := gzipFile(rawPath, gzPath); err != nil {
			removeIfExists(rawPath)
			removeIfExists(gzPath)
			return m.fail(name, fmt.Errorf("failed to compress backup: %w", err))
		}
		removeIfExists(rawPath)
		artifactPath = gzPath
	}

	if m.opts.Encrypt {
		encPath := artifactPath + ".enc"
		if err := crypto.EncryptFile(artifactPath, encPath, m.opts.Password); err != nil {
			removeIfExists(artifactPath)
			removeIfExists(encPath)
			return m.fail(name, fmt.Errorf("failed to encrypt backup: %w", err))
		}
		removeIfExists(artifactPath)
		artifactPath = encPath
	}

	stored, err := os.Stat(artifactPath)
	if err != nil {
		removeIfExists(artifactPath)
		return m.fail(name, fmt.Errorf("failed to stat artifact: %w", err))
	}

	rec := metadata.Record{
		Name:              name,
		Type:              typ,
		Timestamp:         now,
		FilePath:          artifactPath,
		FileSize:          stored.Size(),
		OriginalSize:      originalSize,
		Compressed:        compress,
		Encrypted:         m.opts.Encrypt,
		Hash:              hash,
		IntegrityVerified: true,
		SourceDBPath:      m.opts.DBPath,
	}

	if err := m.store.Append(rec); err != nil {
		removeIfExists(artifactPath)
		return m.fail(name, fmt.Errorf("failed to record backup: %w", err))
	}

	if compress && originalSize > 0 {
		ratio := 100 * (1 - float64(stored.Size())/float64(originalSize))
		log.Info().
			Int64("original_bytes", originalSize).
			Int64("stored_bytes", stored.Size()).
			Msgf("compressed backup, saved %.1f%%", ratio)
	}
	log.Info().Str("path", artifactPath).Int64("bytes", stored.Size()).Msg("backup created")

	m.replicate(ctx, rec)

	return &Result{
		Success: true,
		Message: fmt.Sprintf("backup %s created at %s", name, artifactPath),
		Record:  &rec,
	}
}

// replicate pushes the artifact and its record to the remote backend.
// Replication is best-effort: the local backup is already committed, so a
// failure here is logged and alerted but never fails the operation.
func (m *Manager) replicate(ctx context.Context, rec metadata.Record) {
	if m.opts.Remote == nil {
		return
	}

	log := m.log.With().Str("backup", rec.Name).Logger()

	f, err := os.Open(rec.FilePath) // #nosec G304 - path from our own record
	if err != nil {
		m.warnReplication(log, rec.Name, err)
		return
	}
	defer f.Close() //nolint:errcheck

	var body io.Reader = f
	if !m.opts.Quiet {
		pr := progress.NewReader(f, rec.FileSize, "Replicating "+rec.Name)
		defer pr.Close() //nolint:errcheck
		body = pr
	}

	key := filepath.Base(rec.FilePath)
	if err := m.opts.Remote.Put(ctx, key, body, rec.FileSize); err != nil {
		m.warnReplication(log, rec.Name, err)
		return
	}

	recData, err := json.Marshal(rec)
	if err == nil {
		err = m.opts.Remote.Put(ctx, rec.Name+".json", bytes.NewReader(recData), int64(len(recData)))
	}
	if err != nil {
		m.warnReplication(log, rec.Name, err)
		return
	}

	log.Info().Str("key", key).Msg("backup replicated to remote storage")
}

func (m *Manager) warnReplication(log zerolog.Logger, name string, err error) {
	log.Warn().Err(err).Msg("remote replication failed, local backup is unaffected")
	m.alerts.Alert("replication_failed", fmt.Sprintf("replication of %s failed: %v", name, err))
}

// Delete removes the named backup artifact, its remote replica when
// replication is configured, and its metadata record.
func (m *Manager) Delete(ctx context.Context, name string) *Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, found := m.store.Find(name)
	if !found {
		return m.fail(name, fmt.Errorf("%w: %s", ErrNotFound, name))
	}

	if err := os.Remove(rec.FilePath); err != nil && !os.IsNotExist(err) {
		return m.fail(name, fmt.Errorf("failed to delete artifact: %w", err))
	}

	if m.opts.Remote != nil {
		key := filepath.Base(rec.FilePath)
		if err := m.opts.Remote.Delete(ctx, key); err != nil {
			m.log.Warn().Err(err).Str("backup", name).Msg("failed to delete remote replica")
		}
		if err := m.opts.Remote.Delete(ctx, rec.Name+".json"); err != nil {
			m.log.Warn().Err(err).Str("backup", name).Msg("failed to delete remote record")
		}
	}

	if err := m.store.Remove(name); err != nil {
		return m.fail(name, err)
	}

	m.log.Info().Str("backup", name).Msg("backup deleted")
	return &Result{
		Success: true,
		Message: fmt.Sprintf("backup %s deleted", name),
		Removed: []string{name},
	}
}

// fail logs the error and wraps it in a failure Result.
func (m *Manager) fail(name string, err error) *Result {
	ev := m.log.Error().Err(err)
	if name != "" {
		ev = ev.Str("backup", name)
	}
	ev.Msg("backup operation failed")

	return &Result{
		Success: false,
		Message: err.Error(),
		Err:     err,
	}
}

func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		// Nothing useful to do beyond noting it; the caller is already on
		// an error path.
		fmt.Fprintf(os.Stderr, "Warning: failed to remove %s: %v\n", path, err)
	}
}
