package manager

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/litevault/litevault/internal/checksum"
	"github.com/litevault/litevault/internal/crypto"
	"github.com/litevault/litevault/internal/metadata"
)

// RestoreBackup restores the named backup to targetPath. An empty target
// defaults to the recorded source path plus ".restored"; the live database
// is never overwritten unless the caller passes its path explicitly. When
// targetPath already exists, a safety copy is taken first and removed only
// after the restore verifies cleanly.
func (m *Manager) RestoreBackup(name, targetPath string) *Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, found := m.store.Find(name)
	if !found {
		return m.fail(name, fmt.Errorf("%w: %s", ErrNotFound, name))
	}
	if _, err := os.Stat(rec.FilePath); err != nil {
		return m.fail(name, fmt.Errorf("%w: artifact %s missing from disk", ErrNotFound, rec.FilePath))
	}

	if targetPath == "" {
		targetPath = rec.SourceDBPath + ".restored"
	}

	stage, cleanup, err := m.stagePlainArtifact(rec)
	defer cleanup()
	if err != nil {
		return m.fail(name, err)
	}

	hash, err := checksum.FileSHA256(stage)
	if err != nil {
		return m.fail(name, fmt.Errorf("failed to hash artifact: %w", err))
	}
	if hash != rec.Hash {
		m.alerts.Alert("restore_hash_mismatch", fmt.Sprintf("backup %s hash mismatch on restore", name))
		return m.fail(name, fmt.Errorf("%w: backup %s may be corrupted or tampered with", ErrHashMismatch, name))
	}

	if ok, msg := m.checkFn(stage); !ok {
		return m.fail(name, fmt.Errorf("%w: %s", ErrRestoredCorrupt, msg))
	}

	safety := ""
	if _, err := os.Stat(targetPath); err == nil {
		safety = targetPath + ".pre-restore"
		if err := copyFile(targetPath, safety); err != nil {
			return m.fail(name, fmt.Errorf("failed to take pre-restore safety copy: %w", err))
		}
	}

	if err := copyFile(stage, targetPath); err != nil {
		return m.fail(name, err)
	}

	if ok, msg := m.checkFn(targetPath); !ok {
		removeIfExists(targetPath)
		return m.fail(name, fmt.Errorf("%w: target failed verification: %s", ErrRestoredCorrupt, msg))
	}

	if safety != "" {
		removeIfExists(safety)
	}

	m.log.Info().Str("backup", name).Str("target", targetPath).Msg("backup restored")
	return &Result{
		Success: true,
		Message: fmt.Sprintf("backup %s restored to %s", name, targetPath),
		Record:  &rec,
	}
}

// Verify recomputes the named backup's content hash and runs an integrity
// check on its database content without touching any restore target.
func (m *Manager) Verify(name string) *Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, found := m.store.Find(name)
	if !found {
		return m.fail(name, fmt.Errorf("%w: %s", ErrNotFound, name))
	}
	if _, err := os.Stat(rec.FilePath); err != nil {
		return m.fail(name, fmt.Errorf("%w: artifact %s missing from disk", ErrNotFound, rec.FilePath))
	}

	stage, cleanup, err := m.stagePlainArtifact(rec)
	defer cleanup()
	if err != nil {
		return m.fail(name, err)
	}

	hash, err := checksum.FileSHA256(stage)
	if err != nil {
		return m.fail(name, fmt.Errorf("failed to hash artifact: %w", err))
	}
	if hash != rec.Hash {
		return m.fail(name, fmt.Errorf("%w: backup %s may be corrupted or tampered with", ErrHashMismatch, name))
	}

	if ok, msg := m.checkFn(stage); !ok {
		return m.fail(name, fmt.Errorf("%w: %s", ErrRestoredCorrupt, msg))
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("backup %s verified: hash and integrity OK", name),
		Record:  &rec,
	}
}

// stagePlainArtifact materializes the plain uncompressed database content of
// a record into a temporary file next to the artifact. The returned cleanup
// removes every temporary file and is safe to call on the error path.
func (m *Manager) stagePlainArtifact(rec metadata.Record) (string, func(), error) {
	var temps []string
	cleanup := func() {
		for _, t := range temps {
			removeIfExists(t)
		}
	}

	stage := rec.FilePath

	if rec.Encrypted {
		if m.opts.Password == "" {
			return "", cleanup, fmt.Errorf("backup %s is encrypted and no password is configured", rec.Name)
		}
		dec := filepath.Join(m.opts.BackupDir, rec.Name+".dec.tmp")
		if err := crypto.DecryptFile(stage, dec, m.opts.Password); err != nil {
			temps = append(temps, dec)
			return "", cleanup, fmt.Errorf("failed to decrypt backup: %w", err)
		}
		temps = append(temps, dec)
		stage = dec
	}

	if rec.Compressed {
		plain := filepath.Join(m.opts.BackupDir, rec.Name+".plain.tmp")
		if err := gunzipFile(stage, plain); err != nil {
			temps = append(temps, plain)
			return "", cleanup, err
		}
		temps = append(temps, plain)
		stage = plain
	}

	return stage, cleanup, nil
}
