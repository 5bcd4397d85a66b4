package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/litevault/litevault/internal/metadata"
)

// tierOf maps a backup type to its retention tier. Types outside the three
// tiers return "" and are kept forever.
func tierOf(typ metadata.BackupType) string {
	switch typ {
	case metadata.TypeDaily, metadata.TypeScheduled:
		return "daily"
	case metadata.TypeWeekly:
		return "weekly"
	case metadata.TypeMonthly:
		return "monthly"
	}
	return ""
}

func (r Retention) cap(tier string) int {
	switch tier {
	case "daily":
		return r.Daily
	case "weekly":
		return r.Weekly
	case "monthly":
		return r.Monthly
	}
	return 0
}

// CleanupOldBackups deletes backups beyond each tier's cap, newest first.
// Already-missing artifact files are tolerated; the metadata document is
// persisted once at the end. Running it again without new backups is a
// no-op.
func (m *Manager) CleanupOldBackups(ctx context.Context) *Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	tiers := map[string][]metadata.Record{}
	for _, rec := range m.store.Records() {
		if tier := tierOf(rec.Type); tier != "" {
			tiers[tier] = append(tiers[tier], rec)
		}
	}

	var doomed []metadata.Record
	for tier, recs := range tiers {
		keep := m.opts.Retention.cap(tier)
		if len(recs) <= keep {
			continue
		}
		sort.Slice(recs, func(i, j int) bool {
			return recs[i].Timestamp.After(recs[j].Timestamp)
		})
		doomed = append(doomed, recs[keep:]...)
	}

	if len(doomed) == 0 {
		return &Result{Success: true, Message: "no backups beyond retention caps"}
	}

	var removed []string
	for _, rec := range doomed {
		if err := os.Remove(rec.FilePath); err != nil {
			if os.IsNotExist(err) {
				m.log.Debug().Str("backup", rec.Name).Msg("artifact already missing, removing record only")
			} else {
				m.log.Warn().Err(err).Str("backup", rec.Name).Msg("failed to delete artifact")
				continue
			}
		}
		if m.opts.Remote != nil {
			key := filepath.Base(rec.FilePath)
			if err := m.opts.Remote.Delete(ctx, key); err != nil {
				m.log.Warn().Err(err).Str("backup", rec.Name).Msg("failed to delete remote replica")
			}
			if err := m.opts.Remote.Delete(ctx, rec.Name+".json"); err != nil {
				m.log.Warn().Err(err).Str("backup", rec.Name).Msg("failed to delete remote record")
			}
		}
		removed = append(removed, rec.Name)
	}

	if err := m.store.Remove(removed...); err != nil {
		return m.fail("", err)
	}

	m.log.Info().Int("removed", len(removed)).Msg("retention cleanup complete")
	return &Result{
		Success: true,
		Message: fmt.Sprintf("removed %d backups beyond retention caps", len(removed)),
		Removed: removed,
	}
}
