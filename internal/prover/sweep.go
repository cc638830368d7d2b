package prover

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/zkverify/internal/store"
)

// Workspaces older than this are considered orphaned. Normal sessions remove
// their workspace on every exit path; only a crashed process leaves one.
const orphanAge = time.Hour

// StartSweepWorker runs a background goroutine that periodically prunes old
// audit records and removes orphaned proving workspaces.
func StartSweepWorker(ctx context.Context, repo store.Repository, workDir string, recordTTL, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Sweep worker started", "interval", interval, "record_ttl", recordTTL)

		for {
			select {
			case <-ticker.C:
				sweepOnce(ctx, repo, workDir, recordTTL)
			case <-ctx.Done():
				slog.Info("Sweep worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepOnce(ctx context.Context, repo store.Repository, workDir string, recordTTL time.Duration) {
	if repo != nil {
		if deleted, err := repo.DeleteOlderThan(ctx, recordTTL); err != nil {
			slog.Error("Sweep worker failed to prune audit records", "error", err)
		} else if deleted > 0 {
			slog.Info("Sweep worker pruned audit records", "count", deleted)
		}
	}

	removed := removeOrphanWorkspaces(workDir)
	if removed > 0 {
		slog.Info("Sweep worker removed orphaned workspaces", "count", removed)
	}
}

// removeOrphanWorkspaces deletes stale per-session workspace directories left
// behind by a crashed process and returns how many were removed.
func removeOrphanWorkspaces(workDir string) int {
	if workDir == "" {
		workDir = os.TempDir()
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		slog.Error("Sweep worker failed to read work directory", "error", err, "work_dir", workDir)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), workspacePrefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) < orphanAge {
			continue
		}

		path := filepath.Join(workDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("Sweep worker failed to remove orphaned workspace", "error", err, "path", path)
			continue
		}
		removed++
	}
	return removed
}
