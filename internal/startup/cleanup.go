// Package startup provides utilities for application startup tasks.
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vidsyncd/vidsyncd/internal/repository"
)

// TempDirPrefix is the prefix used for vidsyncd proxy temp directories.
const TempDirPrefix = "vidsyncd-proxy-"

// CleanupOrphanedTempDirs removes orphaned temporary directories that are older
// than the specified maxAge. It looks for directories matching the pattern
// "vidsyncd-proxy-*" in the specified base directory.
//
// Returns the number of directories removed and any error encountered.
func CleanupOrphanedTempDirs(logger *slog.Logger, baseDir string, maxAge time.Duration) (int, error) {
	// Check if the base directory exists
	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		logger.Debug("base directory does not exist, skipping cleanup",
			"path", baseDir,
		)
		return 0, nil
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		logger.Error("failed to read directory for cleanup",
			"path", baseDir,
			"error", err,
		)
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	var removed int

	for _, entry := range entries {
		// Only process directories
		if !entry.IsDir() {
			continue
		}

		// Only process directories matching our prefix
		if !strings.HasPrefix(entry.Name(), TempDirPrefix) {
			continue
		}

		dirPath := filepath.Join(baseDir, entry.Name())

		// Get file info for modification time
		info, err := entry.Info()
		if err != nil {
			logger.Warn("failed to get directory info",
				"path", dirPath,
				"error", err,
			)
			continue
		}

		// Check if directory is older than cutoff
		if info.ModTime().After(cutoff) {
			logger.Debug("preserving recent temp directory",
				"path", dirPath,
				"age", time.Since(info.ModTime()).Round(time.Second),
			)
			continue
		}

		// Remove the orphaned directory
		if err := os.RemoveAll(dirPath); err != nil {
			logger.Warn("failed to remove orphaned temp directory",
				"path", dirPath,
				"error", err,
			)
			continue
		}

		logger.Info("removed orphaned temp directory",
			"path", dirPath,
			"age", time.Since(info.ModTime()).Round(time.Second),
		)
		removed++
	}

	return removed, nil
}

// DefaultCleanupAge is the default maximum age for orphaned temp directories (1 hour).
const DefaultCleanupAge = 1 * time.Hour

// CleanupSystemTempDirs cleans up orphaned vidsyncd temp directories from the system
// temp directory using the default cleanup age.
func CleanupSystemTempDirs(logger *slog.Logger) (int, error) {
	return CleanupOrphanedTempDirs(logger, os.TempDir(), DefaultCleanupAge)
}

// RecoverStaleRunningJobs marks any job stuck in "running" status as failed.
// This handles the case where the daemon crashed or was restarted while a
// scan was in progress: the worker holding the row lock is gone, so the job
// would remain permanently stuck in "running" otherwise. A failed job is
// eligible for the normal retry/backoff path on next scheduler tick.
//
// Returns the number of jobs recovered and any error encountered.
func RecoverStaleRunningJobs(ctx context.Context, logger *slog.Logger, jobRepo repository.JobRepository) (int, error) {
	jobs, err := jobRepo.GetRunning(ctx)
	if err != nil {
		logger.Error("failed to get running jobs for stale status recovery",
			"error", err,
		)
		return 0, err
	}

	var recovered int
	for _, job := range jobs {
		logger.Warn("recovering stale running job",
			"job_id", job.ID.String(),
			"target_type", job.TargetType,
			"target_name", job.TargetName,
		)

		job.MarkFailed(fmt.Errorf("interrupted by daemon restart"))

		if err := jobRepo.Update(ctx, job); err != nil {
			logger.Error("failed to recover stale running job",
				"job_id", job.ID.String(),
				"target_name", job.TargetName,
				"error", err,
			)
			continue
		}

		recovered++
	}

	return recovered, nil
}
