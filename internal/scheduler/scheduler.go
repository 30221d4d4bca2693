// Package scheduler provides job scheduling and execution for vidsyncd.
// It supports cron-based recurring jobs and one-off immediate jobs, one per
// enabled source.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/repository"
)

// cronSource is the minimal view the scheduler needs of any of the five
// source discriminants. SourceCommon provides GetCronSchedule/GetDisplayName/
// GetLatestRowAt, and BaseModel provides GetID, so every *models.SourceXxx
// satisfies this automatically via promoted embedding.
type cronSource interface {
	GetID() models.ULID
	GetCronSchedule() string
	GetDisplayName() string
	GetLatestRowAt() *models.Time
}

// InternalJobConfig defines configuration for internal recurring jobs that
// are not tied to a specific source row (credential refresh, housekeeping).
type InternalJobConfig struct {
	JobType      models.JobType
	TargetName   string
	CronSchedule string
}

// NormalizeCronExpression normalizes a cron expression to 6-field format.
// It accepts both 6-field (default) and 7-field (legacy with year) formats.
//
// Supported formats:
//   - 6 fields: sec min hour dom month dow (passed through as-is)
//   - 7 fields: sec min hour dom month dow year (year stripped after validation)
//
// The year field (if present) must be "*" or a valid year/range (e.g., "2024", "2024-2030", "*").
func NormalizeCronExpression(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", fmt.Errorf("empty cron expression")
	}

	if strings.HasPrefix(expr, "@") {
		return expr, nil
	}

	fields := strings.Fields(expr)
	switch len(fields) {
	case 6:
		return expr, nil
	case 7:
		yearField := fields[6]
		if !isValidYearField(yearField) {
			return "", fmt.Errorf("invalid year field %q: must be * or a valid year/range", yearField)
		}
		return strings.Join(fields[:6], " "), nil
	default:
		return "", fmt.Errorf("invalid cron expression: expected 6 or 7 fields, got %d", len(fields))
	}
}

// isValidYearField validates a cron year field.
func isValidYearField(field string) bool {
	if field == "*" {
		return true
	}
	for _, r := range field {
		if !((r >= '0' && r <= '9') || r == ',' || r == '-' || r == '/' || r == '*') {
			return false
		}
	}
	return len(field) > 0
}

// Scheduler manages job scheduling using cron expressions.
// It uses robfig/cron as the timing engine for efficient execution
// and periodically syncs schedules from the database to pick up changes.
type Scheduler struct {
	mu sync.RWMutex

	jobRepo          repository.JobRepository
	favoriteRepo     repository.SourceFavoriteRepository
	collectionRepo   repository.SourceCollectionRepository
	submissionRepo   repository.SourceSubmissionRepository
	watchLaterRepo   repository.SourceWatchLaterRepository
	bangumiRepo      repository.SourceBangumiRepository

	logger *slog.Logger

	// parser validates/parses cron expressions. Default: 6 fields (second
	// minute hour dom month dow). Legacy 7-field (with year) is normalized first.
	parser cron.Parser

	cronScheduler *cron.Cron

	// entryMap tracks cron entry IDs by target key (sourcetype:targetID)
	entryMap map[string]cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	syncInterval      time.Duration
	dedupeGracePeriod time.Duration

	internalJobs []InternalJobConfig
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	// SyncInterval is how often to sync schedules from the database. Default: 1 minute.
	SyncInterval time.Duration

	// DedupeGracePeriod is the time window for job deduplication. Default: 5 minutes.
	DedupeGracePeriod time.Duration

	// InternalJobs defines internal recurring jobs not backed by a source row.
	InternalJobs []InternalJobConfig
}

// DefaultSchedulerConfig returns the default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		SyncInterval:      time.Minute,
		DedupeGracePeriod: 5 * time.Minute,
		InternalJobs:      []InternalJobConfig{},
	}
}

// NewScheduler creates a new scheduler wired to the five source repositories.
func NewScheduler(
	jobRepo repository.JobRepository,
	favoriteRepo repository.SourceFavoriteRepository,
	collectionRepo repository.SourceCollectionRepository,
	submissionRepo repository.SourceSubmissionRepository,
	watchLaterRepo repository.SourceWatchLaterRepository,
	bangumiRepo repository.SourceBangumiRepository,
) *Scheduler {
	config := DefaultSchedulerConfig()

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	cronScheduler := cron.New(cron.WithParser(parser), cron.WithChain(
		cron.Recover(cron.DefaultLogger),
	))

	return &Scheduler{
		jobRepo:           jobRepo,
		favoriteRepo:      favoriteRepo,
		collectionRepo:    collectionRepo,
		submissionRepo:    submissionRepo,
		watchLaterRepo:    watchLaterRepo,
		bangumiRepo:       bangumiRepo,
		logger:            slog.Default(),
		parser:            parser,
		cronScheduler:     cronScheduler,
		entryMap:          make(map[string]cron.EntryID),
		syncInterval:      config.SyncInterval,
		dedupeGracePeriod: config.DedupeGracePeriod,
		internalJobs:      config.InternalJobs,
	}
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

// WithConfig applies configuration to the scheduler.
func (s *Scheduler) WithConfig(config SchedulerConfig) *Scheduler {
	if config.SyncInterval > 0 {
		s.syncInterval = config.SyncInterval
	}
	if config.DedupeGracePeriod > 0 {
		s.dedupeGracePeriod = config.DedupeGracePeriod
	}
	if len(config.InternalJobs) > 0 {
		s.internalJobs = config.InternalJobs
	}
	return s
}

// Start begins the scheduler's background operations.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if err := s.loadSchedules(s.ctx); err != nil {
		s.logger.Error("failed to load initial schedules", slog.Any("error", err))
	}

	s.registerInternalJobs()

	s.cronScheduler.Start()

	s.wg.Add(1)
	go s.syncLoop()

	s.mu.RLock()
	entryCount := len(s.entryMap)
	s.mu.RUnlock()

	s.logger.Info("scheduler started",
		slog.Duration("sync_interval", s.syncInterval),
		slog.Duration("dedupe_grace_period", s.dedupeGracePeriod),
		slog.Int("initial_entries", entryCount))

	return nil
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}

	stopCtx := s.cronScheduler.Stop()
	<-stopCtx.Done()

	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

// syncLoop periodically syncs schedules from the database.
func (s *Scheduler) syncLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.loadSchedules(s.ctx); err != nil {
				s.logger.Error("failed to sync schedules", slog.Any("error", err))
			}
		}
	}
}

// loadSchedules loads all enabled source schedules from the database and
// updates the cron scheduler.
func (s *Scheduler) loadSchedules(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seenEntries := make(map[string]bool)

	favorites, err := s.favoriteRepo.GetEnabled(ctx)
	if err != nil {
		s.logger.Error("failed to load favorite schedules", slog.Any("error", err))
	}
	for _, src := range favorites {
		s.loadOneSchedule(seenEntries, models.SourceTypeFavorite, src)
	}

	collections, err := s.collectionRepo.GetEnabled(ctx)
	if err != nil {
		s.logger.Error("failed to load collection schedules", slog.Any("error", err))
	}
	for _, src := range collections {
		s.loadOneSchedule(seenEntries, models.SourceTypeCollection, src)
	}

	submissions, err := s.submissionRepo.GetEnabled(ctx)
	if err != nil {
		s.logger.Error("failed to load submission schedules", slog.Any("error", err))
	}
	for _, src := range submissions {
		s.loadOneSchedule(seenEntries, models.SourceTypeSubmission, src)
	}

	watchLaters, err := s.watchLaterRepo.GetEnabled(ctx)
	if err != nil {
		s.logger.Error("failed to load watch-later schedules", slog.Any("error", err))
	}
	for _, src := range watchLaters {
		s.loadOneSchedule(seenEntries, models.SourceTypeWatchLater, src)
	}

	bangumis, err := s.bangumiRepo.GetEnabled(ctx)
	if err != nil {
		s.logger.Error("failed to load bangumi schedules", slog.Any("error", err))
	}
	for _, src := range bangumis {
		s.loadOneSchedule(seenEntries, models.SourceTypeBangumi, src)
	}

	for key, entryID := range s.entryMap {
		if !seenEntries[key] {
			s.cronScheduler.Remove(entryID)
			delete(s.entryMap, key)
			s.logger.Debug("removed schedule", slog.String("key", key))
		}
	}

	return nil
}

// loadOneSchedule upserts a single source's cron entry if it carries a
// non-empty schedule, and marks its key seen.
func (s *Scheduler) loadOneSchedule(seenEntries map[string]bool, sourceType models.SourceType, src cronSource) {
	if src.GetCronSchedule() == "" {
		return
	}

	key := fmt.Sprintf("%s:%s", sourceType, src.GetID().String())
	seenEntries[key] = true

	if err := s.upsertScheduleEntry(key, src.GetCronSchedule(), sourceType, src.GetID(), src.GetDisplayName()); err != nil {
		s.logger.Error("failed to upsert source schedule",
			slog.String("source_type", string(sourceType)),
			slog.String("source", src.GetDisplayName()),
			slog.String("cron", src.GetCronSchedule()),
			slog.Any("error", err))
	}
}

// upsertScheduleEntry adds or updates a cron entry.
func (s *Scheduler) upsertScheduleEntry(key, cronExpr string, sourceType models.SourceType, targetID models.ULID, targetName string) error {
	normalizedExpr, err := NormalizeCronExpression(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	schedule, err := s.parser.Parse(normalizedExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	if existingID, exists := s.entryMap[key]; exists {
		entry := s.cronScheduler.Entry(existingID)
		if entry.Valid() {
			existingNext := entry.Schedule.Next(time.Now())
			newNext := schedule.Next(time.Now())
			if existingNext.Equal(newNext) {
				return nil
			}
		}
		s.cronScheduler.Remove(existingID)
		delete(s.entryMap, key)
	}

	jobFunc := s.createJobFunc(sourceType, targetID, targetName, normalizedExpr)

	entryID, err := s.cronScheduler.AddFunc(normalizedExpr, jobFunc)
	if err != nil {
		return fmt.Errorf("adding cron entry: %w", err)
	}

	s.entryMap[key] = entryID
	s.logger.Debug("added schedule",
		slog.String("key", key),
		slog.String("cron", cronExpr),
		slog.String("normalized", normalizedExpr),
		slog.Time("next_run", schedule.Next(time.Now())))

	return nil
}

// createJobFunc creates a function that enqueues a job when the cron fires.
func (s *Scheduler) createJobFunc(sourceType models.SourceType, targetID models.ULID, targetName, cronSchedule string) func() {
	return func() {
		ctx := context.Background()

		s.logger.Debug("cron triggered",
			slog.String("source_type", string(sourceType)),
			slog.String("target", targetName))

		if _, err := s.createJobIfNotDuplicate(ctx, sourceType, targetID, targetName, cronSchedule); err != nil {
			s.logger.Error("failed to create scheduled job",
				slog.String("source_type", string(sourceType)),
				slog.String("target", targetName),
				slog.Any("error", err))
		}
	}
}

// createJobIfNotDuplicate creates a job if no duplicate pending job exists.
func (s *Scheduler) createJobIfNotDuplicate(ctx context.Context, sourceType models.SourceType, targetID models.ULID, targetName, cronSchedule string) (*models.Job, error) {
	existing, err := s.jobRepo.FindDuplicatePending(ctx, models.JobTypeSourceScan, targetID)
	if err != nil {
		return nil, fmt.Errorf("checking for duplicate job: %w", err)
	}

	if existing != nil {
		s.logger.Debug("skipping duplicate job",
			slog.String("source_type", string(sourceType)),
			slog.String("target", targetName),
			slog.String("existing_job_id", existing.ID.String()))
		return existing, nil
	}

	job := models.NewJobForSource(sourceType, targetID, targetName, cronSchedule)
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	s.logger.Info("created scheduled job",
		slog.String("source_type", string(sourceType)),
		slog.String("target", targetName),
		slog.String("job_id", job.ID.String()))

	return job, nil
}

// ScheduleImmediate creates an immediate (one-off) job for the given source.
// Returns the existing job if a duplicate is pending.
func (s *Scheduler) ScheduleImmediate(ctx context.Context, sourceType models.SourceType, targetID models.ULID, targetName string) (*models.Job, error) {
	existing, err := s.jobRepo.FindDuplicatePending(ctx, models.JobTypeSourceScan, targetID)
	if err != nil {
		return nil, fmt.Errorf("checking for duplicate job: %w", err)
	}

	if existing != nil {
		s.logger.Debug("returning existing pending job",
			slog.String("source_type", string(sourceType)),
			slog.String("target", targetName),
			slog.String("job_id", existing.ID.String()))
		return existing, nil
	}

	job := models.NewJobForSource(sourceType, targetID, targetName, "")
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("creating immediate job: %w", err)
	}

	s.logger.Info("created immediate job",
		slog.String("source_type", string(sourceType)),
		slog.String("target", targetName),
		slog.String("job_id", job.ID.String()))

	return job, nil
}

// ParseCron validates a cron expression and returns the next run time.
func (s *Scheduler) ParseCron(expr string) (time.Time, error) {
	normalized, err := NormalizeCronExpression(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	schedule, err := s.parser.Parse(normalized)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule.Next(time.Now()), nil
}

// ValidateCron validates a cron expression.
func (s *Scheduler) ValidateCron(expr string) error {
	normalized, err := NormalizeCronExpression(expr)
	if err != nil {
		return err
	}
	_, err = s.parser.Parse(normalized)
	return err
}

// GetEntryCount returns the number of scheduled entries.
func (s *Scheduler) GetEntryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entryMap)
}

// CalculateNextRun calculates the next run time for a cron expression.
// Returns nil if the expression is empty or invalid.
func CalculateNextRun(cronExpr string) *time.Time {
	if cronExpr == "" {
		return nil
	}

	normalized, err := NormalizeCronExpression(cronExpr)
	if err != nil {
		return nil
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(normalized)
	if err != nil {
		return nil
	}

	nextRun := schedule.Next(time.Now())
	return &nextRun
}

// GetNextRunTimes returns the next run times for all scheduled entries.
func (s *Scheduler) GetNextRunTimes() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]time.Time, len(s.entryMap))
	for key, entryID := range s.entryMap {
		entry := s.cronScheduler.Entry(entryID)
		if entry.Valid() {
			result[key] = entry.Next
		}
	}
	return result
}

// ForceSync forces an immediate sync of schedules from the database.
func (s *Scheduler) ForceSync(ctx context.Context) error {
	return s.loadSchedules(ctx)
}

// registerInternalJobs registers internal recurring jobs based on configuration.
func (s *Scheduler) registerInternalJobs() {
	for _, job := range s.internalJobs {
		if job.CronSchedule == "" {
			continue
		}

		key := fmt.Sprintf("internal:%s", job.JobType)

		cronExpr, err := NormalizeCronExpression(job.CronSchedule)
		if err != nil {
			s.logger.Error("failed to parse internal job cron schedule",
				slog.String("job_type", string(job.JobType)),
				slog.String("schedule", job.CronSchedule),
				slog.Any("error", err))
			continue
		}

		jobFunc := s.createJobFunc("", models.ULID{}, job.TargetName, cronExpr)

		entryID, err := s.cronScheduler.AddFunc(cronExpr, jobFunc)
		if err != nil {
			s.logger.Error("failed to register internal job",
				slog.String("job_type", string(job.JobType)),
				slog.String("schedule", job.CronSchedule),
				slog.Any("error", err))
			continue
		}

		s.mu.Lock()
		s.entryMap[key] = entryID
		s.mu.Unlock()

		s.logger.Info("registered internal job",
			slog.String("job_type", string(job.JobType)),
			slog.String("target", job.TargetName),
			slog.String("schedule", job.CronSchedule),
			slog.String("normalized", cronExpr))
	}
}

// AddInternalJob adds an internal recurring job at runtime.
func (s *Scheduler) AddInternalJob(jobType models.JobType, targetName string, cronSchedule string) error {
	if cronSchedule == "" {
		return fmt.Errorf("cron schedule cannot be empty")
	}

	cronExpr, err := NormalizeCronExpression(cronSchedule)
	if err != nil {
		return fmt.Errorf("parsing cron schedule: %w", err)
	}

	key := fmt.Sprintf("internal:%s", jobType)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, exists := s.entryMap[key]; exists {
		s.cronScheduler.Remove(existingID)
		delete(s.entryMap, key)
	}

	jobFunc := s.createJobFunc("", models.ULID{}, targetName, cronExpr)

	entryID, err := s.cronScheduler.AddFunc(cronExpr, jobFunc)
	if err != nil {
		return fmt.Errorf("adding internal job: %w", err)
	}

	s.entryMap[key] = entryID

	s.logger.Info("added internal job",
		slog.String("job_type", string(jobType)),
		slog.String("target", targetName),
		slog.String("schedule", cronSchedule))

	return nil
}

// CatchupMissedRuns checks all sources with cron schedules and schedules
// immediate jobs for any whose watermark implies a missed run while the
// daemon was down.
func (s *Scheduler) CatchupMissedRuns(ctx context.Context) (caught int, err error) {
	s.logger.Info("checking for missed scheduled runs")

	favorites, ferr := s.favoriteRepo.GetEnabled(ctx)
	if ferr != nil {
		s.logger.Error("failed to load favorites for catch-up", slog.Any("error", ferr))
	}
	for _, src := range favorites {
		if n, cerr := s.catchupOne(ctx, models.SourceTypeFavorite, src); cerr == nil {
			caught += n
		}
	}

	collections, cerr := s.collectionRepo.GetEnabled(ctx)
	if cerr != nil {
		s.logger.Error("failed to load collections for catch-up", slog.Any("error", cerr))
	}
	for _, src := range collections {
		if n, err2 := s.catchupOne(ctx, models.SourceTypeCollection, src); err2 == nil {
			caught += n
		}
	}

	submissions, serr := s.submissionRepo.GetEnabled(ctx)
	if serr != nil {
		s.logger.Error("failed to load submissions for catch-up", slog.Any("error", serr))
	}
	for _, src := range submissions {
		if n, err2 := s.catchupOne(ctx, models.SourceTypeSubmission, src); err2 == nil {
			caught += n
		}
	}

	watchLaters, werr := s.watchLaterRepo.GetEnabled(ctx)
	if werr != nil {
		s.logger.Error("failed to load watch-later sources for catch-up", slog.Any("error", werr))
	}
	for _, src := range watchLaters {
		if n, err2 := s.catchupOne(ctx, models.SourceTypeWatchLater, src); err2 == nil {
			caught += n
		}
	}

	bangumis, berr := s.bangumiRepo.GetEnabled(ctx)
	if berr != nil {
		s.logger.Error("failed to load bangumi sources for catch-up", slog.Any("error", berr))
	}
	for _, src := range bangumis {
		if n, err2 := s.catchupOne(ctx, models.SourceTypeBangumi, src); err2 == nil {
			caught += n
		}
	}

	if caught > 0 {
		s.logger.Info("scheduled catch-up jobs for missed runs", slog.Int("count", caught))
	} else {
		s.logger.Info("no missed scheduled runs detected")
	}

	return caught, nil
}

func (s *Scheduler) catchupOne(ctx context.Context, sourceType models.SourceType, src cronSource) (int, error) {
	if src.GetCronSchedule() == "" {
		return 0, nil
	}

	if !s.shouldCatchup(src.GetCronSchedule(), src.GetLatestRowAt(), time.Now()) {
		return 0, nil
	}

	s.logger.Debug("source missed scheduled run",
		slog.String("source_type", string(sourceType)),
		slog.String("source", src.GetDisplayName()),
		slog.String("cron", src.GetCronSchedule()))

	if _, err := s.ScheduleImmediate(ctx, sourceType, src.GetID(), src.GetDisplayName()); err != nil {
		s.logger.Error("failed to schedule catch-up job",
			slog.String("source", src.GetDisplayName()),
			slog.Any("error", err))
		return 0, err
	}
	return 1, nil
}

// shouldCatchup determines if a source should have a catch-up job scheduled.
// Returns true if the source has never been scanned, or if the next
// scheduled run after its watermark is before now (meaning we missed it).
func (s *Scheduler) shouldCatchup(cronExpr string, watermark *models.Time, now time.Time) bool {
	if watermark == nil {
		return true
	}

	normalized, err := NormalizeCronExpression(cronExpr)
	if err != nil {
		return false
	}

	schedule, err := s.parser.Parse(normalized)
	if err != nil {
		return false
	}

	nextScheduledAfterLast := schedule.Next(*watermark)
	return nextScheduledAfterLast.Before(now)
}
