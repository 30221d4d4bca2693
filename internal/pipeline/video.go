package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vidsyncd/vidsyncd/internal/concurrency"
	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/platform"
	"github.com/vidsyncd/vidsyncd/internal/repository"
	"github.com/vidsyncd/vidsyncd/internal/storage"
)

// VideoTaskRunner performs the five video-level tasks. UpsertPages also
// doubles as the page-discovery step: its returned listing feeds the page
// upsert/dispatch pass below it.
type VideoTaskRunner interface {
	FetchPoster(ctx context.Context, client *platform.Client, video *models.Video, sandbox *storage.Sandbox) error
	GenerateVideoNFO(ctx context.Context, video *models.Video, sandbox *storage.Sandbox) error
	FetchUploaderAsset(ctx context.Context, client *platform.Client, video *models.Video, sandbox *storage.Sandbox) error
	GenerateUploaderMeta(ctx context.Context, video *models.Video, sandbox *storage.Sandbox) error
	UpsertPages(ctx context.Context, client *platform.Client, video *models.Video) ([]models.PageInfo, error)
}

// PageTaskRunner performs the five page-level tasks, independent of one
// another (no ordering guarantee between them, unlike the video-level
// pages-before-uploader-meta dependency).
type PageTaskRunner interface {
	FetchThumbnail(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error
	FetchPayload(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error
	GeneratePageNFO(ctx context.Context, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error
	FetchDanmaku(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error
	FetchSubtitles(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error
}

// VideoPipeline runs the per-video task graph and the per-page fan-out
// beneath it, grounded on the teacher's core.Orchestrator: a package-level
// (here, struct-level) dedup lock so the same video is never worked by two
// overlapping calls, and a temp-dir lifecycle scoped to one run.
type VideoPipeline struct {
	videoTasks VideoTaskRunner
	pageTasks  PageTaskRunner
	videoRepo  repository.VideoRepository
	pageRepo   repository.PageRepository
	sandbox    *storage.Sandbox
	pageLimit  int
	logger     *slog.Logger

	mu       sync.Mutex
	inFlight map[models.ULID]bool
}

// NewVideoPipeline builds a VideoPipeline. pageLimit bounds concurrent pages
// per video (spec's "4 pages/video").
func NewVideoPipeline(videoTasks VideoTaskRunner, pageTasks PageTaskRunner, videoRepo repository.VideoRepository, pageRepo repository.PageRepository, sandbox *storage.Sandbox, pageLimit int) *VideoPipeline {
	if pageLimit < 1 {
		pageLimit = 1
	}
	return &VideoPipeline{
		videoTasks: videoTasks,
		pageTasks:  pageTasks,
		videoRepo:  videoRepo,
		pageRepo:   pageRepo,
		sandbox:    sandbox,
		pageLimit:  pageLimit,
		logger:     slog.Default(),
		inFlight:   make(map[models.ULID]bool),
	}
}

// WithLogger sets a custom logger.
func (p *VideoPipeline) WithLogger(logger *slog.Logger) *VideoPipeline {
	p.logger = logger
	return p
}

func (p *VideoPipeline) acquire(id models.ULID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[id] {
		return false
	}
	p.inFlight[id] = true
	return true
}

func (p *VideoPipeline) release(id models.ULID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, id)
}

// Run executes every non-terminal task for one video, advancing and
// persisting its status word as each task completes. It returns a
// models.KindRiskControl error when a task reports one, which aborts the
// whole source scan, and a plain error when the video's temp directory or
// its page listing cannot be prepared; every other task failure is recorded
// in the status word and swallowed so sibling videos keep running.
func (p *VideoPipeline) Run(ctx context.Context, client *platform.Client, video *models.Video) error {
	id := video.BaseModel.ID
	if !p.acquire(id) {
		p.logger.Debug("video already in flight, skipping", slog.String("video_id", id.String()))
		return nil
	}
	defer p.release(id)

	tempParent, err := p.sandbox.TempDir()
	if err != nil {
		return fmt.Errorf("pipeline: preparing temp dir: %w", err)
	}
	tempDir, err := os.MkdirTemp(tempParent, "video-*")
	if err != nil {
		return fmt.Errorf("pipeline: creating video temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	var mu sync.Mutex
	status := video.Status
	riskControl := false

	run := func(i int, fn func() error) {
		if status.Get(i).IsTerminal() {
			return
		}
		outcome := outcomeForError(fn())
		mu.Lock()
		defer mu.Unlock()
		if outcome == models.OutcomeRiskControl {
			riskControl = true
			return
		}
		status = status.Advance(i, outcome)
	}

	// Task 4 (page discovery) completes before task 3 (uploader metadata)
	// starts, since a multi-part video's uploader metadata wants the page
	// count already known. The other three video tasks have no ordering
	// requirement and run concurrently.
	//
	// Unlike the other four tasks, task 4's nibble is not finalized here.
	// UpsertPages only discovers and upserts the page rows; the task is
	// done only once every one of those pages is itself terminal, which
	// isn't known until runPages below has dispatched them. A discovery
	// error has nothing to wait on, so it's still recorded immediately.
	var pages []models.PageInfo
	awaitPages := !status.Get(models.VideoTaskPages).IsTerminal()
	if awaitPages {
		discovered, derr := p.videoTasks.UpsertPages(ctx, client, video)
		pages = discovered
		if derr != nil {
			outcome := outcomeForError(derr)
			mu.Lock()
			if outcome == models.OutcomeRiskControl {
				riskControl = true
			} else {
				status = status.Advance(models.VideoTaskPages, outcome)
			}
			mu.Unlock()
			awaitPages = false
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		run(models.VideoTaskPoster, func() error { return p.videoTasks.FetchPoster(gctx, client, video, p.sandbox) })
		return nil
	})
	g.Go(func() error {
		run(models.VideoTaskNFO, func() error { return p.videoTasks.GenerateVideoNFO(gctx, video, p.sandbox) })
		return nil
	})
	g.Go(func() error {
		run(models.VideoTaskUploaderAsset, func() error { return p.videoTasks.FetchUploaderAsset(gctx, client, video, p.sandbox) })
		return nil
	})
	_ = g.Wait()

	run(models.VideoTaskUploaderMeta, func() error { return p.videoTasks.GenerateUploaderMeta(ctx, video, p.sandbox) })

	video.Status = status
	if err := p.videoRepo.UpdateStatus(ctx, id, status); err != nil {
		p.logger.Error("persisting video status", slog.String("video_id", id.String()), slog.Any("error", err))
	}

	if riskControl {
		return models.NewClassifiedError(models.KindRiskControl, fmt.Errorf("pipeline: video %s hit risk control", id.String()))
	}

	pagesErr := p.runPages(ctx, client, video, pages)

	// Finalize task 4 from the aggregate of every page's status word: done
	// iff discovery succeeded and none of the video's pages remain
	// non-terminal. A risk-control abort leaves the nibble untouched, same
	// as any other task.
	if awaitPages && models.KindOf(pagesErr) != models.KindRiskControl {
		remaining, err := p.pageRepo.GetNonTerminal(ctx, id)
		if err != nil {
			p.logger.Error("checking page completion", slog.String("video_id", id.String()), slog.Any("error", err))
		} else {
			outcome := models.OutcomeSucceeded
			if len(remaining) > 0 {
				outcome = models.OutcomeFailed
			}
			status = status.Advance(models.VideoTaskPages, outcome)
			video.Status = status
			if err := p.videoRepo.UpdateStatus(ctx, id, status); err != nil {
				p.logger.Error("persisting video status", slog.String("video_id", id.String()), slog.Any("error", err))
			}
		}
	}

	return pagesErr
}

func (p *VideoPipeline) runPages(ctx context.Context, client *platform.Client, video *models.Video, infos []models.PageInfo) error {
	for _, info := range infos {
		page := &models.Page{
			VideoID:    video.BaseModel.ID,
			PID:        info.PID,
			CID:        info.CID,
			Name:       info.Name,
			DurationMs: info.DurationMs,
			Width:      info.Width,
			Height:     info.Height,
			ImageURL:   info.ImageURL,
		}
		page.Path = video.PageDir(page)
		if err := p.pageRepo.Upsert(ctx, page); err != nil {
			p.logger.Error("upserting page",
				slog.String("video_id", video.BaseModel.ID.String()),
				slog.Int("pid", info.PID), slog.Any("error", err))
		}
	}

	pending, err := p.pageRepo.GetNonTerminal(ctx, video.BaseModel.ID)
	if err != nil {
		return fmt.Errorf("pipeline: listing non-terminal pages: %w", err)
	}

	errs := concurrency.ForEachTolerant(ctx, p.pageLimit, pending, func(ctx context.Context, page *models.Page) error {
		return p.runPageTasks(ctx, client, video, page)
	})
	for _, err := range errs {
		if models.KindOf(err) == models.KindRiskControl {
			return err
		}
	}
	return nil
}

func (p *VideoPipeline) runPageTasks(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page) error {
	var mu sync.Mutex
	status := page.Status
	riskControl := false

	run := func(i int, fn func() error) {
		if status.Get(i).IsTerminal() {
			return
		}
		outcome := outcomeForError(fn())
		mu.Lock()
		defer mu.Unlock()
		if outcome == models.OutcomeRiskControl {
			riskControl = true
			return
		}
		status = status.Advance(i, outcome)
	}

	var wg sync.WaitGroup
	tasks := []func(){
		func() {
			run(models.PageTaskThumbnail, func() error { return p.pageTasks.FetchThumbnail(ctx, client, video, page, p.sandbox) })
		},
		func() {
			run(models.PageTaskPayload, func() error { return p.pageTasks.FetchPayload(ctx, client, video, page, p.sandbox) })
		},
		func() {
			run(models.PageTaskNFO, func() error { return p.pageTasks.GeneratePageNFO(ctx, video, page, p.sandbox) })
		},
		func() {
			run(models.PageTaskDanmaku, func() error { return p.pageTasks.FetchDanmaku(ctx, client, video, page, p.sandbox) })
		},
		func() {
			run(models.PageTaskSubtitles, func() error { return p.pageTasks.FetchSubtitles(ctx, client, video, page, p.sandbox) })
		},
	}
	wg.Add(len(tasks))
	for _, t := range tasks {
		t := t
		go func() {
			defer wg.Done()
			t()
		}()
	}
	wg.Wait()

	page.Status = status
	if err := p.pageRepo.UpdateStatus(ctx, page.ID, status); err != nil {
		p.logger.Error("persisting page status", slog.String("page_id", page.ID.String()), slog.Any("error", err))
	}

	if riskControl {
		return models.NewClassifiedError(models.KindRiskControl, fmt.Errorf("pipeline: page %s hit risk control", page.ID.String()))
	}
	return nil
}
