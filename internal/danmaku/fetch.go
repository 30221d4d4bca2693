package danmaku

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/platform"
	"github.com/vidsyncd/vidsyncd/internal/storage"
	"github.com/vidsyncd/vidsyncd/pkg/diskslice"
)

const (
	segmentEndpoint  = "https://api.bilibili.com/x/v2/dm/web/seg.so"
	segmentSpanMs    = 6 * 60 * 1000 // each segment covers six minutes of runtime
	maxEmptySegments = 1             // stop once a segment comes back with no comments
)

// Fetcher implements the pipeline's FetchDanmaku task provider.
type Fetcher struct {
	canvas Canvas
}

// NewFetcher builds a danmaku Fetcher rendering onto the default 1920x1080
// canvas.
func NewFetcher() *Fetcher {
	return &Fetcher{canvas: DefaultCanvas()}
}

// FetchDanmaku downloads every six-minute danmaku segment for a page,
// decodes them into Comments, lays them out onto the ASS canvas, and writes
// the result beside the video payload.
func (f *Fetcher) FetchDanmaku(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error {
	buf, err := diskslice.NewWithDefaults[Comment]()
	if err != nil {
		return fmt.Errorf("danmaku: allocating comment buffer: %w", err)
	}
	defer buf.Close()

	segmentCount := int(page.DurationMs/segmentSpanMs) + 1

	empty := 0
	for seg := 1; seg <= segmentCount; seg++ {
		comments, err := f.fetchSegment(ctx, client, page.CID, seg)
		if err != nil {
			return err
		}
		if len(comments) == 0 {
			empty++
			if empty >= maxEmptySegments && seg > 1 {
				break
			}
			continue
		}
		empty = 0
		if err := buf.AppendSlice(comments); err != nil {
			return fmt.Errorf("danmaku: buffering comments: %w", err)
		}
	}

	if buf.Len() == 0 {
		return models.NewClassifiedError(models.KindNotFound, fmt.Errorf("danmaku: no comments for this page"))
	}

	all, err := buf.ToSlice()
	if err != nil {
		return fmt.Errorf("danmaku: draining comment buffer: %w", err)
	}

	doc := RenderASS(all, f.canvas)
	relPath := filepath.Join(video.PageDir(page), "video.ass")
	if err := sandbox.AtomicWrite(relPath, []byte(doc)); err != nil {
		return models.NewClassifiedError(models.KindFilesystemPermission, err)
	}
	return nil
}

func (f *Fetcher) fetchSegment(ctx context.Context, client *platform.Client, cid int64, index int) ([]Comment, error) {
	params := url.Values{
		"type":          {"1"},
		"oid":           {strconv.FormatInt(cid, 10)},
		"segment_index": {strconv.Itoa(index)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, segmentEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, models.NewClassifiedError(models.KindNetwork, err)
	}
	resp, err := client.Do(ctx, req)
	if err != nil {
		return nil, models.NewClassifiedError(models.KindNetwork, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, models.NewClassifiedError(models.KindNetwork, fmt.Errorf("danmaku: unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewClassifiedError(models.KindNetwork, err)
	}
	if len(body) == 0 {
		return nil, nil
	}
	return Decode(body)
}
