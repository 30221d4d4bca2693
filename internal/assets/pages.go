package assets

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/platform"
)

var errEmptyPagelist = errors.New("assets: pagelist returned no parts")

const pagelistEndpoint = "https://api.bilibili.com/x/player/pagelist"

type pagelistEntry struct {
	CID      int64  `json:"cid"`
	Page     int    `json:"page"`
	Part     string `json:"part"`
	Duration int64  `json:"duration"`
	Dimension struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"dimension"`
	FirstFrame string `json:"first_frame"`
}

// UpsertPages lists a video's parts via the pagelist endpoint. It runs for
// every video, bangumi episodes included; models.VideoInfo.Pages is not
// consulted.
func (f *Fetcher) UpsertPages(ctx context.Context, client *platform.Client, video *models.Video) ([]models.PageInfo, error) {
	resp, err := client.SignedGet(ctx, pagelistEndpoint, url.Values{"bvid": {video.RemoteKey}})
	if err != nil {
		return nil, models.NewClassifiedError(models.KindNetwork, err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	var entries []pagelistEntry
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		return nil, models.NewClassifiedError(models.KindMalformed, err)
	}
	if len(entries) == 0 {
		return nil, models.NewClassifiedError(models.KindInvariantViolation, errEmptyPagelist)
	}

	out := make([]models.PageInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.PageInfo{
			PID:        e.Page,
			CID:        e.CID,
			Name:       e.Part,
			DurationMs: e.Duration * 1000,
			Width:      e.Dimension.Width,
			Height:     e.Dimension.Height,
			ImageURL:   e.FirstFrame,
		})
	}
	return out, nil
}
