package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/platform"
)

const bangumiSeasonEndpoint = "https://api.bilibili.com/pgc/view/web/season"

// BangumiAdapter enumerates a bangumi season's episode list, optionally
// unioning sibling seasons discovered via the same season endpoint's
// media-relation listing.
type BangumiAdapter struct {
	endpoint string
}

// NewBangumiAdapter builds a stateless bangumi adapter against the
// production endpoint.
func NewBangumiAdapter() *BangumiAdapter {
	return &BangumiAdapter{endpoint: bangumiSeasonEndpoint}
}

// Type satisfies Adapter.
func (a *BangumiAdapter) Type() models.SourceType { return models.SourceTypeBangumi }

type bangumiEpisode struct {
	BvID      string `json:"bvid"`
	Title     string `json:"title"`
	LongTitle string `json:"long_title"`
	Cover     string `json:"cover"`
	PubTime   int64  `json:"pub_time"`
}

type bangumiSeasonRef struct {
	SeasonID    string `json:"season_id"`
	SeasonTitle string `json:"season_title"`
}

type bangumiSeasonData struct {
	Result struct {
		Episodes []bangumiEpisode   `json:"episodes"`
		Seasons  []bangumiSeasonRef `json:"seasons"`
	} `json:"result"`
}

// Enumerate unions this season's episodes with any sibling seasons selected
// by download_all_seasons/selected_seasons (§4.D BangumiSeason). Path
// attribution for a merge_to_source_id row is the caller's responsibility;
// the adapter only enumerates episodes, it does not know the merge target's
// base path.
func (a *BangumiAdapter) Enumerate(ctx context.Context, client *platform.Client, source any, watermark *models.Time, callback VideoCallback) error {
	src, ok := source.(*models.SourceBangumi)
	if !ok {
		return fmt.Errorf("adapters: bangumi adapter requires *models.SourceBangumi, got %T", source)
	}

	primary, err := a.fetchSeason(ctx, client, src.SeasonID)
	if err != nil {
		return err
	}

	if err := a.emitEpisodes(primary.Result.Episodes, watermark, callback); err != nil {
		return err
	}

	if !src.DownloadAllSeasons {
		return nil
	}

	for _, sibling := range primary.Result.Seasons {
		if sibling.SeasonID == "" || sibling.SeasonID == src.SeasonID {
			continue
		}
		if len(src.SelectedSeasons) > 0 && !src.SelectedSeasons.Contains(sibling.SeasonID) {
			continue
		}
		data, err := a.fetchSeason(ctx, client, sibling.SeasonID)
		if err != nil {
			return err
		}
		if err := a.emitEpisodes(data.Result.Episodes, watermark, callback); err != nil {
			return err
		}
	}
	return nil
}

func (a *BangumiAdapter) emitEpisodes(episodes []bangumiEpisode, watermark *models.Time, callback VideoCallback) error {
	for _, ep := range episodes {
		pubAt := time.Unix(ep.PubTime, 0)
		if olderThanWatermark(pubAt, watermark) {
			// Sibling seasons have independent publish timelines, so a
			// cut-off in one does not imply the others are exhausted.
			continue
		}
		title := ep.LongTitle
		if title == "" {
			title = ep.Title
		}
		info := models.VideoInfo{
			RemoteKey: ep.BvID,
			Title:     title,
			PublishAt: pubAt,
			CoverURL:  ep.Cover,
			Category:  models.CategoryBangumi,
		}
		if err := callback(info); err != nil {
			return err
		}
	}
	return nil
}

func (a *BangumiAdapter) fetchSeason(ctx context.Context, client *platform.Client, seasonID string) (bangumiSeasonData, error) {
	resp, err := client.SignedGet(ctx, a.endpoint, url.Values{"season_id": {seasonID}})
	if err != nil {
		return bangumiSeasonData{}, models.NewClassifiedError(models.KindNetwork, err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return bangumiSeasonData{}, err
	}
	var data bangumiSeasonData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return bangumiSeasonData{}, models.NewClassifiedError(models.KindMalformed, err)
	}
	return data, nil
}
