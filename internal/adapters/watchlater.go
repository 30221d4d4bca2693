package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/platform"
)

const watchLaterEndpoint = "https://api.bilibili.com/x/v2/history/toview"

// WatchLaterAdapter enumerates the watch-later queue as a single-shot full
// fetch; there is no incremental cut-off since the queue is small and
// user-ordered rather than time-ordered.
type WatchLaterAdapter struct {
	endpoint string
}

// NewWatchLaterAdapter builds a stateless watch-later adapter against the
// production endpoint.
func NewWatchLaterAdapter() *WatchLaterAdapter {
	return &WatchLaterAdapter{endpoint: watchLaterEndpoint}
}

// Type satisfies Adapter.
func (a *WatchLaterAdapter) Type() models.SourceType { return models.SourceTypeWatchLater }

type watchLaterItem struct {
	BvID    string `json:"bvid"`
	Title   string `json:"title"`
	Pic     string `json:"pic"`
	PubDate int64  `json:"pubdate"`
	Owner   struct {
		Mid  int64  `json:"mid"`
		Name string `json:"name"`
	} `json:"owner"`
}

type watchLaterData struct {
	List []watchLaterItem `json:"list"`
}

// Enumerate fetches the whole watch-later queue in one call. watermark is
// accepted for interface symmetry but ignored (§4.D WatchLater).
func (a *WatchLaterAdapter) Enumerate(ctx context.Context, client *platform.Client, source any, watermark *models.Time, callback VideoCallback) error {
	if _, ok := source.(*models.SourceWatchLater); !ok {
		return fmt.Errorf("adapters: watch-later adapter requires *models.SourceWatchLater, got %T", source)
	}

	resp, err := client.SignedGet(ctx, a.endpoint, url.Values{})
	if err != nil {
		return models.NewClassifiedError(models.KindNetwork, err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return err
	}
	var data watchLaterData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return models.NewClassifiedError(models.KindMalformed, err)
	}

	for _, item := range data.List {
		info := models.VideoInfo{
			RemoteKey: item.BvID,
			Title:     item.Title,
			UpperID:   strconv.FormatInt(item.Owner.Mid, 10),
			UpperName: item.Owner.Name,
			PublishAt: time.Unix(item.PubDate, 0),
			CoverURL:  item.Pic,
			Category:  models.CategorySinglePart,
		}
		if err := callback(info); err != nil {
			return err
		}
	}
	return nil
}
