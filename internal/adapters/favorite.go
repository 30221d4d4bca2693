package adapters

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"context"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/platform"
)

const (
	favoriteIDsEndpoint  = "https://api.bilibili.com/x/v3/fav/resource/ids"
	favoriteListEndpoint = "https://api.bilibili.com/x/v3/fav/resource/list"
	favoritePageSize     = 20
)

// FavoriteAdapter enumerates a saved-favorites folder.
type FavoriteAdapter struct {
	idsEndpoint  string
	listEndpoint string
}

// NewFavoriteAdapter builds a stateless favorite-folder adapter against the
// production endpoints.
func NewFavoriteAdapter() *FavoriteAdapter {
	return &FavoriteAdapter{idsEndpoint: favoriteIDsEndpoint, listEndpoint: favoriteListEndpoint}
}

// Type satisfies Adapter.
func (a *FavoriteAdapter) Type() models.SourceType { return models.SourceTypeFavorite }

type favoriteIDEntry struct {
	ID      int64 `json:"id"`
	Type    int   `json:"type"`
	FavTime int64 `json:"fav_time"`
}

type favoriteIDsData struct {
	Medias []favoriteIDEntry `json:"medias"`
}

type favoriteMedia struct {
	Type    int    `json:"type"`
	Title   string `json:"title"`
	Cover   string `json:"cover"`
	Page    int    `json:"page"`
	BvID    string `json:"bvid"`
	PubTime int64  `json:"pubtime"`
	FavTime int64  `json:"fav_time"`
	Upper   struct {
		Mid  int64  `json:"mid"`
		Name string `json:"name"`
	} `json:"upper"`
}

type favoriteListData struct {
	Medias  []favoriteMedia `json:"medias"`
	HasMore bool            `json:"has_more"`
}

// Enumerate walks the favorite listing newest-first, early-terminating as
// soon as the ids index crosses the source's watermark (§4.D Favorite).
func (a *FavoriteAdapter) Enumerate(ctx context.Context, client *platform.Client, source any, watermark *models.Time, callback VideoCallback) error {
	src, ok := source.(*models.SourceFavorite)
	if !ok {
		return fmt.Errorf("adapters: favorite adapter requires *models.SourceFavorite, got %T", source)
	}

	ids, err := a.fetchIDs(ctx, client, src.FID)
	if err != nil {
		return err
	}

	wanted := 0
	for _, entry := range ids {
		if olderThanWatermark(time.Unix(entry.FavTime, 0), watermark) {
			break
		}
		wanted++
	}
	if wanted == 0 {
		return nil
	}

	emitted := 0
	for pn := 1; emitted < wanted; pn++ {
		medias, hasMore, err := a.fetchPage(ctx, client, src.FID, pn)
		if err != nil {
			return err
		}
		for _, m := range medias {
			if emitted >= wanted {
				break
			}
			if err := callback(favoriteToVideoInfo(m)); err != nil {
				return err
			}
			emitted++
		}
		if !hasMore {
			break
		}
	}
	return nil
}

func (a *FavoriteAdapter) fetchIDs(ctx context.Context, client *platform.Client, fid string) ([]favoriteIDEntry, error) {
	resp, err := client.SignedGet(ctx, a.idsEndpoint, url.Values{"media_id": {fid}, "platform": {"web"}})
	if err != nil {
		return nil, models.NewClassifiedError(models.KindNetwork, err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	var data favoriteIDsData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, models.NewClassifiedError(models.KindMalformed, err)
	}
	return data.Medias, nil
}

func (a *FavoriteAdapter) fetchPage(ctx context.Context, client *platform.Client, fid string, pn int) ([]favoriteMedia, bool, error) {
	params := url.Values{
		"media_id": {fid},
		"pn":       {strconv.Itoa(pn)},
		"ps":       {strconv.Itoa(favoritePageSize)},
		"platform": {"web"},
		"order":    {"mtime"},
	}
	resp, err := client.SignedGet(ctx, a.listEndpoint, params)
	if err != nil {
		return nil, false, models.NewClassifiedError(models.KindNetwork, err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return nil, false, err
	}
	var data favoriteListData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, false, models.NewClassifiedError(models.KindMalformed, err)
	}
	return data.Medias, data.HasMore, nil
}

func favoriteToVideoInfo(m favoriteMedia) models.VideoInfo {
	category := models.CategorySinglePart
	if m.Page > 1 {
		category = models.CategoryMultiPart
	}
	return models.VideoInfo{
		RemoteKey: m.BvID,
		Title:     m.Title,
		UpperID:   strconv.FormatInt(m.Upper.Mid, 10),
		UpperName: m.Upper.Name,
		PublishAt: time.Unix(m.PubTime, 0),
		CoverURL:  m.Cover,
		Category:  category,
	}
}
