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

const (
	collectionSeasonEndpoint = "https://api.bilibili.com/x/polymer/space/seasons_archives_list"
	collectionSeriesEndpoint = "https://api.bilibili.com/x/series/archives"
	collectionPageSize       = 30
)

// CollectionAdapter enumerates a multi-part season or series collection.
type CollectionAdapter struct {
	seasonEndpoint string
	seriesEndpoint string
}

// NewCollectionAdapter builds a stateless collection adapter against the
// production endpoints.
func NewCollectionAdapter() *CollectionAdapter {
	return &CollectionAdapter{seasonEndpoint: collectionSeasonEndpoint, seriesEndpoint: collectionSeriesEndpoint}
}

// Type satisfies Adapter.
func (a *CollectionAdapter) Type() models.SourceType { return models.SourceTypeCollection }

type collectionArchive struct {
	BvID    string `json:"bvid"`
	Title   string `json:"title"`
	Cover   string `json:"pic"`
	PubDate int64  `json:"pubdate"`
	Author  struct {
		Mid  int64  `json:"mid"`
		Name string `json:"name"`
	} `json:"author"`
}

type collectionArchivesData struct {
	Archives []collectionArchive `json:"archives"`
	Page     struct {
		PageNum  int `json:"page_num"`
		PageSize int `json:"page_size"`
		Total    int `json:"total"`
	} `json:"page"`
}

// Enumerate walks the collection listing page by page until the total
// count is exhausted or an archive crosses the watermark (§4.D Collection).
func (a *CollectionAdapter) Enumerate(ctx context.Context, client *platform.Client, source any, watermark *models.Time, callback VideoCallback) error {
	src, ok := source.(*models.SourceCollection)
	if !ok {
		return fmt.Errorf("adapters: collection adapter requires *models.SourceCollection, got %T", source)
	}

	endpoint := a.seriesEndpoint
	if src.Kind == models.CollectionKindSeason {
		endpoint = a.seasonEndpoint
	}

	seen := 0
	for pageNum := 1; ; pageNum++ {
		data, err := a.fetchPage(ctx, client, endpoint, src, pageNum)
		if err != nil {
			return err
		}
		if len(data.Archives) == 0 {
			return nil
		}
		for _, arc := range data.Archives {
			pubAt := time.Unix(arc.PubDate, 0)
			if olderThanWatermark(pubAt, watermark) {
				return nil
			}
			if err := callback(collectionToVideoInfo(arc)); err != nil {
				return err
			}
			seen++
		}
		if data.Page.Total > 0 && seen >= data.Page.Total {
			return nil
		}
	}
}

func (a *CollectionAdapter) fetchPage(ctx context.Context, client *platform.Client, endpoint string, src *models.SourceCollection, pageNum int) (collectionArchivesData, error) {
	params := url.Values{
		"mid":       {src.MID},
		"season_id": {src.CollectionID},
		"series_id": {src.CollectionID},
		"page_num":  {strconv.Itoa(pageNum)},
		"pn":        {strconv.Itoa(pageNum)},
		"page_size": {strconv.Itoa(collectionPageSize)},
		"ps":        {strconv.Itoa(collectionPageSize)},
	}
	resp, err := client.SignedGet(ctx, endpoint, params)
	if err != nil {
		return collectionArchivesData{}, models.NewClassifiedError(models.KindNetwork, err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return collectionArchivesData{}, err
	}
	var data collectionArchivesData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return collectionArchivesData{}, models.NewClassifiedError(models.KindMalformed, err)
	}
	return data, nil
}

func collectionToVideoInfo(arc collectionArchive) models.VideoInfo {
	return models.VideoInfo{
		RemoteKey: arc.BvID,
		Title:     arc.Title,
		UpperID:   strconv.FormatInt(arc.Author.Mid, 10),
		UpperName: arc.Author.Name,
		PublishAt: time.Unix(arc.PubDate, 0),
		CoverURL:  arc.Cover,
		Category:  models.CategorySinglePart,
	}
}
