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
	submissionSearchEndpoint = "https://api.bilibili.com/x/space/wbi/arc/search"
	submissionFeedEndpoint   = "https://api.bilibili.com/x/polymer/web-dynamic/v1/feed/space"
	submissionPageSize       = 30
	submissionFeedPageSize   = 12
)

// SubmissionAdapter enumerates an uploader's upload history, via either the
// paged search endpoint or the dynamic-feed cursor endpoint.
type SubmissionAdapter struct {
	searchEndpoint string
	feedEndpoint   string
}

// NewSubmissionAdapter builds a stateless submission adapter against the
// production endpoints.
func NewSubmissionAdapter() *SubmissionAdapter {
	return &SubmissionAdapter{searchEndpoint: submissionSearchEndpoint, feedEndpoint: submissionFeedEndpoint}
}

// Type satisfies Adapter.
func (a *SubmissionAdapter) Type() models.SourceType { return models.SourceTypeSubmission }

type submissionVlistItem struct {
	BvID    string `json:"bvid"`
	Title   string `json:"title"`
	Pic     string `json:"pic"`
	Created int64  `json:"created"`
	Author  string `json:"author"`
	MID     int64  `json:"mid"`
}

type submissionSearchData struct {
	List struct {
		Vlist []submissionVlistItem `json:"vlist"`
	} `json:"list"`
	Page struct {
		Count int `json:"count"`
		PN    int `json:"pn"`
		PS    int `json:"ps"`
	} `json:"page"`
}

type submissionFeedArchive struct {
	BvID  string `json:"bvid"`
	Title string `json:"title"`
	Cover string `json:"cover"`
	PubTS int64  `json:"pub_ts"`
}

type submissionFeedItem struct {
	Modules struct {
		ModuleAuthor struct {
			Mid  int64  `json:"mid"`
			Name string `json:"name"`
		} `json:"module_author"`
		ModuleDynamic struct {
			Major struct {
				Archive submissionFeedArchive `json:"archive"`
			} `json:"major"`
		} `json:"module_dynamic"`
	} `json:"modules"`
}

type submissionFeedData struct {
	Items   []submissionFeedItem `json:"items"`
	HasMore bool                 `json:"has_more"`
	Offset  string               `json:"offset"`
}

// Enumerate walks the uploader's submission history via whichever back-end
// the source's use_dynamic_api option selects, materializing only the
// selected_videos subset when that list is non-empty (§4.D Submission).
func (a *SubmissionAdapter) Enumerate(ctx context.Context, client *platform.Client, source any, watermark *models.Time, callback VideoCallback) error {
	src, ok := source.(*models.SourceSubmission)
	if !ok {
		return fmt.Errorf("adapters: submission adapter requires *models.SourceSubmission, got %T", source)
	}

	accept := func(bvid string) bool {
		return !src.HasSelection() || src.SelectedVideos.Contains(bvid)
	}

	if src.Options.UseDynamicAPI {
		return a.enumerateDynamicFeed(ctx, client, src, watermark, accept, callback)
	}
	return a.enumeratePagedSearch(ctx, client, src, watermark, accept, callback)
}

func (a *SubmissionAdapter) enumeratePagedSearch(ctx context.Context, client *platform.Client, src *models.SourceSubmission, watermark *models.Time, accept func(string) bool, callback VideoCallback) error {
	for pn := 1; ; pn++ {
		params := url.Values{
			"mid":   {src.MID},
			"pn":    {strconv.Itoa(pn)},
			"ps":    {strconv.Itoa(submissionPageSize)},
			"order": {"pubdate"},
		}
		resp, err := client.SignedGet(ctx, a.searchEndpoint, params)
		if err != nil {
			return models.NewClassifiedError(models.KindNetwork, err)
		}
		env, err := decodeEnvelope(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}
		var data submissionSearchData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return models.NewClassifiedError(models.KindMalformed, err)
		}
		if len(data.List.Vlist) == 0 {
			return nil
		}
		emittedThisPage := 0
		for _, item := range data.List.Vlist {
			pubAt := time.Unix(item.Created, 0)
			if olderThanWatermark(pubAt, watermark) {
				return nil
			}
			emittedThisPage++
			if !accept(item.BvID) {
				continue
			}
			info := models.VideoInfo{
				RemoteKey: item.BvID,
				Title:     item.Title,
				UpperID:   strconv.FormatInt(item.MID, 10),
				UpperName: item.Author,
				PublishAt: pubAt,
				CoverURL:  item.Pic,
				Category:  models.CategorySinglePart,
			}
			if err := callback(info); err != nil {
				return err
			}
		}
		if pn*submissionPageSize >= data.Page.Count {
			return nil
		}
	}
}

func (a *SubmissionAdapter) enumerateDynamicFeed(ctx context.Context, client *platform.Client, src *models.SourceSubmission, watermark *models.Time, accept func(string) bool, callback VideoCallback) error {
	offset := ""
	for {
		params := url.Values{
			"host_mid": {src.MID},
			"offset":   {offset},
			"page_size": {strconv.Itoa(submissionFeedPageSize)},
		}
		resp, err := client.SignedGet(ctx, a.feedEndpoint, params)
		if err != nil {
			return models.NewClassifiedError(models.KindNetwork, err)
		}
		env, err := decodeEnvelope(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}
		var data submissionFeedData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return models.NewClassifiedError(models.KindMalformed, err)
		}
		if len(data.Items) == 0 {
			return nil
		}
		for _, item := range data.Items {
			arc := item.Modules.ModuleDynamic.Major.Archive
			if arc.BvID == "" {
				continue
			}
			pubAt := time.Unix(arc.PubTS, 0)
			if olderThanWatermark(pubAt, watermark) {
				return nil
			}
			if !accept(arc.BvID) {
				continue
			}
			info := models.VideoInfo{
				RemoteKey: arc.BvID,
				Title:     arc.Title,
				UpperID:   strconv.FormatInt(item.Modules.ModuleAuthor.Mid, 10),
				UpperName: item.Modules.ModuleAuthor.Name,
				PublishAt: pubAt,
				CoverURL:  arc.Cover,
				Category:  models.CategorySinglePart,
			}
			if err := callback(info); err != nil {
				return err
			}
		}
		if !data.HasMore {
			return nil
		}
		offset = data.Offset
	}
}
