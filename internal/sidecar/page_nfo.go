package sidecar

import (
	"context"
	"encoding/xml"
	"path/filepath"
	"strconv"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/storage"
)

// episodeNFO is Kodi's episodedetails.nfo schema, used for both a
// multi-part video's parts and a bangumi season's episodes — the two
// category shapes that have a genuine "part N of the whole" structure.
type episodeNFO struct {
	XMLName       xml.Name `xml:"episodedetails"`
	Title         string   `xml:"title"`
	Season        int      `xml:"season,omitempty"`
	Episode       int      `xml:"episode"`
	Aired         string   `xml:"aired,omitempty"`
	RuntimeMinute int64    `xml:"runtime,omitempty"`
	UniqueID      string   `xml:"uniqueid"`
}

// GeneratePageNFO writes a page's own NFO file. Single-part videos get a
// second movie.nfo copy in their page directory (identical to the
// video-level one, since players resolve either depending on library mode);
// multi-part and bangumi pages get an episodedetails.nfo keyed by part
// number.
func (g *Generator) GeneratePageNFO(ctx context.Context, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error {
	dir := video.PageDir(page)

	if video.Category == models.CategorySinglePart {
		nfo := movieNFO{
			Title:     video.Title,
			Premiered: video.PublishAt.Format("2006-01-02"),
			Studio:    video.UpperName,
			UniqueID:  video.RemoteKey,
			Tag:       []string(video.Tags),
		}
		return marshalNFO(sandbox, filepath.Join(dir, "movie.nfo"), nfo)
	}

	nfo := episodeNFO{
		Title:         page.Name,
		Episode:       page.PID,
		Aired:         video.PublishAt.Format("2006-01-02"),
		RuntimeMinute: page.DurationMs / 1000 / 60,
		UniqueID:      video.RemoteKey + "_" + strconv.Itoa(page.PID),
	}
	return marshalNFO(sandbox, filepath.Join(dir, "episodedetails.nfo"), nfo)
}
