package sidecar

import (
	"context"
	"encoding/xml"
	"path/filepath"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/storage"
)

// movieNFO is the Kodi movie.nfo schema, used for single-part and
// multi-part videos alike (a multi-part video's own NFO describes the
// video as a whole; each part's episodedetails.nfo, written by
// GeneratePageNFO, describes the individual part).
type movieNFO struct {
	XMLName   xml.Name `xml:"movie"`
	Title     string   `xml:"title"`
	Plot      string   `xml:"plot,omitempty"`
	Premiered string   `xml:"premiered,omitempty"`
	Studio    string   `xml:"studio,omitempty"`
	UniqueID  string   `xml:"uniqueid"`
	Tag       []string `xml:"tag,omitempty"`
}

// GenerateVideoNFO writes movie.nfo into the video's own directory.
func (g *Generator) GenerateVideoNFO(ctx context.Context, video *models.Video, sandbox *storage.Sandbox) error {
	nfo := movieNFO{
		Title:     video.Title,
		Premiered: video.PublishAt.Format("2006-01-02"),
		Studio:    video.UpperName,
		UniqueID:  video.RemoteKey,
		Tag:       []string(video.Tags),
	}
	return marshalNFO(sandbox, filepath.Join(video.Path, "movie.nfo"), nfo)
}
