package sidecar

import (
	"context"
	"encoding/xml"
	"path/filepath"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/storage"
)

// tvshowNFO is the Kodi tvshow.nfo schema written at a bangumi season's
// root directory, one level above the episode directories.
type tvshowNFO struct {
	XMLName  xml.Name `xml:"tvshow"`
	Title    string   `xml:"title"`
	Premiered string  `xml:"premiered,omitempty"`
	UniqueID string   `xml:"uniqueid"`
}

// GenerateTVShowNFO writes tvshow.nfo at the bangumi season's root. This is
// video task 3's bangumi-category output — the counterpart to
// FetchUploaderAsset for plain videos, since a season has no single
// "uploader" the way a user-submitted video does.
func (g *Generator) GenerateTVShowNFO(ctx context.Context, video *models.Video, sandbox *storage.Sandbox) error {
	nfo := tvshowNFO{
		Title:     video.Title,
		Premiered: video.PublishAt.Format("2006-01-02"),
		UniqueID:  video.RemoteKey,
	}
	return marshalNFO(sandbox, filepath.Join(filepath.Dir(video.Path), "tvshow.nfo"), nfo)
}
