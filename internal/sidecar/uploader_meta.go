package sidecar

import (
	"context"
	"encoding/xml"
	"path/filepath"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/storage"
)

// personNFO is Kodi's actor/person metadata schema, reused here for the
// uploader record that sits beside a plain video's folder art.
type personNFO struct {
	XMLName xml.Name `xml:"person"`
	Name    string   `xml:"name"`
	UniqueID string  `xml:"uniqueid"`
}

// GenerateUploaderMeta writes the uploader's own metadata file. It is a
// video-level task, not a page-level one, since every part of a multi-part
// video shares the same uploader.
func (g *Generator) GenerateUploaderMeta(ctx context.Context, video *models.Video, sandbox *storage.Sandbox) error {
	if video.Category == models.CategoryBangumi {
		// Bangumi seasons have no single uploader; the show's own
		// tvshow.nfo already carries all the identity this category needs.
		return nil
	}
	nfo := personNFO{
		Name:     video.UpperName,
		UniqueID: video.UpperID,
	}
	return marshalNFO(sandbox, filepath.Join(video.Path, "uploader.nfo"), nfo)
}
