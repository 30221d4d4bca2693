// Package sidecar generates the Kodi/Jellyfin-style metadata files that sit
// beside each video's payload — movie.nfo, tvshow.nfo, episodedetails.nfo,
// and the uploader's own person record — grounded on the teacher's
// pkg/xmltv typed-struct-over-encoding/xml approach to EPG metadata, applied
// here to the NFO schema instead of XMLTV.
package sidecar

import (
	"encoding/xml"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/storage"
)

// Generator implements the pipeline's sidecar-metadata task providers.
type Generator struct{}

// NewGenerator builds a sidecar Generator. It carries no state: every NFO
// is derived purely from the video/page row passed in.
func NewGenerator() *Generator {
	return &Generator{}
}

func marshalNFO(sandbox *storage.Sandbox, relPath string, root any) error {
	body, err := xml.MarshalIndent(root, "", "  ")
	if err != nil {
		return models.NewClassifiedError(models.KindMalformed, err)
	}
	doc := append([]byte(xml.Header), body...)
	if err := sandbox.AtomicWrite(relPath, doc); err != nil {
		return models.NewClassifiedError(models.KindFilesystemPermission, err)
	}
	return nil
}
