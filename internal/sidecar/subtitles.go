package sidecar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/platform"
	"github.com/vidsyncd/vidsyncd/internal/storage"
)

const subtitleListEndpoint = "https://api.bilibili.com/x/player/wbi/v2"

type subtitleTrack struct {
	Lan        string `json:"lan"`
	SubtitleURL string `json:"subtitle_url"`
}

type subtitleListData struct {
	Subtitle struct {
		Subtitles []subtitleTrack `json:"subtitles"`
	} `json:"subtitle"`
}

type subtitleCue struct {
	From    float64 `json:"from"`
	To      float64 `json:"to"`
	Content string  `json:"content"`
}

type subtitleBody struct {
	Body []subtitleCue `json:"body"`
}

// envelope mirrors internal/adapters/internal/assets' {code,message,data}
// decode, duplicated locally for the same reason those packages do: each
// owns its own unmarshal targets.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func readAll(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewClassifiedError(models.KindNetwork, err)
	}
	return body, nil
}

func decodeEnvelope(body []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, models.NewClassifiedError(models.KindMalformed, err)
	}
	if env.Code != 0 {
		return envelope{}, models.NewClassifiedError(
			models.ClassifyRemoteCode(env.Code),
			fmt.Errorf("%s (code %d)", env.Message, env.Code),
		)
	}
	return env, nil
}

// FetchSubtitles enumerates a page's subtitle tracks via the player info
// endpoint and converts each track's JSON cue list into an .srt file named
// by its language tag.
func (g *Generator) FetchSubtitles(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error {
	resp, err := client.SignedGet(ctx, subtitleListEndpoint, url.Values{
		"bvid": {video.RemoteKey},
		"cid":  {fmt.Sprintf("%d", page.CID)},
	})
	if err != nil {
		return models.NewClassifiedError(models.KindNetwork, err)
	}
	defer resp.Body.Close()

	body, err := readAll(resp)
	if err != nil {
		return err
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		return err
	}
	var data subtitleListData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return models.NewClassifiedError(models.KindMalformed, err)
	}
	if len(data.Subtitle.Subtitles) == 0 {
		return models.NewClassifiedError(models.KindNotFound, fmt.Errorf("sidecar: no subtitle tracks"))
	}

	dir := video.PageDir(page)
	for _, track := range data.Subtitle.Subtitles {
		if track.SubtitleURL == "" {
			continue
		}
		if err := g.fetchOneSubtitle(ctx, client, track, dir, sandbox); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) fetchOneSubtitle(ctx context.Context, client *platform.Client, track subtitleTrack, dir string, sandbox *storage.Sandbox) error {
	trackURL := track.SubtitleURL
	if strings.HasPrefix(trackURL, "//") {
		trackURL = "https:" + trackURL
	}

	// Track URLs are already fully-qualified, pre-authorized CDN links
	// returned inline in the player info response, not wbi endpoints, so
	// this is a plain GET rather than a SignedGet.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return models.NewClassifiedError(models.KindNetwork, err)
	}
	resp, err := client.Do(ctx, req)
	if err != nil {
		return models.NewClassifiedError(models.KindNetwork, err)
	}
	defer resp.Body.Close()

	body, err := readAll(resp)
	if err != nil {
		return err
	}
	var cues subtitleBody
	if err := json.Unmarshal(body, &cues); err != nil {
		return models.NewClassifiedError(models.KindMalformed, err)
	}

	srt := renderSRT(cues.Body)
	lan := track.Lan
	if lan == "" {
		lan = "und"
	}
	relPath := filepath.Join(dir, fmt.Sprintf("video.%s.srt", lan))
	if err := sandbox.AtomicWrite(relPath, []byte(srt)); err != nil {
		return models.NewClassifiedError(models.KindFilesystemPermission, err)
	}
	return nil
}

// renderSRT converts a cue list into SubRip text. Cues are already emitted
// in chronological order by the source, so no sort is needed.
func renderSRT(cues []subtitleCue) string {
	var b strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTimestamp(c.From), srtTimestamp(c.To), c.Content)
	}
	return b.String()
}

func srtTimestamp(seconds float64) string {
	total := int64(seconds * 1000)
	ms := total % 1000
	total /= 1000
	s := total % 60
	total /= 60
	m := total % 60
	total /= 60
	h := total
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
