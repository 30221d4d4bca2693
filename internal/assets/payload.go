package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/vidsyncd/vidsyncd/internal/ffmpeg"
	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/platform"
	"github.com/vidsyncd/vidsyncd/internal/storage"
)

const playurlEndpoint = "https://api.bilibili.com/x/player/wbi/playurl"

// dashFnval requests the DASH manifest shape instead of the legacy
// single-file durl shape; vidsyncd always remuxes from separate video/
// audio tracks rather than depending on the platform's own muxed fallback.
const dashFnval = "4048"

type playurlData struct {
	Dash struct {
		Video []dashStream `json:"video"`
		Audio []dashStream `json:"audio"`
	} `json:"dash"`
}

// FetchPayload resolves the DASH manifest for one page, selects a video and
// audio representation per the source's download options, downloads both
// into a scratch directory, remuxes them into one container with ffmpeg
// (stream copy, never a re-encode), and publishes the result atomically
// into the page's own directory.
func (f *Fetcher) FetchPayload(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error {
	opts := models.DownloadOptionsFromContext(ctx)

	data, err := f.fetchPlayurl(ctx, client, video.RemoteKey, page.CID)
	if err != nil {
		return err
	}

	tempParent, err := sandbox.TempDir()
	if err != nil {
		return fmt.Errorf("assets: preparing temp dir: %w", err)
	}
	workDir, err := os.MkdirTemp(tempParent, "payload-*")
	if err != nil {
		return fmt.Errorf("assets: creating payload temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	destRel := filepath.Join(video.PageDir(page), payloadFileName(opts))

	if opts.AudioOnly {
		return f.fetchAudioOnly(ctx, client, data, opts, workDir, sandbox, destRel)
	}
	return f.fetchMuxed(ctx, client, data, opts, workDir, sandbox, destRel)
}

func (f *Fetcher) fetchAudioOnly(ctx context.Context, client *platform.Client, data playurlData, opts models.DownloadOptions, workDir string, sandbox *storage.Sandbox, destRel string) error {
	audio := selectAudioStream(data.Dash.Audio, opts)
	if audio == nil {
		return models.NewClassifiedError(models.KindNotFound, fmt.Errorf("assets: no audio stream available"))
	}

	audioPath := filepath.Join(workDir, "audio.m4a")
	if err := downloadResumable(ctx, client, audio.BaseURL, audioPath); err != nil {
		return err
	}

	outPath := filepath.Join(workDir, "out.m4a")
	cmd := ffmpeg.NewCommandBuilder(f.ffmpegPath).
		Overwrite().
		Input(audioPath).
		AudioCodec("copy").
		Output(outPath).
		Build()
	if err := cmd.Run(ctx); err != nil {
		return models.NewClassifiedError(models.KindRemuxFailed, err)
	}
	if err := f.verifyRemux(ctx, outPath); err != nil {
		return err
	}

	if err := sandbox.AtomicPublish(outPath, destRel); err != nil {
		return classifyFSError(err)
	}
	return nil
}

func (f *Fetcher) fetchMuxed(ctx context.Context, client *platform.Client, data playurlData, opts models.DownloadOptions, workDir string, sandbox *storage.Sandbox, destRel string) error {
	videoStream := selectVideoStream(data.Dash.Video, opts)
	if videoStream == nil {
		return models.NewClassifiedError(models.KindNotFound, fmt.Errorf("assets: no video stream available"))
	}
	audio := selectAudioStream(data.Dash.Audio, opts)
	if audio == nil {
		return models.NewClassifiedError(models.KindNotFound, fmt.Errorf("assets: no audio stream available"))
	}

	videoPath := filepath.Join(workDir, "video.m4s")
	if err := downloadResumable(ctx, client, videoStream.BaseURL, videoPath); err != nil {
		return err
	}
	audioPath := filepath.Join(workDir, "audio.m4s")
	if err := downloadResumable(ctx, client, audio.BaseURL, audioPath); err != nil {
		return err
	}

	outPath := filepath.Join(workDir, "out.mp4")
	// The builder only threads a single -i through Build, so the audio
	// input is smuggled in as an input arg ahead of it; both land before
	// the output args in the assembled command line.
	cmd := ffmpeg.NewCommandBuilder(f.ffmpegPath).
		Overwrite().
		InputArgs("-i", audioPath).
		Input(videoPath).
		OutputArgs("-map", "1:v:0", "-map", "0:a:0", "-c", "copy").
		Output(outPath).
		Build()
	if err := cmd.Run(ctx); err != nil {
		return models.NewClassifiedError(models.KindRemuxFailed, err)
	}
	if err := f.verifyRemux(ctx, outPath); err != nil {
		return err
	}

	if err := sandbox.AtomicPublish(outPath, destRel); err != nil {
		return classifyFSError(err)
	}
	return nil
}

// verifyRemux probes a freshly remuxed file and rejects it as a remux
// failure if ffprobe can't read it back or reports zero duration, catching
// the rare stream-copy that exits 0 but produced an unplayable container.
// A no-op when the fetcher wasn't given an ffprobe path.
func (f *Fetcher) verifyRemux(ctx context.Context, path string) error {
	if f.prober == nil {
		return nil
	}
	info, err := f.prober.ProbeSimple(ctx, path)
	if err != nil {
		return models.NewClassifiedError(models.KindRemuxFailed, fmt.Errorf("assets: probing remuxed output: %w", err))
	}
	if info.Duration <= 0 {
		return models.NewClassifiedError(models.KindRemuxFailed, fmt.Errorf("assets: remuxed output has zero duration"))
	}
	return nil
}

func payloadFileName(opts models.DownloadOptions) string {
	if opts.AudioOnly {
		return "video.m4a"
	}
	return "video.mp4"
}

func (f *Fetcher) fetchPlayurl(ctx context.Context, client *platform.Client, bvid string, cid int64) (playurlData, error) {
	params := url.Values{
		"bvid":  {bvid},
		"cid":   {strconv.FormatInt(cid, 10)},
		"fnval": {dashFnval},
		"fourk": {"1"},
	}
	resp, err := client.SignedGet(ctx, playurlEndpoint, params)
	if err != nil {
		return playurlData{}, models.NewClassifiedError(models.KindNetwork, err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return playurlData{}, err
	}
	var data playurlData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return playurlData{}, models.NewClassifiedError(models.KindMalformed, err)
	}
	if len(data.Dash.Video) == 0 && len(data.Dash.Audio) == 0 {
		return playurlData{}, models.NewClassifiedError(models.KindNotFound, fmt.Errorf("assets: playurl returned no dash streams"))
	}
	return data, nil
}
