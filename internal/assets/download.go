// Package assets fetches the binary artifacts a video or page needs —
// poster, avatar, thumbnail, and remuxed payload — grounded on the
// teacher's internal/ffmpeg download-and-remux pipeline and the sandboxed
// filesystem writes internal/storage already provides.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"syscall"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/platform"
	"github.com/vidsyncd/vidsyncd/internal/service"
	"github.com/vidsyncd/vidsyncd/internal/storage"
)

// imageConverter normalizes every poster/thumbnail/avatar download to real
// JPEG bytes before it's written to disk, regardless of what format the CDN
// actually served it in.
var imageConverter = service.NewImageConverter()

const (
	// referer/userAgent are required by the CDN fronting both the small
	// image assets and the video payload; requests without them are
	// answered with 403 regardless of cookie state.
	assetReferer   = "https://www.bilibili.com"
	assetUserAgent = "Mozilla/5.0"
)

// fetchFile GETs url in full, decodes it as an image and re-encodes it as
// JPEG, then atomically writes the result to destRelPath. Every caller in
// this package downloads a poster, avatar, or thumbnail, so normalizing the
// format here means a WebP or PNG cover from the CDN still lands on disk
// matching the .jpg extension poster.go already names it.
func fetchFile(ctx context.Context, client *platform.Client, url, destRelPath string, sandbox *storage.Sandbox) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.NewClassifiedError(models.KindNetwork, err)
	}
	req.Header.Set("Referer", assetReferer)
	req.Header.Set("User-Agent", assetUserAgent)

	resp, err := client.Do(ctx, req)
	if err != nil {
		return models.NewClassifiedError(models.KindNetwork, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}

	jpegData, _, _, err := imageConverter.ConvertToJPEGReader(resp.Body)
	if err != nil {
		return models.NewClassifiedError(models.KindMalformed, fmt.Errorf("assets: normalizing image: %w", err))
	}

	if err := sandbox.AtomicWrite(destRelPath, jpegData); err != nil {
		return classifyFSError(err)
	}
	return nil
}

// downloadSegmentAttempts bounds how many times downloadResumable retries a
// dropped connection before giving up; each retry resumes from the byte
// offset already written rather than restarting the whole segment.
const downloadSegmentAttempts = 5

// downloadResumable fetches url to an absolute path outside the sandbox (the
// pipeline's per-run scratch directory), resuming from whatever bytes are
// already on disk whenever the connection drops mid-transfer. DASH video/
// audio segments are large enough that a bare retry-from-scratch wastes
// real bandwidth on a flaky link.
func downloadResumable(ctx context.Context, client *platform.Client, url, destAbsPath string) error {
	var lastErr error
	for attempt := 0; attempt < downloadSegmentAttempts; attempt++ {
		done, err := downloadAttempt(ctx, client, url, destAbsPath)
		if done {
			return nil
		}
		lastErr = err
		if models.KindOf(err) != models.KindNetwork {
			return err
		}
	}
	return lastErr
}

// downloadAttempt performs one GET (Range-resumed from the current file
// size) and reports done=true once the body has been fully drained.
func downloadAttempt(ctx context.Context, client *platform.Client, url, destAbsPath string) (bool, error) {
	var startAt int64
	if info, err := os.Stat(destAbsPath); err == nil {
		startAt = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, models.NewClassifiedError(models.KindNetwork, err)
	}
	req.Header.Set("Referer", assetReferer)
	req.Header.Set("User-Agent", assetUserAgent)
	if startAt > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", startAt))
	}

	resp, err := client.Do(ctx, req)
	if err != nil {
		return false, models.NewClassifiedError(models.KindNetwork, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		startAt = 0
	case http.StatusPartialContent:
		// Resuming from startAt; nothing further to adjust.
	case http.StatusRequestedRangeNotSatisfiable:
		return true, nil // already fully on disk
	default:
		if err := classifyStatus(resp.StatusCode); err != nil {
			return false, err
		}
	}

	flag := os.O_CREATE | os.O_WRONLY
	if startAt > 0 {
		flag |= os.O_APPEND
	} else {
		flag |= os.O_TRUNC
	}
	f, err := os.OpenFile(destAbsPath, flag, 0o640)
	if err != nil {
		return false, classifyFSError(err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return false, models.NewClassifiedError(models.KindNetwork, err)
	}
	return true, nil
}

func classifyStatus(status int) error {
	switch status {
	case http.StatusOK, http.StatusPartialContent:
		return nil
	case http.StatusNotFound:
		return models.NewClassifiedError(models.KindNotFound, fmt.Errorf("assets: remote returned 404"))
	case http.StatusForbidden:
		return models.NewClassifiedError(models.KindForbidden, fmt.Errorf("assets: remote returned 403"))
	default:
		return models.NewClassifiedError(models.KindNetwork, fmt.Errorf("assets: unexpected status %d", status))
	}
}

func classifyFSError(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return models.NewClassifiedError(models.KindFilesystemFull, err)
	}
	if errors.Is(err, os.ErrPermission) {
		return models.NewClassifiedError(models.KindFilesystemPermission, err)
	}
	return models.NewClassifiedError(models.KindFilesystemPermission, err)
}
