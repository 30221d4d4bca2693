package assets

import (
	"sort"

	"github.com/vidsyncd/vidsyncd/internal/codec"
	"github.com/vidsyncd/vidsyncd/internal/models"
)

// dashStream is one DASH representation entry, video or audio, as the
// playurl endpoint's manifest describes it.
type dashStream struct {
	ID        int    `json:"id"`
	BaseURL   string `json:"baseUrl"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Codecs    string `json:"codecs"`
	Bandwidth int    `json:"bandwidth"`
}

// selectVideoStream picks the highest-resolution representation that does
// not exceed opts.MaxResolution (0 means unbounded; when every
// representation exceeds it, the cap is ignored) and, when
// opts.PreferredCodec is set, matches it; falling back to the best
// available representation if no entry satisfies the codec preference, so
// a source configured for a codec the uploader never encoded in still
// downloads something rather than nothing.
func selectVideoStream(streams []dashStream, opts models.DownloadOptions) *dashStream {
	candidates := make([]dashStream, len(streams))
	copy(candidates, streams)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Height > candidates[j].Height })

	var withinBudget []dashStream
	for _, s := range candidates {
		if opts.MaxResolution > 0 && s.Height > opts.MaxResolution {
			continue
		}
		withinBudget = append(withinBudget, s)
	}
	if len(withinBudget) == 0 {
		withinBudget = candidates
	}
	if len(withinBudget) == 0 {
		return nil
	}

	if opts.PreferredCodec != "" {
		for i := range withinBudget {
			if codec.VideoMatch(codec.NormalizeHLSCodec(withinBudget[i].Codecs), opts.PreferredCodec) {
				return &withinBudget[i]
			}
		}
	}
	return &withinBudget[0]
}

// selectAudioStream picks the highest-bandwidth audio representation.
// opts.AudioOnlyM4AOnly restricts the choice to an mp4a (AAC) track,
// excluding the higher-bitrate Dolby/hi-res FLAC tracks some uploads carry,
// since those don't decode cleanly with a plain "-c copy" remux into an
// mp4/mkv container on every player.
func selectAudioStream(streams []dashStream, opts models.DownloadOptions) *dashStream {
	candidates := make([]dashStream, len(streams))
	copy(candidates, streams)
	if opts.AudioOnlyM4AOnly {
		var filtered []dashStream
		for _, s := range candidates {
			if codec.AudioMatch(codec.NormalizeHLSCodec(s.Codecs), "mp4a") {
				filtered = append(filtered, s)
			}
		}
		if len(filtered) > 0 {
			candidates = filtered
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Bandwidth > candidates[j].Bandwidth })
	return &candidates[0]
}
