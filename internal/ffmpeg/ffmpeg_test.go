package ffmpeg

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not installed.
func skipIfNoFFmpeg(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	return path
}

// skipIfNoFFprobe skips the test if ffprobe is not installed.
func skipIfNoFFprobe(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		t.Skip("ffprobe not installed")
	}
	return path
}

func TestBinaryDetector_Detect(t *testing.T) {
	skipIfNoFFmpeg(t)
	skipIfNoFFprobe(t)

	ctx := context.Background()
	detector := NewBinaryDetector()

	info, err := detector.Detect(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.NotEmpty(t, info.FFmpegPath)
	assert.NotEmpty(t, info.FFprobePath)
	assert.NotEmpty(t, info.Version)
	assert.Greater(t, info.MajorVersion, 0)
}

func TestBinaryDetector_Caching(t *testing.T) {
	skipIfNoFFmpeg(t)
	skipIfNoFFprobe(t)

	ctx := context.Background()
	detector := NewBinaryDetector().WithCacheTTL(1 * time.Hour)

	info1, err := detector.Detect(ctx)
	require.NoError(t, err)

	info2, err := detector.Detect(ctx)
	require.NoError(t, err)

	assert.Equal(t, info1.FFmpegPath, info2.FFmpegPath)
	assert.Equal(t, info1.Version, info2.Version)
}

func TestBinaryDetector_Clear(t *testing.T) {
	skipIfNoFFmpeg(t)
	skipIfNoFFprobe(t)

	ctx := context.Background()
	detector := NewBinaryDetector()

	_, err := detector.Detect(ctx)
	require.NoError(t, err)

	detector.Clear()
	assert.Nil(t, detector.info)
}

func TestBinaryInfo_HasEncoder(t *testing.T) {
	info := &BinaryInfo{
		Encoders: []string{"libx264", "libx265", "aac", "libmp3lame"},
	}

	assert.True(t, info.HasEncoder("libx264"))
	assert.True(t, info.HasEncoder("aac"))
	assert.False(t, info.HasEncoder("h264_nvenc"))
}

func TestBinaryInfo_HasDecoder(t *testing.T) {
	info := &BinaryInfo{
		Decoders: []string{"h264", "hevc", "aac", "mp3"},
	}

	assert.True(t, info.HasDecoder("h264"))
	assert.True(t, info.HasDecoder("aac"))
	assert.False(t, info.HasDecoder("vp9"))
}

func TestBinaryInfo_HasFormat(t *testing.T) {
	info := &BinaryInfo{
		Formats: []FormatInfo{
			{Name: "mpegts", CanMux: true, CanDemux: true},
			{Name: "hls", CanMux: true, CanDemux: true},
			{Name: "rawvideo", CanMux: false, CanDemux: true},
		},
	}

	assert.True(t, info.HasFormat("mpegts"))
	assert.True(t, info.HasFormat("hls"))
	assert.False(t, info.HasFormat("rawvideo")) // Can't mux
	assert.False(t, info.HasFormat("nonexistent"))
}

func TestBinaryInfo_SupportsMinVersion(t *testing.T) {
	info := &BinaryInfo{
		MajorVersion: 6,
		MinorVersion: 1,
	}

	assert.True(t, info.SupportsMinVersion(5, 0))
	assert.True(t, info.SupportsMinVersion(6, 0))
	assert.True(t, info.SupportsMinVersion(6, 1))
	assert.False(t, info.SupportsMinVersion(6, 2))
	assert.False(t, info.SupportsMinVersion(7, 0))
}

func TestBinaryInfo_JSON(t *testing.T) {
	info := &BinaryInfo{
		FFmpegPath:   "/usr/bin/ffmpeg",
		FFprobePath:  "/usr/bin/ffprobe",
		Version:      "6.0",
		MajorVersion: 6,
		MinorVersion: 0,
	}

	jsonStr := info.JSON()
	assert.Contains(t, jsonStr, "ffmpeg_path")
	assert.Contains(t, jsonStr, "/usr/bin/ffmpeg")
}

func TestCommandBuilder_Build(t *testing.T) {
	cmd := NewCommandBuilder("/usr/bin/ffmpeg").
		Overwrite().
		InputArgs("-i", "audio.m4s").
		Input("video.m4s").
		AudioCodec("copy").
		OutputArgs("-map", "1:v:0", "-map", "0:a:0", "-c", "copy").
		Output("output.mp4").
		Build()

	assert.Equal(t, "/usr/bin/ffmpeg", cmd.Binary)
	assert.Contains(t, cmd.Args, "-y")
	assert.Contains(t, cmd.Args, "-i")
	assert.Contains(t, cmd.Args, "audio.m4s")
	assert.Contains(t, cmd.Args, "video.m4s")
	assert.Contains(t, cmd.Args, "-c:a")
	assert.Contains(t, cmd.Args, "copy")
	assert.Equal(t, "output.mp4", cmd.Args[len(cmd.Args)-1])
}

func TestCommandBuilder_String(t *testing.T) {
	cmd := NewCommandBuilder("/usr/bin/ffmpeg").
		Input("input.mp4").
		AudioCodec("copy").
		Output("output.mp4").
		Build()

	str := cmd.String()
	assert.Contains(t, str, "/usr/bin/ffmpeg")
	assert.Contains(t, str, "input.mp4")
	assert.Contains(t, str, "output.mp4")
}

func TestParseFramerate(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"30/1", 30.0},
		{"25/1", 25.0},
		{"30000/1001", 29.97002997002997},
		{"24000/1001", 23.976023976023978},
		{"60", 60.0},
		{"invalid", 0},
		{"0/0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseFramerate(tt.input)
			if tt.expected == 0 {
				assert.Equal(t, float64(0), result)
			} else {
				assert.InDelta(t, tt.expected, result, 0.001)
			}
		})
	}
}

func TestProbeResult_GetVideoStream(t *testing.T) {
	result := &ProbeResult{
		Streams: []ProbeStream{
			{Index: 0, CodecType: "audio", CodecName: "aac"},
			{Index: 1, CodecType: "video", CodecName: "h264"},
			{Index: 2, CodecType: "subtitle", CodecName: "srt"},
		},
	}

	video := result.GetVideoStream()
	require.NotNil(t, video)
	assert.Equal(t, "h264", video.CodecName)
	assert.Equal(t, 1, video.Index)
}

func TestProbeResult_GetAudioStream(t *testing.T) {
	result := &ProbeResult{
		Streams: []ProbeStream{
			{Index: 0, CodecType: "video", CodecName: "h264"},
			{Index: 1, CodecType: "audio", CodecName: "aac"},
			{Index: 2, CodecType: "audio", CodecName: "mp3"},
		},
	}

	audio := result.GetAudioStream()
	require.NotNil(t, audio)
	assert.Equal(t, "aac", audio.CodecName)
	assert.Equal(t, 1, audio.Index)
}

func TestProbeResult_GetStreamsByType(t *testing.T) {
	result := &ProbeResult{
		Streams: []ProbeStream{
			{Index: 0, CodecType: "video", CodecName: "h264"},
			{Index: 1, CodecType: "audio", CodecName: "aac"},
			{Index: 2, CodecType: "audio", CodecName: "mp3"},
			{Index: 3, CodecType: "subtitle", CodecName: "srt"},
		},
	}

	audioStreams := result.GetStreamsByType("audio")
	assert.Len(t, audioStreams, 2)

	videoStreams := result.GetStreamsByType("video")
	assert.Len(t, videoStreams, 1)

	dataStreams := result.GetStreamsByType("data")
	assert.Len(t, dataStreams, 0)
}

func TestProbeResult_Duration(t *testing.T) {
	result := &ProbeResult{
		Format: ProbeFormat{
			Duration: "123.456",
		},
	}

	assert.Equal(t, int64(123456), result.Duration())

	emptyResult := &ProbeResult{}
	assert.Equal(t, int64(0), emptyResult.Duration())
}

func TestProbeResult_Bitrate(t *testing.T) {
	result := &ProbeResult{
		Format: ProbeFormat{
			BitRate: "5000000",
		},
	}

	assert.Equal(t, 5000000, result.Bitrate())

	emptyResult := &ProbeResult{}
	assert.Equal(t, 0, emptyResult.Bitrate())
}

func TestProbeStream_Framerate(t *testing.T) {
	stream := &ProbeStream{
		AvgFrameRate: "30000/1001",
		RFrameRate:   "30/1",
	}

	fr := stream.Framerate()
	assert.InDelta(t, 29.97, fr, 0.01)

	streamWithoutAvg := &ProbeStream{
		RFrameRate: "25/1",
	}
	assert.InDelta(t, 25.0, streamWithoutAvg.Framerate(), 0.01)
}

// Integration tests that require FFmpeg/ffprobe to be installed.

func TestIntegration_BinaryDetector_GetCodecs(t *testing.T) {
	ffmpegPath := skipIfNoFFmpeg(t)

	ctx := context.Background()
	detector := NewBinaryDetector()

	codecs, err := detector.getCodecs(ctx, ffmpegPath)
	require.NoError(t, err)
	require.NotEmpty(t, codecs)

	var hasH264, hasAAC bool
	for _, codec := range codecs {
		if codec.Name == "h264" {
			hasH264 = true
			assert.Equal(t, "video", codec.Type)
			assert.True(t, codec.CanDecode)
		}
		if codec.Name == "aac" {
			hasAAC = true
			assert.Equal(t, "audio", codec.Type)
		}
	}

	assert.True(t, hasH264, "h264 codec not found")
	assert.True(t, hasAAC, "aac codec not found")
}

func TestIntegration_BinaryDetector_GetFormats(t *testing.T) {
	ffmpegPath := skipIfNoFFmpeg(t)

	ctx := context.Background()
	detector := NewBinaryDetector()

	formats, err := detector.getFormats(ctx, ffmpegPath)
	require.NoError(t, err)
	require.NotEmpty(t, formats)

	var hasMpegts, hasHLS bool
	for _, fmt := range formats {
		if strings.HasPrefix(fmt.Name, "mpegts") {
			hasMpegts = true
			assert.True(t, fmt.CanMux || fmt.CanDemux)
		}
		if fmt.Name == "hls" {
			hasHLS = true
		}
	}

	assert.True(t, hasMpegts, "mpegts format not found")
	assert.True(t, hasHLS, "hls format not found")
}

func TestIntegration_Prober_ProbeSimple(t *testing.T) {
	ffprobePath := skipIfNoFFprobe(t)
	ffmpegPath := skipIfNoFFmpeg(t)

	ctx := context.Background()
	testFile := "/tmp/vidsyncd_test_probe_simple.mp4"

	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-y",
		"-f", "lavfi", "-i", "testsrc=duration=1:size=1920x1080:rate=25",
		"-f", "lavfi", "-i", "sine=duration=1:frequency=440:sample_rate=44100",
		"-c:v", "libx264", "-preset", "ultrafast",
		"-c:a", "aac",
		testFile)

	if err := cmd.Run(); err != nil {
		t.Skipf("Could not create test video: %v", err)
	}
	defer exec.Command("rm", "-f", testFile).Run()

	prober := NewProber(ffprobePath)
	info, err := prober.ProbeSimple(ctx, testFile)
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.Equal(t, "h264", info.VideoCodec)
	assert.Equal(t, 1920, info.VideoWidth)
	assert.Equal(t, 1080, info.VideoHeight)
	assert.InDelta(t, 25.0, info.VideoFramerate, 0.1)
	assert.Equal(t, "aac", info.AudioCodec)
	assert.Contains(t, info.ContainerFormat, "mp4")
	assert.Greater(t, info.Duration, int64(0))
	assert.False(t, info.IsLiveStream)
}
