package ffmpeg

import (
	"context"
	"os/exec"
	"strings"
)

// Command is an ffmpeg invocation ready to run.
type Command struct {
	Binary string
	Args   []string
}

// CommandBuilder builds ffmpeg commands with a fluent API. Only the subset
// of flags internal/assets.FetchPayload needs is exposed: vidsyncd never
// transcodes or streams, it stream-copies DASH video/audio tracks into one
// container, so the transcode/HLS/hwaccel surface the teacher's wrapper
// carried has no call site here.
type CommandBuilder struct {
	binary     string
	inputArgs  []string
	input      string
	outputArgs []string
	output     string
	logLevel   string
	overwrite  bool
}

// NewCommandBuilder creates a new ffmpeg command builder.
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{binary: ffmpegPath, logLevel: "error"}
}

// Overwrite adds -y so a retried remux doesn't fail on a leftover scratch file.
func (b *CommandBuilder) Overwrite() *CommandBuilder {
	b.overwrite = true
	return b
}

// Input sets the primary input (-i).
func (b *CommandBuilder) Input(input string) *CommandBuilder {
	b.input = input
	return b
}

// InputArgs appends raw input-side arguments ahead of the primary input,
// used to smuggle a second -i in for audio+video muxing.
func (b *CommandBuilder) InputArgs(args ...string) *CommandBuilder {
	b.inputArgs = append(b.inputArgs, args...)
	return b
}

// AudioCodec sets -c:a.
func (b *CommandBuilder) AudioCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:a", codec)
	return b
}

// OutputArgs appends raw output-side arguments (stream mapping, codecs).
func (b *CommandBuilder) OutputArgs(args ...string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, args...)
	return b
}

// Output sets the output destination.
func (b *CommandBuilder) Output(output string) *CommandBuilder {
	b.output = output
	return b
}

// Build assembles the final argument list.
func (b *CommandBuilder) Build() *Command {
	var args []string
	args = append(args, "-loglevel", b.logLevel)
	if b.overwrite {
		args = append(args, "-y")
	}
	args = append(args, b.inputArgs...)
	args = append(args, "-i", b.input)
	args = append(args, b.outputArgs...)
	args = append(args, b.output)
	return &Command{Binary: b.binary, Args: args}
}

// String renders the command as a shell-like line, for logging.
func (c *Command) String() string {
	return c.Binary + " " + strings.Join(c.Args, " ")
}

// Run executes the command and waits for it to complete.
func (c *Command) Run(ctx context.Context) error {
	return exec.CommandContext(ctx, c.Binary, c.Args...).Run()
}
