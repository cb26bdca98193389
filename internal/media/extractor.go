package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ErrNoOutput is returned when the utility exited without producing audio.
var ErrNoOutput = errors.New("audio extraction produced no output")

// AudioFormat is the container the utility converts to.
const AudioFormat = "mp3"

// Extractor turns a video page URL into a local audio file.
type Extractor struct {
	tools    *Toolchain
	runner   Runner
	progress io.Writer
	logger   *zap.Logger
}

// NewExtractor builds an Extractor. Progress bars are written to progress
// (nil disables them).
func NewExtractor(tools *Toolchain, runner Runner, progress io.Writer, logger *zap.Logger) *Extractor {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		tools:    tools,
		runner:   runner,
		progress: progress,
		logger:   logger.Named("media"),
	}
}

// Extract downloads the best audio of url into outPath (an .mp3 path) and
// returns outPath. Success is judged only by a non-empty file existing at
// outPath once the utility exits; its exit status is logged and otherwise
// ignored, because it can exit non-zero after writing valid output.
func (e *Extractor) Extract(ctx context.Context, url, outPath string) (string, error) {
	command, err := e.tools.EnsureExtractor(ctx)
	if err != nil {
		return "", err
	}
	runtimePath, err := e.tools.EnsureRuntime(ctx)
	if err != nil {
		e.logger.Warn("continuing without javascript runtime", zap.Error(err))
	}

	args := append(append([]string{}, command[1:]...), BuildArgs(url, outPath, runtimePath)...)
	e.logger.Info("extracting audio", zap.String("url", url), zap.String("path", filepath.Base(outPath)))

	proc, err := e.runner.Start(ctx, command[0], args...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrToolUnavailable, err)
	}
	_, _ = Track(proc.Lines(), e.progress)
	if waitErr := proc.Wait(); waitErr != nil {
		e.logger.Debug("extractor exited with error", zap.Error(waitErr))
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoOutput, outPath)
	}
	return outPath, nil
}

// BuildArgs returns the utility arguments for extracting url into outPath.
func BuildArgs(url, outPath, runtimePath string) []string {
	args := []string{
		"--extract-audio",
		"--audio-format", AudioFormat,
		"--audio-quality", "0",
		"--output", outPath,
		"--no-playlist",
		"--no-warnings",
		"--newline",
	}
	if runtimePath != "" {
		args = append(args, "--js-runtimes", "nodejs:"+runtimePath)
	}
	return append(args, url)
}
