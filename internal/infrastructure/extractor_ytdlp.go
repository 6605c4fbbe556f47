package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/yourusername/vidgrab/internal/domain"
	"go.uber.org/zap"
)

// muxedFormat restricts extraction to formats carrying both audio and video
const muxedFormat = "[vcodec!=none][acodec!=none]"

// commandRunner runs a binary and returns its stdout
type commandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// YTDLPExtractor implements domain.Extractor with `yt-dlp -J`.
// Results are cached under "info:<url>".
type YTDLPExtractor struct {
	binary string
	cache  domain.Cache
	ttl    time.Duration
	logger *zap.Logger
	run    commandRunner
}

// NewYTDLPExtractor creates a new extractor
func NewYTDLPExtractor(binary string, cache domain.Cache, ttl time.Duration, logger *zap.Logger) *YTDLPExtractor {
	return &YTDLPExtractor{
		binary: binary,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
		run:    runCommand,
	}
}

func infoCacheKey(url string) string {
	return "info:" + url
}

// ExtractInfo resolves url into its metadata and downloadable formats
func (e *YTDLPExtractor) ExtractInfo(ctx context.Context, url, service string) (*domain.VideoInfo, error) {
	if cached, err := e.cache.Get(ctx, infoCacheKey(url)); err != nil {
		e.logger.Warn("Info cache unavailable", zap.String("url", url), zap.Error(err))
	} else if cached != nil {
		var info domain.VideoInfo
		if err := json.Unmarshal(cached, &info); err == nil {
			return &info, nil
		}
	}

	args := []string{"-J", "--no-playlist", "--no-warnings"}
	if service == "" {
		args = append(args, "-f", muxedFormat)
	}
	args = append(args, url)

	e.logger.Debug("Extracting info", zap.String("cmd", ShellEscapeCommand(e.binary, args...)))

	out, err := e.run(ctx, e.binary, args...)
	if err != nil {
		return nil, err
	}

	var info domain.VideoInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}
	info.Formats = domain.FilterProtocols(info.Formats)
	if info.OriginalURL == "" {
		info.OriginalURL = url
	}

	if data, err := json.Marshal(&info); err == nil {
		if err := e.cache.Set(ctx, infoCacheKey(url), data, e.ttl); err != nil {
			e.logger.Warn("Failed to cache info", zap.String("url", url), zap.Error(err))
		}
	}
	return &info, nil
}

func runCommand(ctx context.Context, binary string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("yt-dlp failed: %w", err)
		}
		return nil, fmt.Errorf("yt-dlp failed: %s", msg)
	}
	return stdout.Bytes(), nil
}
