package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/yourusername/vidgrab/internal/domain"
	"github.com/yourusername/vidgrab/internal/messages"
	"go.uber.org/zap"
)

// BotAPI is the subset of *tgbotapi.BotAPI used by the notifier and the bot
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// NewBotAPI connects to the Bot API server configured in config
func NewBotAPI(config *domain.BotConfig) (*tgbotapi.BotAPI, error) {
	client := &http.Client{Timeout: config.RequestTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(config.Token, config.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bot api: %w", err)
	}
	return bot, nil
}

// MediaPaths says how the Bot API server reaches finished artifacts
type MediaPaths struct {
	// LocalMode references files by file:// URL instead of uploading them
	LocalMode bool
	// LocalFilesDir is ArtifactsDir as mounted inside the Bot API server.
	// Empty means both processes see the same path.
	LocalFilesDir string
	ArtifactsDir  string
}

// TelegramNotifier implements domain.Notifier with the Telegram Bot API.
// Calls block until Telegram answers or ctx is done.
type TelegramNotifier struct {
	api     BotAPI
	catalog *messages.Catalog
	media   MediaPaths
	logger  *zap.Logger
}

// NewTelegramNotifier creates a new notifier
func NewTelegramNotifier(api BotAPI, catalog *messages.Catalog, media MediaPaths, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		api:     api,
		catalog: catalog,
		media:   media,
		logger:  logger,
	}
}

// EditCaption replaces the caption of the target message
func (n *TelegramNotifier) EditCaption(ctx context.Context, target domain.NotificationTarget, text string) error {
	edit := tgbotapi.NewEditMessageCaption(target.ChatID, target.MessageID, text)
	return withContext(ctx, func() error {
		_, err := n.api.Request(edit)
		if isNotModified(err) {
			return nil
		}
		return err
	})
}

// SendMedia sends the artifact at path as a video replying to the target message
func (n *TelegramNotifier) SendMedia(ctx context.Context, target domain.NotificationTarget, path, caption string) error {
	file, err := n.mediaFile(path)
	if err != nil {
		return err
	}

	video := tgbotapi.NewVideo(target.ChatID, file)
	video.ReplyToMessageID = target.MessageID
	video.Caption = caption
	video.SupportsStreaming = true

	return withContext(ctx, func() error {
		_, err := n.api.Send(video)
		return err
	})
}

// SendQueuedAck edits the target caption to the queued text
func (n *TelegramNotifier) SendQueuedAck(ctx context.Context, target domain.NotificationTarget) error {
	return n.EditCaption(ctx, target, n.catalog.Text(messages.KeyQueued))
}

func (n *TelegramNotifier) mediaFile(artifact string) (tgbotapi.RequestFileData, error) {
	abs, err := filepath.Abs(artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", artifact, err)
	}
	if !n.media.LocalMode {
		return tgbotapi.FilePath(abs), nil
	}
	if n.media.LocalFilesDir == "" {
		return tgbotapi.FileURL("file://" + filepath.ToSlash(abs)), nil
	}

	root, err := filepath.Abs(n.media.ArtifactsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", n.media.ArtifactsDir, err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("artifact %s is outside %s", abs, root)
	}
	return tgbotapi.FileURL("file://" + path.Join(filepath.ToSlash(n.media.LocalFilesDir), filepath.ToSlash(rel))), nil
}

// isNotModified reports Telegram's rejection of an edit that changes nothing
func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

// withContext runs fn and stops waiting for it once ctx is done.
// fn keeps running until the HTTP client timeout ends it.
func withContext(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
