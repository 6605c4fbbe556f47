// Package bot is the chat front end: it turns links into format choices and
// format choices into queued download tasks.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/yourusername/vidgrab/internal/domain"
	"github.com/yourusername/vidgrab/internal/infrastructure"
	"github.com/yourusername/vidgrab/internal/messages"
	"github.com/yourusername/vidgrab/pkg/logger"
	"go.uber.org/zap"
)

// Submitter queues download tasks
type Submitter interface {
	Submit(locatorKey string, target domain.NotificationTarget) (domain.Task, error)
}

// Acknowledger posts chat updates without waiting for delivery
type Acknowledger interface {
	SendQueuedAck(target domain.NotificationTarget)
	EditCaption(target domain.NotificationTarget, text string)
}

// Config holds front-end settings
type Config struct {
	AllowedServices []string
	ServiceAliases  []string
	LocatorTTL      time.Duration
}

// Handler processes Telegram updates
type Handler struct {
	api       infrastructure.BotAPI
	extractor domain.Extractor
	cache     domain.Cache
	acks      Acknowledger
	submitter Submitter
	catalog   *messages.Catalog
	config    Config
	logger    *zap.Logger
}

// NewHandler creates a new update handler
func NewHandler(
	api infrastructure.BotAPI,
	extractor domain.Extractor,
	cache domain.Cache,
	acks Acknowledger,
	submitter Submitter,
	catalog *messages.Catalog,
	config Config,
	log *zap.Logger,
) *Handler {
	return &Handler{
		api:       api,
		extractor: extractor,
		cache:     cache,
		acks:      acks,
		submitter: submitter,
		catalog:   catalog,
		config:    config,
		logger:    logger.OrNop(log),
	}
}

// Run handles updates until ctx is done or the channel closes. Each update
// runs on its own goroutine; Run waits for them before returning.
func (h *Handler) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate dispatches a single update. Panics are logged, not propagated.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Update handler panicked",
				zap.Int("update_id", update.UpdateID),
				zap.String("panic", fmt.Sprint(r)),
				zap.Stack("stack"))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		switch update.Message.Command() {
		case "start", "help":
			h.handleStart(update.Message)
		default:
			h.reply(update.Message, h.usage())
		}
	case update.Message != nil && update.Message.Text != "":
		h.handleLink(ctx, update.Message)
	}
}

func (h *Handler) handleStart(msg *tgbotapi.Message) {
	name := ""
	if msg.From != nil {
		name = msg.From.FirstName
	}
	h.reply(msg, h.catalog.Format(messages.KeyGreeting, map[string]interface{}{
		"Name":     name,
		"Services": h.servicesString(),
	}))
}

func (h *Handler) handleLink(ctx context.Context, msg *tgbotapi.Message) {
	url := strings.TrimSpace(msg.Text)
	service, ok := domain.ParseLink(url)
	if !ok {
		h.reply(msg, h.usage())
		return
	}
	if !h.allowed(service) {
		h.reply(msg, h.catalog.Text(messages.KeyNotSupported))
		return
	}

	searching, err := h.api.Send(h.replyConfig(msg, h.catalog.Text(messages.KeySearching)))
	if err != nil {
		h.logger.Warn("Failed to send searching message", zap.Error(err))
	}

	info, err := h.extractor.ExtractInfo(ctx, url, service)
	h.deleteMessage(msg.Chat.ID, searching.MessageID)
	if err != nil {
		h.logger.Error("Error when parsing video data", zap.String("url", url), zap.Error(err))
		text := h.catalog.Text(messages.KeyNotFound)
		if strings.Contains(err.Error(), domain.ServiceVK) {
			text = h.catalog.Format(messages.KeyNotFoundReason, map[string]interface{}{"Reason": err.Error()})
		}
		h.reply(msg, text)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, f := range domain.SelectFormats(info.Formats, service) {
		key := uuid.NewString()
		if err := h.cache.Set(ctx, key, []byte(f.URL), h.config.LocatorTTL); err != nil {
			h.logger.Error("Failed to cache locator", zap.String("format", f.FormatID), zap.Error(err))
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(f.Label(), key)))
	}

	photo := tgbotapi.NewPhoto(msg.Chat.ID, tgbotapi.FileURL(info.Thumbnail))
	photo.ReplyToMessageID = msg.MessageID
	photo.Caption = previewCaption(info)
	photo.ParseMode = tgbotapi.ModeMarkdown
	if len(rows) > 0 {
		photo.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	if _, err := h.api.Send(photo); err != nil {
		h.logger.Error("Failed to send preview", zap.String("url", url), zap.Error(err))
		h.reply(msg, h.catalog.Text(messages.KeyNotFound))
	}
}

func (h *Handler) handleCallback(query *tgbotapi.CallbackQuery) {
	if _, err := h.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		h.logger.Debug("Failed to answer callback", zap.Error(err))
	}
	if query.Message == nil || query.Message.Chat == nil {
		return
	}

	target := domain.NotificationTarget{
		ChatID:    query.Message.Chat.ID,
		MessageID: query.Message.MessageID,
	}

	// the ack is posted first so it always lands before any progress update
	h.acks.SendQueuedAck(target)
	if _, err := h.submitter.Submit(query.Data, target); err != nil {
		h.logger.Error("Failed to submit task", zap.Stringer("target", target), zap.Error(err))
		h.acks.EditCaption(target, h.catalog.Text(messages.KeyQueueUnavailable))
	}
}

func (h *Handler) reply(msg *tgbotapi.Message, text string) {
	if _, err := h.api.Send(h.replyConfig(msg, text)); err != nil {
		h.logger.Warn("Failed to reply", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

func (h *Handler) replyConfig(msg *tgbotapi.Message, text string) tgbotapi.MessageConfig {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	return reply
}

func (h *Handler) deleteMessage(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := h.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		h.logger.Debug("Failed to delete message", zap.Error(err))
	}
}

func (h *Handler) usage() string {
	return h.catalog.Format(messages.KeyUsage, map[string]interface{}{"Services": h.servicesString()})
}

func (h *Handler) allowed(service string) bool {
	for _, s := range h.config.AllowedServices {
		if s == service {
			return true
		}
	}
	for _, s := range h.config.ServiceAliases {
		if s == service {
			return true
		}
	}
	return false
}

// servicesString renders "Vk, Youtube, Dzen"
func (h *Handler) servicesString() string {
	names := make([]string, 0, len(h.config.AllowedServices))
	for _, s := range h.config.AllowedServices {
		if s == "" {
			continue
		}
		names = append(names, strings.ToUpper(s[:1])+s[1:])
	}
	return strings.Join(names, ", ")
}

// previewCaption renders "[uploader -- title](url) (H:MM:SS)" in legacy Markdown
func previewCaption(info *domain.VideoInfo) string {
	return fmt.Sprintf("[%s -- %s](%s) (%s)",
		tgbotapi.EscapeText(tgbotapi.ModeMarkdown, info.Uploader),
		tgbotapi.EscapeText(tgbotapi.ModeMarkdown, info.Title),
		info.OriginalURL,
		domain.FormatDuration(info.Duration))
}
