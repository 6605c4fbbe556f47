// Package messages holds the user-facing texts of the bot.
//
// Russian is the primary language; English is the fallback for any
// language the catalog does not know.
package messages

import (
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Message IDs
const (
	KeyGreeting         = "greeting"
	KeyUsage            = "usage"
	KeyNotSupported     = "not_supported"
	KeySearching        = "searching"
	KeyNotFound         = "not_found"
	KeyNotFoundReason   = "not_found_reason"
	KeyQueued           = "queued"
	KeyProgress         = "progress"
	KeyCompleted        = "completed"
	KeyDownloadFailed   = "download_failed"
	KeyDownloadExpired  = "download_expired"
	KeyQueueUnavailable = "queue_unavailable"
)

var russian = []*i18n.Message{
	{ID: KeyGreeting, Other: "Привет {{.Name}}👋!\nЯ помогу тебе скачать видео с {{.Services}}!\nПросто вышли мне ссылку на видео и я помогу тебе его скачать"},
	{ID: KeyUsage, Other: "Отправь мне ссылку на видео из этих сервисов: {{.Services}}\n\nИли напиши /help чтобы получить помощь!"},
	{ID: KeyNotSupported, Other: "Этот сервис не поддерживается"},
	{ID: KeySearching, Other: "🔎 Ищу видео..."},
	{ID: KeyNotFound, Other: "😓Не удалось найти это видео"},
	{ID: KeyNotFoundReason, Other: "😓Не удалось найти это видео\nПричина:{{.Reason}}"},
	{ID: KeyQueued, Other: "Загрузка в очереди"},
	{ID: KeyProgress, Other: "Идет загрузка ({{.Percent}}) -- Осталось примерно {{.ETA}}"},
	{ID: KeyCompleted, Other: "Загрузка завершена"},
	{ID: KeyDownloadFailed, Other: "Произошла ошибка во время загрузки видео.\nПопробуйте позже"},
	{ID: KeyDownloadExpired, Other: "Ссылка на видео устарела.\nОтправьте ссылку еще раз"},
	{ID: KeyQueueUnavailable, Other: "Очередь загрузок недоступна.\nПопробуйте позже"},
}

var english = []*i18n.Message{
	{ID: KeyGreeting, Other: "Hi {{.Name}}👋!\nI can download videos from {{.Services}}!\nJust send me a link to a video"},
	{ID: KeyUsage, Other: "Send me a link to a video from one of these services: {{.Services}}\n\nOr type /help to get help!"},
	{ID: KeyNotSupported, Other: "Not supported"},
	{ID: KeySearching, Other: "🔎 Looking for the video..."},
	{ID: KeyNotFound, Other: "😓Could not find this video"},
	{ID: KeyNotFoundReason, Other: "😓Could not find this video\nReason:{{.Reason}}"},
	{ID: KeyQueued, Other: "Download queued"},
	{ID: KeyProgress, Other: "Downloading ({{.Percent}}) -- about {{.ETA}} left"},
	{ID: KeyCompleted, Other: "Download complete"},
	{ID: KeyDownloadFailed, Other: "Something went wrong while downloading the video.\nPlease try again later"},
	{ID: KeyDownloadExpired, Other: "The video link has expired.\nPlease send the link again"},
	{ID: KeyQueueUnavailable, Other: "The download queue is unavailable.\nPlease try again later"},
}

// Catalog resolves message IDs to localized text
type Catalog struct {
	localizer *i18n.Localizer
}

// NewCatalog creates a catalog for the given language ("ru", "en", ...)
func NewCatalog(lang string) *Catalog {
	bundle := i18n.NewBundle(language.English)
	// AddMessages only fails on an undefined language tag
	_ = bundle.AddMessages(language.English, english...)
	_ = bundle.AddMessages(language.Russian, russian...)

	return &Catalog{localizer: i18n.NewLocalizer(bundle, lang)}
}

// Text returns the message for id. Unknown IDs render as the ID itself.
func (c *Catalog) Text(id string) string {
	return c.Format(id, nil)
}

// Format returns the message for id rendered with data
func (c *Catalog) Format(id string, data map[string]interface{}) string {
	text, err := c.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		return id
	}
	return text
}
