package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rss_notify/internal/config"
	"rss_notify/internal/feedcache"
	"rss_notify/internal/query"
	"rss_notify/internal/scheduler"
	"rss_notify/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// DispatcherStatus exposes the refresh loop state shown by /status.
type DispatcherStatus interface {
	State() scheduler.State
	LastReport() scheduler.Report
	Skipped() int64
}

// SeenCounter reports how many items have been announced so far.
type SeenCounter interface {
	Len() int
}

// Bot is the Telegram front end: it answers browse and search commands and
// delivers notifications produced by the dispatcher.
type Bot struct {
	api       telegramAPI
	directory storage.Directory
	cache     *feedcache.Cache
	query     *query.Engine
	cfg       *config.Config
	log       *slog.Logger

	status DispatcherStatus
	seen   SeenCounter
}

// New connects to the Telegram API, retrying transient failures until ctx
// is cancelled. An unauthorized token fails immediately.
func New(ctx context.Context, token string, directory storage.Directory, cache *feedcache.Cache, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 2 * time.Minute

	var api *tgbotapi.BotAPI
	err := backoff.RetryNotify(func() error {
		var err error
		api, err = tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: 90 * time.Second})
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		log.Warn("connect to telegram", "retry_in", wait, "error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info("authorized on telegram", "username", api.Self.UserName)
	return newBot(api, directory, cache, cfg, log), nil
}

func newBot(api telegramAPI, directory storage.Directory, cache *feedcache.Cache, cfg *config.Config, log *slog.Logger) *Bot {
	return &Bot{
		api:       api,
		directory: directory,
		cache:     cache,
		query:     query.New(cache),
		cfg:       cfg,
		log:       log,
	}
}

// SetStatus attaches the dispatcher and seen-set views used by /status.
func (b *Bot) SetStatus(status DispatcherStatus, seen SeenCounter) {
	b.status = status
	b.seen = seen
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		if update.CallbackQuery.Message == nil {
			return
		}
		if !b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
			return
		}
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !b.cfg.IsUserAllowed(msg.From.ID) {
		b.reply(msg.Chat.ID, "Access denied.")
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	if text := strings.TrimSpace(msg.Text); text != "" {
		b.handleText(ctx, msg.Chat.ID, text)
	}
}

// Deliver sends a notification to chatID. It returns when the message is
// accepted by Telegram or when ctx is done, whichever happens first.
func (b *Bot) Deliver(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)

	done := make(chan error, 1)
	go func() {
		_, err := b.api.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send message: %w", ctx.Err())
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

// replyPage sends text with a "Next" button carrying nextData, if any.
func (b *Bot) replyPage(chatID int64, text, nextData string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if nextData != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Next »", nextData),
			),
		)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send page", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(ctx, chatID, msg.From)
	case "help":
		b.handleHelp(chatID)
	case cmdPosts:
		b.handlePosts(ctx, chatID, args)
	case cmdCreators:
		b.handleCreators(ctx, chatID, args)
	case "search":
		b.handleSearch(ctx, chatID, args, searchPosts)
	case "creator":
		b.handleSearch(ctx, chatID, args, searchCreators)
	case "tag":
		b.handleSearch(ctx, chatID, args, searchTags)
	case "status":
		b.handleStatus(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
