package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdPosts    = "posts"
	cmdCreators = "creators"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 {
		return
	}

	action := parts[0]
	pageStr := parts[1]
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		return
	}

	b.log.Info("callback",
		"action", action,
		"page", page,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdPosts:
		b.handlePosts(ctx, chatID, pageStr)
	case cmdCreators:
		b.handleCreators(ctx, chatID, pageStr)
	}
}

func pageData(action string, page int) string {
	return action + ":" + strconv.Itoa(page)
}
