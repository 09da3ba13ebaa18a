package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rss_notify/internal/feedcache"
	"rss_notify/internal/model"
	"rss_notify/internal/query"
)

type searchKind string

const (
	searchPosts    searchKind = "search"
	searchCreators searchKind = "creator"
	searchTags     searchKind = "tag"
)

func (b *Bot) handleStart(ctx context.Context, chatID int64, from *tgbotapi.User) {
	sub := model.Subscriber{
		ChatID:      chatID,
		DisplayName: displayName(from),
		CreatedAt:   time.Now().UTC(),
	}
	created, err := b.directory.AddSubscriber(ctx, sub)
	if err != nil {
		b.log.Error("add subscriber", "chat_id", chatID, "error", err)
		b.reply(chatID, "Could not register this chat right now. Please try /start again later.")
		return
	}
	if created {
		b.log.Info("new subscriber", "chat_id", chatID, "name", sub.DisplayName)
	}

	greeting := "Welcome to RSS Notify Bot!"
	if !created {
		greeting = "Welcome back! This chat is already subscribed."
	}
	b.reply(chatID, greeting+`

You will get a message whenever a new post shows up in the tracked feeds.

Quick start:
1. /posts — browse the latest posts
2. /search <keyword> — find posts by title
3. Or just send any text to search titles

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Browsing:
/posts [page] — list cached posts
/creators [page] — list creators

Search:
/search [-p page] <keyword> — posts whose title contains keyword
/creator [-p page] <keyword> — creators whose name contains keyword
/tag [-p page] <tag> — posts with a matching tag
Any plain text message searches post titles.

Other:
/start — subscribe this chat to new post notifications
/status — cache and notification status

Matching ignores case.`)
}

func (b *Bot) handlePosts(ctx context.Context, chatID int64, args string) {
	page, err := ParsePageArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /posts [page]")
		return
	}

	snap := b.cache.Bootstrap(ctx)
	size := b.cfg.PageSize
	offset := (page - 1) * size
	items := feedcache.Paginate(snap.Items, offset, size)
	if len(items) == 0 {
		if page == 1 {
			b.reply(chatID, "No posts yet. Feeds may still be loading, try again in a moment.")
		} else {
			b.reply(chatID, "No more posts.")
		}
		return
	}

	var next string
	if offset+len(items) < len(snap.Items) {
		next = pageData(cmdPosts, page+1)
	}
	b.replyPage(chatID, FormatPosts(fmt.Sprintf("Posts, page %d:", page), items, offset), next)
}

func (b *Bot) handleCreators(ctx context.Context, chatID int64, args string) {
	page, err := ParsePageArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /creators [page]")
		return
	}

	snap := b.cache.Bootstrap(ctx)
	size := b.cfg.PageSize
	offset := (page - 1) * size
	creators := feedcache.Paginate(snap.Creators, offset, size)
	if len(creators) == 0 {
		if page == 1 {
			b.reply(chatID, "No creators found yet.")
		} else {
			b.reply(chatID, "No more creators.")
		}
		return
	}

	var next string
	if offset+len(creators) < len(snap.Creators) {
		next = pageData(cmdCreators, page+1)
	}
	b.replyPage(chatID, FormatCreators(fmt.Sprintf("Creators, page %d:", page), creators, offset), next)
}

func (b *Bot) handleSearch(ctx context.Context, chatID int64, args string, kind searchKind) {
	usage := fmt.Sprintf("Usage: /%s [-p page] <%s>", kind, kind.argName())

	parsed, err := ParseSearchArgs(args)
	if err != nil {
		b.reply(chatID, usage)
		return
	}

	b.cache.Bootstrap(ctx)
	size := b.cfg.PageSize
	offset := (parsed.Page - 1) * size

	var text string
	switch kind {
	case searchCreators:
		var creators []model.Creator
		creators, err = b.query.SearchCreators(parsed.Keyword, offset, size)
		if len(creators) > 0 {
			text = FormatCreators(fmt.Sprintf("Creators matching %q, page %d:", parsed.Keyword, parsed.Page), creators, offset)
		}
	case searchTags:
		var items []model.Item
		items, err = b.query.SearchPostsByTag(parsed.Keyword, offset, size)
		if len(items) > 0 {
			text = FormatPosts(fmt.Sprintf("Posts tagged %q, page %d:", parsed.Keyword, parsed.Page), items, offset)
		}
	default:
		var items []model.Item
		items, err = b.query.SearchPosts(parsed.Keyword, offset, size)
		if len(items) > 0 {
			text = FormatPosts(fmt.Sprintf("Posts matching %q, page %d:", parsed.Keyword, parsed.Page), items, offset)
		}
	}

	switch {
	case errors.Is(err, query.ErrEmptyQuery):
		b.reply(chatID, usage)
	case err != nil:
		b.log.Error("search", "kind", string(kind), "keyword", parsed.Keyword, "error", err)
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
	case text == "":
		b.reply(chatID, fmt.Sprintf("Nothing found for %q.", parsed.Keyword))
	default:
		b.reply(chatID, text)
	}
}

// handleText treats a plain message as a title search.
func (b *Bot) handleText(ctx context.Context, chatID int64, text string) {
	b.cache.Bootstrap(ctx)
	items, err := b.query.SearchPosts(text, 0, b.cfg.PageSize)
	if err != nil {
		b.reply(chatID, "Send a keyword to search post titles, or use /help.")
		return
	}
	if len(items) == 0 {
		b.reply(chatID, fmt.Sprintf("Nothing found for %q.", strings.TrimSpace(text)))
		return
	}
	b.reply(chatID, FormatPosts(fmt.Sprintf("Posts matching %q:", strings.TrimSpace(text)), items, 0))
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	snap := b.cache.Snapshot()
	info := StatusInfo{
		Loaded:   b.cache.Loaded(),
		BuiltAt:  snap.BuiltAt,
		Items:    len(snap.Items),
		Creators: len(snap.Creators),
		Failed:   snap.Failed,
		Feeds:    len(b.cfg.FeedURLs),
	}

	subs, err := b.directory.CountSubscribers(ctx)
	if err != nil {
		b.log.Error("count subscribers", "error", err)
		subs = -1
	}
	info.Subscribers = subs

	if b.seen != nil {
		info.Seen = b.seen.Len()
	}
	if b.status != nil {
		info.State = b.status.State().String()
		info.Last = b.status.LastReport()
		info.Skipped = b.status.Skipped()
	}

	b.reply(chatID, FormatStatus(info))
}

func (k searchKind) argName() string {
	if k == searchTags {
		return "tag"
	}
	return "keyword"
}

func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
