package scheduler

import (
	"fmt"

	"rss_notify/internal/model"
)

// FormatNotification formats a new item as a chat notification.
func FormatNotification(item model.Item) string {
	return fmt.Sprintf("🆕 %s\n%s", item.Title, item.Link)
}
