package notify

import (
	"fmt"

	"streamwatch/internal/model"
)

// Format renders the notification text of item. The source's static
// label, when set, replaces the item's own category.
func Format(src model.Source, item model.Item) string {
	label := item.Category()
	if src.StaticLabel != "" {
		label = src.StaticLabel
	}

	switch item.(type) {
	case model.VideoItem:
		return fmt.Sprintf("%s published a new %s video: %s", item.Display(), label, item.URL())
	default:
		return fmt.Sprintf("%s is currently streaming %s: %s", item.Display(), label, item.URL())
	}
}
