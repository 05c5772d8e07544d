package bot

import (
	"errors"
	"fmt"
	"time"

	"streamwatch/internal/scheduler"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `StreamWatch is running.

It watches Twitch and YouTube and posts a message when a stream goes live or a new video is published.

Use /help for the command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Commands:
/status — state of every source
/check <source> — poll a source now
/help — this message`)
}

func (b *Bot) handleStatus(ctrl Control, chatID int64) {
	b.reply(chatID, FormatStatus(ctrl.Status(), time.Now()))
}

func (b *Bot) handleCheck(ctrl Control, chatID int64, args string) {
	name, err := ParseSourceArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /check <source>\n\n"+FormatSourceNames(ctrl.Status()))
		return
	}

	if err := ctrl.Trigger(name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownSource) {
			b.reply(chatID, fmt.Sprintf("Source %q not found.\n\n%s", name, FormatSourceNames(ctrl.Status())))
			return
		}
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.log.Info("manual check requested", "source", name, "chat_id", chatID)
	b.reply(chatID, fmt.Sprintf("Check of %q scheduled.", name))
}
