package bot

import (
	"context"
	"fmt"
	"strings"

	"melody-planner/internal/service"
)

// target is the chat reminders go to: the one bound with /start, else the configured one.
func (b *Bot) target(ctx context.Context) (int64, bool) {
	id, ok, err := b.settings.ChatID(ctx)
	if err != nil {
		b.logger.Warn("read chat binding", "err", err)
	}
	if ok && b.allowed(id) {
		return id, true
	}
	return b.chatID, b.chatID != 0
}

// Permission reports undetermined until a chat is known and denied while muted.
func (b *Bot) Permission(ctx context.Context) service.Permission {
	if _, ok := b.target(ctx); !ok {
		return service.PermissionUndetermined
	}
	muted, err := b.settings.Muted(ctx)
	if err != nil {
		b.logger.Warn("read mute flag", "err", err)
		return service.PermissionUndetermined
	}
	if muted {
		return service.PermissionDenied
	}
	return service.PermissionGranted
}

// Notify sends one message for the whole popup.
func (b *Bot) Notify(ctx context.Context, p service.Popup) error {
	chatID, ok := b.target(ctx)
	if !ok {
		return fmt.Errorf("notify: no chat bound")
	}
	if err := b.sendText(chatID, formatPopup(p)); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func formatPopup(p service.Popup) string {
	var sb strings.Builder
	if len(p.Reminders) == 1 {
		sb.WriteString("🔔 <b>Reminder</b>\n")
	} else {
		sb.WriteString(fmt.Sprintf("🔔 <b>%d reminders</b>\n", len(p.Reminders)))
	}
	for _, r := range p.Reminders {
		sb.WriteString(fmt.Sprintf("• %s", escape(normalizeTitle(r.Title))))
		if r.ProjectName != "" {
			sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", escape(r.ProjectName)))
		}
		due := r.EndDate.In(p.At.Location())
		sb.WriteString(fmt.Sprintf("\n   ⏰ due %s\n", due.Format("2006-01-02 15:04")))
	}
	return strings.TrimSpace(sb.String())
}
