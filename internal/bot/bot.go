package bot

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"melody-planner/internal/model"
	"melody-planner/internal/service"
	"melody-planner/internal/tree"
)

const (
	cbDonePrefix    = "done:"
	cbConfirmPrefix = "confirm:"
	cbCancelPrefix  = "cancel:"
)

const (
	btnConfirm       = "✅ Confirm"
	btnCancel        = "↩️ Cancel"
	iconDefault      = "🟢"
	iconDue          = "⏳"
	iconOverdue      = "⚠️"
	menuLabelTasks   = "📋 Tasks"
	menuLabelTags    = "🏷 Tags"
	menuLabelReport  = "📈 Report"
	menuLabelHelp    = "ℹ️ Help"
	maxListedTasks   = 30
	callbackTitleLen = 24
)

// sender is the part of the Telegram API the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Settings keeps the chat binding on this device.
type Settings interface {
	ChatID(ctx context.Context) (int64, bool, error)
	SetChatID(ctx context.Context, id int64) error
	Muted(ctx context.Context) (bool, error)
	SetMuted(ctx context.Context, muted bool) error
}

// Bot is the Telegram side of the planner: the native notification channel for
// reminders and a small command surface over the workspace.
type Bot struct {
	api      sender
	store    *service.Store
	digest   *service.DigestService
	sync     *service.SyncService
	settings Settings
	chatID   int64
	logger   *log.Logger
	now      func() time.Time
}

// New connects to Telegram. chatID, when non-zero, is the only chat allowed to bind
// and is used until some chat sends /start.
func New(token string, store *service.Store, digest *service.DigestService, sync *service.SyncService, settings Settings, chatID int64, logger *log.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	b := newBot(api, store, digest, sync, settings, chatID, logger)
	b.logger.Info("bot authorized", "account", api.Self.UserName)
	return b, nil
}

func newBot(api sender, store *service.Store, digest *service.DigestService, sync *service.SyncService, settings Settings, chatID int64, logger *log.Logger) *Bot {
	return &Bot{
		api:      api,
		store:    store,
		digest:   digest,
		sync:     sync,
		settings: settings,
		chatID:   chatID,
		logger:   logger.WithPrefix("bot"),
		now:      time.Now,
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info("start polling updates")

	stop := context.AfterFunc(ctx, b.api.StopReceivingUpdates)
	defer stop()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.logger.Error("handle callback", "err", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.logger.Error("handle message", "err", err)
		}
	}
}

func (b *Bot) allowed(chatID int64) bool {
	return b.chatID == 0 || b.chatID == chatID
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !b.allowed(msg.Chat.ID) {
		b.logger.Warn("message from foreign chat", "chat", msg.Chat.ID)
		return b.sendText(msg.Chat.ID, "This planner is bound to another chat.")
	}

	if msg.IsCommand() {
		b.logger.Info("command", "chat", msg.Chat.ID, "command", msg.Command(), "args", msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}
	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Try /tasks or /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg.Chat.ID)
	case "tasks":
		return b.sendTaskList(msg.Chat.ID, strings.Fields(msg.CommandArguments()))
	case "tags":
		return b.handleTags(msg.Chat.ID)
	case "report":
		return b.sendText(msg.Chat.ID, b.digest.DailySummary(b.now()))
	case "status":
		return b.handleStatus(msg.Chat.ID)
	case "mute":
		return b.handleMute(ctx, msg.Chat.ID, true)
	case "unmute":
		return b.handleMute(ctx, msg.Chat.ID, false)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if err := b.settings.SetChatID(ctx, msg.Chat.ID); err != nil {
		return err
	}
	if err := b.settings.SetMuted(ctx, false); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "friend"
	}
	ws := b.store.Snapshot()
	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>%s %s reminders will arrive in this chat.</b>\n\n%s",
		escape(name), escape(ws.Logo), escape(ws.Name), helpText,
	)
	return b.sendWithReplyMarkup(msg.Chat.ID, text, mainMenuKeyboard())
}

const helpText = "Commands:\n" +
	"• /tasks [tag ...] — open tasks, optionally only those with one of the tags\n" +
	"• /tags — tags in use\n" +
	"• /report — the daily report now\n" +
	"• /status — sync status\n" +
	"• /mute, /unmute — pause or resume reminders here\n" +
	"• /help — this list"

func (b *Bot) handleHelp(chatID int64) error {
	return b.sendText(chatID, "ℹ️ <b>Help</b>\n"+helpText)
}

func (b *Bot) handleTags(chatID int64) error {
	tags := tree.TagIndex(tree.AggregateForest(b.store.Projects()))
	if len(tags) == 0 {
		return b.sendText(chatID, "No tags yet.")
	}
	var builder strings.Builder
	builder.WriteString("🏷 <b>Tags</b>\n")
	for _, tag := range tags {
		builder.WriteString(fmt.Sprintf("• #%s\n", escape(tag.Name)))
	}
	return b.sendText(chatID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleStatus(chatID int64) error {
	st := b.sync.Status()
	text := fmt.Sprintf("🔄 Sync: <b>%s</b>", escape(st.Badge))
	if st.LastSyncedAt != nil {
		text += fmt.Sprintf("\nLast synced %s", st.LastSyncedAt.In(b.now().Location()).Format("2006-01-02 15:04"))
	}
	if st.LastError != "" {
		text += fmt.Sprintf("\nLast error: %s", escape(st.LastError))
	}
	return b.sendText(chatID, text)
}

func (b *Bot) handleMute(ctx context.Context, chatID int64, muted bool) error {
	if err := b.settings.SetMuted(ctx, muted); err != nil {
		return err
	}
	if muted {
		return b.sendText(chatID, "🔕 Reminders paused. /unmute to resume.")
	}
	return b.sendText(chatID, "🔔 Reminders resumed.")
}

type listedTask struct {
	task    model.Task
	project string
}

func (b *Bot) sendTaskList(chatID int64, tags []string) error {
	var open []listedTask
	tree.Walk(b.store.Projects(), func(p model.Project) {
		for _, t := range tree.FilterByTags(p.Tasks, tags) {
			if t.Status != model.StatusCompleted {
				open = append(open, listedTask{task: t, project: p.Name})
			}
		}
	})
	if len(open) == 0 {
		return b.sendText(chatID, "No open tasks. Nice.")
	}
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].task.EndDate.Before(open[j].task.EndDate)
	})
	if len(open) > maxListedTasks {
		open = open[:maxListedTasks]
	}

	now := b.now()
	var builder strings.Builder
	builder.WriteString("📋 <b>Open tasks</b>\n")
	if len(tags) > 0 {
		builder.WriteString(fmt.Sprintf("Tagged %s\n", escape(strings.Join(tags, ", "))))
	}
	builder.WriteString("Tap a task to mark it done.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, o := range open {
		builder.WriteString(formatTask(o.task, o.project, now))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ "+shortTitle(o.task.Title, callbackTitleLen), cbDonePrefix+o.task.ID),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("callback ack", "err", err)
	}
	chatID := cb.Message.Chat.ID
	if !b.allowed(chatID) {
		return nil
	}

	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbDonePrefix):
		return b.askCompleteConfirmation(chatID, strings.TrimPrefix(data, cbDonePrefix))
	case strings.HasPrefix(data, cbConfirmPrefix):
		return b.completeTask(chatID, strings.TrimPrefix(data, cbConfirmPrefix))
	case strings.HasPrefix(data, cbCancelPrefix):
		return b.sendText(chatID, "OK, left as is.")
	default:
		return nil
	}
}

func (b *Bot) askCompleteConfirmation(chatID int64, taskID string) error {
	task, _, ok := tree.FindTask(b.store.Projects(), taskID)
	if !ok {
		return b.sendText(chatID, "That task is gone.")
	}
	if task.Status == model.StatusCompleted {
		return b.sendText(chatID, "Already done.")
	}
	text := fmt.Sprintf("Mark «%s» as done?", escape(normalizeTitle(task.Title)))
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard(task.ID))
}

func (b *Bot) completeTask(chatID int64, taskID string) error {
	task, _, ok := tree.FindTask(b.store.Projects(), taskID)
	if !ok {
		return b.sendText(chatID, "That task is gone.")
	}
	if task.Status != model.StatusCompleted {
		b.store.Apply(tree.ToggleTaskCompletion{ID: taskID})
	}
	return b.sendText(chatID, fmt.Sprintf("✅ «%s» done.", escape(normalizeTitle(task.Title))))
}

// SendDailyReport sends the digest to the bound chat, unless muted.
func (b *Bot) SendDailyReport(ctx context.Context) error {
	chatID, ok := b.target(ctx)
	if !ok {
		return nil
	}
	if muted, err := b.settings.Muted(ctx); err != nil || muted {
		return err
	}
	return b.sendText(chatID, b.digest.DailySummary(b.now()))
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelTasks):
		return true, b.sendTaskList(msg.Chat.ID, nil)
	case strings.ToLower(menuLabelTags):
		return true, b.handleTags(msg.Chat.ID)
	case strings.ToLower(menuLabelReport):
		return true, b.sendText(msg.Chat.ID, b.digest.DailySummary(b.now()))
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg.Chat.ID)
	default:
		return false, nil
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func confirmKeyboard(taskID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnConfirm, cbConfirmPrefix+taskID),
			tgbotapi.NewInlineKeyboardButtonData(btnCancel, cbCancelPrefix+taskID),
		),
	)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTasks),
			tgbotapi.NewKeyboardButton(menuLabelTags),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelReport),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func escape(s string) string {
	return html.EscapeString(s)
}

func formatTask(task model.Task, project string, now time.Time) string {
	var sb strings.Builder

	d := task.EndDate.In(now.Location())
	icon := iconDefault
	switch {
	case now.After(d):
		icon = iconOverdue
	case d.Sub(now) <= 48*time.Hour:
		icon = iconDue
	}
	sb.WriteString(fmt.Sprintf("%s %s", icon, escape(normalizeTitle(task.Title))))
	if project != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", escape(project)))
	}
	sb.WriteString(fmt.Sprintf("\n   ⏰ %s · %s · %d%%\n", d.Format("2006-01-02"), task.Priority, task.Progress))
	return sb.String()
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func shortTitle(title string, maxLen int) string {
	clean := normalizeTitle(title)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}
