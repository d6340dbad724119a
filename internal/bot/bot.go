package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"habit-tracker/internal/logger"
	"habit-tracker/internal/model"
	"habit-tracker/internal/repository"
	"habit-tracker/internal/service"
)

// Sender is the part of the Telegram API used to talk to a chat.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// API is the Telegram client the bot polls and replies through.
type API interface {
	Sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type conversationStage int

const (
	stageNone conversationStage = iota
	stageName
	stageDescription
	stageCategory
	stageReminder
	stageReminderTime
	stageReminderWeekday
)

const (
	cbDonePrefix   = "done:"
	cbUndoPrefix   = "undo:"
	cbDeletePrefix = "delete:"
)

const (
	btnSkip          = "⏭️ Skip"
	btnYes           = "Yes"
	btnNo            = "No"
	btnDaily         = "Daily"
	btnWeekly        = "Weekly"
	btnConfirm       = "✅ Confirm"
	btnCancel        = "↩️ Cancel"
	btnCancelDialog  = "⏪ Stop input"
	iconDone         = "✅"
	iconPending      = "⬜"
	iconReminder     = "⏰"
	menuLabelNew     = "➕ New habit"
	menuLabelHabits  = "📋 Habits"
	menuLabelStats   = "📊 Stats"
	menuLabelHelp    = "ℹ️ Help"
	insightsDays     = 7
	shortNameButtons = 18
)

type conversationState struct {
	stage conversationStage
	input model.HabitInput
}

type confirmationAction int

const (
	actionDelete confirmationAction = iota
	actionReset
)

type confirmationRequest struct {
	habitID string
	name    string
	action  confirmationAction
}

// Bot aggregates Telegram API with the habit tracker.
type Bot struct {
	api           API
	userRepo      *repository.UserRepository
	tracker       *service.Tracker
	sessions      map[int64]*service.Session
	conversations *chatState[*conversationState]
	confirmations *chatState[confirmationRequest]
	mu            sync.Mutex
}

// NewAPI authorizes against Telegram with token.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	logger.Info("bot authorized", "account", api.Self.UserName)
	return api, nil
}

func New(api API, userRepo *repository.UserRepository, tracker *service.Tracker) *Bot {
	return &Bot{
		api:           api,
		userRepo:      userRepo,
		tracker:       tracker,
		sessions:      make(map[int64]*service.Session),
		conversations: newChatState[*conversationState](),
		confirmations: newChatState[confirmationRequest](),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				logger.Error("handle callback", "err", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				logger.Error("handle message", "err", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.conversations.clear(msg.From.ID)
		b.confirmations.clear(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input stopped. Start again whenever you like.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		logger.Info("command", "user", msg.From.ID, "command", msg.Command(), "args", msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.confirmations.get(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if state, ok := b.conversations.get(msg.From.ID); ok {
		logger.Debug("conversation step", "user", msg.From.ID, "stage", state.stage)
		return b.handleConversation(ctx, msg, state)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Send /newhabit to add a habit or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "stop":
		return b.handleStop(msg)
	case "help":
		return b.handleHelp(msg)
	case "newhabit":
		return b.startNewHabitConversation(ctx, msg)
	case "habits":
		return b.handleListHabits(ctx, msg)
	case "done":
		return b.handleToggle(ctx, msg, true)
	case "undo":
		return b.handleToggle(ctx, msg, false)
	case "edit":
		return b.handleEdit(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "notifications":
		return b.handleNotifications(ctx, msg)
	case "stats":
		return b.handleStats(ctx, msg)
	case "reset":
		return b.handleReset(ctx, msg)
	case "cancel":
		b.conversations.clear(msg.From.ID)
		b.confirmations.clear(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input stopped.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	session := b.sessionFor(msg.From.ID)
	if err := session.SignIn(ctx, user.OwnerID()); err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "friend"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I keep track of your habits and remind you about them.</b>\n\nCommands:\n"+
			"• /newhabit — add a habit\n"+
			"• /habits — your habits and streaks\n"+
			"• /done &lt;n&gt; — mark habit n done today\n"+
			"• /stats — last 7 days\n"+
			"• /help — everything else",
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleStop(msg *tgbotapi.Message) error {
	b.conversations.clear(msg.From.ID)
	b.confirmations.clear(msg.From.ID)
	b.mu.Lock()
	session, ok := b.sessions[msg.From.ID]
	b.mu.Unlock()
	if ok {
		session.SignOut()
	}
	logger.Info("signed out", "user", msg.From.ID)
	return b.sendTextWithRemove(msg.Chat.ID, "👋 Signed out. Send /start to come back. Reminders keep running while notifications are on.")
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Help</b>\n" +
		"• /newhabit — add a habit step by step\n" +
		"• /habits — list habits with streaks and buttons\n" +
		"• /done &lt;n&gt; [YYYY-MM-DD] — mark habit n done (today by default)\n" +
		"• /undo &lt;n&gt; [YYYY-MM-DD] — remove a completion\n" +
		"• /edit &lt;n&gt; key=value; ... — change name, description, category, reminder, time, weekday\n" +
		"• /delete &lt;n&gt; — delete a habit\n" +
		"• /notifications on|off — allow or stop reminders\n" +
		"• /stats — completions over the last 7 days\n" +
		"• /reset — delete all your habits and history\n" +
		"• /stop — sign out\n" +
		"• /cancel — stop the current input"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNew):
		return true, b.startNewHabitConversation(ctx, msg)
	case strings.ToLower(menuLabelHabits):
		return true, b.handleListHabits(ctx, msg)
	case strings.ToLower(menuLabelStats):
		return true, b.handleStats(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sessionFor(userID int64) *service.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	session, ok := b.sessions[userID]
	if !ok {
		session = service.NewSession(b.tracker)
		b.sessions[userID] = session
	}
	return session
}

// activeSession returns the signed-in session of the user. A user the process
// has not seen yet (e.g. after a restart) is signed in on the fly; a user who
// sent /stop stays signed out until /start.
func (b *Bot) activeSession(ctx context.Context, from *tgbotapi.User) (*service.Session, error) {
	b.mu.Lock()
	session, known := b.sessions[from.ID]
	b.mu.Unlock()
	if known {
		if session.Owner() == "" {
			return nil, service.ErrInvalidOwner
		}
		return session, nil
	}

	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return nil, err
	}
	session = b.sessionFor(from.ID)
	if err := session.SignIn(ctx, user.OwnerID()); err != nil {
		return nil, err
	}
	return session, nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
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

func (b *Bot) ackCallback(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		logger.Warn("callback ack", "err", err)
	}
}

// userMessage turns a tracker error into a reply.
func userMessage(err error) string {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return fmt.Sprintf("⚠️ Invalid %s: %s.", escape(verr.Field), escape(verr.Reason))
	case errors.Is(err, service.ErrNotFound):
		return "Habit not found. Check the number in /habits."
	case errors.Is(err, service.ErrInvalidOwner):
		return "You are signed out. Send /start first."
	case errors.Is(err, service.ErrStorageUnavailable):
		return "Storage is unavailable right now, please try again later."
	case errors.Is(err, service.ErrSchedulerUnavailable):
		return "Reminders are unavailable right now, please try again later."
	default:
		return fmt.Sprintf("Error: %s", escape(err.Error()))
	}
}

func escape(s string) string {
	return html.EscapeString(s)
}
