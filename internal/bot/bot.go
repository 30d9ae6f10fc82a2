package bot

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sergkorol/kommunist/config"
	"github.com/sergkorol/kommunist/internal/service"
)

const webhookPath = "/bot"

// Bot is the telegram front end: it imports uploaded documents and
// receives exported ones.
type Bot struct {
	api           *tgbotapi.BotAPI
	cfg           *config.Config
	importService *service.ImportService
	httpClient    *http.Client

	mu      sync.Mutex
	pending map[int64]string // chat -> uploaded file id awaiting a calendar

	handlers sync.WaitGroup
}

func New(cfg *config.Config, importSvc *service.ImportService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("Authorized as @%s", api.Self.UserName)

	bot := &Bot{
		api:           api,
		cfg:           cfg,
		importService: importSvc,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		pending:       make(map[int64]string),
	}

	bot.setCommands()

	return bot, nil
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "calendars", Description: "📅 Calendars on this device"},
		{Command: "import", Description: "📥 Import the configured document"},
		{Command: "help", Description: "❓ Help"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		log.Printf("Failed to set commands: %v", err)
	}
}

// SetupWebhook registers cfg.WebhookURL with telegram.
func (b *Bot) SetupWebhook() error {
	webhookURL := b.cfg.WebhookURL + webhookPath

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}

	if info.LastErrorDate != 0 {
		log.Printf("Webhook last error: %s", info.LastErrorMessage)
	}

	log.Printf("Webhook set to: %s", webhookURL)
	return nil
}

// WebhookPath is where WebhookHandler expects to be mounted.
func (b *Bot) WebhookPath() string {
	return webhookPath
}

// WebhookHandler feeds webhook updates into the bot. Updates are handled
// under ctx, so imports stop between events once ctx is cancelled.
func (b *Bot) WebhookHandler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		update, err := b.api.HandleUpdate(r)
		if err != nil {
			log.Printf("Bad webhook update: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.dispatch(ctx, *update)
	})
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	b.handlers.Add(1)
	go func() {
		defer b.handlers.Done()
		b.handleUpdate(ctx, update)
	}()
}

// Wait blocks until every dispatched update has been handled.
func (b *Bot) Wait() {
	b.handlers.Wait()
}

// Start receives updates by long polling unless a webhook is configured,
// in which case updates arrive through WebhookHandler.
func (b *Bot) Start(ctx context.Context) error {
	if b.cfg.WebhookURL != "" {
		<-ctx.Done()
		return nil
	}

	// a leftover webhook blocks getUpdates
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.Printf("Failed to delete webhook: %v", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

// Deliver sends an exported document to the configured chat.
func (b *Bot) Deliver(_ context.Context, name string, data []byte) error {
	if b.cfg.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID not set")
	}
	doc := tgbotapi.NewDocument(b.cfg.TelegramChatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = name
	if _, err := b.api.Send(doc); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}
