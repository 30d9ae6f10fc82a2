package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sergkorol/kommunist/internal/domain"
	"github.com/sergkorol/kommunist/internal/service"
)

// maxDocumentBytes caps downloaded uploads.
const maxDocumentBytes = 8 << 20

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in handleUpdate: %v", r)
		}
	}()

	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}

	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if !b.cfg.IsAllowedChat(chatID) {
		log.Printf("Ignoring message from chat %d", chatID)
		return
	}

	if msg.Document != nil {
		b.handleDocument(ctx, msg)
		return
	}

	if !msg.IsCommand() {
		b.reply(chatID, "Send me an .ics file to import it. /help lists the commands.")
		return
	}

	switch msg.Command() {
	case "start", "help":
		b.handleHelp(chatID)
	case "calendars":
		b.handleCalendars(ctx, chatID)
	case "import":
		b.handleImportPath(ctx, chatID, strings.TrimSpace(msg.CommandArguments()))
	default:
		b.reply(chatID, "Unknown command. /help lists the commands.")
	}
}

func (b *Bot) handleHelp(chatID int64) {
	text := `<b>Kommunist</b>

Send an <code>.ics</code> file to import its events. Put a calendar name in the caption to choose where they go.

/calendars - list the calendars on this device
/import [calendar] - import the configured document
/help - this message`
	b.reply(chatID, text)
}

func (b *Bot) handleCalendars(ctx context.Context, chatID int64) {
	names, err := b.importService.ListCalendarNames(ctx)
	if err != nil {
		b.reply(chatID, describeError(err))
		return
	}

	var sb strings.Builder
	sb.WriteString("📅 <b>Calendars</b>\n")
	for i, name := range names {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, html.EscapeString(name))
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) handleImportPath(ctx context.Context, chatID int64, calendarName string) {
	if b.cfg.ImportPath == "" {
		b.reply(chatID, "IMPORT_PATH is not configured.")
		return
	}
	if calendarName == "" {
		calendarName = b.cfg.TargetCalendar
	}
	result, err := b.importService.ImportDocument(ctx, b.cfg.ImportPath, calendarName)
	b.reportImport(chatID, result, err)
}

func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	doc := msg.Document

	if !isCalendarFile(doc.FileName, doc.MimeType) {
		b.reply(chatID, "That does not look like an .ics file.")
		return
	}
	if doc.FileSize > maxDocumentBytes {
		b.reply(chatID, "The file is too large.")
		return
	}

	calendarName := strings.TrimSpace(msg.Caption)
	if calendarName == "" {
		calendarName = b.cfg.TargetCalendar
	}

	if calendarName == "" {
		names, err := b.importService.ListCalendarNames(ctx)
		if err != nil {
			b.reply(chatID, describeError(err))
			return
		}
		if len(names) > 1 {
			b.mu.Lock()
			b.pending[chatID] = doc.FileID
			b.mu.Unlock()
			if err := b.SendMessageWithKeyboard(chatID, "Which calendar?", calendarKeyboard(names)); err != nil {
				log.Printf("Failed to send calendar choice: %v", err)
			}
			return
		}
	}

	b.importFile(ctx, chatID, doc.FileID, calendarName)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	// acknowledge so the client stops the spinner
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("Failed to answer callback: %v", err)
	}

	if !b.cfg.IsAllowedChat(chatID) {
		return
	}

	idx, ok := parseCalendarChoice(cb.Data)
	if !ok {
		return
	}

	b.mu.Lock()
	fileID, ok := b.pending[chatID]
	delete(b.pending, chatID)
	b.mu.Unlock()
	if !ok {
		b.reply(chatID, "Nothing is waiting to be imported. Send the file again.")
		return
	}

	names, err := b.importService.ListCalendarNames(ctx)
	if err != nil {
		b.reply(chatID, describeError(err))
		return
	}
	if idx >= len(names) {
		b.reply(chatID, "The calendar list changed. Send the file again.")
		return
	}

	b.importFile(ctx, chatID, fileID, names[idx])
}

func (b *Bot) importFile(ctx context.Context, chatID int64, fileID, calendarName string) {
	text, err := b.download(ctx, fileID)
	if err != nil {
		log.Printf("Download of %s failed: %v", fileID, err)
		b.reply(chatID, "Could not download the file.")
		return
	}

	result, err := b.importService.ImportText(ctx, text, calendarName)
	b.reportImport(chatID, result, err)
}

func (b *Bot) reportImport(chatID int64, result *service.ImportResult, err error) {
	if err != nil {
		log.Printf("Import for chat %d failed: %v", chatID, err)
		b.reply(chatID, describeError(err))
		return
	}
	b.reply(chatID, "✅ "+html.EscapeString(service.FormatResult(result)))
}

func (b *Bot) download(ctx context.Context, fileID string) (string, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.SendMessage(chatID, text); err != nil {
		log.Printf("Failed to send message to %d: %v", chatID, err)
	}
}

func isCalendarFile(name, mimeType string) bool {
	if strings.EqualFold(path.Ext(name), ".ics") {
		return true
	}
	mt := strings.ToLower(mimeType)
	return strings.HasPrefix(mt, "text/calendar") || strings.HasPrefix(mt, "application/ics")
}

// describeError turns an import failure into a chat reply.
func describeError(err error) string {
	var (
		partial  *service.PartialImportError
		notFound *domain.CalendarNotFoundError
	)
	switch {
	case errors.As(err, &partial):
		return fmt.Sprintf("⚠️ Import stopped at <b>%s</b>: %d applied, %d left.\n%s",
			html.EscapeString(partial.Summary), partial.Applied, partial.Remaining, html.EscapeString(partial.Err.Error()))
	case errors.As(err, &notFound):
		return fmt.Sprintf("❌ No calendar named <b>%s</b>. See /calendars.", html.EscapeString(notFound.Name))
	case errors.Is(err, domain.ErrNoCalendarsAvailable):
		return "❌ There are no calendars on this device."
	case errors.Is(err, domain.ErrMalformedDocument):
		return "❌ The file is not a valid calendar."
	case errors.Is(err, domain.ErrInputNotFound):
		return "❌ The document was not found."
	default:
		return "❌ " + html.EscapeString(err.Error())
	}
}
