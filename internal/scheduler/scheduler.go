package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
	"github.com/sergkorol/kommunist/config"
	"github.com/sergkorol/kommunist/internal/service"
)

type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

// Importer runs one document import.
type Importer interface {
	ImportDocument(ctx context.Context, path, calendarName string) (*service.ImportResult, error)
}

// Scheduler re-imports the configured document on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	cfg      *config.Config
	importer Importer
	sender   MessageSender
}

func New(cfg *config.Config, importer Importer) *Scheduler {
	c := cron.New(
		cron.WithLocation(cfg.Timezone),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	return &Scheduler{
		cron:     c,
		cfg:      cfg,
		importer: importer,
	}
}

func (s *Scheduler) SetSender(sender MessageSender) {
	s.sender = sender
}

// Start registers the import job and returns; jobs run under ctx until Stop.
// An invalid cron expression is reported before anything is scheduled.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.SyncCron == "" || s.cfg.ImportPath == "" {
		log.Println("Scheduler disabled (SYNC_CRON or IMPORT_PATH not set)")
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.SyncCron, func() { s.RunImport(ctx) }); err != nil {
		return fmt.Errorf("add import job: %w", err)
	}

	s.cron.Start()
	log.Printf("Scheduler started (TZ: %s, import: %s, cron: %s)",
		s.cfg.Timezone, s.cfg.ImportPath, s.cfg.SyncCron)
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

// RunImport imports the configured document once and reports the outcome.
func (s *Scheduler) RunImport(ctx context.Context) {
	result, err := s.importer.ImportDocument(ctx, s.cfg.ImportPath, s.cfg.TargetCalendar)
	if err != nil {
		log.Printf("Scheduled import of %s failed: %v", s.cfg.ImportPath, err)
		s.notify("Import failed: " + err.Error())
		return
	}

	text := service.FormatResult(result)
	log.Printf("Scheduled import of %s: %s", s.cfg.ImportPath, text)
	if result.Applied() > 0 || len(result.Skipped) > 0 {
		s.notify(text)
	}
}

func (s *Scheduler) notify(text string) {
	if s.sender == nil || s.cfg.TelegramChatID == 0 {
		return
	}
	if err := s.sender.SendMessage(s.cfg.TelegramChatID, text); err != nil {
		log.Printf("Failed to send import report: %v", err)
	}
}
