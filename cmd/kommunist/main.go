package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sergkorol/kommunist/config"
	"github.com/sergkorol/kommunist/internal/api"
	"github.com/sergkorol/kommunist/internal/bot"
	"github.com/sergkorol/kommunist/internal/clients/caldav"
	"github.com/sergkorol/kommunist/internal/ics"
	"github.com/sergkorol/kommunist/internal/scheduler"
	"github.com/sergkorol/kommunist/internal/service"
	"github.com/sergkorol/kommunist/internal/storage"
	"github.com/sergkorol/kommunist/internal/textconv"
)

const usage = `usage: kommunist <command> [flags]

commands:
  export     encode events (JSON array) into an .ics document
  import     import an .ics document into a calendar
  calendars  list the calendars of the configured store
  serve      run the HTTP API, telegram bot and scheduled import
`

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[2:]
	switch os.Args[1] {
	case "export":
		err = runExport(ctx, cfg, args)
	case "import":
		err = runImport(ctx, cfg, args)
	case "calendars":
		err = runCalendars(ctx, cfg)
	case "serve":
		err = runServe(ctx, cfg)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func runExport(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	in := fs.String("in", "-", "events JSON file, - for stdin")
	name := fs.String("name", service.DefaultDocumentName, "document name")
	toStdout := fs.Bool("stdout", false, "print the document instead of delivering it")
	toTelegram := fs.Bool("telegram", false, "deliver the document to TELEGRAM_CHAT_ID")
	fs.Parse(args)

	var r io.Reader = os.Stdin
	if *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			return fmt.Errorf("open events: %w", err)
		}
		defer f.Close()
		r = f
	}

	events, err := service.LoadEvents(r)
	if err != nil {
		return err
	}

	var sink service.DocumentSink = service.FileSink{Dir: cfg.ExportDir}
	if *toTelegram {
		tgBot, err := bot.New(cfg, nil)
		if err != nil {
			return err
		}
		sink = tgBot
	}

	exports := service.NewExportService(encodeOptions(cfg), sink)
	if *toStdout {
		doc, err := exports.Encode(events)
		if err != nil {
			return err
		}
		fmt.Print(doc)
		return nil
	}

	if err := exports.Export(ctx, events, *name); err != nil {
		return err
	}
	log.Printf("Exported %d events as %s", len(events), *name)
	return nil
}

func runImport(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	calendar := fs.String("calendar", cfg.TargetCalendar, "target calendar name, empty for the first one")
	fs.Parse(args)

	path := cfg.ImportPath
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	imports := newImportService(cfg, store)
	result, err := imports.ImportDocument(ctx, path, *calendar)

	var partial *service.PartialImportError
	if errors.As(err, &partial) {
		fmt.Println(service.FormatResult(result))
		return err
	}
	if err != nil {
		return err
	}

	fmt.Println(service.FormatResult(result))
	return nil
}

func runCalendars(ctx context.Context, cfg *config.Config) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	names, err := newImportService(cfg, store).ListCalendarNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	imports := newImportService(cfg, store)

	var (
		tgBot *bot.Bot
		sink  service.DocumentSink = service.FileSink{Dir: cfg.ExportDir}
	)
	if cfg.TelegramToken != "" {
		tgBot, err = bot.New(cfg, imports)
		if err != nil {
			return err
		}
		sink = tgBot
	} else {
		log.Println("Telegram bot disabled (TELEGRAM_BOT_TOKEN not set)")
	}

	exports := service.NewExportService(encodeOptions(cfg), sink)
	server := api.New(cfg, imports, exports)

	sched := scheduler.New(cfg, imports)
	if tgBot != nil {
		sched.SetSender(tgBot)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	defer sched.Stop()

	if tgBot != nil {
		if cfg.WebhookURL != "" {
			if err := tgBot.SetupWebhook(); err != nil {
				return err
			}
			server.Handle(tgBot.WebhookPath(), tgBot.WebhookHandler(ctx))
		}
		go func() {
			if err := tgBot.Start(ctx); err != nil {
				log.Printf("Bot error: %v", err)
			}
		}()
	}

	log.Println("Kommunist started")

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	}
	if tgBot != nil {
		tgBot.Wait()
	}

	log.Println("Kommunist stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (service.CalendarStore, func(), error) {
	switch cfg.Store {
	case config.StoreCalDAV:
		client := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword)
		if !client.IsConfigured() {
			return nil, nil, fmt.Errorf("caldav store needs CALDAV_USERNAME and CALDAV_PASSWORD")
		}
		if cfg.CalDAVHomeSet != "" {
			client.SetHomeSet(cfg.CalDAVHomeSet)
		}
		return client, func() {}, nil
	default:
		store, err := storage.New(cfg.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("init storage: %w", err)
		}
		for _, name := range cfg.Calendars {
			if _, err := store.EnsureCalendar(ctx, name); err != nil {
				store.Close()
				return nil, nil, fmt.Errorf("seed calendar %q: %w", name, err)
			}
		}
		return store, func() { store.Close() }, nil
	}
}

func newImportService(cfg *config.Config, store service.CalendarStore) *service.ImportService {
	reconciler := service.NewReconciler(store, cfg.Timezone)
	reconciler.SetAlarmReading(service.AlarmReading(cfg.AlarmReading))
	return service.NewImportService(service.FileSource{}, reconciler, cfg.Timezone)
}

func encodeOptions(cfg *config.Config) ics.EncodeOptions {
	return ics.EncodeOptions{
		ReminderMinutes: &cfg.ReminderMinutes,
		Invitees:        cfg.Invitees,
		Notes:           cfg.Notes,
		Policy:          ics.TimePolicy(cfg.TimePolicy),
		Location:        cfg.Timezone,
		HTMLToText:      textconv.HTMLToText,
	}
}
