package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreCalDAV = "caldav"
)

// File is the optional YAML layer read from CONFIG_PATH. Environment
// variables override it.
type File struct {
	DatabasePath    string   `yaml:"database_path"`
	Timezone        string   `yaml:"timezone"`
	Store           string   `yaml:"store"`
	CalDAVURL       string   `yaml:"caldav_url"`
	CalDAVUsername  string   `yaml:"caldav_username"`
	CalDAVPassword  string   `yaml:"caldav_password"`
	CalDAVHomeSet   string   `yaml:"caldav_home_set"`
	Calendars       []string `yaml:"calendars"`
	TargetCalendar  string   `yaml:"target_calendar"`
	ReminderMinutes *int     `yaml:"reminder_minutes"`
	TimePolicy      string   `yaml:"time_policy"`
	AlarmReading    string   `yaml:"alarm_reading"`
	Invitees        string   `yaml:"invitees"`
	Notes           string   `yaml:"notes"`
	ImportPath      string   `yaml:"import_path"`
	SyncCron        string   `yaml:"sync_cron"`
	ExportDir       string   `yaml:"export_dir"`
	TelegramToken   string   `yaml:"telegram_token"`
	TelegramChatID  int64    `yaml:"telegram_chat_id"`
	WebhookURL      string   `yaml:"webhook_url"`
	ServerPort      string   `yaml:"server_port"`
	APIUsername     string   `yaml:"api_username"`
	APIPassword     string   `yaml:"api_password"`
}

type Config struct {
	DatabasePath    string
	Timezone        *time.Location
	Store           string
	CalDAVURL       string
	CalDAVUsername  string
	CalDAVPassword  string
	CalDAVHomeSet   string
	Calendars       []string
	TargetCalendar  string
	ReminderMinutes int
	TimePolicy      string
	AlarmReading    string
	Invitees        string
	Notes           string
	ImportPath      string
	SyncCron        string
	ExportDir       string
	TelegramToken   string
	TelegramChatID  int64
	WebhookURL      string
	ServerPort      string
	APIUsername     string
	APIPassword     string
}

func Load() (*Config, error) {
	f, err := readFile(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, err
	}

	dbPath := env("DATABASE_PATH", f.DatabasePath)
	if dbPath == "" {
		dbPath = "./data/kommunist.db"
	}

	tzName := env("TIMEZONE", f.Timezone)
	if tzName == "" {
		tzName = "UTC"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	store := strings.ToLower(env("STORE", f.Store))
	if store == "" {
		store = StoreSQLite
	}
	if store != StoreSQLite && store != StoreCalDAV {
		return nil, fmt.Errorf("STORE must be %q or %q, got %q", StoreSQLite, StoreCalDAV, store)
	}

	calendars := f.Calendars
	if c := os.Getenv("CALENDARS"); c != "" {
		calendars = splitList(c)
	}
	if len(calendars) == 0 {
		calendars = []string{"Personal"}
	}

	reminder := 30
	if f.ReminderMinutes != nil {
		reminder = *f.ReminderMinutes
	}
	if r := os.Getenv("REMINDER_MINUTES"); r != "" {
		reminder, err = strconv.Atoi(r)
		if err != nil {
			return nil, fmt.Errorf("REMINDER_MINUTES must be a number")
		}
	}
	if reminder < 0 {
		return nil, fmt.Errorf("REMINDER_MINUTES must not be negative, got %d", reminder)
	}

	policy := strings.ToLower(env("TIME_POLICY", f.TimePolicy))
	if policy == "" {
		policy = "zoned"
	}
	if policy != "zoned" && policy != "floating" {
		return nil, fmt.Errorf("TIME_POLICY must be zoned or floating, got %q", policy)
	}

	alarms := strings.ToLower(env("ALARM_READING", f.AlarmReading))
	if alarms == "" {
		alarms = "total"
	}
	if alarms != "total" && alarms != "minutes" {
		return nil, fmt.Errorf("ALARM_READING must be total or minutes, got %q", alarms)
	}

	chatID := f.TelegramChatID
	if c := os.Getenv("TELEGRAM_CHAT_ID"); c != "" {
		chatID, err = strconv.ParseInt(c, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID must be a number")
		}
	}

	exportDir := env("EXPORT_DIR", f.ExportDir)
	if exportDir == "" {
		exportDir = "./data/export"
	}

	serverPort := env("SERVER_PORT", f.ServerPort)
	if serverPort == "" {
		serverPort = "8080"
	}

	cfg := &Config{
		DatabasePath:    dbPath,
		Timezone:        tz,
		Store:           store,
		CalDAVURL:       env("CALDAV_URL", f.CalDAVURL),
		CalDAVUsername:  env("CALDAV_USERNAME", f.CalDAVUsername),
		CalDAVPassword:  env("CALDAV_PASSWORD", f.CalDAVPassword),
		CalDAVHomeSet:   env("CALDAV_HOME_SET", f.CalDAVHomeSet),
		Calendars:       calendars,
		TargetCalendar:  env("TARGET_CALENDAR", f.TargetCalendar),
		ReminderMinutes: reminder,
		TimePolicy:      policy,
		AlarmReading:    alarms,
		Invitees:        env("INVITEES", f.Invitees),
		Notes:           env("NOTES", f.Notes),
		ImportPath:      env("IMPORT_PATH", f.ImportPath),
		SyncCron:        env("SYNC_CRON", f.SyncCron),
		ExportDir:       exportDir,
		TelegramToken:   env("TELEGRAM_BOT_TOKEN", f.TelegramToken),
		TelegramChatID:  chatID,
		WebhookURL:      strings.TrimSuffix(env("WEBHOOK_URL", f.WebhookURL), "/"),
		ServerPort:      serverPort,
		APIUsername:     env("API_USERNAME", f.APIUsername),
		APIPassword:     env("API_PASSWORD", f.APIPassword),
	}

	if cfg.Store == StoreCalDAV && (cfg.CalDAVUsername == "" || cfg.CalDAVPassword == "") {
		return nil, fmt.Errorf("CALDAV_USERNAME and CALDAV_PASSWORD are required for the caldav store")
	}
	if cfg.SyncCron != "" {
		if _, err := cron.ParseStandard(cfg.SyncCron); err != nil {
			return nil, fmt.Errorf("invalid SYNC_CRON %q: %w", cfg.SyncCron, err)
		}
	}

	return cfg, nil
}

// IsAllowedChat reports whether the bot should answer in chatID.
// Without a configured chat every chat is allowed.
func (c *Config) IsAllowedChat(chatID int64) bool {
	return c.TelegramChatID == 0 || chatID == c.TelegramChatID
}

func readFile(path string) (File, error) {
	var f File
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, nil
		}
		return f, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse config: %w", err)
	}
	return f, nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
