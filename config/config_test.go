package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

var envKeys = []string{
	"CONFIG_PATH", "DATABASE_PATH", "TIMEZONE", "STORE", "CALDAV_URL", "CALDAV_USERNAME",
	"CALDAV_PASSWORD", "CALDAV_HOME_SET", "CALENDARS", "TARGET_CALENDAR", "REMINDER_MINUTES",
	"TIME_POLICY", "ALARM_READING", "INVITEES", "NOTES", "IMPORT_PATH", "SYNC_CRON", "EXPORT_DIR",
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "WEBHOOK_URL", "SERVER_PORT", "API_USERNAME", "API_PASSWORD",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store != StoreSQLite || cfg.DatabasePath != "./data/kommunist.db" {
		t.Errorf("store = %q %q", cfg.Store, cfg.DatabasePath)
	}
	if cfg.Timezone.String() != "UTC" || cfg.ReminderMinutes != 30 {
		t.Errorf("tz = %v, reminder = %d", cfg.Timezone, cfg.ReminderMinutes)
	}
	if cfg.TimePolicy != "zoned" || cfg.AlarmReading != "total" {
		t.Errorf("policy = %q, alarms = %q", cfg.TimePolicy, cfg.AlarmReading)
	}
	if !reflect.DeepEqual(cfg.Calendars, []string{"Personal"}) {
		t.Errorf("Calendars = %v", cfg.Calendars)
	}
	if cfg.ServerPort != "8080" || cfg.ExportDir != "./data/export" {
		t.Errorf("port = %q, export = %q", cfg.ServerPort, cfg.ExportDir)
	}
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CALENDARS", "Work, Personal,,")
	t.Setenv("REMINDER_MINUTES", "15")
	t.Setenv("TIME_POLICY", "Floating")
	t.Setenv("ALARM_READING", "minutes")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("WEBHOOK_URL", "https://bot.example.org/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(cfg.Calendars, []string{"Work", "Personal"}) {
		t.Errorf("Calendars = %v", cfg.Calendars)
	}
	if cfg.ReminderMinutes != 15 || cfg.TimePolicy != "floating" || cfg.AlarmReading != "minutes" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.TelegramChatID != -100123 || cfg.WebhookURL != "https://bot.example.org" {
		t.Errorf("chat = %d, webhook = %q", cfg.TelegramChatID, cfg.WebhookURL)
	}
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "kommunist.yaml")
	yaml := `store: caldav
caldav_username: me
caldav_password: secret
calendars: [Work, Family]
target_calendar: Family
sync_cron: "0 */6 * * *"
import_path: /data/feed.ics
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("TARGET_CALENDAR", "Work")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store != StoreCalDAV || cfg.CalDAVUsername != "me" {
		t.Errorf("store = %q, user = %q", cfg.Store, cfg.CalDAVUsername)
	}
	if cfg.TargetCalendar != "Work" {
		t.Errorf("TargetCalendar = %q, want env override", cfg.TargetCalendar)
	}
	if cfg.SyncCron != "0 */6 * * *" || cfg.ImportPath != "/data/feed.ics" {
		t.Errorf("sync = %q %q", cfg.SyncCron, cfg.ImportPath)
	}
	if !reflect.DeepEqual(cfg.Calendars, []string{"Work", "Family"}) {
		t.Errorf("Calendars = %v", cfg.Calendars)
	}
}

func TestLoadReminderAtStart(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMINDER_MINUTES", "0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ReminderMinutes != 0 {
		t.Errorf("ReminderMinutes = %d, want 0", cfg.ReminderMinutes)
	}

	clearEnv(t)
	path := filepath.Join(t.TempDir(), "kommunist.yaml")
	if err := os.WriteFile(path, []byte("reminder_minutes: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	if cfg, err = Load(); err != nil || cfg.ReminderMinutes != 0 {
		t.Errorf("file reminder = %v, %v, want 0", cfg, err)
	}
}

func TestLoadMissingFileIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err != nil {
		t.Errorf("Load() error = %v", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "timezone", env: map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{name: "store", env: map[string]string{"STORE": "exchange"}},
		{name: "caldav without credentials", env: map[string]string{"STORE": "caldav"}},
		{name: "reminder", env: map[string]string{"REMINDER_MINUTES": "soon"}},
		{name: "negative reminder", env: map[string]string{"REMINDER_MINUTES": "-5"}},
		{name: "policy", env: map[string]string{"TIME_POLICY": "local"}},
		{name: "alarm reading", env: map[string]string{"ALARM_READING": "hours"}},
		{name: "chat id", env: map[string]string{"TELEGRAM_CHAT_ID": "me"}},
		{name: "sync cron", env: map[string]string{"SYNC_CRON": "every now and then"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() succeeded, want error")
			}
		})
	}
}

func TestLoadBrokenFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("calendars: [Work"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)

	if _, err := Load(); err == nil {
		t.Error("Load() accepted a broken file")
	}
}

func TestIsAllowedChat(t *testing.T) {
	open := &Config{}
	if !open.IsAllowedChat(42) {
		t.Error("unconfigured chat should allow everyone")
	}
	locked := &Config{TelegramChatID: 7}
	if locked.IsAllowedChat(42) || !locked.IsAllowedChat(7) {
		t.Error("configured chat should only allow itself")
	}
}
