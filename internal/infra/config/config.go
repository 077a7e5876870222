package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"trash_reminder_bot/internal/domain/schedule"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// Operator bot; disabled when the token is empty.
	TelegramToken   string `env:"TELEGRAM_TOKEN"`
	AdminTelegramID int64  `env:"ADMIN_TELEGRAM_ID"`

	Twilio struct {
		AccountSID         string `env:"ACCOUNT_SID,required"`
		AuthToken          string `env:"AUTH_TOKEN,required"`
		WhatsAppFrom       string `env:"WHATSAPP_FROM,required"` // e.g. whatsapp:+14155238886
		BasicTemplateSID   string `env:"TEMPLATE_BASIC_SID"`
		HolidayTemplateSID string `env:"TEMPLATE_HOLIDAY_SID"`
	} `envPrefix:"TWILIO_"`

	Redis struct {
		Addr     string        `env:"ADDR"` // Run lock disabled when empty
		Password string        `env:"PASSWORD"`
		DB       int           `env:"DB" envDefault:"0"`
		LockTTL  time.Duration `env:"LOCK_TTL" envDefault:"6h"`
	} `envPrefix:"REDIS_"`

	Timezone        string        `env:"TIMEZONE" envDefault:"America/New_York"`
	CronSpecNightly string        `env:"CRON_SPEC_NIGHTLY" envDefault:"0 20 * * 0-4"` // 20:00 Sun-Thu, the nights before Mon-Fri pickups
	RunTimeout      time.Duration `env:"RUN_TIMEOUT" envDefault:"10m"`
	ExtraHolidays   []string      `env:"EXTRA_HOLIDAYS" envSeparator:","` // presidents,columbus,veterans

	RecyclingAnchor string `env:"RECYCLING_ANCHOR_MONDAY" envDefault:"2026-01-05"`
	RecyclingType   string `env:"RECYCLING_ANCHOR_TYPE" envDefault:"Paper"`

	// Operator tables, JSON or YAML.
	OverridesRaw  string `env:"HOLIDAY_OVERRIDES"`
	ShiftRulesRaw string `env:"SHIFT_RULES"`
	ExceptionsRaw string `env:"RECYCLING_EXCEPTIONS"`

	// File written by an external holiday scraper, same format as HOLIDAY_OVERRIDES.
	HolidaySourceFile string `env:"HOLIDAY_SOURCE_FILE"`

	Schedule Schedule
}

// Schedule is derived from the raw fields by Load.
type Schedule struct {
	Location     *time.Location
	AnchorMonday time.Time
	AnchorType   schedule.RecyclingType
	Overrides    schedule.Overrides
	ShiftRules   schedule.RuleTable
	Exceptions   schedule.RecyclingExceptions
	TableErrors  []error // Malformed tables; reported at startup and treated as absent
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Environment = strings.ToLower(cfg.Environment)

	if cfg.TelegramToken != "" && cfg.AdminTelegramID == 0 {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}

	if err := cfg.parseSchedule(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) parseSchedule() error {
	var err error
	c.Schedule.Location, err = time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	c.Schedule.AnchorMonday, err = schedule.ParseDate(c.RecyclingAnchor)
	if err != nil {
		return fmt.Errorf("invalid RECYCLING_ANCHOR_MONDAY: %w", err)
	}
	if wd := c.Schedule.AnchorMonday.Weekday(); wd != time.Monday {
		return fmt.Errorf("RECYCLING_ANCHOR_MONDAY %s is a %s", c.RecyclingAnchor, wd)
	}
	c.Schedule.AnchorType, err = schedule.ParseRecyclingType(c.RecyclingType)
	if err != nil {
		return fmt.Errorf("invalid RECYCLING_ANCHOR_TYPE: %w", err)
	}

	if _, err := schedule.RulesWith(c.ExtraHolidays...); err != nil {
		return fmt.Errorf("invalid EXTRA_HOLIDAYS: %w", err)
	}

	// A malformed table must not stop reminders from going out.
	if c.Schedule.Overrides, err = schedule.ParseOverrides([]byte(c.OverridesRaw)); err != nil {
		c.Schedule.TableErrors = append(c.Schedule.TableErrors, fmt.Errorf("HOLIDAY_OVERRIDES: %w", err))
	}
	if c.Schedule.ShiftRules, err = schedule.ParseRuleTable([]byte(c.ShiftRulesRaw)); err != nil {
		c.Schedule.TableErrors = append(c.Schedule.TableErrors, fmt.Errorf("SHIFT_RULES: %w", err))
	}
	if c.Schedule.Exceptions, err = schedule.ParseRecyclingExceptions([]byte(c.ExceptionsRaw)); err != nil {
		c.Schedule.TableErrors = append(c.Schedule.TableErrors, fmt.Errorf("RECYCLING_EXCEPTIONS: %w", err))
	}
	return nil
}

// NewResolver builds the schedule resolver described by the configuration.
func (c *AppConfig) NewResolver() (*schedule.Resolver, error) {
	rules, err := schedule.RulesWith(c.ExtraHolidays...)
	if err != nil {
		return nil, err
	}
	calendar, err := schedule.NewCalendar(rules...)
	if err != nil {
		return nil, err
	}
	return schedule.NewResolver(c.Schedule.AnchorMonday, c.Schedule.AnchorType,
		schedule.WithCalendar(calendar),
		schedule.WithOverrides(c.Schedule.Overrides),
		schedule.WithRuleTable(c.Schedule.ShiftRules),
		schedule.WithRecyclingExceptions(c.Schedule.Exceptions),
	)
}

// IsProduction reports whether logs should be machine-readable.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "staging"
}

// TelegramEnabled reports whether the operator bot should start.
func (c *AppConfig) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

// RunLockEnabled reports whether nightly runs are guarded by Redis.
func (c *AppConfig) RunLockEnabled() bool {
	return c.Redis.Addr != ""
}
