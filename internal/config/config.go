// Package config maps the viper key space onto typed settings.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Database struct {
	Path string // SQLite file; empty means the default location
	URL  string // postgres:// URL, takes precedence over Path
}

type Scraper struct {
	CacheExpiry time.Duration
	Timeout     time.Duration
	Retries     int
	UserAgent   string
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

type Tracker struct {
	Threshold   float64 // minimum absolute percentage change that triggers a notification
	Concurrency int
}

type Email struct {
	SMTPServer string
	SMTPPort   int
	Username   string
	Password   string
	Sender     string
	Recipients []string
}

// Enabled reports whether enough is configured to send mail.
func (e Email) Enabled() bool {
	return e.Password != "" && e.SMTPServer != "" && len(e.Recipients) > 0
}

type Slack struct {
	WebhookURL string
	Channel    string
	Username   string
}

func (s Slack) Enabled() bool {
	return s.WebhookURL != ""
}

type Config struct {
	Database Database
	Scraper  Scraper
	Tracker  Tracker
	Email    Email
	Slack    Slack
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// SetDefaults registers every known key so that a freshly written config
// file lists them all.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "")
	v.SetDefault("database.url", "")

	v.SetDefault("scraper.cache_expiry", 3600)
	v.SetDefault("scraper.timeout", 10)
	v.SetDefault("scraper.retries", 3)
	v.SetDefault("scraper.user_agent", DefaultUserAgent)
	v.SetDefault("scraper.min_delay", 1)
	v.SetDefault("scraper.max_delay", 3)

	v.SetDefault("tracker.threshold", 5.0)
	v.SetDefault("tracker.concurrency", 3)

	v.SetDefault("email.smtp_server", "smtp.gmail.com")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.sender", "")
	v.SetDefault("email.recipients", []string{})

	v.SetDefault("slack.webhook_url", "")
	v.SetDefault("slack.channel", "#price-alerts")
	v.SetDefault("slack.username", "pricescope")
}

// Load reads the typed configuration out of v.
func Load(v *viper.Viper) Config {
	return Config{
		Database: Database{
			Path: v.GetString("database.path"),
			URL:  v.GetString("database.url"),
		},
		Scraper: Scraper{
			CacheExpiry: seconds(v, "scraper.cache_expiry"),
			Timeout:     seconds(v, "scraper.timeout"),
			Retries:     v.GetInt("scraper.retries"),
			UserAgent:   v.GetString("scraper.user_agent"),
			MinDelay:    seconds(v, "scraper.min_delay"),
			MaxDelay:    seconds(v, "scraper.max_delay"),
		},
		Tracker: Tracker{
			Threshold:   v.GetFloat64("tracker.threshold"),
			Concurrency: v.GetInt("tracker.concurrency"),
		},
		Email: Email{
			SMTPServer: v.GetString("email.smtp_server"),
			SMTPPort:   v.GetInt("email.smtp_port"),
			Username:   v.GetString("email.username"),
			Password:   v.GetString("email.password"),
			Sender:     v.GetString("email.sender"),
			Recipients: splitList(v.GetStringSlice("email.recipients")),
		},
		Slack: Slack{
			WebhookURL: v.GetString("slack.webhook_url"),
			Channel:    v.GetString("slack.channel"),
			Username:   v.GetString("slack.username"),
		},
	}
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetFloat64(key) * float64(time.Second))
}

// splitList accepts both YAML lists and comma separated strings (env vars).
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
