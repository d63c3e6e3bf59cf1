package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/viper"

	"github.com/ObiAU/airwatch/internal/models"
)

// ErrInvalid tags configuration that must stop the process at startup.
var ErrInvalid = goerr.NewTag("invalid_config")

const envPrefix = "AIRWATCH"

type Config struct {
	Telegram  Telegram  `mapstructure:"telegram"`
	Sources   Sources   `mapstructure:"sources"`
	Admission Admission `mapstructure:"admission"`
	Keywords  Keywords  `mapstructure:"keywords"`
	State     State     `mapstructure:"state"`
	Journal   Journal   `mapstructure:"journal"`
	Server    Server    `mapstructure:"server"`
	Backfill  Backfill  `mapstructure:"backfill"`
	Notify    Notify    `mapstructure:"notify"`
	Uptime    Uptime    `mapstructure:"uptime"`
	Log       Log       `mapstructure:"log"`
}

type Telegram struct {
	Token        string `mapstructure:"token" masq:"secret"`
	Channel      string `mapstructure:"channel"`
	OperatorChat string `mapstructure:"operator_chat"`
	WebhookURL   string `mapstructure:"webhook_url"`
	// APIEndpoint overrides the Bot API endpoint format, for a local Bot
	// API server.
	APIEndpoint string `mapstructure:"api_endpoint"`
}

type Sources struct {
	Official  []string `mapstructure:"official"`
	Monitored []string `mapstructure:"monitored"`
}

type Admission struct {
	Throttle      time.Duration `mapstructure:"throttle"`
	DedupCapacity int           `mapstructure:"dedup_capacity"`
}

type Keywords struct {
	File string `mapstructure:"file"`
}

type State struct {
	File string `mapstructure:"file"`
}

// Journal rows older than Retention are pruned at startup. Zero keeps
// everything.
type Journal struct {
	Path      string        `mapstructure:"path"`
	Retention time.Duration `mapstructure:"retention"`
}

type Server struct {
	Port string `mapstructure:"port"`
}

type Backfill struct {
	Enabled bool          `mapstructure:"enabled"`
	Window  time.Duration `mapstructure:"window"`
}

// MaxNotifyAttempts bounds notify.max_attempts. A single delivery worker
// serves the queue, so one undeliverable message holds up the rest.
const MaxNotifyAttempts = 10

type Notify struct {
	QueueSize   int           `mapstructure:"queue_size"`
	Rate        float64       `mapstructure:"rate"`
	Burst       int           `mapstructure:"burst"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
}

type Uptime struct {
	Interval time.Duration `mapstructure:"interval"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads .env, the optional config file and the environment, in
// increasing order of precedence. The result is not validated.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, goerr.Wrap(err, "failed to load .env")
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", configFile))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvironmentVariables(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to decode config")
	}
	cfg.Sources.Official = splitList(cfg.Sources.Official)
	cfg.Sources.Monitored = splitList(cfg.Sources.Monitored)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.channel", "")
	v.SetDefault("telegram.operator_chat", "")
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.api_endpoint", "")

	v.SetDefault("sources.official", []string{"air_alert_ua"})
	v.SetDefault("sources.monitored", []string{"air_alert_ua"})

	v.SetDefault("admission.throttle", 10*time.Second)
	v.SetDefault("admission.dedup_capacity", 500)

	v.SetDefault("keywords.file", "")
	v.SetDefault("state.file", "state.json")
	v.SetDefault("journal.path", "journal.db")
	v.SetDefault("journal.retention", 30*24*time.Hour)
	v.SetDefault("server.port", "8080")

	v.SetDefault("backfill.enabled", false)
	v.SetDefault("backfill.window", 60*time.Minute)

	v.SetDefault("notify.queue_size", 256)
	v.SetDefault("notify.rate", 1.0)
	v.SetDefault("notify.burst", 3)
	v.SetDefault("notify.max_attempts", 5)
	v.SetDefault("notify.max_backoff", time.Minute)

	v.SetDefault("uptime.interval", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// bindEnvironmentVariables keeps the variable names used by earlier
// deployments working alongside the prefixed ones.
func bindEnvironmentVariables(v *viper.Viper) error {
	aliases := map[string][]string{
		"telegram.token":         {"AIRWATCH_TELEGRAM_TOKEN", "BOT_TOKEN"},
		"telegram.channel":       {"AIRWATCH_TELEGRAM_CHANNEL", "CHANNEL_ID"},
		"telegram.operator_chat": {"AIRWATCH_TELEGRAM_OPERATOR_CHAT", "USER_CHAT_ID"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return goerr.Wrap(err, "failed to bind env", goerr.V("key", key))
		}
	}
	return nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			id := models.NormalizeSourceID(part)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Validate checks everything the pipeline needs before it starts. An
// official source missing from the monitored list is added to it.
func (c *Config) Validate(requireTelegram bool) error {
	if requireTelegram {
		if c.Telegram.Token == "" {
			return goerr.New("telegram token is required", goerr.T(ErrInvalid))
		}
		if c.Telegram.Channel == "" {
			return goerr.New("telegram relay channel is required", goerr.T(ErrInvalid))
		}
		if _, _, err := c.OperatorChatID(); err != nil {
			return err
		}
	}
	if len(c.Sources.Official) == 0 {
		return goerr.New("at least one official source is required", goerr.T(ErrInvalid))
	}
	for _, id := range c.Sources.Official {
		if !contains(c.Sources.Monitored, id) {
			c.Sources.Monitored = append(c.Sources.Monitored, id)
		}
	}
	if c.Admission.Throttle <= 0 {
		return goerr.New("admission throttle must be positive",
			goerr.V("throttle", c.Admission.Throttle), goerr.T(ErrInvalid))
	}
	if c.Admission.DedupCapacity <= 0 {
		return goerr.New("dedup capacity must be positive",
			goerr.V("capacity", c.Admission.DedupCapacity), goerr.T(ErrInvalid))
	}
	if c.State.File == "" {
		return goerr.New("state file path is required", goerr.T(ErrInvalid))
	}
	if c.Notify.MaxAttempts < 1 || c.Notify.MaxAttempts > MaxNotifyAttempts {
		return goerr.New("notify max attempts out of range",
			goerr.V("max_attempts", c.Notify.MaxAttempts), goerr.V("limit", MaxNotifyAttempts), goerr.T(ErrInvalid))
	}
	if c.Notify.MaxBackoff <= 0 || c.Notify.MaxBackoff > 10*time.Minute {
		return goerr.New("notify max backoff must be between 0 and 10m",
			goerr.V("max_backoff", c.Notify.MaxBackoff), goerr.T(ErrInvalid))
	}
	if c.Journal.Retention < 0 {
		return goerr.New("journal retention must not be negative",
			goerr.V("retention", c.Journal.Retention), goerr.T(ErrInvalid))
	}
	if c.Backfill.Enabled && c.Backfill.Window <= 0 {
		return goerr.New("backfill window must be positive",
			goerr.V("window", c.Backfill.Window), goerr.T(ErrInvalid))
	}
	if c.Uptime.Interval <= 0 {
		return goerr.New("uptime interval must be positive",
			goerr.V("interval", c.Uptime.Interval), goerr.T(ErrInvalid))
	}
	return nil
}

// OperatorChatID parses the operator chat. ok is false when none is set.
func (c *Config) OperatorChatID() (id int64, ok bool, err error) {
	raw := strings.TrimSpace(c.Telegram.OperatorChat)
	if raw == "" {
		return 0, false, nil
	}
	id, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, goerr.Wrap(err, "operator chat must be a numeric chat id",
			goerr.V("operator_chat", raw), goerr.T(ErrInvalid))
	}
	return id, true, nil
}

// Tiers marks every configured official source as trusted.
func (c *Config) Tiers() models.Tiers {
	return models.NewTiers(c.Sources.Official)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// DataDirReady makes sure the directory holding path exists.
func DataDirReady(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return goerr.Wrap(err, "failed to create data directory", goerr.V("dir", dir))
	}
	return nil
}
