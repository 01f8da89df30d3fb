/*
Package config loads grantwatch settings from defaults, an optional YAML file,
a .env file and the environment, in increasing order of precedence.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Source names, in run order.
const (
	SourceBizinfo  = "bizinfo"
	SourceKStartup = "kstartup"
	SourceIRIS     = "iris"
)

var SourceNames = []string{SourceBizinfo, SourceKStartup, SourceIRIS}

var (
	ErrUnknownDriver = errors.New("unknown driver")
	ErrUnknownSource = errors.New("unknown source")
)

// Environment variables holding secrets.
const (
	EnvBizinfoKey     = "BIZINFO_CRTFC_KEY"
	EnvTelegramToken  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
	EnvGeminiKey      = "GEMINI_API_KEY"
	EnvSMTPServer     = "SMTP_SERVER"
	EnvSMTPPort       = "SMTP_PORT"
	EnvSMTPUser       = "SMTP_USER"
	EnvSMTPPass       = "SMTP_PASS"
	EnvSMTPFrom       = "SMTP_FROM"
	EnvSMTPTo         = "SMTP_TO"
)

// MissingError names every required variable that is unset.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Vars, ", ")
}

type SourceConfig struct {
	Enabled   bool
	Label     string
	Mode      string
	MaxPerRun int
	Pace      time.Duration
	DigestMax int
	StateFile string
}

type StateConfig struct {
	Driver      string
	Dir         string
	SQLitePath  string
	RedisAddr   string
	RedisPrefix string
}

type SMTPConfig struct {
	Server string
	Port   int
	User   string
	Pass   string
	From   string
	To     string
}

type Config struct {
	BizinfoKey     string
	TelegramToken  string
	TelegramChatID string
	TelegramAPIURL string
	GeminiKey      string
	SMTP           SMTPConfig

	State       StateConfig
	HTTPTimeout time.Duration
	SourcePause time.Duration
	Sources     map[string]SourceConfig

	BizinfoEndpoint    string
	BizinfoResultCount int
	BizinfoHashtags    []string
	KStartupURLs       []string
	KStartupAllow      string
	IRISURL            string
	IRISLimit          int

	NotifyDriver   string
	SummaryEnabled bool
	SummaryModel   string
	KeywordsFile   string
	LogLevel       string
	LogFormat      string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("state.driver", "file")
	v.SetDefault("state.dir", ".")
	v.SetDefault("state.sqlite_path", "grantwatch.db")
	v.SetDefault("state.redis_addr", "localhost:6379")
	v.SetDefault("state.redis_prefix", "grantwatch:seen:")

	v.SetDefault("http.timeout", "30s")
	v.SetDefault("run.source_pause", "1s")

	defaults := map[string]SourceConfig{
		SourceBizinfo:  {Enabled: true, Label: "기업마당", Mode: "item", MaxPerRun: 30, Pace: 500 * time.Millisecond, DigestMax: 10, StateFile: "seen.json"},
		SourceKStartup: {Enabled: true, Label: "K-Startup", Mode: "digest", MaxPerRun: 30, Pace: 600 * time.Millisecond, DigestMax: 10, StateFile: "seen_kstartup.json"},
		SourceIRIS:     {Enabled: true, Label: "IRIS", Mode: "digest", MaxPerRun: 30, Pace: 200 * time.Millisecond, DigestMax: 10, StateFile: "seen_iris.json"},
	}
	for name, sc := range defaults {
		prefix := "sources." + name + "."
		v.SetDefault(prefix+"enabled", sc.Enabled)
		v.SetDefault(prefix+"label", sc.Label)
		v.SetDefault(prefix+"mode", sc.Mode)
		v.SetDefault(prefix+"max_per_run", sc.MaxPerRun)
		v.SetDefault(prefix+"pace", sc.Pace)
		v.SetDefault(prefix+"digest_max_items", sc.DigestMax)
		v.SetDefault(prefix+"state_file", sc.StateFile)
	}

	v.SetDefault("bizinfo.endpoint", "https://www.bizinfo.go.kr/uss/rss/bizinfoApi.do")
	v.SetDefault("bizinfo.result_count", 200)
	v.SetDefault("bizinfo.hashtags", []string{})
	v.SetDefault("kstartup.urls", []string{"https://www.k-startup.go.kr/web/contents/bizpbanc-ongoing.do"})
	v.SetDefault("kstartup.allow_pattern", `^https?://`)
	v.SetDefault("iris.url", "https://www.iris.go.kr/contents/retrieveBsnsAncmBtinSituListView.do")
	v.SetDefault("iris.limit", 40)

	v.SetDefault("telegram.api_url", "https://api.telegram.org")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("notify.driver", "telegram")
	v.SetDefault("summary.enabled", false)
	v.SetDefault("summary.model", "gemini-2.5-flash")
	v.SetDefault("keywords_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

func bindSecrets(v *viper.Viper) error {
	binds := map[string]string{
		"bizinfo.crtfc_key":  EnvBizinfoKey,
		"telegram.bot_token": EnvTelegramToken,
		"telegram.chat_id":   EnvTelegramChatID,
		"gemini.api_key":     EnvGeminiKey,
		"smtp.server":        EnvSMTPServer,
		"smtp.port":          EnvSMTPPort,
		"smtp.user":          EnvSMTPUser,
		"smtp.pass":          EnvSMTPPass,
		"smtp.from":          EnvSMTPFrom,
		"smtp.to":            EnvSMTPTo,
	}
	for key, env := range binds {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Load reads configuration. An empty path searches ./grantwatch.yaml and
// ignores its absence; an explicit path must exist.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindSecrets(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("grantwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	trim := func(key string) string { return strings.TrimSpace(v.GetString(key)) }

	cfg := &Config{
		BizinfoKey:     trim("bizinfo.crtfc_key"),
		TelegramToken:  trim("telegram.bot_token"),
		TelegramChatID: trim("telegram.chat_id"),
		TelegramAPIURL: trim("telegram.api_url"),
		GeminiKey:      trim("gemini.api_key"),
		SMTP: SMTPConfig{
			Server: trim("smtp.server"),
			Port:   v.GetInt("smtp.port"),
			User:   trim("smtp.user"),
			Pass:   v.GetString("smtp.pass"),
			From:   trim("smtp.from"),
			To:     trim("smtp.to"),
		},
		State: StateConfig{
			Driver:      strings.ToLower(trim("state.driver")),
			Dir:         trim("state.dir"),
			SQLitePath:  trim("state.sqlite_path"),
			RedisAddr:   trim("state.redis_addr"),
			RedisPrefix: v.GetString("state.redis_prefix"),
		},
		HTTPTimeout:        v.GetDuration("http.timeout"),
		SourcePause:        v.GetDuration("run.source_pause"),
		Sources:            make(map[string]SourceConfig, len(SourceNames)),
		BizinfoEndpoint:    trim("bizinfo.endpoint"),
		BizinfoResultCount: v.GetInt("bizinfo.result_count"),
		BizinfoHashtags:    splitList(v.GetStringSlice("bizinfo.hashtags")),
		KStartupURLs:       splitList(v.GetStringSlice("kstartup.urls")),
		KStartupAllow:      v.GetString("kstartup.allow_pattern"),
		IRISURL:            trim("iris.url"),
		IRISLimit:          v.GetInt("iris.limit"),
		NotifyDriver:       strings.ToLower(trim("notify.driver")),
		SummaryEnabled:     v.GetBool("summary.enabled"),
		SummaryModel:       trim("summary.model"),
		KeywordsFile:       trim("keywords_file"),
		LogLevel:           trim("log.level"),
		LogFormat:          trim("log.format"),
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.User
	}

	for _, name := range SourceNames {
		prefix := "sources." + name + "."
		cfg.Sources[name] = SourceConfig{
			Enabled:   v.GetBool(prefix + "enabled"),
			Label:     v.GetString(prefix + "label"),
			Mode:      strings.ToLower(v.GetString(prefix + "mode")),
			MaxPerRun: v.GetInt(prefix + "max_per_run"),
			Pace:      v.GetDuration(prefix + "pace"),
			DigestMax: v.GetInt(prefix + "digest_max_items"),
			StateFile: v.GetString(prefix + "state_file"),
		}
	}
	return cfg
}

// splitList accepts both YAML lists and comma-separated environment values.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Selected returns the enabled sources in run order, narrowed to only when
// it is non-empty.
func (c *Config) Selected(only []string) ([]string, error) {
	want := map[string]bool{}
	for _, name := range only {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, ok := c.Sources[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
		}
		want[name] = true
	}

	var out []string
	for _, name := range SourceNames {
		if len(want) > 0 {
			if want[name] {
				out = append(out, name)
			}
			continue
		}
		if c.Sources[name].Enabled {
			out = append(out, name)
		}
	}
	return out, nil
}

// Validate checks everything a run of the given sources needs before any
// network call is made. dryRun skips delivery credentials.
func (c *Config) Validate(sources []string, dryRun bool) error {
	switch c.State.Driver {
	case "file", "sqlite", "sqlite3", "redis":
	default:
		return fmt.Errorf("%w: state.driver %q", ErrUnknownDriver, c.State.Driver)
	}
	for _, name := range sources {
		switch c.Sources[name].Mode {
		case "item", "digest":
		default:
			return fmt.Errorf("invalid mode %q for source %s (want item or digest)", c.Sources[name].Mode, name)
		}
	}

	var missing []string
	for _, name := range sources {
		if name == SourceBizinfo && c.BizinfoKey == "" {
			missing = append(missing, EnvBizinfoKey)
		}
	}

	if !dryRun {
		switch c.NotifyDriver {
		case "telegram":
			if c.TelegramToken == "" {
				missing = append(missing, EnvTelegramToken)
			}
			if c.TelegramChatID == "" {
				missing = append(missing, EnvTelegramChatID)
			}
		case "email":
			if c.SMTP.Server == "" {
				missing = append(missing, EnvSMTPServer)
			}
			if c.SMTP.From == "" {
				missing = append(missing, EnvSMTPFrom)
			}
			if c.SMTP.To == "" {
				missing = append(missing, EnvSMTPTo)
			}
		case "console":
		default:
			return fmt.Errorf("%w: notify.driver %q", ErrUnknownDriver, c.NotifyDriver)
		}
	}

	if c.SummaryEnabled && c.GeminiKey == "" {
		missing = append(missing, EnvGeminiKey)
	}

	if len(missing) > 0 {
		return &MissingError{Vars: missing}
	}
	return nil
}
