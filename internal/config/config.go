package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const configDir = ".teca"
const configFile = "config.json"
const envPrefix = "TECA"

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type StreamConfig struct {
	MaxRetries  int           `mapstructure:"max_retries"`
	Timeout     time.Duration `mapstructure:"timeout"`
	TimeoutStep time.Duration `mapstructure:"timeout_step"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

type RevealConfig struct {
	CardInterval   time.Duration `mapstructure:"card_interval"`
	TypingInterval time.Duration `mapstructure:"typing_interval"`
	TypingStep     int           `mapstructure:"typing_step"`
}

type EventsConfig struct {
	Sort       string `mapstructure:"sort"`
	YearsBack  int    `mapstructure:"years_back"`
	YearsAhead int    `mapstructure:"years_ahead"`
}

type PlacesConfig struct {
	LookupRPS   float64 `mapstructure:"lookup_rps"`
	LookupBurst int     `mapstructure:"lookup_burst"`
}

type Config struct {
	Server             string   `mapstructure:"server"`
	Token              string   `mapstructure:"token"`
	City               string   `mapstructure:"city"`
	Localities         []string `mapstructure:"localities"`
	LocalityIndicators []string `mapstructure:"locality_indicators"`
	GrammarFile        string   `mapstructure:"grammar_file"`
	DBPath             string   `mapstructure:"db_path"`

	Log    LogConfig    `mapstructure:"log"`
	Stream StreamConfig `mapstructure:"stream"`
	Reveal RevealConfig `mapstructure:"reveal"`
	Events EventsConfig `mapstructure:"events"`
	Places PlacesConfig `mapstructure:"places"`

	Profile string `mapstructure:"-"`
}

func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	return filepath.Join(home, configDir), nil
}

func configPath(profile string) (string, error) {
	dir, err := homeDir()
	if err != nil {
		return "", err
	}
	filename := configFile
	if profile != "" {
		filename = fmt.Sprintf("config-%s.json", profile)
	}
	return filepath.Join(dir, filename), nil
}

// applyDefaults registers every key. Keys without a default are invisible to
// environment overrides, so each one gets a value here.
func applyDefaults(v *viper.Viper, dir, profile string) {
	suffix := ""
	if profile != "" {
		suffix = "-" + profile
	}

	v.SetDefault("server", "")
	v.SetDefault("token", "")
	v.SetDefault("city", "Villajoyosa")
	v.SetDefault("localities", []string{"villajoyosa", "la vila joiosa", "vila joiosa"})
	v.SetDefault("locality_indicators", []string{"vila", "joiosa", "villajoyosa"})
	v.SetDefault("grammar_file", "")
	v.SetDefault("db_path", filepath.Join(dir, "teca"+suffix+".db"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", filepath.Join(dir, "teca.log"))

	v.SetDefault("stream.max_retries", 2)
	v.SetDefault("stream.timeout", 30*time.Second)
	v.SetDefault("stream.timeout_step", 15*time.Second)
	v.SetDefault("stream.retry_delay", time.Second)

	v.SetDefault("reveal.card_interval", 350*time.Millisecond)
	v.SetDefault("reveal.typing_interval", 15*time.Millisecond)
	v.SetDefault("reveal.typing_step", 3)

	v.SetDefault("events.sort", "chronological")
	v.SetDefault("events.years_back", 1)
	v.SetDefault("events.years_ahead", 0)

	v.SetDefault("places.lookup_rps", 5.0)
	v.SetDefault("places.lookup_burst", 2)
}

func newViper(dir, profile string) *viper.Viper {
	v := viper.New()
	applyDefaults(v, dir, profile)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the profile's config file, if any, layered over the defaults
// and under TECA_* environment variables.
func Load(profile string) (*Config, error) {
	dir, err := homeDir()
	if err != nil {
		return nil, err
	}
	path, err := configPath(profile)
	if err != nil {
		return nil, err
	}

	v := newViper(dir, profile)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Profile = profile
	return &cfg, nil
}

func (c *Config) Save() error {
	path, err := configPath(c.Profile)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(c.fileMap(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// fileMap is the on-disk shape: nested sections, durations as strings.
func (c *Config) fileMap() map[string]any {
	return map[string]any{
		"server":              c.Server,
		"token":               c.Token,
		"city":                c.City,
		"localities":          c.Localities,
		"locality_indicators": c.LocalityIndicators,
		"grammar_file":        c.GrammarFile,
		"db_path":             c.DBPath,
		"log": map[string]any{
			"level":  c.Log.Level,
			"format": c.Log.Format,
			"file":   c.Log.File,
		},
		"stream": map[string]any{
			"max_retries":  c.Stream.MaxRetries,
			"timeout":      c.Stream.Timeout.String(),
			"timeout_step": c.Stream.TimeoutStep.String(),
			"retry_delay":  c.Stream.RetryDelay.String(),
		},
		"reveal": map[string]any{
			"card_interval":   c.Reveal.CardInterval.String(),
			"typing_interval": c.Reveal.TypingInterval.String(),
			"typing_step":     c.Reveal.TypingStep,
		},
		"events": map[string]any{
			"sort":        c.Events.Sort,
			"years_back":  c.Events.YearsBack,
			"years_ahead": c.Events.YearsAhead,
		},
		"places": map[string]any{
			"lookup_rps":   c.Places.LookupRPS,
			"lookup_burst": c.Places.LookupBurst,
		},
	}
}

// Keys lists every settable key in dotted form.
func Keys() []string {
	v := viper.New()
	applyDefaults(v, "", "")
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

func knownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// Set assigns one dotted key from its string form, converting to the key's
// type ("30s" for durations, comma-separated lists).
func (c *Config) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if !knownKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}
	v := viper.New()
	if err := v.MergeConfigMap(c.fileMap()); err != nil {
		return fmt.Errorf("loading current config: %w", err)
	}
	if strings.HasSuffix(key, "localities") || strings.HasSuffix(key, "indicators") {
		v.Set(key, splitList(value))
	} else {
		v.Set(key, value)
	}

	var next Config
	if err := v.Unmarshal(&next); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	next.Profile = c.Profile
	*c = next
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Display is the config as shown to the user, with the token masked.
func (c *Config) Display() map[string]any {
	m := c.fileMap()
	if c.Token != "" {
		m["token"] = maskToken(c.Token)
	}
	return m
}

func maskToken(tok string) string {
	if len(tok) <= 8 {
		return "****"
	}
	return tok[:4] + "****" + tok[len(tok)-4:]
}

func (c *Config) profileFlag() string {
	if c.Profile == "" {
		return ""
	}
	return " --profile " + c.Profile
}

func (c *Config) Validate() error {
	pf := c.profileFlag()
	if c.Server == "" {
		return fmt.Errorf("server not set. Run: teca%s config set server <url>", pf)
	}
	if c.Stream.MaxRetries < 0 {
		return fmt.Errorf("stream.max_retries must be >= 0, got %d", c.Stream.MaxRetries)
	}
	switch strings.ToLower(c.Events.Sort) {
	case "", "chronological", "date", "alphabetical", "title":
	default:
		return fmt.Errorf("events.sort must be chronological or alphabetical, got %q", c.Events.Sort)
	}
	return nil
}

// Dir is the directory holding config files, the log and the database.
func Dir() (string, error) {
	return homeDir()
}

func ListProfiles() ([]string, error) {
	dir, err := homeDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config directory: %w", err)
	}
	var profiles []string
	for _, e := range entries {
		name := e.Name()
		if name == configFile {
			profiles = append(profiles, "default")
			continue
		}
		if strings.HasPrefix(name, "config-") && strings.HasSuffix(name, ".json") {
			profiles = append(profiles, strings.TrimSuffix(strings.TrimPrefix(name, "config-"), ".json"))
		}
	}
	return profiles, nil
}

func ProfileName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}
