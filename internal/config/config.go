// Package config builds the process configuration once at startup from
// flags, ASSESSOR_* environment variables, an optional config file and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pavelanni/assessor/internal/model"
)

const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

// Default provider endpoints. Both speak the OpenAI chat completions API.
const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	GroqModel     = "llama-3.3-70b-versatile"
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	GeminiModel   = "gemini-2.0-flash"
)

// Provider is the connection profile of one LLM backend.
type Provider struct {
	Name        string  `validate:"required"`
	BaseURL     string  `validate:"required,url"`
	APIKey      string  `validate:"required"`
	Model       string  `validate:"required"`
	Temperature float32 `validate:"gte=0,lte=2"`
}

// Config is passed by reference to every component that needs settings.
type Config struct {
	Addr      string
	Lang      string `validate:"required"`
	LogLevel  string
	LogFormat string

	Store         string `validate:"oneof=sqlite mongo"`
	DBPath        string `validate:"required_if=Store sqlite"`
	MongoURI      string `validate:"required_if=Store mongo"`
	MongoDatabase string `validate:"required_if=Store mongo"`

	LedgerPath   string
	ExcerptRunes int `validate:"gte=0"`
	MinQuestions int `validate:"gte=0"`
	PingLLM      bool

	Fast   Provider `validate:"-"`
	Native Provider `validate:"-"`
	Grader Provider `validate:"-"`
}

// LoadDotEnv loads a .env file into the process environment. A missing file
// is not an error; variables already set win.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// SetDefaults registers every key with its default on v so that env
// variables and config file entries are honored even without a flag.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("lang", "en")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("store", StoreSQLite)
	v.SetDefault("db", "assessor.db")
	v.SetDefault("mongo-uri", "")
	v.SetDefault("mongo-database", "assessor")
	v.SetDefault("ledger", "grades.csv")
	v.SetDefault("excerpt-runes", 10000)
	v.SetDefault("min-questions", 5)
	v.SetDefault("ping-llm", false)
	v.SetDefault("temperature", 0.2)

	v.SetDefault("fast-url", GroqBaseURL)
	v.SetDefault("fast-model", GroqModel)
	v.SetDefault("fast-key", "")
	v.SetDefault("native-url", GeminiBaseURL)
	v.SetDefault("native-model", GeminiModel)
	v.SetDefault("native-key", "")
	v.SetDefault("grader-url", GroqBaseURL)
	v.SetDefault("grader-model", GroqModel)
	v.SetDefault("grader-key", "")
}

// FromViper reads a Config from v. Provider keys fall back to the
// conventional GROQ_API_KEY and GEMINI_API_KEY variables. The grader uses the
// fast text backend unless configured otherwise.
func FromViper(v *viper.Viper) *Config {
	temp := float32(v.GetFloat64("temperature"))
	return &Config{
		Addr:          v.GetString("addr"),
		Lang:          v.GetString("lang"),
		LogLevel:      v.GetString("log-level"),
		LogFormat:     v.GetString("log-format"),
		Store:         strings.ToLower(v.GetString("store")),
		DBPath:        v.GetString("db"),
		MongoURI:      v.GetString("mongo-uri"),
		MongoDatabase: v.GetString("mongo-database"),
		LedgerPath:    v.GetString("ledger"),
		ExcerptRunes:  v.GetInt("excerpt-runes"),
		MinQuestions:  v.GetInt("min-questions"),
		PingLLM:       v.GetBool("ping-llm"),
		Fast: Provider{
			Name:        "groq",
			BaseURL:     v.GetString("fast-url"),
			APIKey:      firstNonEmpty(v.GetString("fast-key"), os.Getenv("GROQ_API_KEY")),
			Model:       v.GetString("fast-model"),
			Temperature: temp,
		},
		Native: Provider{
			Name:        "gemini",
			BaseURL:     v.GetString("native-url"),
			APIKey:      firstNonEmpty(v.GetString("native-key"), os.Getenv("GEMINI_API_KEY")),
			Model:       v.GetString("native-model"),
			Temperature: temp,
		},
		Grader: Provider{
			Name:        "grader",
			BaseURL:     v.GetString("grader-url"),
			APIKey:      firstNonEmpty(v.GetString("grader-key"), os.Getenv("GROQ_API_KEY")),
			Model:       v.GetString("grader-model"),
			Temperature: temp,
		},
	}
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if err := model.Validate(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ValidateProviders checks the named provider profiles ("fast", "native",
// "grader").
func (c *Config) ValidateProviders(names ...string) error {
	var errs []error
	for _, name := range names {
		p, err := c.provider(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := model.Validate(p); err != nil {
			errs = append(errs, fmt.Errorf("%s provider: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) provider(name string) (Provider, error) {
	switch name {
	case "fast":
		return c.Fast, nil
	case "native":
		return c.Native, nil
	case "grader":
		return c.Grader, nil
	}
	return Provider{}, fmt.Errorf("unknown provider profile %q", name)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
