package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"citabot/internal/api"
	"citabot/internal/conversation"
	"citabot/internal/datastore"
	"citabot/internal/genai"
	"citabot/internal/reminder"
	"citabot/internal/session"
	"citabot/internal/slots"
	"citabot/internal/store"
	"citabot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for citabot state data
	DefaultStateDir = "/var/lib/citabot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "citabot.db"
	// DefaultTimezone is the timezone appointments are offered in
	DefaultTimezone = "Europe/Madrid"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Build module options
	storeOpts := buildStoreOptions(flags)
	dataOpts := buildDataOptions(flags)
	engineOpts := buildEngineOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping citabot with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "data", len(dataOpts), "engine", len(engineOpts), "api", len(apiOpts))
	if err := api.Run(storeOpts, dataOpts, engineOpts, apiOpts); err != nil {
		slog.Error("citabot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("citabot exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir       string
	DatabaseURL    string
	APIAddr        string
	OpenAIKey      string
	TwilioSID      string
	TwilioToken    string
	TwilioFrom     string
	Timezone       string
	SessionTimeout time.Duration
	NoDB           bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	dbDSN          *string
	apiAddr        *string
	openaiKey      *string
	timezone       *string
	sessionTimeout *time.Duration
	noDB           *bool
	config         Config
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:       os.Getenv("CITABOT_STATE_DIR"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		APIAddr:        os.Getenv("API_ADDR"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		TwilioSID:      os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:     os.Getenv("TWILIO_FROM_NUMBER"),
		Timezone:       os.Getenv("CITABOT_TIMEZONE"),
		SessionTimeout: session.DefaultTimeout,
		NoDB:           util.ParseBoolEnv("CITABOT_NO_DB", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CITABOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.Timezone == "" {
		config.Timezone = DefaultTimezone
	}
	if minutes := util.ParseIntEnv("SESSION_TIMEOUT_MINUTES", 0); minutes > 0 {
		config.SessionTimeout = time.Duration(minutes) * time.Minute
	}

	slog.Debug("environment variables loaded",
		"CITABOT_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"API_ADDR", config.APIAddr,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"TWILIO_CONFIGURED", config.TwilioSID != "" && config.TwilioToken != "" && config.TwilioFrom != "",
		"CITABOT_TIMEZONE", config.Timezone,
		"SESSION_TIMEOUT", config.SessionTimeout.String(),
		"CITABOT_NO_DB", config.NoDB)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for citabot data (overrides $CITABOT_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "database DSN for the archival store (overrides $DATABASE_URL)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		openaiKey:      flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		timezone:       flag.String("timezone", config.Timezone, "timezone for offered slots (overrides $CITABOT_TIMEZONE)"),
		sessionTimeout: flag.Duration("session-timeout", config.SessionTimeout, "inactivity timeout before sessions expire"),
		noDB:           flag.Bool("no-db", config.NoDB, "skip the database backend and keep records in memory (overrides $CITABOT_NO_DB)"),
		config:         config,
	}

	flag.Parse()

	// Default to SQLite in the state directory unless a DSN was given
	if *flags.dbDSN == "" && !*flags.noDB {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", *flags.dbDSN)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"openaiKeySet", *flags.openaiKey != "",
		"timezone", *flags.timezone,
		"sessionTimeout", flags.sessionTimeout.String(),
		"noDB", *flags.noDB)

	return flags
}

// buildStoreOptions constructs archival store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var opts []store.Option
	if *flags.noDB || *flags.dbDSN == "" {
		return opts
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		opts = append(opts, store.WithPostgresDSN(*flags.dbDSN))
	} else {
		opts = append(opts, store.WithSQLiteDSN(*flags.dbDSN))
	}
	return opts
}

// buildDataOptions constructs data manager configuration options
func buildDataOptions(flags Flags) []datastore.Option {
	opts := []datastore.Option{
		datastore.WithFilePath(filepath.Join(*flags.stateDir, datastore.DefaultFileName)),
	}
	if loc := loadLocation(*flags.timezone); loc != nil {
		opts = append(opts, datastore.WithLocation(loc))
	}
	return opts
}

// buildEngineOptions constructs conversation engine configuration options
func buildEngineOptions(flags Flags) []conversation.Option {
	sessions := session.NewStore(session.WithTimeout(*flags.sessionTimeout))
	opts := []conversation.Option{conversation.WithSessions(sessions)}
	if loc := loadLocation(*flags.timezone); loc != nil {
		opts = append(opts, conversation.WithSlotConfig(slots.DefaultConfig(loc)))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var opts []api.Option
	if *flags.apiAddr != "" {
		opts = append(opts, api.WithAddr(*flags.apiAddr))
	}

	if *flags.openaiKey != "" {
		os.Setenv("OPENAI_API_KEY", *flags.openaiKey)
		assist, err := genai.NewClient()
		if err != nil {
			slog.Warn("GenAI assist disabled", "error", err)
		} else {
			opts = append(opts, api.WithAssistClient(assist))
		}
	}

	cfg := flags.config
	if cfg.TwilioSID != "" && cfg.TwilioToken != "" && cfg.TwilioFrom != "" {
		sender, err := reminder.NewClient(
			reminder.WithAccountSID(cfg.TwilioSID),
			reminder.WithAuthToken(cfg.TwilioToken),
			reminder.WithFromNumber(cfg.TwilioFrom),
		)
		if err != nil {
			slog.Warn("SMS reminders disabled", "error", err)
		} else {
			opts = append(opts, api.WithReminderSender(sender))
		}
	} else {
		slog.Info("Twilio credentials not configured, SMS reminders disabled")
	}

	return opts
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("Invalid timezone, falling back to local", "timezone", name, "error", err)
		return nil
	}
	return loc
}
