package subwatch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingCredentials = errors.New("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID are required")
)

// Value that disables an optional component (a tool, the history db).
const Disabled = "-"

const (
	DefaultTargetsPath = "./targets.json"
	DefaultOutputDir   = "./output/"
	DefaultTelegramAPI = "https://api.telegram.org"
	DefaultLogLevel    = "info"
	historyDBName      = "history.db"
)

type TelegramSettings struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
	APIURL string `yaml:"api_url"`
}

// Executable path or name for each enumeration tool.
// Setting a tool to "-" disables it.
type ToolPaths struct {
	Subfinder string `yaml:"subfinder"`
	Amass     string `yaml:"amass"`
	Findomain string `yaml:"findomain"`
	Bbot      string `yaml:"bbot"`
}

// Raw settings as given on the command line or in the YAML file.
// Empty values are unset and fall through to the next source.
type Settings struct {
	// Path to a YAML file holding the same settings.
	// Default: $SUBWATCH_CONFIG
	Config string `yaml:"-"`
	// Target list. Default: $TARGETS_JSON or ./targets.json
	TargetsPath string `yaml:"targets"`
	// Snapshot root. Default: $OUTPUT_DIR or ./output/
	OutputDir string `yaml:"output"`
	// Scan history database. Default: $SUBWATCH_HISTORY_DB or <output>/history.db
	HistoryDB string `yaml:"history"`
	// DNS server (host:port) used to check new hostnames. Empty disables it.
	Resolver string `yaml:"resolver"`
	LogLevel string `yaml:"log_level"`

	Telegram TelegramSettings `yaml:"telegram"`
	Tools    ToolPaths        `yaml:"tools"`
}

type settingsBuilder struct {
	fs    afero.Fs
	flags Settings
	file  Settings
	conf  *Configuration
}

func newSettingsBuilder(fs afero.Fs, flags Settings) *settingsBuilder {
	return &settingsBuilder{fs: fs, flags: flags, conf: &Configuration{fs: fs}}
}

func (b *settingsBuilder) isValid(val string) bool {
	return strings.TrimSpace(val) != ""
}

// flag -> env -> file -> default
func (b *settingsBuilder) bind(val, env, file, def string) string {
	if b.isValid(val) {
		return val
	}
	if v := os.Getenv(env); b.isValid(v) {
		return v
	}
	if b.isValid(file) {
		return file
	}
	return def
}

func (b *settingsBuilder) loadFile() error {
	fpath := b.bind(b.flags.Config, "SUBWATCH_CONFIG", "", "")
	if fpath == "" {
		return nil
	}

	data, err := afero.ReadFile(b.fs, fpath)
	if err != nil {
		return errors.Wrapf(err, "failed to read configuration file %s", fpath)
	}
	if err := yaml.Unmarshal(data, &b.file); err != nil {
		return errors.Wrapf(err, "invalid configuration file %s", fpath)
	}
	return nil
}

func (b *settingsBuilder) setPaths() *settingsBuilder {
	f, ff := b.flags, b.file
	b.conf.TargetsPath = b.bind(f.TargetsPath, "TARGETS_JSON", ff.TargetsPath, DefaultTargetsPath)
	b.conf.OutputDir = b.bind(f.OutputDir, "OUTPUT_DIR", ff.OutputDir, DefaultOutputDir)

	history := b.bind(f.HistoryDB, "SUBWATCH_HISTORY_DB", ff.HistoryDB, filepath.Join(b.conf.OutputDir, historyDBName))
	if history == Disabled {
		history = ""
	}
	b.conf.HistoryDB = history
	return b
}

func (b *settingsBuilder) setTelegram() *settingsBuilder {
	f, ff := b.flags.Telegram, b.file.Telegram
	b.conf.Telegram = TelegramSettings{
		Token:  b.bind(f.Token, "TELEGRAM_TOKEN", ff.Token, ""),
		ChatID: b.bind(f.ChatID, "TELEGRAM_CHAT_ID", ff.ChatID, ""),
		APIURL: strings.TrimRight(b.bind(f.APIURL, "TELEGRAM_API_URL", ff.APIURL, DefaultTelegramAPI), "/"),
	}
	return b
}

func (b *settingsBuilder) setTools() *settingsBuilder {
	f, ff := b.flags.Tools, b.file.Tools
	b.conf.Tools = ToolPaths{
		Subfinder: b.bind(f.Subfinder, "SUBFINDER_PATH", ff.Subfinder, "subfinder"),
		Amass:     b.bind(f.Amass, "AMASS_PATH", ff.Amass, "amass"),
		Findomain: b.bind(f.Findomain, "FINDOMAIN_PATH", ff.Findomain, "findomain"),
		Bbot:      b.bind(f.Bbot, "BBOT_PATH", ff.Bbot, "bbot"),
	}
	return b
}

func (b *settingsBuilder) setMisc() (*settingsBuilder, error) {
	b.conf.Resolver = b.bind(b.flags.Resolver, "SUBWATCH_RESOLVER", b.file.Resolver, "")

	lvl := b.bind(b.flags.LogLevel, "SUBWATCH_LOG_LEVEL", b.file.LogLevel, DefaultLogLevel)
	level, err := zerolog.ParseLevel(strings.ToLower(lvl))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", lvl)
	}
	b.conf.LogLevel = level
	return b, nil
}

func (b *settingsBuilder) build() (*Configuration, error) {
	if err := b.loadFile(); err != nil {
		return nil, err
	}

	if _, err := b.setPaths().setTelegram().setTools().setMisc(); err != nil {
		return nil, err
	}
	return b.conf, nil
}

// Resolved configuration. Built once by the entry point and handed to
// every component.
type Configuration struct {
	TargetsPath string
	OutputDir   string
	// Empty when history is disabled
	HistoryDB string
	// Empty when the resolver is disabled
	Resolver string
	LogLevel zerolog.Level

	Telegram TelegramSettings
	Tools    ToolPaths

	fs afero.Fs
}

// Filesystem used by the stores. Defaults to the OS filesystem.
func (c *Configuration) FS() afero.Fs {
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}
	return c.fs
}

func (c *Configuration) SetFS(fs afero.Fs) {
	c.fs = fs
}

// Checks the chat credentials are present. Commands that talk to the chat
// endpoint call this before doing any work.
func (c *Configuration) RequireCredentials() error {
	if c.Telegram.Token == "" || c.Telegram.ChatID == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Loads variables from the given dotenv files into the environment. Missing
// files are ignored, variables already set are kept.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "failed to load %s", f)
		}
	}
	return nil
}

// Binds the settings against the environment, the optional configuration
// file and the defaults. The configuration file is read from fs, which is
// also the filesystem handed to the stores.
func LoadConfiguration(fs afero.Fs, s Settings) (*Configuration, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	conf, err := newSettingsBuilder(fs, s).build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	return conf, nil
}
