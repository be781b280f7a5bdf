package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"files-board/internal/domain"
	"files-board/internal/safepath"
)

const (
	EnvSessionSecret    = "FILESBOARD_SESSION_SECRET"
	EnvCapabilitySecret = "FILESBOARD_CAPABILITY_SECRET"
)

type ServerConfig struct {
	Port            int           `yaml:"port"`
	MaxUploadSize   int64         `yaml:"max_upload_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	BasePath string `yaml:"base_path"`
}

type FileConfig struct {
	MaxNameLength  int         `yaml:"max_name_length"`
	DirPermissions os.FileMode `yaml:"dir_permissions"`
	ValidNameRegex string      `yaml:"valid_name_regex"`
}

type AuthConfig struct {
	SessionSecret    string        `yaml:"session_secret"`
	CapabilitySecret string        `yaml:"capability_secret"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
	CapabilityTTL    time.Duration `yaml:"capability_ttl"`
	BcryptCost       int           `yaml:"bcrypt_cost"`
	Users            []domain.User `yaml:"users"`
}

type ShortLinkConfig struct {
	StateFile   string `yaml:"state_file"`
	CodeLength  int    `yaml:"code_length"`
	MaxAttempts int    `yaml:"max_attempts"`
}

type PreviewConfig struct {
	MaxLines   int      `yaml:"max_lines"`
	Extensions []string `yaml:"extensions"`
}

type RoutesConfig struct {
	Login      string `yaml:"login"`
	Upload     string `yaml:"upload"`
	Folders    string `yaml:"folders"`
	Files      string `yaml:"files"`
	File       string `yaml:"file"`
	Rename     string `yaml:"rename"`
	ShareToken string `yaml:"share_token"`
	Public     string `yaml:"public"`
	Private    string `yaml:"private"`
	Preview    string `yaml:"preview"`
	MakeShort  string `yaml:"make_short"`
	Short      string `yaml:"short"`
	Notice     string `yaml:"notice"`
}

type Messages struct {
	InvalidCredentials string `yaml:"invalid_credentials"`
	Unauthorized       string `yaml:"unauthorized"`
	Forbidden          string `yaml:"forbidden"`
	NotFound           string `yaml:"not_found"`
	BadRequest         string `yaml:"bad_request"`
	InternalError      string `yaml:"internal_error"`
	ShareLinkNotice    string `yaml:"share_link_notice"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	File      FileConfig      `yaml:"file"`
	Auth      AuthConfig      `yaml:"auth"`
	ShortLink ShortLinkConfig `yaml:"short_link"`
	Preview   PreviewConfig   `yaml:"preview"`
	Routes    RoutesConfig    `yaml:"routes"`
	Messages  Messages        `yaml:"messages"`
	Log       LogConfig       `yaml:"log"`
}

func LoadConfig(filename string) *Config {
	cfg, err := LoadConfigWithError(filename)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func LoadConfigWithError(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and defaults, and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if unmarshalErr := yaml.Unmarshal(data, &cfg); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", unmarshalErr)
	}

	if v := os.Getenv(EnvSessionSecret); v != "" {
		cfg.Auth.SessionSecret = v
	}
	if v := os.Getenv(EnvCapabilitySecret); v != "" {
		cfg.Auth.CapabilitySecret = v
	}

	applyDefaults(&cfg)

	// делаю пути абсолютными для стабильности, независимо от рабочего каталога.
	paths := map[string]*string{
		"storage base path":     &cfg.Storage.BasePath,
		"short link state file": &cfg.ShortLink.StateFile,
	}

	for name, path := range paths {
		if *path == "" {
			continue
		}
		absPath, absErr := filepath.Abs(*path)
		if absErr != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", name, absErr)
		}
		*path = absPath
	}

	if validationErr := validateConfig(&cfg); validationErr != nil {
		return nil, validationErr
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	setInt(&cfg.Server.Port, 8000)
	setInt64(&cfg.Server.MaxUploadSize, 100<<20)
	setDuration(&cfg.Server.ShutdownTimeout, 5*time.Second)

	setInt(&cfg.File.MaxNameLength, 255)
	if cfg.File.DirPermissions == 0 {
		cfg.File.DirPermissions = 0o755
	}

	setDuration(&cfg.Auth.SessionTTL, domain.SessionTTL)
	setDuration(&cfg.Auth.CapabilityTTL, domain.CapabilityTTL)

	setString(&cfg.ShortLink.StateFile, "short_urls.json")
	setInt(&cfg.ShortLink.CodeLength, domain.DefaultShortCodeLength)
	setInt(&cfg.ShortLink.MaxAttempts, 5)

	setInt(&cfg.Preview.MaxLines, domain.DefaultPreviewLines)
	if len(cfg.Preview.Extensions) == 0 {
		cfg.Preview.Extensions = append([]string(nil), domain.DefaultPreviewExtensions...)
	}
	for i, ext := range cfg.Preview.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Preview.Extensions[i] = ext
	}

	r := &cfg.Routes
	setString(&r.Login, "/api/login")
	setString(&r.Upload, "/api/upload")
	setString(&r.Folders, "/api/folders")
	setString(&r.Files, "/api/files")
	setString(&r.File, "/api/files/{filename}")
	setString(&r.Rename, "/api/rename")
	setString(&r.ShareToken, "/api/generate-temp-token/{filename}")
	setString(&r.Public, "/public/{filename}")
	setString(&r.Private, "/private/{filename}")
	setString(&r.Preview, "/api/preview/{filename}")
	setString(&r.MakeShort, "/api/make_short")
	setString(&r.Short, "/short/{code}")
	setString(&r.Notice, "/notice")

	m := &cfg.Messages
	setString(&m.InvalidCredentials, "Invalid username and/or password")
	setString(&m.Unauthorized, "Invalid or expired token")
	setString(&m.Forbidden, "Forbidden")
	setString(&m.NotFound, "File not found")
	setString(&m.BadRequest, "Bad request")
	setString(&m.InternalError, "Internal server error")
	setString(&m.ShareLinkNotice, "This share link is invalid or has expired. Ask the owner for a new one.")

	setString(&cfg.Log.Level, "info")
	setString(&cfg.Log.Format, "text")
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func setInt64(dst *int64, def int64) {
	if *dst == 0 {
		*dst = def
	}
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst == 0 {
		*dst = def
	}
}

type validationError struct {
	field string
	msg   string
}

func (e validationError) Error() string {
	return fmt.Sprintf("%s: %s", e.field, e.msg)
}

func validateConfig(cfg *Config) error {
	type validator func() error

	validators := []validator{
		func() error { return validateRequiredString("storage.base_path", cfg.Storage.BasePath) },
		func() error { return validateRequiredString("auth.session_secret", cfg.Auth.SessionSecret) },
		func() error { return validateRequiredString("auth.capability_secret", cfg.Auth.CapabilitySecret) },
		func() error { return validateDistinctSecrets(cfg.Auth.SessionSecret, cfg.Auth.CapabilitySecret) },
		func() error { return validatePort(cfg.Server.Port) },
		func() error { return validatePositiveInt64("server.max_upload_size", cfg.Server.MaxUploadSize) },
		func() error { return validatePositiveInt("file.max_name_length", cfg.File.MaxNameLength) },
		func() error { return validateRegex("file.valid_name_regex", cfg.File.ValidNameRegex) },
		func() error { return validatePositiveInt("preview.max_lines", cfg.Preview.MaxLines) },
		func() error { return validatePositiveInt("short_link.code_length", cfg.ShortLink.CodeLength) },
		func() error { return validateStateFileOutsideStorage(cfg.ShortLink.StateFile, cfg.Storage.BasePath) },
		func() error { return validateUsers(cfg.Auth.Users) },
	}

	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}

	return nil
}

func validateRequiredString(field, value string) error {
	if value == "" {
		return validationError{field: field, msg: "is required"}
	}
	return nil
}

func validatePositiveInt(field string, value int) error {
	if value <= 0 {
		return validationError{field: field, msg: "must be greater than 0"}
	}
	return nil
}

func validatePositiveInt64(field string, value int64) error {
	if value <= 0 {
		return validationError{field: field, msg: "must be greater than 0"}
	}
	return nil
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return validationError{
			field: "server.port",
			msg:   fmt.Sprintf("must be between 1 and 65535, got %d", port),
		}
	}
	return nil
}

func validateDistinctSecrets(session, capability string) error {
	if session == capability {
		return validationError{field: "auth.capability_secret", msg: "must differ from auth.session_secret"}
	}
	return nil
}

func validateRegex(field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := regexp.Compile(value); err != nil {
		return validationError{field: field, msg: err.Error()}
	}
	return nil
}

// the state file must not be reachable through the file API
func validateStateFileOutsideStorage(stateFile, basePath string) error {
	if safepath.IsWithin(basePath, stateFile) {
		return validationError{field: "short_link.state_file", msg: "must be outside storage.base_path"}
	}
	return nil
}

func validateUsers(users []domain.User) error {
	for i, u := range users {
		if strings.TrimSpace(u.Username) == "" {
			return validationError{field: fmt.Sprintf("auth.users[%d].username", i), msg: "is required"}
		}
		if u.PasswordHash == "" {
			return validationError{field: fmt.Sprintf("auth.users[%d].password_hash", i), msg: "is required"}
		}
	}
	return nil
}
