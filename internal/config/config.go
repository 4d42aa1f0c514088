// Package config loads the server configuration from environment variables.
// In ENV=dev a .env file in the working directory is loaded first.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	StorageLocal = "local"
	StorageMinio = "minio"
	StorageGCS   = "gcs"
)

// Config is read once at startup and treated as immutable.
type Config struct {
	Port int

	Database DatabaseConfig
	Auth     AuthConfig
	Google   GoogleConfig
	Storage  StorageConfig

	CORSOrigin      string
	OwnershipPolicy string
	LoginRatePerMin int

	LogFormat string
	LogLevel  string
}

type DatabaseConfig struct {
	Driver string
	Path   string // sqlite file
	URL    string // postgres connection URL
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether Google sign-in is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != ""
}

type StorageConfig struct {
	Backend        string
	UploadDir      string
	UploadMaxBytes int64
	Minio          MinioConfig
	GCS            GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

// Load reads Config from the environment. All missing or invalid required
// values are reported together in one error.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		Port:     getEnvInt("PORT", 3000),
		Database: databaseFromEnv(),
		Auth: AuthConfig{
			JWTSecret:  os.Getenv("JWT_SECRET"),
			TokenTTL:   getEnvDuration("TOKEN_TTL", 4*time.Hour),
			BcryptCost: getEnvInt("BCRYPT_COST", 10),
		},
		Google: GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", StorageLocal),
			UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
			UploadMaxBytes: getEnvInt64("UPLOAD_MAX_BYTES", 5<<20),
			Minio: MinioConfig{
				Endpoint:  os.Getenv("MINIO_ENDPOINT"),
				AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
				SecretKey: os.Getenv("MINIO_SECRET_KEY"),
				Bucket:    getEnv("MINIO_BUCKET", "hospital-images"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          os.Getenv("GCS_BUCKET"),
				ProjectID:       os.Getenv("GCS_PROJECT_ID"),
				CredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),
			},
		},
		CORSOrigin:      getEnv("CORS_ORIGIN", "*"),
		OwnershipPolicy: getEnv("OWNERSHIP_POLICY", "last-editor"),
		LoginRatePerMin: getEnvInt("LOGIN_RATE_PER_MIN", 20),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads only the database settings, for commands such as
// migrate that never serve HTTP and need no signing secret.
func LoadDatabase() (DatabaseConfig, error) {
	loadDotEnv()

	db := databaseFromEnv()
	if problems := db.problems(); len(problems) > 0 {
		return DatabaseConfig{}, fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return db, nil
}

func loadDotEnv() {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}
}

func databaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Driver: getEnv("DB_DRIVER", DriverSQLite),
		Path:   getEnv("DB_PATH", "data/hospital.db"),
		URL:    os.Getenv("DATABASE_URL"),
	}
}

func (d DatabaseConfig) problems() []string {
	switch d.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if d.URL == "" {
			return []string{"DATABASE_URL is required when DB_DRIVER=postgres"}
		}
	default:
		return []string{fmt.Sprintf("DB_DRIVER %q is not one of sqlite, postgres", d.Driver)}
	}
	return nil
}

func (c *Config) validate() error {
	var problems []string

	if c.Auth.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}

	problems = append(problems, c.Database.problems()...)

	switch c.Storage.Backend {
	case StorageLocal:
	case StorageMinio:
		if c.Storage.Minio.Endpoint == "" {
			problems = append(problems, "MINIO_ENDPOINT is required when STORAGE_BACKEND=minio")
		}
	case StorageGCS:
		if c.Storage.GCS.Bucket == "" {
			problems = append(problems, "GCS_BUCKET is required when STORAGE_BACKEND=gcs")
		}
	default:
		problems = append(problems, fmt.Sprintf("STORAGE_BACKEND %q is not one of local, minio, gcs", c.Storage.Backend))
	}

	if c.OwnershipPolicy != "last-editor" && c.OwnershipPolicy != "preserve" {
		problems = append(problems, fmt.Sprintf("OWNERSHIP_POLICY %q is not one of last-editor, preserve", c.OwnershipPolicy))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
