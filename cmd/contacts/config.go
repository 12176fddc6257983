package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/contacts/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultPublicURL    = "http://localhost:8000"
	defaultMailWorkers  = 2
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the contacts service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Environment
	Environment string

	// Address the service is reachable by users, links in emails point to it
	PublicURL string

	// Token lifetimes. Zero means token manager default
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	VerificationTokenTTL time.Duration

	// SMTP server. Emails are only logged if host is empty
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	MailWorkers  int

	// S3 compatible storage for avatars. Avatar upload is off if bucket is empty
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3PublicURL string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		Environment: defaultEnvironment,
		PublicURL:   defaultPublicURL,
		MailWorkers: defaultMailWorkers,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) (err error) {
			if value != "" {
				*o, err = strconv.Atoi(value)
			}
			return err
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) (err error) {
			if value != "" {
				*o, err = time.ParseDuration(value)
			}
			return err
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":            setString(&c.ListenAddr),
		"DATABASE_URI":           setString(&c.DatabaseDSN),
		"SECRET_KEY":             setString(&c.SecretKey),
		"LOG_LEVEL":              setString(&c.LogLevel),
		"ENVIRONMENT":            setString(&c.Environment),
		"PUBLIC_URL":             setString(&c.PublicURL),
		"ACCESS_TOKEN_TTL":       setDuration(&c.AccessTokenTTL),
		"REFRESH_TOKEN_TTL":      setDuration(&c.RefreshTokenTTL),
		"VERIFICATION_TOKEN_TTL": setDuration(&c.VerificationTokenTTL),
		"SMTP_HOST":              setString(&c.SMTPHost),
		"SMTP_PORT":              setInt(&c.SMTPPort),
		"SMTP_USERNAME":          setString(&c.SMTPUsername),
		"SMTP_PASSWORD":          setString(&c.SMTPPassword),
		"MAIL_FROM":              setString(&c.MailFrom),
		"MAIL_WORKERS":           setInt(&c.MailWorkers),
		"S3_ENDPOINT":            setString(&c.S3Endpoint),
		"S3_REGION":              setString(&c.S3Region),
		"S3_ACCESS_KEY":          setString(&c.S3AccessKey),
		"S3_SECRET_KEY":          setString(&c.S3SecretKey),
		"S3_BUCKET":              setString(&c.S3Bucket),
		"S3_PUBLIC_URL":          setString(&c.S3PublicURL),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, errors.New(key+": "+err.Error()))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("contacts", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.PublicURL, "public-url", "u", c.PublicURL, "Public service URL used in email links")
	fs.DurationVar(&c.AccessTokenTTL, "access-ttl", c.AccessTokenTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTokenTTL, "refresh-ttl", c.RefreshTokenTTL, "Refresh token lifetime")
	fs.DurationVar(&c.VerificationTokenTTL, "verification-ttl", c.VerificationTokenTTL, "Email verification token lifetime")
	fs.StringVar(&c.SMTPHost, "smtp-host", c.SMTPHost, "SMTP server host, emails are logged if empty")
	fs.IntVar(&c.SMTPPort, "smtp-port", c.SMTPPort, "SMTP server port")
	fs.StringVar(&c.MailFrom, "mail-from", c.MailFrom, "Sender address of outgoing emails")
	fs.IntVar(&c.MailWorkers, "mail-workers", c.MailWorkers, "Number of workers sending emails")
	fs.StringVar(&c.S3Endpoint, "s3-endpoint", c.S3Endpoint, "S3 compatible storage endpoint")
	fs.StringVar(&c.S3Bucket, "s3-bucket", c.S3Bucket, "Bucket for avatars, upload is off if empty")

	return fs.Parse(args)
}

// Check options the service can't start without
func (c *Config) Validate() error {
	var errs []error
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database uri is required"))
	}
	if c.SMTPHost != "" && c.MailFrom == "" {
		errs = append(errs, errors.New("mail from address is required when smtp host is set"))
	}
	return errors.Join(errs...)
}
