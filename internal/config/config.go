package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	HTTPAddr    string
	LogLevel    string
	Env         string // dev|prod
	SentryDSN   string
	Location    *time.Location

	JWTSecret string
	TokenTTL  time.Duration

	UploadDir      string
	SignaturePath  string
	MaxUploadBytes int64
	DepartmentName string
	ApproverTitle  string
	PublicBaseURL  string
	CORSOrigins    []string

	SMTP SMTPConfig

	TelegramToken        string
	TelegramAdminChatIDs []int64

	PurgeRejectedEvery time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Enabled: без хоста почта не отправляется, уведомления только логируются.
func (s SMTPConfig) Enabled() bool { return s.Host != "" }

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using environment variables")
	}

	tz := getenv("TZ", "Asia/Kolkata")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}

	dbURL, err := requireEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	secret, err := requireEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	ttl, err := parseDuration("TOKEN_TTL", "24h")
	if err != nil {
		return nil, err
	}
	purge, err := parseDuration("PURGE_REJECTED_EVERY", "0")
	if err != nil {
		return nil, err
	}
	port, err := parseInt("SMTP_PORT", "587")
	if err != nil {
		return nil, err
	}
	maxUpload, err := parseInt("MAX_UPLOAD_BYTES", strconv.Itoa(5<<20))
	if err != nil {
		return nil, err
	}
	chatIDs, err := parseIDs(os.Getenv("TELEGRAM_ADMIN_CHAT_IDS"))
	if err != nil {
		return nil, fmt.Errorf("TELEGRAM_ADMIN_CHAT_IDS: %w", err)
	}

	uploadDir := getenv("UPLOAD_DIR", "uploads")
	smtpUser := os.Getenv("SMTP_USER")

	cfg := &Config{
		DatabaseURL: dbURL,
		HTTPAddr:    getenv("HTTP_ADDR", ":5000"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		Env:         getenv("ENV", "dev"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),
		Location:    loc,

		JWTSecret: secret,
		TokenTTL:  ttl,

		UploadDir:      uploadDir,
		SignaturePath:  getenv("SIGNATURE_PATH", uploadDir+"/admin_signature.png"),
		MaxUploadBytes: int64(maxUpload),
		DepartmentName: getenv("DEPARTMENT_NAME", "CSE Department"),
		ApproverTitle:  getenv("APPROVER_TITLE", "Admin"),
		PublicBaseURL:  strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:5000"), "/"),
		CORSOrigins:    splitList(os.Getenv("CORS_ORIGINS")),

		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     port,
			User:     smtpUser,
			Password: os.Getenv("SMTP_PASS"),
			From:     getenv("MAIL_FROM", smtpUser),
		},

		TelegramToken:        os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAdminChatIDs: chatIDs,

		PurgeRejectedEvery: purge,
	}
	return cfg, nil
}

func requireEnv(k string) (string, error) {
	v := os.Getenv(k)
	if v == "" {
		return "", fmt.Errorf("required env %s is empty", k)
	}
	return v, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func parseDuration(k, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenv(k, def))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration", k)
	}
	return d, nil
}

func parseInt(k, def string) (int, error) {
	n, err := strconv.Atoi(getenv(k, def))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		out = append(out, strings.TrimRight(p, "/"))
	}
	return out
}

func parseIDs(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
