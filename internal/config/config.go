package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	ServiceName string
	Env         string
	LogFile     string
	CORSOrigins []string

	Database Database
	Payment  Payment
	Auth     Auth
	Kafka    Kafka
	Policy   Policy
	Contact  Contact
}

type Database struct {
	Host     string
	Port     string
	Name     string
	Username string
	Password string
	Schema   string
}

// DSN builds the pgx connection string the same way for every caller.
func (d Database) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		d.Username, d.Password, d.Host, d.Port, d.Name, d.Schema)
}

type Payment struct {
	Gateway   string // "razorpay" or "mock"
	BaseURL   string
	KeyID     string
	KeySecret string
	Currency  string
	Timeout   time.Duration
	RateRPS   float64
	RateBurst int
}

type Auth struct {
	JWTSecret string
}

type Kafka struct {
	Brokers    []string
	OrderTopic string
}

type Policy struct {
	CancelWindow time.Duration
	ReturnWindow time.Duration
}

// Contact is the store contact record served at /api/contact.
type Contact struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Load reads an optional .env file and then the process environment.
// Secrets have no defaults: a missing one is a startup error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		ServiceName: getenv("SERVICE_NAME", "storefront"),
		Env:         getenv("ENV", "dev"),
		LogFile:     os.Getenv("LOG_FILE"),
		CORSOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "*")),
		Database: Database{
			Host:     getenv("BLUEPRINT_DB_HOST", "localhost"),
			Port:     getenv("BLUEPRINT_DB_PORT", "5432"),
			Name:     getenv("BLUEPRINT_DB_DATABASE", "storefront"),
			Username: getenv("BLUEPRINT_DB_USERNAME", "postgres"),
			Password: os.Getenv("BLUEPRINT_DB_PASSWORD"),
			Schema:   getenv("BLUEPRINT_DB_SCHEMA", "public"),
		},
		Payment: Payment{
			Gateway:   strings.ToLower(getenv("PAYMENT_GATEWAY", "razorpay")),
			BaseURL:   strings.TrimRight(getenv("RAZORPAY_BASE_URL", "https://api.razorpay.com"), "/"),
			KeyID:     strings.TrimSpace(os.Getenv("RAZORPAY_KEY_ID")),
			KeySecret: strings.TrimSpace(os.Getenv("RAZORPAY_KEY_SECRET")),
			Currency:  strings.ToUpper(getenv("PAYMENT_CURRENCY", "INR")),
		},
		Auth: Auth{
			JWTSecret: strings.TrimSpace(os.Getenv("JWT_SECRET")),
		},
		Kafka: Kafka{
			Brokers:    splitCSV(os.Getenv("KAFKA_BROKERS")),
			OrderTopic: getenv("KAFKA_ORDER_TOPIC", "order-events"),
		},
		Contact: Contact{
			Email:   os.Getenv("STORE_CONTACT_EMAIL"),
			Phone:   os.Getenv("STORE_CONTACT_PHONE"),
			Address: os.Getenv("STORE_CONTACT_ADDRESS"),
		},
	}

	var err error
	if cfg.Payment.Timeout, err = durationEnv("PAYMENT_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.Policy.CancelWindow, err = durationEnv("CANCEL_WINDOW", 24*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.Policy.ReturnWindow, err = durationEnv("RETURN_WINDOW", 7*24*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.Payment.RateRPS, err = floatEnv("PAYMENT_RATE_RPS", 5); err != nil {
		errs = append(errs, err)
	}
	if cfg.Payment.RateBurst, err = intEnv("PAYMENT_RATE_BURST", 10); err != nil {
		errs = append(errs, err)
	}

	if cfg.Payment.KeySecret == "" {
		errs = append(errs, errors.New("RAZORPAY_KEY_SECRET is required"))
	}
	if cfg.Payment.Gateway == "razorpay" && cfg.Payment.KeyID == "" {
		errs = append(errs, errors.New("RAZORPAY_KEY_ID is required"))
	}
	if cfg.Payment.Gateway != "razorpay" && cfg.Payment.Gateway != "mock" {
		errs = append(errs, fmt.Errorf("PAYMENT_GATEWAY must be razorpay or mock, got %q", cfg.Payment.Gateway))
	}
	if cfg.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", key, v)
	}
	return f, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
