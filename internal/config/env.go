package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Env struct {
	AppAddr      string
	GinMode      string
	DatabaseDSN  string
	SeatCapacity int
	PrepWindow   time.Duration
	RoutesFile   string
	QRSecret     string
	QRTTL        time.Duration
	DriverName   string
	AMQPURL      string
	AMQPExchange string
	CORSOrigins  []string
}

func LoadEnv() Env {
	appAddr := strings.TrimSpace(os.Getenv("APP_ADDR"))
	if appAddr == "" {
		appAddr = ":8080"
	}

	exchange := strings.TrimSpace(os.Getenv("AMQP_EXCHANGE"))
	if exchange == "" {
		exchange = "driverdesk.events"
	}

	secret := os.Getenv("QR_SECRET")
	if secret == "" {
		secret = "dev-qr-secret-change-me"
	}

	driver := strings.TrimSpace(os.Getenv("DRIVER_NAME"))
	if driver == "" {
		driver = "Driver"
	}

	return Env{
		AppAddr:      appAddr,
		GinMode:      strings.TrimSpace(os.Getenv("GIN_MODE")),
		DatabaseDSN:  strings.TrimSpace(os.Getenv("DATABASE_DSN")),
		SeatCapacity: envInt("SEAT_CAPACITY", 6),
		PrepWindow:   envDuration("PREP_WINDOW", 600*time.Second),
		RoutesFile:   strings.TrimSpace(os.Getenv("ROUTES_FILE")),
		QRSecret:     secret,
		QRTTL:        envDuration("QR_TTL", 15*time.Minute),
		DriverName:   driver,
		AMQPURL:      strings.TrimSpace(os.Getenv("AMQP_URL")),
		AMQPExchange: exchange,
		CORSOrigins:  splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// envDuration accepts Go durations ("10m") or plain seconds ("600").
func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitList(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
