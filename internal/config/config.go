package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" envDefault:"dev"`
	APIAddr       string `env:"API_ADDR" envDefault:":1245"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	PostgresDSN   string `env:"POSTGRES_DSN"`

	SeatCount          int64         `env:"SEAT_COUNT" envDefault:"50"`
	ReserveConcurrency int           `env:"RESERVE_CONCURRENCY" envDefault:"1"`
	NotifyConcurrency  int           `env:"NOTIFY_CONCURRENCY" envDefault:"2"`
	PollInterval       time.Duration `env:"POLL_INTERVAL" envDefault:"250ms"`
	EventChannel       string        `env:"EVENT_CHANNEL" envDefault:"reserveq:events"`
}

func Load() Config {
	var c Config
	if err := env.Parse(&c); err != nil {
		log.Fatal(err)
	}
	return c
}
