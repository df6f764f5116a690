package main

import (
	"time"

	"github.com/Tyrowin/chatrelay/internal/server"
	"github.com/Tyrowin/chatrelay/internal/store"
)

type Config struct {
	Port                    string        `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins          string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize          int64         `env:"MAX_MESSAGE_SIZE,default=1048576"`
	RateLimitBurst          int           `env:"RATE_LIMIT_BURST,default=5"`
	RateLimitRefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
	SendBufferSize          int           `env:"SEND_BUFFER_SIZE,default=256"`
	PersistTimeout          time.Duration `env:"PERSIST_TIMEOUT,default=5s"`
	TypingExcludeSender     bool          `env:"TYPING_EXCLUDE_SENDER,default=true"`
	ShutdownTimeout         time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	LogLevel                string        `env:"LOG_LEVEL,default=INFO"`
	LogFile                 string        `env:"LOG_FILE"`

	JWTSecret  string `env:"JWT_SECRET,required=true"`
	AuthCookie string `env:"AUTH_COOKIE,default=chat-token"`
	JWTIssuer  string `env:"JWT_ISSUER,default=chatrelay"`

	StoreDriver   string `env:"STORE_DRIVER,default=mongo"`
	MongoURI      string `env:"MONGO_URI,default=mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE,default=chat"`
	BadgerPath    string `env:"BADGER_PATH,default=./data/messages"`
	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`
	PostgresDSN   string `env:"POSTGRES_DSN"`
}

func (c Config) Server() server.Config {
	return server.Config{
		Port:           c.Port,
		AllowedOrigins: server.ParseOrigins(c.AllowedOrigins),
		MaxMessageSize: c.MaxMessageSize,
		RateLimit: server.RateLimitConfig{
			Burst:          c.RateLimitBurst,
			RefillInterval: c.RateLimitRefillInterval,
		},
		SendBufferSize:      c.SendBufferSize,
		PersistTimeout:      c.PersistTimeout,
		TypingExcludeSender: c.TypingExcludeSender,
		ShutdownTimeout:     c.ShutdownTimeout,
		LogFile:             c.LogFile,
	}
}

func (c Config) Store() store.Config {
	return store.Config{
		Driver:        c.StoreDriver,
		MongoURI:      c.MongoURI,
		MongoDatabase: c.MongoDatabase,
		BadgerPath:    c.BadgerPath,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		PostgresDSN:   c.PostgresDSN,
	}
}
