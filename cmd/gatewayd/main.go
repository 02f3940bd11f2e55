// Command gatewayd runs the gateway as a standalone reverse proxy,
// configured entirely from a YAML file (spec §6).
//
// Run: gatewayd -config gateway.yaml
package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/krishna-kudari/apigateway/cache"
	"github.com/krishna-kudari/apigateway/gateway"
)

func main() {
	configPath := flag.String("config", "gateway.yaml", "path to the gateway YAML config")
	addr := flag.String("addr", ":8080", "listen address")
	redisAddr := flag.String("redis", "", "optional Redis address for the rate-limit and cache backends")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := log.Logger

	cfg, err := gateway.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *configPath).Msg("failed to load gateway config")
	}

	opts := []gateway.Option{gateway.WithLogger(logger)}

	if *redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		opts = append(opts, gateway.WithRedis(rdb), gateway.WithCacheProvider(cache.NewRedisProvider(rdb)))
	} else {
		opts = append(opts, gateway.WithCacheProvider(cache.NewMemoryProvider()))
	}

	gw, err := gateway.New(*cfg, opts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to compile gateway config")
	}

	srv := &http.Server{
		Addr:         *addr,
		Handler:      gw,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	logger.Info().Str("addr", *addr).Int("paths", len(cfg.Paths)).Msg("gateway listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("gateway server exited")
		os.Exit(1)
	}
}
