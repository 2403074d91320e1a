package main

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	ServiceConfig struct {
		Environment string `env:"SENTRY_ENVIRONMENT" env-default:"development"`
		SentryDSN   string `env:"SENTRY_DSN"`
		LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
		Port        string `env:"PORT" env-default:"8080"`

		DotnetMonitorURL  string        `env:"DOTNET_MONITOR_URL" env-required:"true"`
		TraceDecoderURL   string        `env:"TRACE_DECODER_URL"`
		TraceFetchTimeout time.Duration `env:"TRACE_FETCH_TIMEOUT" env-default:"10m"`
		TraceFetchRetries int           `env:"TRACE_FETCH_RETRIES" env-default:"0"`

		DefaultDurationSeconds int64 `env:"DEFAULT_DURATION_SECONDS" env-default:"30"`
		MaxDurationSeconds     int64 `env:"MAX_DURATION_SECONDS" env-default:"300"`
		DropTrailingSample     bool  `env:"DROP_TRAILING_SAMPLE" env-default:"false"`

		StagingBucketURL string `env:"STAGING_BUCKET_URL"`
		ArchiveBucketURL string `env:"ARCHIVE_BUCKET_URL"`

		ProfilingKafkaBrokers []string `env:"PROFILING_KAFKA_BROKERS" env-separator:","`
		CapturesKafkaTopic    string   `env:"CAPTURES_KAFKA_TOPIC" env-default:"pprof-captures"`
	}
)

func readConfig() (ServiceConfig, error) {
	var c ServiceConfig
	err := cleanenv.ReadEnv(&c)
	return c, err
}

func (c ServiceConfig) defaultDuration() time.Duration {
	return time.Duration(c.DefaultDurationSeconds) * time.Second
}

func (c ServiceConfig) maxDuration() time.Duration {
	return time.Duration(c.MaxDurationSeconds) * time.Second
}
