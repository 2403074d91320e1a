package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/getsentry/pprofbridge/internal/capture"
	"github.com/getsentry/pprofbridge/internal/httputil"
	"github.com/getsentry/pprofbridge/internal/logutil"
	"github.com/getsentry/pprofbridge/internal/pprof"
)

type (
	KafkaWriter interface {
		WriteMessages(ctx context.Context, msgs ...kafka.Message) error
		Close() error
	}

	environment struct {
		config ServiceConfig

		capturer       *capture.Capturer
		convertOptions pprof.Options

		staging    *blob.Bucket
		stagingDir string
		// archive and capturesWriter are nil when archiving is disabled.
		archive        *blob.Bucket
		capturesWriter KafkaWriter
	}
)

var release string

func newEnvironment(c ServiceConfig) (*environment, error) {
	if c.maxDuration() >= c.TraceFetchTimeout {
		return nil, fmt.Errorf("trace fetch timeout (%s) must be longer than the maximum duration (%s)", c.TraceFetchTimeout, c.maxDuration())
	}
	if c.DefaultDurationSeconds < 1 || c.DefaultDurationSeconds > c.MaxDurationSeconds {
		return nil, fmt.Errorf("default duration (%s) must be between 1s and the maximum duration (%s)", c.defaultDuration(), c.maxDuration())
	}
	e := environment{config: c}
	if c.DropTrailingSample {
		e.convertOptions.Trailing = pprof.DropTrailing
	}

	ctx := context.Background()
	var err error
	stagingURL := c.StagingBucketURL
	if stagingURL == "" {
		e.stagingDir, err = os.MkdirTemp(os.TempDir(), "pprofbridge-*")
		if err != nil {
			return nil, err
		}
		stagingURL = "file://" + filepath.ToSlash(e.stagingDir)
	}
	e.staging, err = blob.OpenBucket(ctx, stagingURL)
	if err != nil {
		return nil, err
	}

	fetcher, err := capture.NewFetcher(
		c.DotnetMonitorURL,
		e.staging,
		httpclient.WithHTTPTimeout(c.TraceFetchTimeout),
		httpclient.WithRetryCount(c.TraceFetchRetries),
		httpclient.WithRetrier(heimdall.NewRetrier(heimdall.NewConstantBackoff(time.Second, 250*time.Millisecond))),
	)
	if err != nil {
		return nil, err
	}
	var decoder capture.Decoder = capture.DocumentDecoder{}
	if c.TraceDecoderURL != "" {
		decoder, err = capture.NewHTTPDecoder(c.TraceDecoderURL, httpclient.WithHTTPTimeout(c.TraceFetchTimeout))
		if err != nil {
			return nil, err
		}
	}
	e.capturer = &capture.Capturer{
		Fetcher: fetcher,
		Decoder: decoder,
		Options: e.convertOptions,
	}

	if c.ArchiveBucketURL != "" {
		e.archive, err = blob.OpenBucket(ctx, c.ArchiveBucketURL)
		if err != nil {
			return nil, err
		}
		if len(c.ProfilingKafkaBrokers) > 0 {
			e.capturesWriter = &kafka.Writer{
				Addr:         kafka.TCP(c.ProfilingKafkaBrokers...),
				Async:        true,
				Balancer:     kafka.CRC32Balancer{},
				BatchSize:    10,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			}
		}
	}
	return &e, nil
}

func (e *environment) shutdown() {
	err := e.staging.Close()
	if err != nil {
		sentry.CaptureException(err)
	}
	if e.stagingDir != "" {
		err = os.RemoveAll(e.stagingDir)
		if err != nil {
			sentry.CaptureException(err)
		}
	}
	if e.archive != nil {
		err = e.archive.Close()
		if err != nil {
			sentry.CaptureException(err)
		}
	}
	if e.capturesWriter != nil {
		err = e.capturesWriter.Close()
		if err != nil {
			sentry.CaptureException(err)
		}
	}
	sentry.Flush(5 * time.Second)
}

func (e *environment) newRouter() (*httprouter.Router, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodGet, "/debug/pprof/profile", e.getProfile},
		{http.MethodGet, "/debug/pprof/profiles/:profile_id", e.getArchivedProfile},
		{http.MethodPost, "/debug/pprof/convert", e.postConvert},
		{http.MethodGet, "/health", e.getHealth},
	}

	router := httprouter.New()

	for _, route := range routes {
		handlerFunc := httputil.DecompressPayload(route.handler)
		handler := compress(handlerFunc)

		router.Handler(route.method, route.path, handler)
	}

	return router, nil
}

func main() {
	config, err := readConfig()
	logutil.ConfigureLogger(config.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("error reading the configuration")
	}

	env, err := newEnvironment(config)
	if err != nil {
		log.Fatal().Err(err).Msg("error setting up environment")
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:                   env.config.SentryDSN,
		EnableTracing:         true,
		Environment:           env.config.Environment,
		Release:               release,
		TracesSampleRate:      1.0,
		BeforeSendTransaction: httputil.SetHTTPStatusCodeTag,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("can't initialize sentry")
	}

	router, err := env.newRouter()
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("error setting up the router")
	}

	server := http.Server{
		Addr:    ":" + env.config.Port,
		Handler: sentryhttp.New(sentryhttp.Options{}).Handle(router),
	}

	waitForShutdown := make(chan os.Signal)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(cctx); err != nil {
			sentry.CaptureException(err)
			log.Err(err).Msg("error shutting down server")
		}

		close(waitForShutdown)
	}()

	log.Info().Str("port", env.config.Port).Str("agent", env.config.DotnetMonitorURL).Msg("listening")
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		sentry.CaptureException(err)
		log.Err(err).Msg("server failed")
	}

	<-waitForShutdown

	// Shutdown the rest of the environment after the HTTP connections are closed
	env.shutdown()
}

func (e *environment) getHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
