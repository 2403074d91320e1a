package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/getsentry/pprofbridge/internal/capture"
	"github.com/getsentry/pprofbridge/internal/httputil"
	"github.com/getsentry/pprofbridge/internal/pprof"
	"github.com/getsentry/pprofbridge/internal/stacksource"
	"github.com/getsentry/pprofbridge/internal/storageutil"
)

const profileIDHeader = "X-Profile-ID"

type (
	// CaptureKafkaMessage is sent for every archived capture.
	CaptureKafkaMessage struct {
		ProfileID            string `json:"profile_id"`
		DurationSeconds      int64  `json:"duration_seconds"`
		RawSamples           int    `json:"raw_samples"`
		Samples              int    `json:"samples"`
		UnknownThreadSamples int    `json:"unknown_thread_samples"`
		Received             int64  `json:"received"`
	}
)

func hubFromContext(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

func (e *environment) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := hubFromContext(ctx)

	d, ok := httputil.GetSecondsQueryParameter(w, r, "seconds", e.config.defaultDuration(), e.config.maxDuration())
	if !ok {
		return
	}
	hub.Scope().SetTag("duration_seconds", strconv.FormatInt(int64(d/time.Second), 10))

	s := sentry.StartSpan(ctx, "capture")
	s.Description = "Collect and convert a CPU trace"
	p, stats, err := e.capturer.Capture(ctx, d)
	s.Finish()
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			// The client is gone, nobody will read the response
			log.Info().Err(err).Msg("capture canceled")
		case errors.Is(err, capture.ErrFetch), errors.Is(err, capture.ErrDecode):
			log.Err(err).Msg("couldn't collect a trace")
			hub.CaptureException(err)
			w.WriteHeader(http.StatusBadGateway)
		default:
			hub.CaptureException(err)
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	if e.archive != nil {
		profileID := uuid.New().String()
		if e.archiveProfile(ctx, profileID, p, stats, d) {
			w.Header().Set(profileIDHeader, profileID)
		}
	}

	e.writeProfile(ctx, w, p)
}

// archiveProfile stores p and announces it. A failure is reported but
// doesn't fail the request.
func (e *environment) archiveProfile(ctx context.Context, profileID string, p *pprof.Profile, stats pprof.Stats, d time.Duration) bool {
	hub := hubFromContext(ctx)

	s := sentry.StartSpan(ctx, "blob.write")
	s.Description = "Archive profile"
	err := storageutil.CompressedWrite(ctx, e.archive, storageutil.ProfilePath(profileID), p.Write)
	s.Finish()
	if err != nil {
		log.Err(err).Str("profile_id", profileID).Msg("couldn't archive profile")
		hub.CaptureException(err)
		return false
	}

	if e.capturesWriter == nil {
		return true
	}
	s = sentry.StartSpan(ctx, "json.marshal")
	s.Description = "Marshal capture Kafka message"
	b, err := json.Marshal(CaptureKafkaMessage{
		ProfileID:            profileID,
		DurationSeconds:      int64(d / time.Second),
		RawSamples:           stats.RawSamples,
		Samples:              len(p.Samples),
		UnknownThreadSamples: stats.UnknownThreadSamples,
		Received:             time.Now().Unix(),
	})
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		return true
	}
	s = sentry.StartSpan(ctx, "processing")
	s.Description = "Send capture to Kafka"
	err = e.capturesWriter.WriteMessages(ctx, kafka.Message{
		Topic: e.config.CapturesKafkaTopic,
		Value: b,
	})
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
	}
	return true
}

func (e *environment) postConvert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := hubFromContext(ctx)

	s := sentry.StartSpan(ctx, "json.unmarshal")
	s.Description = "Decode stack document"
	d, err := stacksource.Decode(r.Body)
	s.Finish()
	if err != nil {
		log.Err(err).Msg("stack document can't be decoded")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s = sentry.StartSpan(ctx, "processing")
	s.Description = "Convert samples to pprof"
	p, _, err := pprof.Convert(ctx, d, e.convertOptions)
	s.Finish()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			hub.CaptureException(err)
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	e.writeProfile(ctx, w, p)
}

func (e *environment) getArchivedProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := hubFromContext(ctx)
	ps := httprouter.ParamsFromContext(ctx)
	rawProfileID := ps.ByName("profile_id")
	profileID, err := uuid.Parse(rawProfileID)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	hub.Scope().SetTag("profile_id", rawProfileID)

	if e.archive == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	s := sentry.StartSpan(ctx, "blob.read")
	s.Description = "Read archived profile"
	b, err := storageutil.ReadCompressed(ctx, e.archive, storageutil.ProfilePath(profileID.String()))
	s.Finish()
	if err != nil {
		if errors.Is(err, storageutil.ErrObjectNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeProfileBytes(w, b)
}

func (e *environment) writeProfile(ctx context.Context, w http.ResponseWriter, p *pprof.Profile) {
	s := sentry.StartSpan(ctx, "pprof.marshal")
	s.Description = "Encode profile"
	b := p.Marshal()
	s.Finish()

	writeProfileBytes(w, b)
}

func writeProfileBytes(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="profile"`)
	_, _ = w.Write(b)
}
