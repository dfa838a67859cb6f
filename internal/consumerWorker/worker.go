package consumerWorker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"pickupBoard/internal/auth"
	"pickupBoard/internal/model"
	"pickupBoard/internal/rabbit"
)

type Trigger interface {
	Trigger(ctx context.Context, cred auth.Credential, webhookURL string) error
}

type BlastLog interface {
	SaveBlast(b model.Blast) error
}

// Reader fires recruitment blasts as their delayed messages arrive.
type Reader struct {
	RMQ     rabbit.Consumer
	trigger Trigger
	blasts  BlastLog
	creds   auth.Provider
	log     *zerolog.Logger
	done    chan struct{}
	cancel  context.CancelFunc
}

func NewReader(rmq rabbit.Consumer, trigger Trigger, blasts BlastLog, creds auth.Provider, log *zerolog.Logger) *Reader {
	return &Reader{
		RMQ:     rmq,
		trigger: trigger,
		blasts:  blasts,
		creds:   creds,
		log:     log,
		done:    make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.log.Info().Msg("blast reader started")

	go func() {
		defer close(r.done)

		if err := r.RMQ.Consume(func(body []byte) error { return r.handle(cctx, body) }); err != nil {
			r.log.Error().Err(err).Msg("failed to start consuming")
			return
		}

		<-cctx.Done()
		r.log.Info().Msg("blast reader stopped by context")
	}()
}

// handle fires one blast. Malformed payloads are acked and dropped; a failed
// trigger is recorded and returned so the broker redelivers it once.
func (r *Reader) handle(ctx context.Context, body []byte) error {
	var b model.Blast
	if err := json.Unmarshal(body, &b); err != nil {
		r.log.Error().Err(err).Str("body", string(body)).Msg("failed to unmarshal blast")
		return nil
	}

	r.log.Info().
		Str("blast_id", b.ID).
		Str("template_id", b.TemplateID).
		Msg("received blast from RabbitMQ")

	cred, err := r.creds.Credential(ctx, auth.Staff{ID: b.RequestedBy})
	if err != nil {
		return r.record(b, fmt.Errorf("credential for blast %s: %w", b.ID, err))
	}

	if err := r.trigger.Trigger(ctx, cred, b.Webhook); err != nil {
		return r.record(b, fmt.Errorf("trigger blast %s: %w", b.ID, err))
	}
	return r.record(b, nil)
}

func (r *Reader) record(b model.Blast, cause error) error {
	b.Status, b.Error = model.BlastFired, ""
	if cause != nil {
		b.Status, b.Error = model.BlastFailed, cause.Error()
		r.log.Error().Err(cause).Str("blast_id", b.ID).Msg("blast failed")
	} else {
		r.log.Info().Str("blast_id", b.ID).Msg("blast fired")
	}
	if err := r.blasts.SaveBlast(b); err != nil {
		r.log.Warn().Err(err).Str("blast_id", b.ID).Msg("failed to record blast status")
	}
	return cause
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
