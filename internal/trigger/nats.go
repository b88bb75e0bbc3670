package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stockalert/internal/config"
	"stockalert/internal/domain"

	"github.com/nats-io/nats.go"
)

// CycleRunner executes one alert cycle for selected kinds.
type CycleRunner interface {
	RunCycle(ctx context.Context, kinds ...domain.ConditionKind) domain.CycleCounts
}

// NATSSubscriber consumes check requests via JetStream queue consumer and runs cycles.
// Params: NATS connection, JetStream queue subscription, and cycle runner.
// Returns: trigger consumer lifecycle handle.
type NATSSubscriber struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	logger *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewNATSSubscriber creates JetStream queue consumer for check requests.
// Params: NATS servers, trigger config, runner, and optional logger.
// Returns: started subscriber or initialization error.
func NewNATSSubscriber(servers config.NATSConfig, cfg config.TriggerConfig, runner CycleRunner, logger *slog.Logger) (*NATSSubscriber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(servers.ServerURL(), nats.Name("stockalert-trigger"))
	if err != nil {
		return nil, fmt.Errorf("connect trigger nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init for trigger: %w", err)
	}
	if err := ensureWorkStream(js, cfg.Stream, cfg.Subject); err != nil {
		nc.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	subscriber := &NATSSubscriber{
		nc:     nc,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	nackDelay := time.Duration(cfg.NackDelayMS) * time.Millisecond
	subOpts := []nats.SubOpt{
		nats.BindStream(cfg.Stream),
		nats.Durable(cfg.ConsumerName),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(time.Duration(cfg.AckWaitSec) * time.Second),
		nats.MaxDeliver(cfg.MaxDeliver),
		nats.MaxAckPending(1),
		nats.DeliverAll(),
	}
	sub, err := js.QueueSubscribe(cfg.Subject, cfg.DeliverGroup, func(message *nats.Msg) {
		if !subscriber.begin() {
			subscriber.nackMessage(message, nackDelay)
			return
		}
		defer subscriber.wg.Done()
		subscriber.handle(message, runner, nackDelay)
	}, subOpts...)
	if err != nil {
		cancel()
		nc.Close()
		return nil, fmt.Errorf("queue subscribe %q/%q: %w", cfg.Subject, cfg.DeliverGroup, err)
	}
	subscriber.sub = sub
	return subscriber, nil
}

// begin registers one in-flight request unless the subscriber is closing.
func (s *NATSSubscriber) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

// handle runs one requested cycle; requests interrupted by shutdown are redelivered.
func (s *NATSSubscriber) handle(message *nats.Msg, runner CycleRunner, nackDelay time.Duration) {
	request, kinds, err := DecodeRequest(message.Data)
	if err != nil {
		s.logger.Warn("trigger request decode failed", "subject", message.Subject, "error", err.Error())
		s.ackMessage(message, "decode")
		return
	}
	if s.ctx.Err() != nil {
		s.nackMessage(message, nackDelay)
		return
	}

	counts := runner.RunCycle(s.ctx, kinds...)
	if s.ctx.Err() != nil {
		s.nackMessage(message, nackDelay)
		return
	}
	s.logger.Info("triggered alert cycle finished",
		"requested_by", request.RequestedBy,
		"kinds", kinds,
		"total", counts.Total(),
	)
	s.ackMessage(message, "processed")
}

// ackMessage acknowledges processed/invalid message and logs ack failures.
// Params: JetStream message and short reason.
// Returns: none.
func (s *NATSSubscriber) ackMessage(message *nats.Msg, reason string) {
	if message == nil {
		return
	}
	if err := message.Ack(); err != nil {
		s.logger.Warn("trigger ack failed", "subject", message.Subject, "reason", reason, "error", err.Error())
	}
}

// nackMessage asks JetStream to redeliver message and logs nack failures.
// Params: JetStream message and optional delay.
// Returns: none.
func (s *NATSSubscriber) nackMessage(message *nats.Msg, delay time.Duration) {
	if message == nil {
		return
	}
	var err error
	if delay > 0 {
		err = message.NakWithDelay(delay)
	} else {
		err = message.Nak()
	}
	if err != nil {
		s.logger.Warn("trigger nack failed", "subject", message.Subject, "error", err.Error())
	}
}

// Close cancels running cycles, drains subscription, and closes connection.
// Params: none.
// Returns: close error from subscription drain.
func (s *NATSSubscriber) Close() error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()
	var drainErr error
	if s.sub != nil {
		drainErr = s.sub.Drain()
	}
	s.wg.Wait()
	s.nc.Close()
	return drainErr
}

// ensureWorkStream creates a work-queue stream for check requests unless it already exists.
func ensureWorkStream(js nats.JetStreamContext, name, subject string) error {
	_, err := js.StreamInfo(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %q: %w", name, err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:      name,
		Subjects:  []string{subject},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
		MaxAge:    time.Hour,
	})
	if err != nil {
		return fmt.Errorf("create stream %q: %w", name, err)
	}
	return nil
}
