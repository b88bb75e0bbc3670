package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"stockalert/internal/config"
	"stockalert/internal/domain"

	"github.com/nats-io/nats.go"
)

// NATSStore persists last-alert marks in a JetStream KV bucket.
// Params: NATS connection, JetStream context, and bucket handle.
// Returns: KV-backed history store shared by every service replica.
type NATSStore struct {
	nc            *nats.Conn
	js            nats.JetStreamContext
	kv            nats.KeyValue
	retention     time.Duration
	subjectPrefix string
}

type markPayload struct {
	AlertedAtUnixMS int64 `json:"alerted_at_unix_ms"`
}

// NewNATSStore opens or creates the history bucket.
// Params: NATS/JetStream settings derived from config.
// Returns: initialized NATS store or setup error.
func NewNATSStore(settings config.NATSHistoryConfig) (*NATSStore, error) {
	nc, err := nats.Connect(strings.Join(settings.URL, ","), nats.Name("stockalert-history"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.KeyValue(settings.Bucket)
	if err != nil {
		if !settings.AllowCreateBuckets {
			nc.Close()
			return nil, fmt.Errorf("open history bucket %q: %w", settings.Bucket, err)
		}
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      settings.Bucket,
			Description: "stockalert last-alert marks",
			History:     1,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create history bucket %q: %w", settings.Bucket, err)
		}
	}
	if settings.Retention > 0 {
		if err := enableBucketPerMessageTTL(js, settings.Bucket); err != nil {
			nc.Close()
			return nil, fmt.Errorf("enable per-message ttl on history bucket: %w", err)
		}
	}

	return &NATSStore{
		nc:            nc,
		js:            js,
		kv:            kv,
		retention:     settings.Retention,
		subjectPrefix: "$KV." + settings.Bucket + ".",
	}, nil
}

// enableBucketPerMessageTTL ensures underlying KV stream allows Nats-TTL header.
// Params: JetStream context and KV bucket name.
// Returns: stream update error when config cannot be applied.
func enableBucketPerMessageTTL(js nats.JetStreamContext, bucket string) error {
	streamName := "KV_" + bucket
	info, err := js.StreamInfo(streamName)
	if err != nil {
		return err
	}
	if info.Config.AllowMsgTTL {
		return nil
	}
	cfg := info.Config
	cfg.AllowMsgTTL = true
	if cfg.SubjectDeleteMarkerTTL == 0 {
		cfg.SubjectDeleteMarkerTTL = 5 * time.Minute
	}
	_, err = js.UpdateStream(&cfg)
	return err
}

// LastAlert reads mark for pair.
// Params: product ID and condition kind.
// Returns: mark time, presence flag, or read/decode error.
func (s *NATSStore) LastAlert(_ context.Context, productID string, kind domain.ConditionKind) (time.Time, bool, error) {
	entry, err := s.kv.Get(Key(productID, kind))
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("get history mark: %w", err)
	}
	var payload markPayload
	if err := json.Unmarshal(entry.Value(), &payload); err != nil {
		return time.Time{}, false, fmt.Errorf("decode history mark: %w", err)
	}
	return time.UnixMilli(payload.AlertedAtUnixMS).UTC(), true, nil
}

// Mark writes mark for pair with retention TTL when configured.
// Params: product ID, condition kind, and alert time.
// Returns: publish error.
func (s *NATSStore) Mark(ctx context.Context, productID string, kind domain.ConditionKind, at time.Time) error {
	msg := nats.NewMsg(s.subjectPrefix + Key(productID, kind))
	msg.Data = buildMarkPayload(at.UnixMilli())
	if s.retention > 0 {
		msg.Header.Set("Nats-TTL", strconv.FormatInt(s.retention.Milliseconds(), 10)+"ms")
	}
	if _, err := s.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish history mark: %w", err)
	}
	return nil
}

// buildMarkPayload encodes mark without reflective encoding.
func buildMarkPayload(unixMS int64) []byte {
	payload := make([]byte, 0, 40)
	payload = append(payload, `{"alerted_at_unix_ms":`...)
	payload = strconv.AppendInt(payload, unixMS, 10)
	payload = append(payload, '}')
	return payload
}

// Close closes underlying NATS connection.
// Params: none.
// Returns: nil after connection close.
func (s *NATSStore) Close() error {
	s.nc.Close()
	return nil
}
