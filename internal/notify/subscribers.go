package notify

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Subscription kinds.
const (
	SubscriptionWebPush  = "webpush"
	SubscriptionTelegram = "telegram"
)

// SubscriptionKeys are browser push encryption keys.
type SubscriptionKeys struct {
	Auth   string `json:"auth"`
	P256dh string `json:"p256dh"`
}

// Subscription is where one subscriber receives push alerts.
// Params: transport kind plus web push endpoint/keys or telegram chat id.
// Returns: delivery target resolved by PushSender.
type Subscription struct {
	Kind     string           `json:"kind"`
	Endpoint string           `json:"endpoint,omitempty"`
	Keys     SubscriptionKeys `json:"keys"`
	ChatID   string           `json:"chat_id,omitempty"`
}

// Normalize fills the default kind and trims fields.
func (s Subscription) Normalize() Subscription {
	s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
	if s.Kind == "" {
		if strings.TrimSpace(s.ChatID) != "" && strings.TrimSpace(s.Endpoint) == "" {
			s.Kind = SubscriptionTelegram
		} else {
			s.Kind = SubscriptionWebPush
		}
	}
	s.Endpoint = strings.TrimSpace(s.Endpoint)
	s.ChatID = strings.TrimSpace(s.ChatID)
	s.Keys.Auth = strings.TrimSpace(s.Keys.Auth)
	s.Keys.P256dh = strings.TrimSpace(s.Keys.P256dh)
	return s
}

// Validate checks fields required by the subscription kind.
func (s Subscription) Validate() error {
	switch s.Kind {
	case SubscriptionWebPush:
		parsed, err := url.Parse(s.Endpoint)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "https" && parsed.Scheme != "http") {
			return fmt.Errorf("webpush endpoint %q is not an absolute http(s) URL", s.Endpoint)
		}
		if s.Keys.Auth == "" || s.Keys.P256dh == "" {
			return errors.New("webpush subscription requires keys.auth and keys.p256dh")
		}
	case SubscriptionTelegram:
		if s.ChatID == "" {
			return errors.New("telegram subscription requires chat_id")
		}
	default:
		return fmt.Errorf("unsupported subscription kind %q", s.Kind)
	}
	return nil
}

// SubscriberStore maps subscriber IDs to their current subscription.
type SubscriberStore interface {
	Get(id string) (Subscription, bool)
	Put(id string, subscription Subscription)
	Delete(id string)
}

// MemorySubscribers keeps subscriptions in process memory; a later Put replaces the earlier one.
type MemorySubscribers struct {
	mu   sync.RWMutex
	subs map[string]Subscription
}

// NewMemorySubscribers creates empty subscriber store.
func NewMemorySubscribers() *MemorySubscribers {
	return &MemorySubscribers{subs: make(map[string]Subscription)}
}

func (s *MemorySubscribers) Get(id string) (Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	return sub, ok
}

func (s *MemorySubscribers) Put(id string, subscription Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[id] = subscription
}

func (s *MemorySubscribers) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
