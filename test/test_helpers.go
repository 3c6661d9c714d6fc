package test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"lookup-gateway/cache"
	"lookup-gateway/circuitbreaker"
	"lookup-gateway/collector"
	"lookup-gateway/config"
	"lookup-gateway/gateway"
	"lookup-gateway/metrics"
	"lookup-gateway/transport"

	"github.com/stretchr/testify/require"
)

// scriptedChannel implements transport.Channel with canned replies per
// channel identifier, delivered asynchronously after SendText.
type scriptedChannel struct {
	mu         sync.Mutex
	identities map[string]int64
	replies    map[string][]transport.Message
	sent       []string
	subs       map[int]func(transport.Message)
	nextSub    int
}

func newScriptedChannel() *scriptedChannel {
	return &scriptedChannel{
		identities: map[string]int64{
			config.DefaultPrimaryChannel: 100,
			config.DefaultBackupChannel:  200,
		},
		replies: make(map[string][]transport.Message),
		subs:    make(map[int]func(transport.Message)),
	}
}

// Queue schedules a reply on the channel, attributed to its own identity.
func (s *scriptedChannel) Queue(channelID, text string) {
	s.QueueMessage(channelID, transport.Message{
		SenderID: s.identities[channelID],
		Text:     text,
	})
}

// QueueMessage schedules a fully specified reply on the channel.
func (s *scriptedChannel) QueueMessage(channelID string, msg transport.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.SenderID == 0 {
		msg.SenderID = s.identities[channelID]
	}
	s.replies[channelID] = append(s.replies[channelID], msg)
}

// SentTo returns the channels commands were sent to, in order.
func (s *scriptedChannel) SentTo() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *scriptedChannel) Connect(ctx context.Context) error { return nil }
func (s *scriptedChannel) Close() error                      { return nil }

func (s *scriptedChannel) IsAuthorized(ctx context.Context) (bool, error) { return true, nil }

func (s *scriptedChannel) ResolveIdentity(ctx context.Context, channelID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identities[channelID], nil
}

func (s *scriptedChannel) SendText(ctx context.Context, channelID, text string) error {
	s.mu.Lock()
	s.sent = append(s.sent, channelID)
	pending := s.replies[channelID]
	delete(s.replies, channelID)
	s.mu.Unlock()

	go func() {
		for _, msg := range pending {
			time.Sleep(15 * time.Millisecond)
			s.mu.Lock()
			subs := make([]func(transport.Message), 0, len(s.subs))
			for _, cb := range s.subs {
				subs = append(subs, cb)
			}
			s.mu.Unlock()
			for _, cb := range subs {
				cb(msg)
			}
		}
	}()
	return nil
}

type scriptedSubscription struct{ cancel func() }

func (s *scriptedSubscription) Cancel() { s.cancel() }

func (s *scriptedChannel) Subscribe(onMessage func(transport.Message)) transport.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = onMessage
	return &scriptedSubscription{cancel: func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}}
}

func (s *scriptedChannel) DownloadAttachment(ctx context.Context, att transport.Attachment, destPath string) (string, error) {
	return destPath, nil
}

// gatewayStack wires the full service against a scripted channel.
type gatewayStack struct {
	Mux     *http.ServeMux
	Channel *scriptedChannel
	Metrics *metrics.Collector
	Breaker *circuitbreaker.Tracker
	Config  *config.Config
}

// newGatewayStack builds the service with collection windows short enough
// for fast tests.
func newGatewayStack(t *testing.T) *gatewayStack {
	cfg := config.GetDefaultConfig()
	cfg.BotToken = "test-token"
	cfg.PublicURL = "http://localhost:8080"
	cfg.DownloadDir = t.TempDir()
	cfg.CacheDir = t.TempDir()
	cfg.TimeoutPrimary = 400 * time.Millisecond
	cfg.TimeoutBackup = 400 * time.Millisecond
	cfg.TimeoutBackupNormal = 400 * time.Millisecond
	cfg.QuietPeriod = 80 * time.Millisecond
	cfg.PollInterval = 10 * time.Millisecond

	m, err := metrics.New()
	require.NoError(t, err)

	store, err := cache.New(cfg.CacheDir, cfg.CacheEnabled)
	require.NoError(t, err)

	channel := newScriptedChannel()
	breaker := circuitbreaker.NewTracker(cfg.BlockWindow)
	runner := collector.New(cfg, channel, breaker, m, nil)

	mux := http.NewServeMux()
	gateway.New(cfg, runner, store, breaker, m, nil).Register(mux)

	return &gatewayStack{
		Mux:     mux,
		Channel: channel,
		Metrics: m,
		Breaker: breaker,
		Config:  cfg,
	}
}
