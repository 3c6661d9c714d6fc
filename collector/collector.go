// Package collector sends a lookup command over a messaging channel, gathers
// the free-form replies within a bounded window, and assembles them into a
// structured result. It owns the failover decision between the primary and
// backup channels, consulting the circuit breaker before sending and feeding
// it when the primary stays silent.
package collector

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"lookup-gateway/circuitbreaker"
	"lookup-gateway/config"
	"lookup-gateway/extract"
	"lookup-gateway/internal"
	"lookup-gateway/logger"
	"lookup-gateway/metrics"
	"lookup-gateway/parser"
	"lookup-gateway/transport"
	"lookup-gateway/types"
)

// Throttle marker fragments; both must appear in one message.
const (
	throttleMarker      = "[⛔] ANTI-SPAM"
	throttleRetryMarker = "INTENTA DESPUES"
	invalidFormatMarker = "formato correcto"
)

// quickNotFoundPattern ends collection immediately; the message itself is
// never buffered. The extractor flags the remaining "no results" phrasings
// on buffered messages.
var quickNotFoundPattern = regexp.MustCompile(`(?i)\[⚠️\]\s*no se encontro información`)

// Collector orchestrates one query at a time per call; concurrent calls are
// safe, each owning its own session.
type Collector struct {
	cfg       *config.Config
	transport transport.Channel
	breaker   *circuitbreaker.Tracker
	metrics   *metrics.Collector
	obs       *logger.ObservabilityLogger
	pivots    parser.PivotSet
}

// New creates a collector. metrics and obs may be nil.
func New(cfg *config.Config, tr transport.Channel, breaker *circuitbreaker.Tracker, m *metrics.Collector, obs *logger.ObservabilityLogger) *Collector {
	pivots := parser.DefaultPivots()
	pivots.Add(cfg.ExtraPivotKeys...)
	return &Collector{
		cfg:       cfg,
		transport: tr,
		breaker:   breaker,
		metrics:   m,
		obs:       obs,
		pivots:    pivots,
	}
}

// session is the per-query mutable state. The subscription callback writes,
// the poll loop reads and decides; messages are append-only during
// collection and frozen before parsing.
type session struct {
	mu           sync.Mutex
	messages     []bufferedMessage
	lastActivity time.Time
	throttled    bool
	stopped      bool
}

type bufferedMessage struct {
	text       string
	fields     map[string]any
	attachment *transport.Attachment
}

// Run executes one query: select a channel, send the command, collect the
// replies, escalate to the backup channel once if the primary throttles, and
// assemble the result. Every exit resolves to success-with-data or a named
// failure from the types taxonomy.
func (c *Collector) Run(ctx context.Context, command, param string) (*types.QueryResult, error) {
	if !c.cfg.IsConfigured() {
		return nil, types.ErrNotConfigured
	}

	requestID := internal.GetRequestID(ctx)

	if err := c.transport.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting transport: %w", err)
	}
	authorized, err := c.transport.IsAuthorized(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking authorization: %w", err)
	}
	if !authorized {
		return nil, types.ErrNotAuthorized
	}

	primary := c.cfg.PrimaryChannel
	channel := primary
	budget := c.cfg.TimeoutPrimary
	usedBackup := false

	if c.breaker.IsBlocked(primary) {
		channel = c.cfg.BackupChannel
		budget = c.cfg.TimeoutBackupNormal
		usedBackup = true
		log.Printf("⛔ [%s] Primary channel %s is blocked, using backup %s", requestID, primary, channel)
		if c.obs != nil {
			c.obs.CircuitBreakerEvent(requestID, primary, "Primary channel blocked, routing to backup", nil)
		}
	}

	outbound := command
	if param != "" {
		outbound = command + " " + param
	}

	sess, err := c.collect(ctx, channel, outbound, budget)
	if err != nil {
		return nil, err
	}

	if sess.throttled && !usedBackup {
		// One-shot escalation; the backup gets a shorter budget and no
		// further fallback.
		log.Printf("🔀 [%s] Anti-spam detected on %s, retrying on backup channel", requestID, channel)
		if c.metrics != nil {
			c.metrics.FailoversTotal.Inc()
		}
		if c.obs != nil {
			c.obs.FailoverEvent(requestID, c.cfg.BackupChannel, "Throttle detected on primary, escalating to backup", nil)
		}
		usedBackup = true
		sess, err = c.collect(ctx, c.cfg.BackupChannel, outbound, c.cfg.TimeoutBackup)
		if err != nil {
			return nil, err
		}
	}

	sess.mu.Lock()
	buffered := len(sess.messages)
	sess.mu.Unlock()

	if buffered == 0 {
		if !usedBackup {
			c.breaker.RecordFailure(primary)
			if c.obs != nil {
				c.obs.CircuitBreakerEvent(requestID, primary, "No response from primary, failure recorded", nil)
			}
			return nil, types.ErrNoPrimaryResponse
		}
		return nil, types.ErrNoResponse
	}

	return c.assemble(ctx, sess)
}

// collect sends the outbound command on one channel and buffers the replies
// until stop is signaled, the budget elapses, or traffic goes quiet after at
// least one message. The inbound handler is released on every exit path.
func (c *Collector) collect(ctx context.Context, channelID, outbound string, budget time.Duration) (*session, error) {
	senderID, err := c.transport.ResolveIdentity(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("resolving channel %s: %w", channelID, err)
	}

	sess := &session{lastActivity: time.Now()}
	sub := c.transport.Subscribe(func(msg transport.Message) {
		c.onMessage(sess, senderID, msg)
	})
	defer sub.Cancel()

	if err := c.transport.SendText(ctx, channelID, outbound); err != nil {
		return nil, fmt.Errorf("sending command to %s: %w", channelID, err)
	}

	start := time.Now()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return sess, ctx.Err()
		case <-ticker.C:
		}

		sess.mu.Lock()
		stopped := sess.stopped
		buffered := len(sess.messages)
		last := sess.lastActivity
		sess.mu.Unlock()

		if stopped {
			return sess, nil
		}
		if time.Since(start) >= budget {
			return sess, nil
		}
		if buffered > 0 && time.Since(last) > c.cfg.QuietPeriod {
			return sess, nil
		}
	}
}

// onMessage is the subscription callback: filter by sender, watch for the
// throttle and quick not-found markers, otherwise clean and buffer.
func (c *Collector) onMessage(sess *session, senderID int64, msg transport.Message) {
	if msg.SenderID != senderID {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.stopped {
		return
	}
	sess.lastActivity = time.Now()

	raw := msg.Text
	if strings.Contains(raw, throttleMarker) && strings.Contains(raw, throttleRetryMarker) {
		sess.throttled = true
		sess.stopped = true
		if c.metrics != nil {
			c.metrics.ThrottlesTotal.Inc()
		}
		return
	}
	if quickNotFoundPattern.MatchString(raw) {
		sess.stopped = true
		return
	}

	cleaned := extract.Clean(raw)
	sess.messages = append(sess.messages, bufferedMessage{
		text:       cleaned.Text,
		fields:     cleaned.Fields,
		attachment: msg.Attachment,
	})
}
