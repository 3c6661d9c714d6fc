package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookup-gateway/circuitbreaker"
	"lookup-gateway/config"
	"lookup-gateway/transport"
	"lookup-gateway/types"
)

// fakeChannel scripts replies per channel identifier. Replies queued for a
// channel are delivered asynchronously after SendText targets it.
type fakeChannel struct {
	mu         sync.Mutex
	identities map[string]int64
	replies    map[string][]transport.Message
	sent       []sentCommand
	subs       map[int]func(transport.Message)
	nextSub    int
	cancels    int
	authorized bool
	downloads  []string
}

type sentCommand struct {
	channel string
	text    string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		identities: map[string]int64{
			config.DefaultPrimaryChannel: 100,
			config.DefaultBackupChannel:  200,
		},
		replies:    make(map[string][]transport.Message),
		subs:       make(map[int]func(transport.Message)),
		authorized: true,
	}
}

func (f *fakeChannel) queue(channelID, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[channelID] = append(f.replies[channelID], transport.Message{
		SenderID: f.identities[channelID],
		Text:     text,
	})
}

func (f *fakeChannel) queueFrom(channelID string, senderID int64, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[channelID] = append(f.replies[channelID], transport.Message{
		SenderID: senderID,
		Text:     text,
	})
}

func (f *fakeChannel) Connect(ctx context.Context) error { return nil }
func (f *fakeChannel) Close() error                      { return nil }

func (f *fakeChannel) IsAuthorized(ctx context.Context) (bool, error) {
	return f.authorized, nil
}

func (f *fakeChannel) ResolveIdentity(ctx context.Context, channelID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identities[channelID], nil
}

func (f *fakeChannel) SendText(ctx context.Context, channelID, text string) error {
	f.mu.Lock()
	f.sent = append(f.sent, sentCommand{channel: channelID, text: text})
	pending := f.replies[channelID]
	delete(f.replies, channelID)
	f.mu.Unlock()

	go func() {
		for _, msg := range pending {
			time.Sleep(15 * time.Millisecond)
			f.mu.Lock()
			subs := make([]func(transport.Message), 0, len(f.subs))
			for _, cb := range f.subs {
				subs = append(subs, cb)
			}
			f.mu.Unlock()
			for _, cb := range subs {
				cb(msg)
			}
		}
	}()
	return nil
}

type fakeSubscription struct {
	cancel func()
}

func (s *fakeSubscription) Cancel() { s.cancel() }

func (f *fakeChannel) Subscribe(onMessage func(transport.Message)) transport.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = onMessage
	return &fakeSubscription{cancel: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			f.cancels++
		}
	}}
}

func (f *fakeChannel) DownloadAttachment(ctx context.Context, att transport.Attachment, destPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, destPath)
	return destPath, nil
}

func (f *fakeChannel) sentCommands() []sentCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentCommand, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeChannel) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

// testConfig returns a configuration with collection windows short enough
// for fast tests.
func testConfig(t *testing.T) *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.BotToken = "test-token"
	cfg.PublicURL = "http://localhost:8080"
	cfg.DownloadDir = t.TempDir()
	cfg.TimeoutPrimary = 400 * time.Millisecond
	cfg.TimeoutBackup = 400 * time.Millisecond
	cfg.TimeoutBackupNormal = 400 * time.Millisecond
	cfg.QuietPeriod = 80 * time.Millisecond
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
}

// TestRunCollectsAndParses tests the happy path on the primary channel
func TestRunCollectsAndParses(t *testing.T) {
	cfg := testConfig(t)
	fake := newFakeChannel()
	fake.queue(cfg.PrimaryChannel, "[#LEDER_BOT] DNI : 12345678\nNOMBRES : JUAN CARLOS")

	c := New(cfg, fake, circuitbreaker.NewTracker(cfg.BlockWindow), nil, nil)
	result, err := c.Run(context.Background(), "/rqh", "12345678")

	require.NoError(t, err)
	require.True(t, result.IsSuccess())
	assert.Equal(t, "12345678", result.Data["DNI"])
	assert.Equal(t, "JUAN CARLOS", result.Data["NOMBRES"])
	assert.Contains(t, result.RawMessage, "DNI : 12345678")

	sent := fake.sentCommands()
	require.Len(t, sent, 1)
	assert.Equal(t, cfg.PrimaryChannel, sent[0].channel)
	assert.Equal(t, "/rqh 12345678", sent[0].text)

	// The inbound handler was released after collection.
	assert.Equal(t, 1, fake.cancelCount())
}

// TestRunCommandWithoutParam tests that a bare command is sent as-is
func TestRunCommandWithoutParam(t *testing.T) {
	cfg := testConfig(t)
	fake := newFakeChannel()
	fake.queue(cfg.PrimaryChannel, "ESTADO : OK")

	c := New(cfg, fake, circuitbreaker.NewTracker(cfg.BlockWindow), nil, nil)
	_, err := c.Run(context.Background(), "/estado", "")

	require.NoError(t, err)
	sent := fake.sentCommands()
	require.Len(t, sent, 1)
	assert.Equal(t, "/estado", sent[0].text)
}

// TestRunThrottleEscalatesToBackup tests the one-shot failover on anti-spam
func TestRunThrottleEscalatesToBackup(t *testing.T) {
	cfg := testConfig(t)
	fake := newFakeChannel()
	fake.queue(cfg.PrimaryChannel, "[⛔] ANTI-SPAM\nINTENTA DESPUES DE 60 SEGUNDOS")
	fake.queue(cfg.BackupChannel, "DNI : 12345678\nNOMBRES : MARIA")

	breaker := circuitbreaker.NewTracker(cfg.BlockWindow)
	c := New(cfg, fake, breaker, nil, nil)
	result, err := c.Run(context.Background(), "/rqh", "12345678")

	require.NoError(t, err)
	require.True(t, result.IsSuccess())
	assert.Equal(t, "MARIA", result.Data["NOMBRES"])

	// The throttle notice itself never reaches the result.
	assert.NotContains(t, result.RawMessage, "ANTI-SPAM")

	sent := fake.sentCommands()
	require.Len(t, sent, 2)
	assert.Equal(t, cfg.PrimaryChannel, sent[0].channel)
	assert.Equal(t, cfg.BackupChannel, sent[1].channel)

	// A throttle is not a channel failure.
	assert.False(t, breaker.IsBlocked(cfg.PrimaryChannel))
}

// TestRunSilentPrimaryRecordsFailure tests the no-response path and its
// effect on the next query
func TestRunSilentPrimaryRecordsFailure(t *testing.T) {
	cfg := testConfig(t)
	fake := newFakeChannel()

	breaker := circuitbreaker.NewTracker(cfg.BlockWindow)
	c := New(cfg, fake, breaker, nil, nil)
	_, err := c.Run(context.Background(), "/rqh", "12345678")

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNoResponse)
	assert.Equal(t, "No se obtuvo respuesta del bot principal.", err.Error())
	assert.True(t, breaker.IsBlocked(cfg.PrimaryChannel))

	// The next query routes straight to the backup channel.
	fake.queue(cfg.BackupChannel, "DNI : 12345678\nNOMBRES : LUZ")
	result, err := c.Run(context.Background(), "/rqh", "12345678")
	require.NoError(t, err)
	assert.Equal(t, "LUZ", result.Data["NOMBRES"])

	sent := fake.sentCommands()
	require.Len(t, sent, 2)
	assert.Equal(t, cfg.BackupChannel, sent[1].channel)
}

// TestRunSilentBackupDoesNotRecordFailure tests that a silent backup yields
// the generic no-response error without feeding the circuit breaker
func TestRunSilentBackupDoesNotRecordFailure(t *testing.T) {
	cfg := testConfig(t)
	fake := newFakeChannel()

	breaker := circuitbreaker.NewTracker(cfg.BlockWindow)
	breaker.RecordFailure(cfg.PrimaryChannel)

	c := New(cfg, fake, breaker, nil, nil)
	_, err := c.Run(context.Background(), "/rqh", "12345678")

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNoResponse)
	assert.Equal(t, "No se obtuvo respuesta del bot.", err.Error())
	assert.False(t, breaker.IsBlocked(cfg.BackupChannel))
}

// TestRunIgnoresOtherSenders tests cross-channel sender filtering
func TestRunIgnoresOtherSenders(t *testing.T) {
	cfg := testConfig(t)
	fake := newFakeChannel()
	fake.queueFrom(cfg.PrimaryChannel, 999, "INTRUSO : SI")
	fake.queue(cfg.PrimaryChannel, "DNI : 12345678")

	c := New(cfg, fake, circuitbreaker.NewTracker(cfg.BlockWindow), nil, nil)
	result, err := c.Run(context.Background(), "/rqh", "12345678")

	require.NoError(t, err)
	assert.Equal(t, "12345678", result.Data["DNI"])
	assert.NotContains(t, result.Data, "INTRUSO")
	assert.NotContains(t, result.RawMessage, "INTRUSO")
}

// TestRunInvalidFormatNotice tests that a format complaint voids the query
func TestRunInvalidFormatNotice(t *testing.T) {
	cfg := testConfig(t)
	fake := newFakeChannel()
	fake.queue(cfg.PrimaryChannel, "Por favor, usa el formato correcto.")

	c := New(cfg, fake, circuitbreaker.NewTracker(cfg.BlockWindow), nil, nil)
	_, err := c.Run(context.Background(), "/rqh", "12345678")

	assert.ErrorIs(t, err, types.ErrInvalidFormat)
}

// TestRunNotFoundFlag tests that a no-results reply becomes a named error
func TestRunNotFoundFlag(t *testing.T) {
	cfg := testConfig(t)
	fake := newFakeChannel()
	fake.queue(cfg.PrimaryChannel, "[⚠️] No se han encontrado resultados")

	c := New(cfg, fake, circuitbreaker.NewTracker(cfg.BlockWindow), nil, nil)
	_, err := c.Run(context.Background(), "/rqh", "12345678")

	assert.ErrorIs(t, err, types.ErrNotFound)
}

// TestRunNotConfigured tests the missing-credentials guard
func TestRunNotConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.BotToken = ""

	c := New(cfg, newFakeChannel(), circuitbreaker.NewTracker(cfg.BlockWindow), nil, nil)
	_, err := c.Run(context.Background(), "/rqh", "12345678")

	assert.ErrorIs(t, err, types.ErrNotConfigured)
}

// TestRunNotAuthorized tests the authorization guard
func TestRunNotAuthorized(t *testing.T) {
	cfg := testConfig(t)
	fake := newFakeChannel()
	fake.authorized = false

	c := New(cfg, fake, circuitbreaker.NewTracker(cfg.BlockWindow), nil, nil)
	_, err := c.Run(context.Background(), "/rqh", "12345678")

	assert.ErrorIs(t, err, types.ErrNotAuthorized)
}

// TestRunMultipleMessagesCombined tests buffering across the quiet period
func TestRunMultipleMessagesCombined(t *testing.T) {
	cfg := testConfig(t)
	fake := newFakeChannel()
	fake.queue(cfg.PrimaryChannel, "DNI : 12345678\nNOMBRES : JUAN")
	fake.queue(cfg.PrimaryChannel, "DIRECCION : AV. SIEMPRE VIVA 742")

	c := New(cfg, fake, circuitbreaker.NewTracker(cfg.BlockWindow), nil, nil)
	result, err := c.Run(context.Background(), "/rqh", "12345678")

	require.NoError(t, err)
	assert.Equal(t, "JUAN", result.Data["NOMBRES"])
	assert.Equal(t, "AV. SIEMPRE VIVA 742", result.Data["DIRECCION"])
	assert.Contains(t, result.RawMessage, "\n\n")
}

// TestConcurrentQueriesDoNotCrossDeliver tests that two queries on different
// channels sharing one transport never see each other's replies
func TestConcurrentQueriesDoNotCrossDeliver(t *testing.T) {
	fake := newFakeChannel()

	cfgA := testConfig(t)
	cfgB := testConfig(t)
	cfgB.PrimaryChannel = config.DefaultBackupChannel

	fake.queue(cfgA.PrimaryChannel, "DNI : 11111111\nNOMBRES : ALFA")
	fake.queue(cfgB.PrimaryChannel, "DNI : 22222222\nNOMBRES : BETA")

	collectorA := New(cfgA, fake, circuitbreaker.NewTracker(cfgA.BlockWindow), nil, nil)
	collectorB := New(cfgB, fake, circuitbreaker.NewTracker(cfgB.BlockWindow), nil, nil)

	var wg sync.WaitGroup
	var resultA, resultB *types.QueryResult
	var errA, errB error

	wg.Add(2)
	go func() {
		defer wg.Done()
		resultA, errA = collectorA.Run(context.Background(), "/rqh", "11111111")
	}()
	go func() {
		defer wg.Done()
		resultB, errB = collectorB.Run(context.Background(), "/rqh", "22222222")
	}()
	wg.Wait()

	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, "ALFA", resultA.Data["NOMBRES"])
	assert.Equal(t, "BETA", resultB.Data["NOMBRES"])
	assert.NotContains(t, resultA.RawMessage, "BETA")
	assert.NotContains(t, resultB.RawMessage, "ALFA")
}

// TestRunCancelledContext tests that the caller's context stops collection
func TestRunCancelledContext(t *testing.T) {
	cfg := testConfig(t)
	cfg.TimeoutPrimary = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	c := New(cfg, newFakeChannel(), circuitbreaker.NewTracker(cfg.BlockWindow), nil, nil)
	start := time.Now()
	_, err := c.Run(ctx, "/rqh", "12345678")

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, time.Since(start), time.Second)
}
