package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// BotClient is a Telegram Bot API implementation of Channel using long
// polling over plain HTTP.
type BotClient struct {
	token   string
	baseURL string
	http    *http.Client

	mu         sync.Mutex
	subs       map[int64]func(Message)
	nextSubID  int64
	identities map[string]int64
	offset     int64
	connected  bool
	stopPoll   context.CancelFunc
}

// NewBotClient creates a Bot API client for the given token.
func NewBotClient(token string) *BotClient {
	return &BotClient{
		token:      token,
		baseURL:    defaultAPIBase,
		http:       &http.Client{Timeout: 60 * time.Second},
		subs:       make(map[int64]func(Message)),
		identities: make(map[string]int64),
	}
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

type apiUpdate struct {
	UpdateID int64       `json:"update_id"`
	Message  *apiMessage `json:"message"`
}

type apiMessage struct {
	MessageID int64 `json:"message_id"`
	From      *struct {
		ID int64 `json:"id"`
	} `json:"from"`
	Text     string `json:"text"`
	Caption  string `json:"caption"`
	Document *struct {
		FileID   string `json:"file_id"`
		MimeType string `json:"mime_type"`
	} `json:"document"`
	Photo []struct {
		FileID string `json:"file_id"`
	} `json:"photo"`
	Date int64 `json:"date"`
}

type apiChat struct {
	ID int64 `json:"id"`
}

type apiFile struct {
	FilePath string `json:"file_path"`
}

// call performs one Bot API method call and decodes the result envelope.
func (b *BotClient) call(ctx context.Context, method string, params url.Values, result any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", b.baseURL, b.token, method)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, nil)
	if err != nil {
		return fmt.Errorf("building %s request: %w", method, err)
	}
	if params != nil {
		req.URL.RawQuery = params.Encode()
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("%s failed: %s", method, envelope.Description)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decoding %s result: %w", method, err)
		}
	}
	return nil
}

// Connect verifies the token and starts the update polling loop.
func (b *BotClient) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.connected {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if err := b.call(ctx, "getMe", nil, nil); err != nil {
		return err
	}

	pollCtx, cancel := context.WithCancel(context.Background())

	b.mu.Lock()
	if b.connected {
		b.mu.Unlock()
		cancel()
		return nil
	}
	b.connected = true
	b.stopPoll = cancel
	b.mu.Unlock()

	go b.pollLoop(pollCtx)
	return nil
}

// Close stops the polling loop.
func (b *BotClient) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopPoll != nil {
		b.stopPoll()
		b.stopPoll = nil
	}
	b.connected = false
	return nil
}

// IsAuthorized reports whether the token is accepted by the API.
func (b *BotClient) IsAuthorized(ctx context.Context) (bool, error) {
	if b.token == "" {
		return false, nil
	}
	if err := b.call(ctx, "getMe", nil, nil); err != nil {
		return false, err
	}
	return true, nil
}

// SendText delivers a text command to the named channel.
func (b *BotClient) SendText(ctx context.Context, channelID, text string) error {
	params := url.Values{}
	params.Set("chat_id", channelID)
	params.Set("text", text)
	return b.call(ctx, "sendMessage", params, nil)
}

// Subscribe registers an inbound-message handler and returns its cancellable
// registration.
func (b *BotClient) Subscribe(onMessage func(Message)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSubID++
	id := b.nextSubID
	b.subs[id] = onMessage
	return &botSubscription{client: b, id: id}
}

type botSubscription struct {
	client *BotClient
	id     int64
	once   sync.Once
}

func (s *botSubscription) Cancel() {
	s.once.Do(func() {
		s.client.mu.Lock()
		defer s.client.mu.Unlock()
		delete(s.client.subs, s.id)
	})
}

// ResolveIdentity maps a channel identifier (e.g. "@lookup_bot") to the
// numeric id its messages carry. Results are cached for the process lifetime.
func (b *BotClient) ResolveIdentity(ctx context.Context, channelID string) (int64, error) {
	b.mu.Lock()
	if id, ok := b.identities[channelID]; ok {
		b.mu.Unlock()
		return id, nil
	}
	b.mu.Unlock()

	params := url.Values{}
	params.Set("chat_id", channelID)
	var chat apiChat
	if err := b.call(ctx, "getChat", params, &chat); err != nil {
		return 0, err
	}

	b.mu.Lock()
	b.identities[channelID] = chat.ID
	b.mu.Unlock()
	return chat.ID, nil
}

// DownloadAttachment fetches the referenced file to destPath.
func (b *BotClient) DownloadAttachment(ctx context.Context, att Attachment, destPath string) (string, error) {
	params := url.Values{}
	params.Set("file_id", att.FileID)
	var file apiFile
	if err := b.call(ctx, "getFile", params, &file); err != nil {
		return "", err
	}

	fileURL := fmt.Sprintf("%s/file/bot%s/%s", b.baseURL, b.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, "GET", fileURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading file: unexpected status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", err
	}
	out, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", err
	}
	return destPath, nil
}

// pollLoop fetches updates and fans them out to subscribers in arrival order.
func (b *BotClient) pollLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		params := url.Values{}
		params.Set("timeout", "25")
		b.mu.Lock()
		if b.offset > 0 {
			params.Set("offset", fmt.Sprintf("%d", b.offset))
		}
		b.mu.Unlock()

		var updates []apiUpdate
		if err := b.call(ctx, "getUpdates", params, &updates); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("⚠️ getUpdates failed: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}

		for _, u := range updates {
			b.mu.Lock()
			if u.UpdateID >= b.offset {
				b.offset = u.UpdateID + 1
			}
			b.mu.Unlock()
			if u.Message == nil {
				continue
			}
			b.dispatch(toMessage(u.Message))
		}
	}
}

func toMessage(m *apiMessage) Message {
	msg := Message{
		Text:       m.Text,
		ReceivedAt: time.Unix(m.Date, 0),
	}
	if m.From != nil {
		msg.SenderID = m.From.ID
	}
	if msg.Text == "" {
		msg.Text = m.Caption
	}
	switch {
	case m.Document != nil:
		msg.Attachment = &Attachment{
			MessageID: m.MessageID,
			FileID:    m.Document.FileID,
			Media:     m.Document.MimeType,
		}
	case len(m.Photo) > 0:
		// Telegram sends several sizes; the last is the largest.
		msg.Attachment = &Attachment{
			MessageID: m.MessageID,
			FileID:    m.Photo[len(m.Photo)-1].FileID,
			Media:     "photo",
		}
	}
	return msg
}

// dispatch invokes every subscriber with the message.
func (b *BotClient) dispatch(msg Message) {
	b.mu.Lock()
	handlers := make([]func(Message), 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}
