// Package transport defines the messaging channel the collector speaks
// through, and provides a Telegram Bot API implementation of it. The core
// only depends on the Channel interface; anything that can send a text
// command and deliver inbound replies can back it.
package transport

import (
	"context"
	"time"
)

// Attachment references a downloadable file carried by an inbound message.
type Attachment struct {
	MessageID int64
	FileID    string
	Media     string // raw media descriptor, used to pick the file extension
}

// Message is an immutable capture of one inbound reply.
type Message struct {
	SenderID   int64
	Text       string
	Attachment *Attachment
	ReceivedAt time.Time
}

// Subscription is a cancellable registration of an inbound-message handler.
// Cancel must be safe to call on every exit path, including error paths;
// a leaked handler would corrupt a later query's session.
type Subscription interface {
	Cancel()
}

// Channel is the external messaging endpoint the collector sends commands to
// and receives replies from.
type Channel interface {
	// Connect establishes the session. Safe to call more than once.
	Connect(ctx context.Context) error
	// Close tears the session down.
	Close() error
	// IsAuthorized reports whether the session is usable.
	IsAuthorized(ctx context.Context) (bool, error)
	// SendText delivers a text command to the named channel.
	SendText(ctx context.Context, channelID, text string) error
	// Subscribe registers a handler for every inbound message. Handlers are
	// invoked in arrival order.
	Subscribe(onMessage func(Message)) Subscription
	// ResolveIdentity maps a channel identifier to the numeric sender id its
	// messages carry.
	ResolveIdentity(ctx context.Context, channelID string) (int64, error)
	// DownloadAttachment fetches the attachment to destPath and returns the
	// local path written.
	DownloadAttachment(ctx context.Context, att Attachment, destPath string) (string, error)
}
