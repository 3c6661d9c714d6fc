package collector

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"lookup-gateway/internal"
	"lookup-gateway/parser"
	"lookup-gateway/types"
)

// assemble turns the buffered session messages into a QueryResult. Error
// classification runs before parsing: an invalid-format notice or a
// not-found flag on any message voids the whole session.
func (c *Collector) assemble(ctx context.Context, sess *session) (*types.QueryResult, error) {
	sess.mu.Lock()
	messages := sess.messages
	sess.mu.Unlock()

	for _, m := range messages {
		if strings.Contains(strings.ToLower(m.text), invalidFormatMarker) {
			return nil, types.ErrInvalidFormat
		}
	}
	for _, m := range messages {
		if flagged, ok := m.fields["not_found"].(bool); ok && flagged {
			return nil, types.ErrNotFound
		}
	}

	urls := c.downloadAttachments(ctx, messages)

	var parts []string
	for _, m := range messages {
		if m.text != "" {
			parts = append(parts, m.text)
		}
	}
	combined := strings.TrimSpace(strings.Join(parts, "\n\n"))

	records := parser.ParseWith(combined, c.pivots)

	// Auxiliary flags lifted by the extractor, first occurrence wins.
	// Falsy values never overwrite nothing; they are dropped outright.
	flags := make(map[string]any)
	for _, m := range messages {
		for k, v := range m.fields {
			if k == "not_found" {
				continue
			}
			if v == nil || v == "" || v == false {
				continue
			}
			if _, seen := flags[k]; !seen {
				flags[k] = v
			}
		}
	}

	data := make(map[string]any)
	switch {
	case len(records) > 1:
		recs := make([]map[string]any, len(records))
		for i, r := range records {
			recs[i] = map[string]any(r)
		}
		data["denuncias"] = recs
		for k, v := range flags {
			data[k] = v
		}
	case len(records) == 1:
		// Parsed fields win over flags on collision.
		for k, v := range flags {
			data[k] = v
		}
		for k, v := range records[0] {
			data[k] = v
		}
	default:
		for k, v := range flags {
			data[k] = v
		}
	}
	if len(urls) > 0 {
		data["urls"] = urls
	}

	return types.Success(data, combined), nil
}

// downloadAttachments saves every buffered attachment and returns the public
// URLs. A failed download is logged and skipped; it never fails the query.
func (c *Collector) downloadAttachments(ctx context.Context, messages []bufferedMessage) []types.Attachment {
	requestID := internal.GetRequestID(ctx)
	var urls []types.Attachment
	for _, m := range messages {
		if m.attachment == nil {
			continue
		}
		att := m.attachment
		ext := ".jpg"
		if strings.Contains(strings.ToLower(att.Media), "pdf") {
			ext = ".pdf"
		}
		name := fmt.Sprintf("%d_%d%s", time.Now().Unix(), att.MessageID, ext)
		dest := filepath.Join(c.cfg.DownloadDir, name)
		if _, err := c.transport.DownloadAttachment(ctx, *att, dest); err != nil {
			log.Printf("⚠️ [%s] Failed to download attachment %d: %v", requestID, att.MessageID, err)
			continue
		}
		urls = append(urls, types.Attachment{
			URL:  c.cfg.PublicURL + "/files/" + name,
			Type: "document",
		})
	}
	return urls
}
