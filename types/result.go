// Package types defines the result shapes and failure taxonomy shared by the
// collector, the cache and the HTTP gateway.
package types

// Query result status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Attachment is a downloaded file reference exposed under the public base URL.
type Attachment struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// QueryResult is the observable outcome of one lookup query. Successful
// queries carry Data and RawMessage; failures carry Message.
type QueryResult struct {
	Status     string         `json:"status"`
	Data       map[string]any `json:"data,omitempty"`
	RawMessage string         `json:"raw_message,omitempty"`
	Message    string         `json:"message,omitempty"`
}

// Success builds a success result from parsed data and the combined raw text.
func Success(data map[string]any, raw string) *QueryResult {
	return &QueryResult{Status: StatusSuccess, Data: data, RawMessage: raw}
}

// Failure builds an error result with a human-readable message.
func Failure(message string) *QueryResult {
	return &QueryResult{Status: StatusError, Message: message}
}

// IsSuccess reports whether the result should be cached and returned as data.
func (r *QueryResult) IsSuccess() bool {
	return r != nil && r.Status == StatusSuccess
}
