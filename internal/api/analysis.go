package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

type AnalysisRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"sessionId,omitempty"`
	Task      string `json:"task,omitempty"`
}

// SubmitAnalysis queues text for asynchronous feedback. Results arrive on the
// session's AI topic.
func (c *Client) SubmitAnalysis(ctx context.Context, sessionID string, req AnalysisRequest) error {
	var ack string
	return c.postJSON(ctx, "/api/ai/submit", url.Values{"sessionId": {sessionID}}, req, &ack)
}

// StreamAnalysis posts text to the server-sent-events endpoint and calls fn
// for every frame until the stream ends, a final or error frame arrives, or
// ctx is done.
func (c *Client) StreamAnalysis(ctx context.Context, req AnalysisRequest, fn func(AIStreamMessage)) error {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/ai/stream", nil, req)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	// Streams outlive the per-request timeout.
	streamClient := &http.Client{Transport: c.inner.Transport}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var event string
	var data []string
	flush := func() bool {
		defer func() { event, data = "", nil }()
		if len(data) == 0 {
			return false
		}
		payload := strings.Join(data, "\n")
		var msg AIStreamMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil || msg.Type == "" {
			msg = AIStreamMessage{Type: event, Text: payload}
		}
		if msg.Type == "" {
			msg.Type = AIStreamPartial
		}
		fn(msg)
		return msg.Type == AIStreamFinal || msg.Type == AIStreamError
	}
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if flush() {
				return nil
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	flush()
	return ctx.Err()
}
