// Package classifier talks to the external tone-classification service.
// The service is a black box behind an HTTP contract; every failure mode it
// has (timeout, unreachable, malformed output) collapses into a Degraded
// result so the pipeline never stalls on it.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bobthearsonist/meeting-coach/pkg/config"
	"github.com/bobthearsonist/meeting-coach/pkg/models"
)

// Classification is a successfully parsed classifier response.
type Classification struct {
	State      models.EmotionalState
	Cue        models.SocialCue
	Confidence float64
}

// Result is the tagged outcome of one classification call. Degraded covers
// timeouts, transport errors, non-200 responses, and unparseable bodies;
// Reason says which.
type Result struct {
	Classification Classification
	Degraded       bool
	Reason         string
}

func degraded(reason string) Result {
	return Result{
		Classification: Classification{
			State: models.StateUnknown,
			Cue:   models.CueUnknown,
		},
		Degraded: true,
		Reason:   reason,
	}
}

type request struct {
	Model string `json:"model,omitempty"`
	Text  string `json:"text"`
}

type response struct {
	EmotionalState string   `json:"emotional_state"`
	SocialCue      string   `json:"social_cue"`
	Confidence     *float64 `json:"confidence"`
}

// Client is the HTTP classifier boundary. One call per segment; retry
// policy, if any, lives behind the service, not here.
type Client struct {
	url     string
	model   string
	timeout time.Duration
	http    *http.Client

	mu                  sync.Mutex
	consecutiveFailures int
}

func New(cfg config.ClassifierConfig) *Client {
	return &Client{
		url:     strings.TrimRight(cfg.URL, "/"),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Classify sends one segment's text for tone analysis. It never returns an
// error: the caller always gets a usable Result and the timeline keeps
// moving regardless of what the service does.
func (c *Client) Classify(ctx context.Context, text string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(request{Model: c.model, Text: text})
	if err != nil {
		return c.fail(fmt.Sprintf("encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/classify", bytes.NewReader(body))
	if err != nil {
		return c.fail(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(fmt.Sprintf("classifier unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return c.fail(fmt.Sprintf("classifier %s: %s", resp.Status, string(b)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(fmt.Sprintf("read response: %v", err))
	}

	var out response
	if err := json.Unmarshal(extractJSON(raw), &out); err != nil {
		return c.fail(fmt.Sprintf("malformed response: %v", err))
	}

	c.succeed()
	return Result{Classification: Classification{
		State:      models.ParseEmotionalState(out.EmotionalState),
		Cue:        models.ParseSocialCue(out.SocialCue),
		Confidence: clampConfidence(out.Confidence),
	}}
}

// ConsecutiveFailures reports how many classifications in a row have
// degraded. Observability only; nothing acts on it.
func (c *Client) ConsecutiveFailures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consecutiveFailures
}

func (c *Client) fail(reason string) Result {
	c.mu.Lock()
	c.consecutiveFailures++
	n := c.consecutiveFailures
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"reason":               reason,
		"consecutive_failures": n,
	}).Warn("classification degraded")
	return degraded(reason)
}

func (c *Client) succeed() {
	c.mu.Lock()
	c.consecutiveFailures = 0
	c.mu.Unlock()
}

// extractJSON unwraps a JSON object from a markdown code fence if the model
// wrapped its answer in one, otherwise returns the body as-is.
func extractJSON(raw []byte) []byte {
	s := string(raw)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+len("```"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	return []byte(strings.TrimSpace(s))
}

func clampConfidence(v *float64) float64 {
	if v == nil {
		return 0
	}
	switch {
	case *v < 0:
		return 0
	case *v > 1:
		return 1
	}
	return *v
}
