package browseragent

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"browseragent/internal/observability"
)

// CloudSync is the event-bus consumer that mirrors a run to a remote
// service. It subscribes before the run starts but buffers behind an
// authentication barrier: no event leaves the process until the handshake
// completes, and Run's teardown waits on that same barrier so a short run
// cannot outrace its own sync.
type CloudSync struct {
	client  *http.Client
	baseURL string

	authed   chan struct{}
	authOnce sync.Once
}

// NewCloudSync builds a consumer posting to baseURL. A nil client gets the
// instrumented default so sync requests carry trace propagation.
func NewCloudSync(baseURL string, client *http.Client) *CloudSync {
	if client == nil {
		client = observability.NewHTTPClient(nil)
	}
	return &CloudSync{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		authed:  make(chan struct{}),
	}
}

// Start subscribes to bus and begins draining once authentication succeeds.
// Events arriving before the handshake completes sit in the subscription
// buffer.
func (c *CloudSync) Start(ctx context.Context, bus *EventBus) {
	events := bus.Subscribe()
	go func() {
		c.authenticate(ctx)
		for {
			select {
			case ev := <-events:
				c.post(ctx, ev)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// authenticate performs the handshake with the sync service. Failure is
// logged and the barrier opened anyway: a broken sync backend must never
// wedge the agent's teardown.
func (c *CloudSync) authenticate(ctx context.Context) {
	defer c.authOnce.Do(func() { close(c.authed) })
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth", nil)
	if err != nil {
		log.Warn().Err(err).Msg("cloud sync auth request failed")
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("cloud sync auth failed, events will be posted unauthenticated")
		return
	}
	resp.Body.Close()
	log.Debug().Int("status", resp.StatusCode).Msg("cloud sync authenticated")
}

// WaitAuthenticated blocks until the auth handshake finished, the context
// is cancelled, or a generous timeout elapses.
func (c *CloudSync) WaitAuthenticated(ctx context.Context) {
	select {
	case <-c.authed:
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
	}
}

func (c *CloudSync) post(ctx context.Context, ev Event) {
	body, err := json.Marshal(map[string]any{
		"kind":       string(ev.Kind),
		"timestamp":  ev.Timestamp,
		"session_id": ev.SessionID,
		"task_id":    ev.TaskID,
		"step_index": ev.StepIndex,
	})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("kind", string(ev.Kind)).Msg("cloud sync post failed")
		return
	}
	resp.Body.Close()
}
