// Package correlator matches commands sent to the attendance device with
// the outcomes it reports later. Every command carries a server-generated
// correlation key; the device echoes it in its feedback and the waiting
// workflow is woken with that outcome and no other.
//
// A pending slot resolves exactly once: by delivery, by its deadline, or by
// cancellation. Whatever comes second is dropped.
package correlator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxPending bounds concurrently open slots when New is given 0.
const DefaultMaxPending = 64

// ErrResourceExhausted is returned by Open when the pending limit is reached.
var ErrResourceExhausted = errors.New("correlator: too many pending device operations")

// Handle is returned by Open and passed to Await or Cancel.
type Handle struct {
	Key      string
	Kind     Kind
	Deadline time.Time
	slot     chan Outcome
}

type pending struct {
	h     *Handle
	timer *time.Timer
}

// Correlator is safe for concurrent use.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*pending
	max     int
	now     func() time.Time
	log     *zap.Logger
}

// New returns a Correlator allowing at most maxPending open slots.
func New(maxPending int, logger *zap.Logger) *Correlator {
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{
		pending: make(map[string]*pending),
		max:     maxPending,
		now:     time.Now,
		log:     logger,
	}
}

// Open allocates a pending slot that times out on its own at deadline.
func (c *Correlator) Open(kind Kind, deadline time.Time) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) >= c.max {
		rejectedCounter.Inc()
		return nil, ErrResourceExhausted
	}

	h := &Handle{
		Key:      uuid.NewString(),
		Kind:     kind,
		Deadline: deadline,
		slot:     make(chan Outcome, 1),
	}
	p := &pending{h: h}
	key := h.Key
	p.timer = time.AfterFunc(deadline.Sub(c.now()), func() {
		if c.resolve(key, "", Outcome{Status: StatusTimeout}) {
			c.log.Warn("device operation timed out",
				zap.String("correlation_key", key),
				zap.String("kind", string(kind)))
		}
	})
	c.pending[key] = p
	pendingGauge.Set(float64(len(c.pending)))
	return h, nil
}

// Deliver resolves the slot for key. It reports false, and changes nothing,
// when key is unknown or already resolved.
func (c *Correlator) Deliver(key string, o Outcome) bool {
	return c.resolve(key, "", o)
}

// Await blocks until the slot resolves or ctx is done. The slot is gone
// when Await returns.
func (c *Correlator) Await(ctx context.Context, h *Handle) Outcome {
	select {
	case o := <-h.slot:
		return o
	case <-ctx.Done():
		// Either this resolves the slot as cancelled or a delivery got
		// there first; the slot holds the winner in both cases.
		c.resolve(h.Key, "", Outcome{Status: StatusCancelled})
		return <-h.slot
	}
}

// Cancel drops the slot without waking anyone.
func (c *Correlator) Cancel(h *Handle) {
	c.resolve(h.Key, "", Outcome{Status: StatusCancelled})
}

// Pending reports how many slots are open.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// resolve fulfils and removes the slot. A non-empty feedback must match the
// slot kind's feedback name.
func (c *Correlator) resolve(key, feedback string, o Outcome) bool {
	c.mu.Lock()
	p, ok := c.pending[key]
	if !ok || (feedback != "" && p.h.Kind.Feedback() != feedback) {
		c.mu.Unlock()
		return false
	}
	delete(c.pending, key)
	pendingGauge.Set(float64(len(c.pending)))
	c.mu.Unlock()

	p.timer.Stop()
	p.h.slot <- o
	outcomeCounter.WithLabelValues(string(p.h.Kind), o.Status.String()).Inc()
	return true
}

// feedback is the payload of every *_feedback event.
type feedback struct {
	CorrelationKey string          `json:"correlationKey"`
	Error          json.RawMessage `json:"error,omitempty"`
}

// Dispatch handles one inbound device message. It never blocks and never
// fails: malformed, unknown, late and duplicate messages are logged and
// dropped.
func (c *Correlator) Dispatch(name string, payload json.RawMessage) {
	if _, ok := KindForFeedback(name); !ok {
		c.log.Debug("ignoring device event", zap.String("event", name))
		return
	}

	var fb feedback
	if err := json.Unmarshal(payload, &fb); err != nil || fb.CorrelationKey == "" {
		strayCounter.WithLabelValues(name).Inc()
		c.log.Warn("device feedback without correlation key",
			zap.String("event", name),
			zap.ByteString("payload", payload),
			zap.Error(err))
		return
	}

	o := Outcome{Status: StatusSuccess}
	if reason, failed := deviceError(fb.Error); failed {
		o = Outcome{Status: StatusDeviceError, Reason: reason}
	}

	if !c.resolve(fb.CorrelationKey, name, o) {
		strayCounter.WithLabelValues(name).Inc()
		c.log.Info("dropping stray device feedback",
			zap.String("event", name),
			zap.String("correlation_key", fb.CorrelationKey))
	}
}

// deviceError interprets the optional error field. Absent, null, false and
// "" mean success; a string is the reason; anything else is reported as
// raw JSON.
func deviceError(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "null", "false", `""`:
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), true
	}
	return string(raw), true
}
