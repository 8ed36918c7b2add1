package relay

import (
	"bytes"
	"context"
	"net/http"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"github.com/kaicoh/dynamo-stream/cmn/nlog"
	"github.com/kaicoh/dynamo-stream/stats"
	"github.com/kaicoh/dynamo-stream/stream"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// State is a Listener's position in the CREATED -> RUNNING -> {CLOSED |
// ERROR | REMOVED} state machine (spec §4.4).
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateClosed
	StateError
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateClosed:
		return "CLOSED"
	case StateError:
		return "ERROR"
	case StateRemoved:
		return "REMOVED"
	default:
		return "CREATED"
	}
}

// Envelope is the outbound webhook body (spec §6): a single "Records"
// field holding the cycle's batch.
type Envelope struct {
	Records stream.Records `json:"Records"`
}

// Listener is one destination's consumer of a Subscription's broadcast: it
// wakes on every published batch and POSTs it, best-effort, to URL (spec
// §4.4). Listeners MUST NOT buffer across cycles - each wakeup sends
// exactly the current slot, never an accumulation of past ones.
type Listener struct {
	ID    string
	URL   string
	Table string

	recv  *Receiver
	close *CloseEvent

	client *http.Client

	state atomic.Int32

	// Metrics is optional; when set, successful and failed deliveries are
	// recorded against it under the Table label.
	Metrics *stats.Metrics

	// OnDeliveryError is called (off the happy path only) after an HTTP
	// POST fails; the registry wires this to Destination.setLastError
	// (SUPPLEMENTED FEATURES: original_source types/entry.rs error
	// tracking).
	OnDeliveryError func(error)
}

// NewListener builds a Listener consuming recv and observing close for its
// teardown signal.
func NewListener(id, url string, recv *Receiver, close *CloseEvent, client *http.Client) *Listener {
	if client == nil {
		client = http.DefaultClient
	}
	l := &Listener{ID: id, URL: url, recv: recv, close: close, client: client}
	l.state.Store(int32(StateCreated))
	return l
}

func (l *Listener) State() State { return State(l.state.Load()) }

func (l *Listener) setState(s State) { l.state.Store(int32(s)) }

// Run drives the listener's loop until the watch is closed (sender
// dropped) or a close event arrives. It returns only on a terminal state.
func (l *Listener) Run(ctx context.Context) {
	l.setState(StateRunning)
	defer l.recv.Release()

	for {
		batch, ok := l.recv.Wait(ctx)
		if !ok {
			nlog.Infof("relay: listener %s (%s): broadcast closed, exiting", l.ID, l.URL)
			l.setState(StateClosed)
			return
		}

		if !batch.IsEmpty() {
			if err := l.deliver(ctx, batch); err != nil {
				nlog.Warningf("relay: listener %s (%s): delivery failed: %v", l.ID, l.URL, err)
				if l.Metrics != nil {
					l.Metrics.ListenerFailures.WithLabelValues(l.Table).Inc()
				}
				if l.OnDeliveryError != nil {
					l.OnDeliveryError(err)
				}
			} else if l.Metrics != nil {
				l.Metrics.RecordsForwarded.WithLabelValues(l.Table).Add(float64(len(batch)))
			}
		}

		if l.close.TryRecv() {
			nlog.Infof("relay: listener %s (%s): close event received, exiting", l.ID, l.URL)
			l.setState(StateRemoved)
			return
		}
	}
}

func (l *Listener) deliver(ctx context.Context, batch stream.Records) error {
	body, err := json.Marshal(Envelope{Records: batch})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &httpStatusError{url: l.URL, status: resp.StatusCode}
	}
	return nil
}

type httpStatusError struct {
	url    string
	status int
}

func (e *httpStatusError) Error() string {
	return "relay: " + e.url + ": unexpected status " + http.StatusText(e.status)
}
