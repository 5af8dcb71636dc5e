package audit

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Actions recorded for the token lifecycle.
const (
	ActionAuthorize = "authorize"
	ActionLogin     = "login"
	ActionRefresh   = "refresh"
	ActionRevoke    = "revoke"
	ActionLogout    = "logout"
)

// Event represents an audit log event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Action    string    `json:"action"`
	OpenID    string    `json:"open_id,omitempty"`
	Scope     string    `json:"scope,omitempty"`
	RemoteIP  string    `json:"remote_ip,omitempty"`
	Success   bool      `json:"success"`
	ErrorKind string    `json:"error_kind,omitempty"`
	LogID     string    `json:"log_id,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Recorder writes one JSON line per Event. A nil *Recorder discards events.
type Recorder struct {
	service string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewRecorder writes audit events to out.
func NewRecorder(out io.Writer, service string) *Recorder {
	return &Recorder{
		service: service,
		logger:  zerolog.New(out).With().Str("log_type", "audit").Logger(),
		now:     time.Now,
	}
}

// Record writes ev, filling in the timestamp and service. err, if any, is
// stored on the event and forces Success to false.
func (r *Recorder) Record(ctx context.Context, ev Event, err error) {
	if r == nil {
		return
	}
	ev.Timestamp = r.now().UTC()
	ev.Service = r.service
	if err != nil {
		ev.Success = false
		ev.Error = err.Error()
	}

	entry := r.logger.Log().Interface("audit_event", ev)
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		entry = entry.Str("trace_id", span.TraceID().String())
	}
	entry.Msg("")
}
