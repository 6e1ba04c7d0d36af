package decision

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/caremesh-ai/rampart/pkg/threat"
)

// AuditEvent is one record handed to the audit sink. Metadata never
// contains raw input text.
type AuditEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	EventID   string                 `json:"event_id"`
	Category  string                 `json:"category"`
	SessionID string                 `json:"session_id"`
	Severity  threat.Severity        `json:"severity"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// AuditSink receives audit events. Submissions are fire-and-forget and must
// never block the decision path.
type AuditSink interface {
	Submit(event AuditEvent)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Submit(AuditEvent) {}

// FileAuditSink appends events as JSONL to a local file through a buffered
// channel. When the buffer is full the event is dropped and counted rather
// than blocking a request. Durable audit storage is an upstream concern;
// this sink is the local reference implementation.
type FileAuditSink struct {
	events  chan AuditEvent
	dropped atomic.Int64
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// NewFileAuditSink opens (or creates) the audit file and starts the writer
// goroutine. bufferSize <= 0 defaults to 256.
func NewFileAuditSink(path string, bufferSize int) (*FileAuditSink, error) {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	s := &FileAuditSink{
		events: make(chan AuditEvent, bufferSize),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer f.Close()
		enc := json.NewEncoder(f)
		for ev := range s.events {
			if err := enc.Encode(ev); err != nil {
				log.Printf("[audit] write failed: %v", err)
			}
		}
	}()

	return s, nil
}

// Submit queues an event, dropping it if the buffer is full.
func (s *FileAuditSink) Submit(event AuditEvent) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	select {
	case s.events <- event:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded due to backpressure.
func (s *FileAuditSink) Dropped() int64 { return s.dropped.Load() }

// Close flushes queued events and closes the file. Submit must not be
// called after Close.
func (s *FileAuditSink) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	<-s.done
	return nil
}
