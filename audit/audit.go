package audit

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entry records one terminal authorization outcome.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject,omitempty"`
	Resource  string    `json:"resource"`
	Granted   bool      `json:"granted"`
	Reason    string    `json:"reason"`
}

// NewEntry builds an entry with a fresh correlation ID.
func NewEntry(timestamp time.Time, subject, resource string, granted bool, reason string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Timestamp: timestamp,
		Subject:   subject,
		Resource:  resource,
		Granted:   granted,
		Reason:    reason,
	}
}

// Sink accepts audit entries for recording. Implementations must not block
// the authorization decision on their own completion; a recording failure is
// reported, never propagated as a denial.
type Sink interface {
	Record(Entry) error
}

// NopSink discards all entries. Use when no audit backend is configured.
type NopSink struct{}

func (NopSink) Record(Entry) error { return nil }

// ZapSink writes entries to the structured log.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Record(entry Entry) error {
	s.logger.Info("Access decision.",
		zap.String("audit_id", entry.ID),
		zap.Time("timestamp", entry.Timestamp),
		zap.String("subject", entry.Subject),
		zap.String("resource", entry.Resource),
		zap.Bool("granted", entry.Granted),
		zap.String("reason", entry.Reason))

	return nil
}
