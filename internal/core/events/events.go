// Package events publishes a notification for every successful write.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/syntrixbase/mongokit/internal/core/pubsub"
	"github.com/syntrixbase/mongokit/pkg/storage/types"
)

// WriteEvent describes one successful write or bulk write.
type WriteEvent struct {
	ID         string    `json:"id"`
	Op         string    `json:"op"`
	Database   string    `json:"database"`
	Collection string    `json:"collection"`
	Count      int64     `json:"count"`
	At         time.Time `json:"at"`
}

// Subject is "<database>.<collection>.<op>". Dots and wildcards in names
// are replaced so each name stays a single subject token.
func Subject(database, collection, op string) string {
	return token(database) + "." + token(collection) + "." + token(op)
}

// FilterSubject matches the events of one database, or of one collection
// when collection is set. Empty database matches everything.
func FilterSubject(prefix, database, collection string) string {
	parts := []string{}
	if prefix != "" {
		parts = append(parts, prefix)
	}
	switch {
	case database == "":
		parts = append(parts, ">")
	case collection == "":
		parts = append(parts, token(database), ">")
	default:
		parts = append(parts, token(database), token(collection), "*")
	}
	return strings.Join(parts, ".")
}

var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

func token(s string) string {
	if s == "" {
		return "_"
	}
	return tokenReplacer.Replace(s)
}

// Decode parses an event payload.
func Decode(data []byte) (WriteEvent, error) {
	var ev WriteEvent
	err := json.Unmarshal(data, &ev)
	return ev, err
}

// Emitter publishes write events. A nil *Emitter does nothing.
type Emitter struct {
	pub    pubsub.Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewEmitter returns nil when pub is nil.
func NewEmitter(pub pubsub.Publisher, logger *slog.Logger) *Emitter {
	if pub == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{pub: pub, logger: logger.With("component", "events"), now: time.Now}
}

// Emit publishes an event. The write has already happened, so failures are
// logged and not returned.
func (e *Emitter) Emit(ctx context.Context, database, collection, op string, count int64) {
	if e == nil {
		return
	}
	ev := WriteEvent{
		ID:         types.NewHandleID(),
		Op:         op,
		Database:   database,
		Collection: collection,
		Count:      count,
		At:         e.now().UTC(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		e.logger.Warn("Failed to encode write event", "op", op, "error", err)
		return
	}
	subject := Subject(database, collection, op)
	if err := e.pub.Publish(ctx, subject, data); err != nil {
		e.logger.Warn("Failed to publish write event", "subject", subject, "error", err)
	}
}

// Close closes the underlying publisher.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	return e.pub.Close()
}
