package store

import (
	"context"
	"log"

	"github.com/lox/nightbreeze/internal/models"
)

// Appender is the write side of an audit sink.
type Appender interface {
	Append(ctx context.Context, r models.RunRecord) error
}

// MultiSink writes to the local store first and then mirrors to any
// secondary sinks. Secondary failures are logged and swallowed: the local
// record is the one that counts, and a successful AC command must never be
// reported lost because a remote write failed.
type MultiSink struct {
	Primary   Appender
	Secondary []Appender
}

func (m *MultiSink) Append(ctx context.Context, r models.RunRecord) error {
	err := m.Primary.Append(ctx, r)

	for _, s := range m.Secondary {
		if serr := s.Append(ctx, r); serr != nil {
			log.Printf("store: secondary sink append failed: %v", serr)
		}
	}

	return err
}
