package testutil

import (
	"fmt"
	"io"
	"log/slog"
)

// SignalIDs generates predictable signal IDs: "<prefix>-0001",
// "<prefix>-0002", and so on. It satisfies bulk.IDGenerator.
//
// Runs that create the same signals in the same order produce the same
// IDs, which keeps journals and golden traces byte-identical.
type SignalIDs struct {
	prefix string
	seq    Sequence
}

// NewSignalIDs creates a generator. An empty prefix becomes "sig".
func NewSignalIDs(prefix string) *SignalIDs {
	if prefix == "" {
		prefix = "sig"
	}
	return &SignalIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *SignalIDs) Generate() string {
	return fmt.Sprintf("%s-%04d", g.prefix, g.seq.Next())
}

// Reset restarts numbering at 1.
func (g *SignalIDs) Reset() {
	g.seq.Reset()
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
