// Package bridge runs the report pipeline: decode the submitted message,
// clean its markup, split the result into chat-sized chunks and publish
// them in order.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/regbridge/smtp2tg/internal/mail"
	"github.com/regbridge/smtp2tg/internal/publish"
	"github.com/regbridge/smtp2tg/internal/report"
)

// maxMessageLen is the per-message limit at the destination; the first
// chunk shares it with the report header.
const maxMessageLen = 3000

// interChunkDelay spaces successive chunk sends to respect destination
// rate limits.
const interChunkDelay = 500 * time.Millisecond

// partMarkerReserve is space held back from each chunk for the part
// marker added after splitting.
const partMarkerReserve = 40

// maxHeaderField bounds the sender and subject lines in the header, so a
// runaway header can never eat the whole chunk budget.
const maxHeaderField = 200

// Bridge converts one finalized mail submission into ordered chat messages.
type Bridge struct {
	pub   publish.Publisher
	now   func() time.Time
	delay time.Duration
}

// New creates a Bridge publishing through the given backend.
func New(pub publish.Publisher) *Bridge {
	return &Bridge{
		pub:   pub,
		now:   time.Now,
		delay: interChunkDelay,
	}
}

// newWithClock creates a Bridge with a fixed clock and delay, used for
// testing.
func newWithClock(pub publish.Publisher, now func() time.Time, delay time.Duration) *Bridge {
	return &Bridge{pub: pub, now: now, delay: delay}
}

// Deliver runs the pipeline for one submission. Chunks are published
// strictly in sequence; a failed chunk is logged and skipped without
// stopping the rest. Deliver returns an error only when nothing at all
// reached the destination, so the register gets a temporary-failure reply
// and may resubmit.
func (b *Bridge) Deliver(ctx context.Context, raw string, envelopeFrom string, rcpts []string) error {
	if strings.TrimSpace(raw) == "" {
		slog.Warn("empty message data, nothing to publish", "from", envelopeFrom)
		return nil
	}

	decoded := mail.Decode(raw, envelopeFrom)
	body := report.Clean(decoded.Body)

	slog.Info("processing report",
		"from", decoded.Sender,
		"subject", decoded.Subject,
		"recipients", len(rcpts),
		"body_len", len(body),
	)

	messages := assemble(decoded, body, b.now())

	published := 0
	for i, msg := range messages {
		if i > 0 {
			if err := sleepWithContext(ctx, b.delay); err != nil {
				return fmt.Errorf("cancelled between chunks: %w", err)
			}
		}

		if err := b.pub.Publish(ctx, msg); err != nil {
			slog.Error("failed to publish chunk",
				"backend", b.pub.Name(),
				"part", i+1,
				"total", len(messages),
				"error", err,
			)
			continue
		}

		published++
		slog.Info("chunk published",
			"backend", b.pub.Name(),
			"part", i+1,
			"total", len(messages),
		)
	}

	if published == 0 {
		return fmt.Errorf("all %d chunks failed to publish", len(messages))
	}
	return nil
}

// assemble builds the outbound messages: header plus body on the first,
// continuation markers on the rest.
func assemble(decoded mail.Decoded, body string, now time.Time) []string {
	header := buildHeader(decoded.Sender, decoded.Subject, now)
	available := maxMessageLen - len(header)

	if len(body) <= available {
		return []string{header + body}
	}

	parts := report.Split(body, available-partMarkerReserve)
	messages := make([]string, 0, len(parts))

	first := header + parts[0]
	if len(parts) > 1 {
		first += fmt.Sprintf("\n\n*[Частина 1 з %d]*", len(parts))
	}
	messages = append(messages, first)

	for i, part := range parts[1:] {
		messages = append(messages, fmt.Sprintf("*[Частина %d з %d]*\n\n%s", i+2, len(parts), part))
	}
	return messages
}

// buildHeader renders the report header carried by the first chunk.
func buildHeader(sender, subject string, now time.Time) string {
	var b strings.Builder
	b.WriteString("📊 **ЗВІТ SAMPO**\n\n")
	fmt.Fprintf(&b, "👤 **Від:** %s\n", truncateField(sender))
	fmt.Fprintf(&b, "📧 **Тема:** %s\n", truncateField(subject))
	fmt.Fprintf(&b, "⏰ **Час:** %s\n", now.Format("02.01.2006 15:04:05"))
	b.WriteString(strings.Repeat("═", 40) + "\n\n")
	return b.String()
}

// truncateField cuts a header field to maxHeaderField bytes without
// tearing a UTF-8 sequence.
func truncateField(s string) string {
	if len(s) <= maxHeaderField {
		return s
	}
	cut := maxHeaderField
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// sleepWithContext waits for the specified duration or until the context
// is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
