package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/pocketlm/core/internal/model/chat"
)

// Grouping and partition thresholds; treated as product contract.
const (
	groupWindow = 60 * time.Second
	headerGap   = 15 * time.Minute

	ungroupedOffset = 12
)

// ErrMalformedMessage marks an input message missing its id or author.
var ErrMalformedMessage = errors.New("malformed message")

// Options control a single derivation pass.
type Options struct {
	// ShowUserNames turns on author labels at visual group boundaries.
	ShowUserNames bool

	// DateFormat and TimeFormat override the default "Jan 2" / "15:04"
	// header layouts (Go reference-time syntax).
	DateFormat string
	TimeFormat string

	// HeaderText replaces the built-in header formatting entirely.
	HeaderText func(time.Time) string

	// Formatter localizes header timestamps; DefaultFormatter when nil.
	Formatter Formatter

	// Now is the clock used to decide whether a timestamp is "today";
	// time.Now when nil.
	Now func() time.Time
}

// Result of one derivation pass.
type Result struct {
	// Messages is newest-first with date headers interleaved at their
	// chronological positions.
	Messages []chat.DerivedMessage
	// Gallery lists image attachments oldest-first.
	Gallery []chat.PreviewImage
}

// Derive computes presentation metadata for a newest-first transcript:
// visual grouping, author-name visibility, date partitions and the image
// gallery. It is a pure function of its inputs; derived fields are always
// recomputed, never trusted from the caller.
func Derive(messages []chat.Message, viewer chat.User, opts Options) (Result, error) {
	for i := range messages {
		if messages[i].ID == "" || messages[i].Author.ID == "" {
			return Result{}, fmt.Errorf("%w: index %d", ErrMalformedMessage, i)
		}
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	format := opts.Formatter
	if format == nil {
		format = DefaultFormatter{}
	}
	headers := headerBuilder{
		custom:     opts.HeaderText,
		format:     format,
		dateLayout: valueOr(opts.DateFormat, defaultDateLayout),
		timeLayout: valueOr(opts.TimeFormat, defaultTimeLayout),
		today:      now(),
	}

	n := len(messages)
	out := make([]chat.DerivedMessage, 0, n)
	var gallery []chat.PreviewImage
	pendingName := false

	// The canonical list is newest-first; walk it from the back so the
	// fold sees true chronological order, then flip at the end.
	for i := n - 1; i >= 0; i-- {
		msg := messages[i]

		var prev, next *chat.Message
		if i+1 < n {
			prev = &messages[i+1]
		}
		if i > 0 {
			next = &messages[i-1]
		}

		if ts := msg.CreatedAt; ts != nil {
			switch {
			case prev == nil:
				out = append(out, headers.build(*ts))
			case prev.CreatedAt != nil && (!sameCalendarDay(*prev.CreatedAt, *ts) || delta(*prev.CreatedAt, *ts) >= headerGap):
				out = append(out, headers.build(*ts))
			}
		}

		d := chat.DerivedMessage{Message: msg, Offset: ungroupedOffset, ShowStatus: true}
		if next != nil && next.Author.ID == msg.Author.ID && bothWithin(msg.CreatedAt, next.CreatedAt, groupWindow) {
			d.NextMessageInGroup = true
			d.Offset = 0
		}

		show := false
		if startsNameGroup(prev, msg) {
			pendingName = msg.Kind != chat.KindText
			show = msg.Kind == chat.KindText
		} else if pendingName && msg.Kind == chat.KindText {
			pendingName = false
			show = true
		}
		d.ShowName = show && opts.ShowUserNames && msg.Author.ID != viewer.ID && msg.Author.DisplayName() != ""

		out = append(out, d)

		if msg.Kind == chat.KindImage {
			gallery = append(gallery, chat.PreviewImage{ID: msg.ID, URI: msg.URI})
		}
	}

	reverse(out)
	return Result{Messages: out, Gallery: gallery}, nil
}

// startsNameGroup reports whether msg opens a new author run: first
// message, author change, or a gap above groupWindow between timestamped
// neighbors.
func startsNameGroup(prev *chat.Message, msg chat.Message) bool {
	if prev == nil || prev.Author.ID != msg.Author.ID {
		return true
	}
	return prev.CreatedAt != nil && msg.CreatedAt != nil && delta(*prev.CreatedAt, *msg.CreatedAt) > groupWindow
}

func bothWithin(a, b *time.Time, window time.Duration) bool {
	return a != nil && b != nil && delta(*a, *b) <= window
}

func delta(a, b time.Time) time.Duration {
	d := b.Sub(a)
	if d < 0 {
		d = -d
	}
	return d
}

func reverse(s []chat.DerivedMessage) {
	for l, r := 0, len(s)-1; l < r; l, r = l+1, r-1 {
		s[l], s[r] = s[r], s[l]
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
