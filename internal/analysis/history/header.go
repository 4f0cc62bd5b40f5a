package history

import (
	"time"

	"github.com/pocketlm/core/internal/model/chat"
)

// Default header layouts, Go reference-time syntax.
const (
	defaultDateLayout = "Jan 2"
	defaultTimeLayout = "15:04"
)

// Formatter renders timestamps for date headers. Implementations own their
// locale; layout strings use Go reference-time syntax.
type Formatter interface {
	Format(ts time.Time, layout string) string
}

// DefaultFormatter formats with the standard library, locale-free.
type DefaultFormatter struct{}

func (DefaultFormatter) Format(ts time.Time, layout string) string { return ts.Format(layout) }

// headerBuilder renders the date partitions of one derivation pass.
type headerBuilder struct {
	custom     func(time.Time) string
	format     Formatter
	dateLayout string
	timeLayout string
	today      time.Time
}

// build returns the synthetic pseudo-message for a partition at ts. Its id
// doubles as the header text; derived flags stay zero.
func (h headerBuilder) build(ts time.Time) chat.DerivedMessage {
	text := h.text(ts)
	created := ts
	return chat.DerivedMessage{Message: chat.Message{
		ID:        text,
		Kind:      chat.KindDateHeader,
		Text:      text,
		CreatedAt: &created,
	}}
}

// text renders time-only for same-day stamps and "<date>, <time>"
// otherwise, unless a custom callback overrides both.
func (h headerBuilder) text(ts time.Time) string {
	if h.custom != nil {
		return h.custom(ts)
	}
	if sameCalendarDay(ts, h.today) {
		return h.format.Format(ts, h.timeLayout)
	}
	return h.format.Format(ts, h.dateLayout) + ", " + h.format.Format(ts, h.timeLayout)
}

func sameCalendarDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
