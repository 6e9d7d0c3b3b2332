// Package placeholders expands run-time tokens in target URLs.
//
// Two tokens are recognized:
//
//	<ymdhms>  local time as 20060102150405
//	<rand>    a fresh lowercase ULID
//
// Every occurrence is replaced and each <rand> receives its own value, so a
// target such as "https://example.com/?t=<ymdhms>&r=<rand>" defeats caches on
// every trial.
package placeholders

import (
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// TimestampLayout is the layout substituted for <ymdhms>.
const TimestampLayout = "20060102150405"

var tokenRegex = regexp.MustCompile(`<(ymdhms|rand)>`)

// Expander replaces placeholder tokens. The zero value is not usable; use New.
type Expander struct {
	now  func() time.Time
	rand func() string
}

// Option customizes an Expander.
type Option func(*Expander)

// WithClock overrides the time source used for <ymdhms>.
func WithClock(now func() time.Time) Option {
	return func(e *Expander) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRandom overrides the generator used for <rand>.
func WithRandom(gen func() string) Option {
	return func(e *Expander) {
		if gen != nil {
			e.rand = gen
		}
	}
}

// New returns an Expander backed by the wall clock and ULIDs.
func New(opts ...Option) *Expander {
	e := &Expander{
		now:  time.Now,
		rand: func() string { return strings.ToLower(ulid.Make().String()) },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand returns s with every placeholder replaced. Strings without tokens are
// returned unchanged.
func (e *Expander) Expand(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	var stamp string
	return tokenRegex.ReplaceAllStringFunc(s, func(match string) string {
		switch match {
		case "<ymdhms>":
			if stamp == "" {
				stamp = e.now().Format(TimestampLayout)
			}
			return stamp
		case "<rand>":
			return e.rand()
		}
		return match
	})
}

// Has reports whether s contains any placeholder.
func Has(s string) bool {
	return tokenRegex.MatchString(s)
}
