package progress

import (
	"github.com/rs/zerolog"
)

// Log writes one log line per changed sample. It suits CI runs and output
// that is not a terminal.
type Log struct {
	l       zerolog.Logger
	message string
	total   int
	last    int
}

// NewLog returns a reporter logging through l.
func NewLog(l zerolog.Logger, message string) *Log {
	return &Log{l: l, message: message, last: -1}
}

func (r *Log) Start(total int) {
	r.total = total
	r.l.Info().Str("label", r.message).Int("total", total).Msg("progress started")
}

func (r *Log) Update(current int) {
	if current == r.last {
		return
	}
	r.last = current
	r.l.Info().
		Str("label", r.message).
		Int("current", current).
		Int("total", r.total).
		Float64("percent", percent(current, r.total)).
		Msg("progress")
}

func (r *Log) Grow(total int) {
	r.l.Warn().Int("declared", r.total).Int("total", total).Msg("progress total raised")
	r.total = total
}

func (r *Log) Finish() {
	r.l.Info().Str("label", r.message).Int("total", r.total).Msg("progress finished")
}

func (r *Log) Abort() {
	r.l.Warn().Str("label", r.message).Int("current", r.last).Int("total", r.total).Msg("progress aborted")
}

func percent(current, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(current) * 100 / float64(total)
}
