package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Bar draws a live terminal progress bar labeled with a prefix message.
type Bar struct {
	w       io.Writer
	message string
	width   int
	bar     *progressbar.ProgressBar
}

// NewBar returns a bar writing to w (stderr when nil).
func NewBar(w io.Writer, message string) *Bar {
	if w == nil {
		w = os.Stderr
	}
	return &Bar{w: w, message: message, width: 40}
}

func (b *Bar) Start(total int) {
	b.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(b.w),
		progressbar.OptionSetDescription(b.message),
		progressbar.OptionSetWidth(b.width),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionThrottle(0),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(b.w)
		}),
	)
}

func (b *Bar) Update(current int) {
	if b.bar == nil {
		return
	}
	_ = b.bar.Set(current)
}

func (b *Bar) Grow(total int) {
	if b.bar == nil {
		return
	}
	b.bar.ChangeMax(total)
}

func (b *Bar) Finish() {
	if b.bar == nil {
		return
	}
	_ = b.bar.Finish()
}

func (b *Bar) Abort() {
	if b.bar == nil {
		return
	}
	_ = b.bar.Exit()
	_, _ = fmt.Fprintln(b.w)
}
