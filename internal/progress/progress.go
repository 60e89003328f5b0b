// Package progress renders the "current/total" signal produced by a pool run.
//
// A Reporter is driven by a single goroutine: Start once, Update and Grow any
// number of times, then exactly one of Finish or Abort.
package progress

// Reporter receives progress samples from the pool monitor.
type Reporter interface {
	// Start announces the declared number of tasks.
	Start(total int)
	// Update reports how many tasks have completed so far.
	Update(current int)
	// Grow raises the total when a source produces more tasks than declared.
	Grow(total int)
	// Finish marks a run that reached its total.
	Finish()
	// Abort marks a run that stopped early (cancelled, stalled, failed fast).
	Abort()
}

// Nop discards every sample.
type Nop struct{}

func (Nop) Start(int)  {}
func (Nop) Update(int) {}
func (Nop) Grow(int)   {}
func (Nop) Finish()    {}
func (Nop) Abort()     {}
