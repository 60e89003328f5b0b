package pool

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func blockOn(block int) WorkerFactory[int, int] {
	return Stateless(func(ctx context.Context, n int) Outcome[int] {
		if n == block {
			<-ctx.Done()
			return Fail[int](ctx.Err())
		}
		return Success(n)
	})
}

func TestLargePool_Run_StallTimeout(t *testing.T) {
	p := New[int, int](quiet(WithWorkerCount(1), WithStallTimeout(50*time.Millisecond))...)

	start := time.Now()
	results, err := p.Run(context.Background(), ints(3), blockOn(1))
	if !errors.Is(err, ErrStalled) {
		t.Fatalf("expected ErrStalled, got %v", err)
	}
	if len(TaskErrors(err)) != 0 {
		t.Errorf("the blocked task should not be reported as failed: %v", err)
	}
	if len(results) != 1 || results[0] != 0 {
		t.Errorf("expected the result of task 0, got %v", results)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("stall detection took %v", elapsed)
	}
}

func TestLargePool_Run_NoStallTimeoutWaits(t *testing.T) {
	p := New[int, int](quiet(WithWorkerCount(1))...)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Run(ctx, ints(2), blockOn(1))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if errors.Is(err, ErrStalled) {
		t.Errorf("run without a stall timeout reported a stall")
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("run returned after %v, before the caller's deadline", elapsed)
	}
}

func TestLargePool_Run_SlowTasksAreNotStalls(t *testing.T) {
	p := New[int, int](quiet(WithWorkerCount(1), WithStallTimeout(100*time.Millisecond))...)

	results, err := p.Run(context.Background(), ints(5), Stateless(func(ctx context.Context, n int) Outcome[int] {
		time.Sleep(30 * time.Millisecond)
		return Success(n)
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 5 {
		t.Errorf("expected 5 results, got %d", len(results))
	}
}

func TestLargePool_Reporter_Samples(t *testing.T) {
	rep := &recordingReporter{}
	p := New[int, int](quiet(WithWorkerCount(2), WithReporter(rep))...)

	_, err := p.Run(context.Background(), ints(25), Stateless(func(ctx context.Context, n int) Outcome[int] {
		time.Sleep(time.Millisecond)
		return Success(n)
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rep.started != 25 {
		t.Errorf("expected Start(25), got Start(%d)", rep.started)
	}
	if rep.last() != 25 {
		t.Errorf("expected final sample 25, got %d", rep.last())
	}
	if rep.finished != 1 || rep.aborted != 0 {
		t.Errorf("expected one Finish and no Abort, got %d/%d", rep.finished, rep.aborted)
	}

	prev := 0
	for _, u := range rep.updates {
		if u < prev {
			t.Errorf("progress went backwards: %v", rep.updates)
			break
		}
		prev = u
	}
}

func TestLargePool_Reporter_AbortOnStall(t *testing.T) {
	rep := &recordingReporter{}
	p := New[int, int](quiet(WithWorkerCount(1), WithReporter(rep), WithStallTimeout(30*time.Millisecond))...)

	_, err := p.Run(context.Background(), ints(2), blockOn(0))
	if !errors.Is(err, ErrStalled) {
		t.Fatalf("expected ErrStalled, got %v", err)
	}
	if rep.aborted != 1 || rep.finished != 0 {
		t.Errorf("expected one Abort and no Finish, got %d/%d", rep.aborted, rep.finished)
	}
}

func TestLargePool_Run_SourceYieldsMoreThanDeclared(t *testing.T) {
	rep := &recordingReporter{}
	p := New[int, int](quiet(WithWorkerCount(2), WithReporter(rep))...)

	report, err := p.Execute(context.Background(), lyingSource{declared: 2, actual: 6}, Stateless(double))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Results) != 6 {
		t.Errorf("expected 6 results, got %d", len(report.Results))
	}
	if report.Stats.Declared != 2 || report.Stats.Fed != 6 {
		t.Errorf("unexpected stats: %+v", report.Stats)
	}
	if len(rep.grown) == 0 || rep.grown[len(rep.grown)-1] != 6 {
		t.Errorf("expected total to grow to 6, got %v", rep.grown)
	}
	if rep.finished != 1 {
		t.Errorf("expected Finish after growing, got %d", rep.finished)
	}
}

func TestLargePool_Run_SourceYieldsFewerThanDeclared(t *testing.T) {
	var logs bytes.Buffer
	p := New[int, int](quiet(WithWorkerCount(2), WithLogger(zerolog.New(&logs)))...)

	report, err := p.Execute(context.Background(), lyingSource{declared: 5, actual: 3}, Stateless(double))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Results) != 3 || report.Stats.Fed != 3 {
		t.Errorf("expected 3 results from 3 fed tasks, got %d/%d", len(report.Results), report.Stats.Fed)
	}
	if !strings.Contains(logs.String(), "different number of tasks") {
		t.Errorf("expected a mismatch warning, got %q", logs.String())
	}
}

func TestLargePool_Reporter_FinishWhenSourceYieldsFewer(t *testing.T) {
	rep := &recordingReporter{}
	p := New[int, int](quiet(WithWorkerCount(2), WithReporter(rep))...)

	if _, err := p.Run(context.Background(), lyingSource{declared: 5, actual: 3}, Stateless(double)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.finished != 1 || rep.aborted != 0 {
		t.Errorf("expected one Finish and no Abort, got %d/%d", rep.finished, rep.aborted)
	}
	if rep.last() != 3 {
		t.Errorf("expected final sample 3, got %d", rep.last())
	}
}

func TestLargePool_Reporter_FinishAfterFailures(t *testing.T) {
	rep := &recordingReporter{}
	p := New[int, int](quiet(WithWorkerCount(2), WithReporter(rep))...)

	_, err := p.Run(context.Background(), ints(4), Stateless(func(ctx context.Context, n int) Outcome[int] {
		if n == 2 {
			return Fail[int](errors.New("bad row"))
		}
		return Success(n)
	}))
	if err == nil {
		t.Fatal("expected an error")
	}
	if rep.finished != 1 || rep.aborted != 0 {
		t.Errorf("a run that processed every task should finish the bar, got %d/%d", rep.finished, rep.aborted)
	}
}

func TestLargePool_LogProgress(t *testing.T) {
	var logs bytes.Buffer
	p := New[int, int](
		WithWorkerCount(2),
		WithPollInterval(5*time.Millisecond),
		WithLogProgress(),
		WithMessage("Reading "),
		WithLogger(zerolog.New(&logs)),
	)

	if _, err := p.Run(context.Background(), ints(4), Stateless(double)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := logs.String()
	if !strings.Contains(out, `"label":"Reading "`) || !strings.Contains(out, "progress finished") {
		t.Errorf("unexpected progress log: %s", out)
	}
}

func TestLargePool_ProgressBar(t *testing.T) {
	var buf bytes.Buffer
	p := New[int, int](
		WithWorkerCount(2),
		WithPollInterval(5*time.Millisecond),
		WithProgressWriter(&buf),
		WithMessage("Loading "),
	)

	if _, err := p.Run(context.Background(), ints(8), Stateless(double)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Loading ") || !strings.Contains(out, "8/8") {
		t.Errorf("unexpected bar output: %q", out)
	}
}
