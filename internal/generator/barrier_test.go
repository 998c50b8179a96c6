package generator

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

var errTestBarrier = errors.New("generator: test transition error")

func TestBarrierRunsTransitionExactlyOncePerRound(t *testing.T) {
	const n = 8
	const rounds = 50

	b := newBarrier(n)
	var transitions atomic.Int32
	var wg sync.WaitGroup

	for w := 0; w < n; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				err := b.arrive(func() (bool, error) {
					transitions.Add(1)
					return false, nil
				})
				if err != nil {
					t.Errorf("arrive: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := transitions.Load(); got != rounds {
		t.Fatalf("transition ran %d times, want exactly %d (once per round)", got, rounds)
	}
}

func TestBarrierPropagatesStopToEveryWorker(t *testing.T) {
	const n = 4
	b := newBarrier(n)
	var wg sync.WaitGroup
	results := make([]error, n)

	for w := 0; w < n; w++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = b.arrive(func() (bool, error) {
				return true, nil
			})
		}(w)
	}
	wg.Wait()

	if !b.Stopped() {
		t.Fatalf("barrier should be Stopped() after a transition returns stop=true")
	}
	for i, err := range results {
		if err != nil {
			t.Errorf("worker %d got unexpected error %v", i, err)
		}
	}
}

func TestBarrierPropagatesErrorToEveryWorker(t *testing.T) {
	const n = 4
	b := newBarrier(n)
	var wg sync.WaitGroup
	results := make([]error, n)
	wantErr := errTestBarrier

	for w := 0; w < n; w++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = b.arrive(func() (bool, error) {
				return false, wantErr
			})
		}(w)
	}
	wg.Wait()

	for i, err := range results {
		if err != wantErr {
			t.Errorf("worker %d got error %v, want %v", i, err, wantErr)
		}
	}
	if !b.Stopped() {
		t.Fatalf("barrier should be Stopped() after a transition returns an error")
	}
}
