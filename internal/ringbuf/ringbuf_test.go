package ringbuf

import (
	"context"
	"sync"
	"testing"
	"time"

	"candle-featuresv1/internal/model"
)

func kline(symbol string, ts int64) model.Kline {
	return model.Kline{Symbol: symbol, Interval: "1m", Bar: model.Bar{Timestamp: ts}, Final: true}
}

func TestRing_BasicPushPop(t *testing.T) {
	r := New[model.Kline](4)

	if !r.Push(kline("BTC", 1)) {
		t.Fatal("push 1 should succeed")
	}
	if !r.Push(kline("ETH", 2)) {
		t.Fatal("push 2 should succeed")
	}

	if r.Len() != 2 {
		t.Fatalf("expected len=2, got %d", r.Len())
	}

	got, ok := r.Pop()
	if !ok || got.Symbol != "BTC" {
		t.Fatalf("expected BTC, got %v ok=%v", got.Symbol, ok)
	}

	got, ok = r.Pop()
	if !ok || got.Symbol != "ETH" {
		t.Fatalf("expected ETH, got %v ok=%v", got.Symbol, ok)
	}

	_, ok = r.Pop()
	if ok {
		t.Fatal("pop from empty should return false")
	}
}

func TestRing_Overflow(t *testing.T) {
	r := New[model.Kline](2)

	r.Push(kline("A", 1))
	r.Push(kline("A", 2))

	if r.Push(kline("A", 3)) {
		t.Fatal("push to full buffer should return false")
	}
	if r.Overflow() != 1 {
		t.Fatalf("expected overflow=1, got %d", r.Overflow())
	}
	if r.Cap() != 2 {
		t.Fatalf("expected cap=2, got %d", r.Cap())
	}
}

func TestRing_Wraparound(t *testing.T) {
	r := New[model.Kline](4)

	for round := 0; round < 5; round++ {
		for i := 0; i < 4; i++ {
			if !r.Push(kline("X", int64(round*10+i))) {
				t.Fatalf("round %d push %d failed", round, i)
			}
		}
		for i := 0; i < 4; i++ {
			k, ok := r.Pop()
			if !ok {
				t.Fatalf("round %d pop %d failed", round, i)
			}
			if k.Timestamp != int64(round*10+i) {
				t.Fatalf("round %d pop %d: expected ts=%d, got %d", round, i, round*10+i, k.Timestamp)
			}
		}
	}
}

func TestRing_SPSC_Concurrent(t *testing.T) {
	const count = 100_000
	r := New[int64](1024)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < count; i++ {
			for !r.Push(int64(i)) {
				// spin-wait (busy loop for test only)
			}
		}
	}()

	received := make([]int64, 0, count)
	go func() {
		defer wg.Done()
		for len(received) < count {
			if v, ok := r.Pop(); ok {
				received = append(received, v)
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("SPSC test timed out")
	}

	for i, v := range received {
		if v != int64(i) {
			t.Fatalf("at index %d: expected %d, got %d", i, i, v)
		}
	}
}

func TestRing_FillAndDrain(t *testing.T) {
	r := New[model.Kline](2)
	in := make(chan model.Kline, 3)
	in <- kline("A", 1)
	in <- kline("A", 2)
	in <- kline("A", 3) // ring holds 2
	close(in)

	var dropped []int64
	r.Fill(context.Background(), in, func(k model.Kline) { dropped = append(dropped, k.Timestamp) })
	if len(dropped) != 1 || dropped[0] != 3 {
		t.Fatalf("expected ts 3 dropped, got %v", dropped)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan model.Kline)
	go r.Drain(ctx, out, time.Millisecond)
	if k := <-out; k.Timestamp != 1 {
		t.Fatalf("expected ts 1, got %d", k.Timestamp)
	}
	if k := <-out; k.Timestamp != 2 {
		t.Fatalf("expected ts 2, got %d", k.Timestamp)
	}
	cancel()
}

func TestRing_NextPow2(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {5, 8}, {7, 8}, {8, 8}, {9, 16}, {1023, 1024},
	}
	for _, tc := range cases {
		got := nextPow2(tc.in)
		if got != tc.want {
			t.Errorf("nextPow2(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
