package logbuf

import (
	"sync"
	"testing"
	"time"
)

func TestAppendOrdering(t *testing.T) {
	b := New()
	defer b.Close()

	b.Infof("first")
	b.Errorf("second %d", 2)
	b.Successf("third")

	entries := b.Entries()
	if len(entries) != 3 {
		t.Fatalf("Entries() returned %d entries, want 3", len(entries))
	}
	want := []struct {
		kind Kind
		msg  string
	}{
		{KindInfo, "first"},
		{KindError, "second 2"},
		{KindSuccess, "third"},
	}
	for i, w := range want {
		if entries[i].Seq != i {
			t.Errorf("entry %d Seq = %d", i, entries[i].Seq)
		}
		if entries[i].Kind != w.kind || entries[i].Message != w.msg {
			t.Errorf("entry %d = %s %q, want %s %q",
				i, entries[i].Kind, entries[i].Message, w.kind, w.msg)
		}
	}
}

func TestFlushObservesPriorAppends(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	seen := 0
	b.OnChange(func() {
		mu.Lock()
		seen = b.Len()
		mu.Unlock()
	})

	for i := 0; i < 50; i++ {
		b.Infof("entry %d", i)
	}

	select {
	case <-b.RequestFlush():
	case <-time.After(2 * time.Second):
		t.Fatal("flush did not complete")
	}

	mu.Lock()
	defer mu.Unlock()
	if seen != 50 {
		t.Errorf("observer saw %d entries at flush, want 50", seen)
	}
}

func TestObserverCatchesUpAfterDroppedNotices(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	high := 0
	b.OnChange(func() {
		mu.Lock()
		if n := b.Len(); n > high {
			high = n
		}
		mu.Unlock()
	})

	// Far more appends than the notification queue holds.
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b.Infof("worker %d entry %d", w, i)
			}
		}(w)
	}
	wg.Wait()

	<-b.RequestFlush()

	mu.Lock()
	defer mu.Unlock()
	if high != 1600 {
		t.Errorf("observer high-water mark = %d, want 1600", high)
	}
}

func TestRequestFlushAfterClose(t *testing.T) {
	b := New()
	b.Close()

	select {
	case <-b.RequestFlush():
	case <-time.After(time.Second):
		t.Fatal("RequestFlush after Close should complete immediately")
	}
}

func TestConcurrentAppendsKeepUniqueSeq(t *testing.T) {
	b := New()
	defer b.Close()

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Infof("x")
			}
		}()
	}
	wg.Wait()

	entries := b.Entries()
	if len(entries) != 1000 {
		t.Fatalf("got %d entries, want 1000", len(entries))
	}
	for i, e := range entries {
		if e.Seq != i {
			t.Fatalf("entry at index %d has Seq %d", i, e.Seq)
		}
	}
}
