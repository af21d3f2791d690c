package rs232

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fastQueueConfig keeps timing-insensitive tests quick.
func fastQueueConfig() QueueConfig {
	return QueueConfig{
		MinCommandDelay:  time.Millisecond,
		PostResponseWait: time.Millisecond,
		AckTimeout:       50 * time.Millisecond,
		NackBackoff:      10 * time.Millisecond,
	}
}

func testDef(name string, opcode byte, response []byte, completion byte) *CommandDefinition {
	return &CommandDefinition{Name: name, Opcode: opcode, Response: response, CompletionCode: completion}
}

func mustDequeue(t *testing.T, q *Queue) *Instance {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	inst, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	return inst
}

// responseRecorder collects responses delivered to a listener.
type responseRecorder struct {
	mu        sync.Mutex
	responses []Response
}

func (r *responseRecorder) listen(resp Response) {
	r.mu.Lock()
	r.responses = append(r.responses, resp)
	r.mu.Unlock()
}

func (r *responseRecorder) all() []Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Response(nil), r.responses...)
}

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue(fastQueueConfig())
	defer q.Close()

	def := testDef("PING", 0x01, []byte{0xB1}, 0)
	var want []string
	for range 5 {
		inst := NewInstance(def, nil)
		want = append(want, inst.ID)
		if err := q.Enqueue(inst); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	for i, id := range want {
		got := mustDequeue(t, q)
		if got.ID != id {
			t.Errorf("dequeue %d: ID = %s, want %s", i, got.ID, id)
		}
		q.OnResponse([]byte{0xB1})
	}
}

func TestQueueConcurrentEnqueueKeepsOrder(t *testing.T) {
	q := NewQueue(fastQueueConfig())
	defer q.Close()

	def := testDef("PING", 0x01, []byte{0xB1}, 0)

	var (
		mu    sync.Mutex
		order []string
		wg    sync.WaitGroup
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inst := NewInstance(def, nil)
			mu.Lock()
			defer mu.Unlock()
			if err := q.Enqueue(inst); err == nil {
				order = append(order, inst.ID)
			}
		}()
	}
	wg.Wait()

	for i, id := range order {
		got := mustDequeue(t, q)
		if got.ID != id {
			t.Fatalf("dequeue %d: ID = %s, want %s", i, got.ID, id)
		}
		q.OnResponse([]byte{0xB1})
	}
}

func TestDequeueRespectsMinCommandDelay(t *testing.T) {
	cfg := fastQueueConfig()
	cfg.MinCommandDelay = 100 * time.Millisecond
	q := NewQueue(cfg)
	defer q.Close()

	def := testDef("PING", 0x01, []byte{0xB1}, 0)
	_ = q.Enqueue(NewInstance(def, nil))
	_ = q.Enqueue(NewInstance(def, nil))

	first := mustDequeue(t, q)
	q.OnResponse([]byte{0xB1})
	second := mustDequeue(t, q)

	if gap := second.SentAt.Sub(first.SentAt); gap < 100*time.Millisecond {
		t.Errorf("dispatch gap = %v, want >= 100ms", gap)
	}
}

func TestDequeueDefaultMinCommandDelay(t *testing.T) {
	q := NewQueue(QueueConfig{})
	defer q.Close()

	def := testDef("PING", 0x01, []byte{0xB1}, 0)
	_ = q.Enqueue(NewInstance(def, nil))
	_ = q.Enqueue(NewInstance(def, nil))

	first := mustDequeue(t, q)
	q.OnResponse([]byte{0xB1})
	second := mustDequeue(t, q)

	if gap := second.SentAt.Sub(first.SentAt); gap < DefaultMinCommandDelay {
		t.Errorf("dispatch gap = %v, want >= %v", gap, DefaultMinCommandDelay)
	}
}

func TestDequeueWaitsPostResponse(t *testing.T) {
	cfg := fastQueueConfig()
	cfg.PostResponseWait = 80 * time.Millisecond
	q := NewQueue(cfg)
	defer q.Close()

	def := testDef("PING", 0x01, []byte{0xB1}, 0)
	_ = q.Enqueue(NewInstance(def, nil))
	_ = q.Enqueue(NewInstance(def, nil))

	mustDequeue(t, q)
	time.Sleep(10 * time.Millisecond)
	responded := time.Now()
	q.OnResponse([]byte{0xB1})

	second := mustDequeue(t, q)
	if wait := second.SentAt.Sub(responded); wait < 80*time.Millisecond {
		t.Errorf("post-response wait = %v, want >= 80ms", wait)
	}
}

func TestDequeueForcesGateAfterAckTimeout(t *testing.T) {
	cfg := fastQueueConfig()
	cfg.AckTimeout = 150 * time.Millisecond
	q := NewQueue(cfg)
	defer q.Close()

	def := testDef("SILENT", 0x01, []byte{0xB1}, 0)
	_ = q.Enqueue(NewInstance(def, nil))
	_ = q.Enqueue(NewInstance(def, nil))

	first := mustDequeue(t, q)
	second := mustDequeue(t, q)

	gap := second.SentAt.Sub(first.SentAt)
	if gap < 150*time.Millisecond {
		t.Errorf("gap = %v, want >= 150ms", gap)
	}
	if gap > time.Second {
		t.Errorf("gap = %v, want well under 1s", gap)
	}
	if got := q.Stats().Timeouts; got != 1 {
		t.Errorf("Timeouts = %d, want 1", got)
	}
	if q.Outstanding() != second {
		t.Error("Outstanding() should be the second command")
	}
}

func TestDequeueLivenessWithDefaultTimings(t *testing.T) {
	q := NewQueue(QueueConfig{})
	defer q.Close()

	def := testDef("SILENT", 0x01, []byte{0xB1}, 0)
	_ = q.Enqueue(NewInstance(def, nil))
	_ = q.Enqueue(NewInstance(def, nil))

	first := mustDequeue(t, q)
	start := time.Now()
	second := mustDequeue(t, q)

	if waited := time.Since(start); waited > DefaultMinCommandDelay+DefaultAckTimeout+300*time.Millisecond {
		t.Errorf("waited %v for the next command, want about %v", waited, DefaultMinCommandDelay+DefaultAckTimeout)
	}
	if gap := second.SentAt.Sub(first.SentAt); gap < DefaultAckTimeout {
		t.Errorf("gap = %v, want >= %v", gap, DefaultAckTimeout)
	}
}

func TestOnResponseHomePositionScenario(t *testing.T) {
	loader := NewLoader(LoaderOptions{})
	def, err := loader.ParseLine("HOME_POSITION_MOVE,39,,B1")
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}

	q := NewQueue(fastQueueConfig())
	defer q.Close()
	rec := &responseRecorder{}
	q.SetListener(rec.listen)

	_ = q.Enqueue(NewInstance(def, nil))
	inst := mustDequeue(t, q)
	if frame := inst.Encode(); !bytes.Equal(frame, []byte{0x39}) {
		t.Errorf("frame = %X, want 39", frame)
	}

	q.OnResponse([]byte{0xB1})

	got := rec.all()
	if len(got) != 1 {
		t.Fatalf("responses = %d, want 1", len(got))
	}
	if got[0].Outcome != OutcomeSuccess {
		t.Errorf("Outcome = %v, want success", got[0].Outcome)
	}
	if got[0].Command != "HOME_POSITION_MOVE" || got[0].CommandID != inst.ID {
		t.Errorf("response correlated to %s/%s, want HOME_POSITION_MOVE/%s", got[0].Command, got[0].CommandID, inst.ID)
	}
	if q.Outstanding() != nil {
		t.Error("Outstanding() should be cleared after success")
	}
}

func TestOnResponseSetPresetScenario(t *testing.T) {
	loader := NewLoader(LoaderOptions{})
	def, err := loader.ParseLine("SET_PRESET_POSITION,11,00..09,B1,B4")
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}

	q := NewQueue(fastQueueConfig())
	defer q.Close()
	rec := &responseRecorder{}
	q.SetListener(rec.listen)

	_ = q.Enqueue(NewInstance(def, []byte{0x05}))
	inst := mustDequeue(t, q)
	if frame := inst.Encode(); !bytes.Equal(frame, []byte{0x11, 0x05}) {
		t.Errorf("frame = %X, want 1105", frame)
	}

	q.OnResponse([]byte{0xB1})
	if q.Outstanding() == nil {
		t.Fatal("ACK alone must not resolve the command")
	}

	start := time.Now()
	q.OnResponse([]byte{0xB4})
	if elapsed := time.Since(start); elapsed >= DefaultNackBackoff {
		t.Errorf("completion took %v, should not be treated as NACK", elapsed)
	}

	got := rec.all()
	if len(got) != 2 {
		t.Fatalf("responses = %d, want 2", len(got))
	}
	if got[0].Outcome != OutcomePassthrough {
		t.Errorf("first Outcome = %v, want passthrough", got[0].Outcome)
	}
	if got[1].Outcome != OutcomeSuccess {
		t.Errorf("second Outcome = %v, want success", got[1].Outcome)
	}
	if q.Outstanding() != nil {
		t.Error("Outstanding() should be cleared after success")
	}
}

func TestOnResponseNack(t *testing.T) {
	q := NewQueue(QueueConfig{MinCommandDelay: time.Millisecond, AckTimeout: 5 * time.Second})
	defer q.Close()
	rec := &responseRecorder{}
	q.SetListener(rec.listen)

	def := testDef("PRESET_MOVE", 0x3A, []byte{0xB1}, 0)
	_ = q.Enqueue(NewInstance(def, []byte{0x03}))
	first := mustDequeue(t, q)

	start := time.Now()
	q.OnResponse([]byte{DefaultNackCode})
	if elapsed := time.Since(start); elapsed < DefaultNackBackoff {
		t.Errorf("NACK handling took %v, want >= %v", elapsed, DefaultNackBackoff)
	}

	if q.Outstanding() != first {
		t.Error("NACK must not clear the outstanding command")
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0 (no automatic resend)", q.Len())
	}

	got := rec.all()
	if len(got) != 1 || got[0].Outcome != OutcomeFail {
		t.Fatalf("responses = %+v, want one fail", got)
	}

	// The gate is open again: the next command goes out without the 5s ack wait.
	_ = q.Enqueue(NewInstance(def, []byte{0x04}))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := q.Dequeue(ctx); err != nil {
		t.Errorf("Dequeue() after NACK error = %v", err)
	}
}

func TestOnResponseNackLeavesLaterGateClosed(t *testing.T) {
	cfg := fastQueueConfig()
	cfg.AckTimeout = 100 * time.Millisecond
	cfg.NackBackoff = 150 * time.Millisecond
	q := NewQueue(cfg)
	defer q.Close()

	def := testDef("PRESET_MOVE", 0x3A, []byte{0xB1}, 0)
	for i := byte(0); i < 3; i++ {
		_ = q.Enqueue(NewInstance(def, []byte{i}))
	}

	mustDequeue(t, q)
	nacked := make(chan struct{})
	go func() {
		q.OnResponse([]byte{DefaultNackCode})
		close(nacked)
	}()

	// The ack ceiling releases the second command while the NACK backoff
	// is still running.
	second := mustDequeue(t, q)
	third := mustDequeue(t, q)
	<-nacked

	if gap := third.SentAt.Sub(second.SentAt); gap < cfg.AckTimeout-10*time.Millisecond {
		t.Errorf("third command sent %v after the second, want about the %v ack wait", gap, cfg.AckTimeout)
	}
}

func TestOnResponseUnsolicited(t *testing.T) {
	q := NewQueue(fastQueueConfig())
	defer q.Close()
	rec := &responseRecorder{}
	q.SetListener(rec.listen)

	q.OnResponse([]byte{0x90, 0x01, 0x02})

	got := rec.all()
	if len(got) != 1 {
		t.Fatalf("responses = %d, want 1", len(got))
	}
	if got[0].Outcome != OutcomeSuccess {
		t.Errorf("Outcome = %v, want success", got[0].Outcome)
	}
	if got[0].Command != "" {
		t.Errorf("Command = %q, want empty", got[0].Command)
	}
	if got[0].Status != 0x90 || !bytes.Equal(got[0].Args, []byte{0x01, 0x02}) {
		t.Errorf("Status/Args = %X/%X, want 90/0102", got[0].Status, got[0].Args)
	}
}

func TestOnResponsePassthroughKeepsGateClosed(t *testing.T) {
	cfg := fastQueueConfig()
	cfg.AckTimeout = 150 * time.Millisecond
	q := NewQueue(cfg)
	defer q.Close()
	rec := &responseRecorder{}
	q.SetListener(rec.listen)

	def := testDef("PING", 0x01, []byte{0xB1}, 0)
	_ = q.Enqueue(NewInstance(def, nil))
	_ = q.Enqueue(NewInstance(def, nil))

	first := mustDequeue(t, q)
	q.OnResponse([]byte{0x77})

	second := mustDequeue(t, q)
	if gap := second.SentAt.Sub(first.SentAt); gap < 150*time.Millisecond {
		t.Errorf("gap = %v, passthrough must not open the gate", gap)
	}
	if got := rec.all(); len(got) != 1 || got[0].Outcome != OutcomePassthrough {
		t.Errorf("responses = %+v, want one passthrough", got)
	}
}

func TestRetryPolicy(t *testing.T) {
	t.Run("nack requeues at head", func(t *testing.T) {
		cfg := fastQueueConfig()
		cfg.Retry = RetryPolicy{MaxAttempts: 2}
		q := NewQueue(cfg)
		defer q.Close()

		def := testDef("PRESET_MOVE", 0x3A, []byte{0xB1}, 0)
		other := NewInstance(def, []byte{0x07})
		_ = q.Enqueue(NewInstance(def, []byte{0x03}))
		_ = q.Enqueue(other)

		first := mustDequeue(t, q)
		q.OnResponse([]byte{DefaultNackCode})

		if q.Outstanding() != nil {
			t.Error("retried command should no longer be outstanding")
		}
		retried := mustDequeue(t, q)
		if retried.ID != first.ID || retried.Attempt != 2 {
			t.Errorf("got %s attempt %d, want %s attempt 2", retried.ID, retried.Attempt, first.ID)
		}

		// Attempts exhausted: a second NACK keeps legacy behaviour.
		q.OnResponse([]byte{DefaultNackCode})
		if next := mustDequeue(t, q); next.ID != other.ID {
			t.Errorf("next = %s, want %s", next.ID, other.ID)
		}
		if got := q.Stats().Retries; got != 1 {
			t.Errorf("Retries = %d, want 1", got)
		}
	})

	t.Run("timeout requeues", func(t *testing.T) {
		cfg := fastQueueConfig()
		cfg.Retry = RetryPolicy{MaxAttempts: 3}
		q := NewQueue(cfg)
		defer q.Close()

		def := testDef("SILENT", 0x01, []byte{0xB1}, 0)
		_ = q.Enqueue(NewInstance(def, nil))

		first := mustDequeue(t, q)
		retried := mustDequeue(t, q)
		if retried.ID != first.ID || retried.Attempt != 2 {
			t.Errorf("got %s attempt %d, want %s attempt 2", retried.ID, retried.Attempt, first.ID)
		}
	})

	t.Run("legacy never resends", func(t *testing.T) {
		q := NewQueue(fastQueueConfig())
		defer q.Close()

		def := testDef("SILENT", 0x01, []byte{0xB1}, 0)
		_ = q.Enqueue(NewInstance(def, nil))
		mustDequeue(t, q)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		if inst, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Dequeue() = %v, %v, want deadline exceeded", inst, err)
		}
	})
}

func TestQueueClose(t *testing.T) {
	q := NewQueue(fastQueueConfig())

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()
	q.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrQueueClosed) {
			t.Errorf("Dequeue() error = %v, want ErrQueueClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue() did not return after Close")
	}

	if err := q.Enqueue(NewInstance(testDef("X", 1, nil, 0), nil)); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue() after Close error = %v, want ErrQueueClosed", err)
	}
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue(fastQueueConfig())
	defer q.Close()

	def := testDef("PING", 0x01, nil, 0)
	_ = q.Enqueue(NewInstance(def, nil))
	_ = q.Enqueue(NewInstance(def, nil))

	if got := len(q.Drain()); got != 2 {
		t.Errorf("Drain() = %d items, want 2", got)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d after drain, want 0", q.Len())
	}
}

func TestQueueListenerPanicRecovered(t *testing.T) {
	q := NewQueue(fastQueueConfig())
	defer q.Close()
	q.SetListener(func(Response) { panic("boom") })

	q.OnResponse([]byte{0x01})
}
