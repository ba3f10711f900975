package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/dashnotifier/internal/core/detector"
	"github.com/vietddude/dashnotifier/internal/core/domain"
	"github.com/vietddude/dashnotifier/internal/core/format"
	"github.com/vietddude/dashnotifier/internal/infra/provider"
	"github.com/vietddude/dashnotifier/internal/infra/storage"
	"github.com/vietddude/dashnotifier/internal/infra/storage/memory"
)

const (
	addrA = domain.Address("XpESxaUmonkq8RaLLp46Brx2K39ggQe226")
	addrB = domain.Address("XonCSL19SseRbeThdAJAeRju1jEWke1gSc")
	addrC = domain.Address("Xo8bVQ7gZBmuCPZWC8FqmHyvaS4KhZFKKk")
)

type fakeClient struct {
	mu         sync.Mutex
	price      decimal.NullDecimal
	priceErr   error
	txs        map[domain.Address][]domain.Transaction
	errs       map[domain.Address]error
	retryAfter time.Duration
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		price: decimal.NewNullDecimal(decimal.NewFromInt(30)),
		txs:   make(map[domain.Address][]domain.Transaction),
		errs:  make(map[domain.Address]error),
	}
}

func (c *fakeClient) FetchPrice(context.Context) (decimal.NullDecimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.priceErr != nil {
		return decimal.NullDecimal{}, c.priceErr
	}
	return c.price, nil
}

func (c *fakeClient) FetchTransactions(_ context.Context, addr domain.Address, _ int) ([]domain.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.errs[addr]; err != nil {
		return nil, err
	}
	return c.txs[addr], nil
}

func (c *fakeClient) RetryAfter() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryAfter
}

func (c *fakeClient) setTxs(addr domain.Address, hashes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txs := make([]domain.Transaction, len(hashes))
	for i, h := range hashes {
		txs[i] = domain.Transaction{Hash: h, Value: 850_000_000, Ordinal: int64(len(hashes) - i)}
	}
	c.txs[addr] = txs
}

type sent struct {
	user domain.UserID
	msg  format.Message
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []sent
	fail  map[domain.UserID]error
	hook  func(user domain.UserID)
	panic bool
}

func (n *fakeNotifier) Notify(_ context.Context, user domain.UserID, msg format.Message) error {
	if n.hook != nil {
		n.hook(user)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.panic {
		panic("notifier exploded")
	}
	if err := n.fail[user]; err != nil {
		return err
	}
	n.sent = append(n.sent, sent{user: user, msg: msg})
	return nil
}

func (n *fakeNotifier) messages() []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sent(nil), n.sent...)
}

type harness struct {
	poller   *Poller
	store    *storage.Store
	backend  *memory.Backend
	client   *fakeClient
	notifier *fakeNotifier
}

func newHarness(t *testing.T, cfg Config, mode detector.Mode, users map[domain.UserID]domain.Address) *harness {
	t.Helper()

	state := domain.NewState()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for user, addr := range users {
		state.Users[user] = domain.NewWatchEntry(addr, now)
	}

	backend := memory.NewWithState(state)
	store := storage.Open(context.Background(), backend)
	client := newFakeClient()
	notifier := &fakeNotifier{fail: make(map[domain.UserID]error)}

	p := New(cfg, store, client, detector.New(mode, 5), format.New(format.Config{}), notifier)
	t.Cleanup(func() { _ = p.Stop() })

	return &harness{poller: p, store: store, backend: backend, client: client, notifier: notifier}
}

func (h *harness) entry(t *testing.T, user domain.UserID) *domain.WatchEntry {
	t.Helper()
	e, ok := h.store.Entry(user)
	if !ok {
		t.Fatalf("no entry for %s", user)
	}
	return e
}

func TestRunCycle_NotifiesOnceAndPersistsOncePerCycle(t *testing.T) {
	h := newHarness(t, Config{}, detector.ModeHead, map[domain.UserID]domain.Address{"1": addrA})
	h.client.setTxs(addrA, "tx-2", "tx-1")
	ctx := context.Background()

	report := h.poller.RunCycle(ctx)
	if report.Notified != 1 || report.Failed != 0 || !report.PriceKnown {
		t.Fatalf("report = %+v", report)
	}
	if h.backend.Saves() != 1 {
		t.Errorf("saves after first cycle = %d, want 1", h.backend.Saves())
	}

	msgs := h.notifier.messages()
	if len(msgs) != 1 || msgs[0].user != "1" || msgs[0].msg.Fiat != "255.00" {
		t.Fatalf("messages = %+v", msgs)
	}

	e := h.entry(t, "1")
	if e.LastSeen() != "tx-2" || !e.HasNotified("tx-2") {
		t.Errorf("entry = %+v", e)
	}

	// Same provider answer: nothing new
	report = h.poller.RunCycle(ctx)
	if report.Notified != 0 {
		t.Errorf("second cycle notified %d", report.Notified)
	}
	if len(h.notifier.messages()) != 1 {
		t.Errorf("duplicate notification sent")
	}
	if h.backend.Saves() != 2 {
		t.Errorf("saves after second cycle = %d, want 2", h.backend.Saves())
	}
	if h.store.Snapshot().LastChecked == 0 {
		t.Error("LastChecked not recorded")
	}
}

func TestRunCycle_EmptyHistory(t *testing.T) {
	h := newHarness(t, Config{}, detector.ModeHead, map[domain.UserID]domain.Address{"1": addrA})

	report := h.poller.RunCycle(context.Background())
	if report.Notified != 0 || len(h.notifier.messages()) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if h.entry(t, "1").LastSeenTx != nil {
		t.Error("entry should be unchanged")
	}
}

func TestRunCycle_FailedDeliveryIsRetried(t *testing.T) {
	h := newHarness(t, Config{}, detector.ModeHead, map[domain.UserID]domain.Address{"1": addrA})
	h.client.setTxs(addrA, "tx-1")
	h.notifier.fail["1"] = errors.New("telegram down")
	ctx := context.Background()

	report := h.poller.RunCycle(ctx)
	if report.Failed != 1 || report.Notified != 0 {
		t.Fatalf("report = %+v", report)
	}
	if h.entry(t, "1").LastSeenTx != nil {
		t.Fatal("failed delivery must not mark the transaction seen")
	}

	delete(h.notifier.fail, "1")
	report = h.poller.RunCycle(ctx)
	if report.Notified != 1 {
		t.Fatalf("retry report = %+v", report)
	}
	if h.entry(t, "1").LastSeen() != "tx-1" {
		t.Error("retried delivery should mark the transaction seen")
	}
}

func TestRunCycle_IsolatesFailures(t *testing.T) {
	users := map[domain.UserID]domain.Address{"1": addrA, "2": addrB, "3": addrC}
	h := newHarness(t, Config{Workers: 2}, detector.ModeHead, users)
	h.client.errs[addrA] = &provider.StatusError{Code: 500, Body: "boom"}
	h.client.setTxs(addrB, "b-1")
	h.client.setTxs(addrC, "c-1")

	report := h.poller.RunCycle(context.Background())
	if report.Failed != 1 || report.Notified != 2 {
		t.Fatalf("report = %+v", report)
	}
	if h.entry(t, "2").LastSeen() != "b-1" || h.entry(t, "3").LastSeen() != "c-1" {
		t.Error("healthy entries should progress")
	}
}

func TestRunCycle_RecoversPanics(t *testing.T) {
	users := map[domain.UserID]domain.Address{"1": addrA}
	h := newHarness(t, Config{}, detector.ModeHead, users)
	h.client.setTxs(addrA, "tx-1")
	h.notifier.panic = true

	report := h.poller.RunCycle(context.Background())
	if report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if h.entry(t, "1").LastSeenTx != nil {
		t.Error("panicked entry must stay unchanged")
	}
}

func TestRunCycle_UnknownPrice(t *testing.T) {
	h := newHarness(t, Config{}, detector.ModeHead, map[domain.UserID]domain.Address{"1": addrA})
	h.client.priceErr = provider.ErrRateLimited
	h.client.setTxs(addrA, "tx-1")

	report := h.poller.RunCycle(context.Background())
	if report.PriceKnown || report.Notified != 1 {
		t.Fatalf("report = %+v", report)
	}
	if msg := h.notifier.messages()[0].msg; msg.Fiat != "" {
		t.Errorf("Fiat = %q, want empty", msg.Fiat)
	}
}

func TestRunCycle_RegistrationDuringCycleIsKept(t *testing.T) {
	h := newHarness(t, Config{}, detector.ModeHead, map[domain.UserID]domain.Address{"1": addrA})
	h.client.setTxs(addrA, "tx-1")

	registered := make(chan struct{})
	h.notifier.hook = func(user domain.UserID) {
		if user != "1" {
			return
		}
		err := h.store.Update(context.Background(), func(s *domain.State) error {
			s.Users["2"] = domain.NewWatchEntry(addrB, time.Now())
			return nil
		})
		if err != nil {
			t.Errorf("concurrent registration: %v", err)
		}
		close(registered)
	}

	h.poller.RunCycle(context.Background())
	<-registered

	state := h.store.Snapshot()
	if e := state.Users["2"]; e == nil || e.Address != addrB {
		t.Fatalf("registration lost: %+v", state.Users)
	}
	if state.Users["1"].LastSeen() != "tx-1" {
		t.Error("cycle outcome lost")
	}
}

func TestRunCycle_AddressChangedDuringCycle(t *testing.T) {
	h := newHarness(t, Config{}, detector.ModeHead, map[domain.UserID]domain.Address{"1": addrA})
	h.client.setTxs(addrA, "tx-1")

	h.notifier.hook = func(domain.UserID) {
		_ = h.store.Update(context.Background(), func(s *domain.State) error {
			s.Users["1"].Rebind(addrB, time.Now())
			return nil
		})
	}

	report := h.poller.RunCycle(context.Background())
	if report.Stale != 1 {
		t.Fatalf("report = %+v", report)
	}
	e := h.entry(t, "1")
	if e.Address != addrB || e.LastSeenTx != nil {
		t.Errorf("rebound entry should not inherit the old outcome: %+v", e)
	}
}

func TestRunCycle_IncomingOnly(t *testing.T) {
	h := newHarness(t, Config{IncomingOnly: true}, detector.ModeHead, map[domain.UserID]domain.Address{"1": addrA})
	h.client.txs[addrA] = []domain.Transaction{{Hash: "out-1", Value: -5000}}

	report := h.poller.RunCycle(context.Background())
	if report.Notified != 0 || report.Suppressed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if h.entry(t, "1").LastSeen() != "out-1" {
		t.Error("suppressed transaction should be marked seen")
	}
}

func TestRunCycle_WalkDeliversInOrder(t *testing.T) {
	h := newHarness(t, Config{}, detector.ModeWalk, map[domain.UserID]domain.Address{"1": addrA})
	h.client.setTxs(addrA, "tx-1")
	ctx := context.Background()
	h.poller.RunCycle(ctx)

	h.client.setTxs(addrA, "tx-3", "tx-2", "tx-1")
	report := h.poller.RunCycle(ctx)
	if report.Notified != 2 {
		t.Fatalf("report = %+v", report)
	}

	msgs := h.notifier.messages()
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[1].msg.ButtonURL != format.New(format.Config{}).ExplorerLink("tx-2") {
		t.Errorf("walk should deliver oldest first, got %s", msgs[1].msg.ButtonURL)
	}
	if h.entry(t, "1").LastSeen() != "tx-3" {
		t.Errorf("last seen = %s, want tx-3", h.entry(t, "1").LastSeen())
	}
}

func TestRunCycle_PersistFailureKeepsMemory(t *testing.T) {
	h := newHarness(t, Config{}, detector.ModeHead, map[domain.UserID]domain.Address{"1": addrA})
	h.client.setTxs(addrA, "tx-1")
	h.backend.SetFailSave(errors.New("read-only filesystem"))

	report := h.poller.RunCycle(context.Background())
	if report.PersistErr == "" {
		t.Fatal("expected persist error in report")
	}
	if h.entry(t, "1").LastSeen() != "tx-1" {
		t.Error("in-memory progress should survive a failed write")
	}

	// Next cycle does not resend
	h.poller.RunCycle(context.Background())
	if n := len(h.notifier.messages()); n != 1 {
		t.Errorf("messages = %d, want 1", n)
	}
}

func TestThrottlePause(t *testing.T) {
	h := newHarness(t, Config{MaxBackoff: time.Minute}, detector.ModeHead, nil)

	if got := h.poller.throttlePause(); got != 0 {
		t.Errorf("pause = %v, want 0", got)
	}
	h.client.retryAfter = 10 * time.Second
	if got := h.poller.throttlePause(); got != 10*time.Second {
		t.Errorf("pause = %v, want 10s", got)
	}
	h.client.retryAfter = 10 * time.Minute
	if got := h.poller.throttlePause(); got != time.Minute {
		t.Errorf("pause = %v, want capped 1m", got)
	}
}

func TestStartStop(t *testing.T) {
	h := newHarness(t, Config{Interval: 10 * time.Millisecond}, detector.ModeHead, map[domain.UserID]domain.Address{"1": addrA})
	h.client.setTxs(addrA, "tx-1")

	errCh := make(chan error, 1)
	go func() { errCh <- h.poller.Start(context.Background()) }()

	deadline := time.After(2 * time.Second)
	for h.poller.Status().Cycles < 2 {
		select {
		case <-deadline:
			t.Fatal("poller did not run two cycles")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := h.poller.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Start: %v", err)
	}

	status := h.poller.Status()
	if status.Running || status.State != StateIdle {
		t.Errorf("status after stop = %+v", status)
	}
	if status.LastCycle == nil || status.LastCycle.ID == "" {
		t.Error("last cycle report missing")
	}
	if n := len(h.notifier.messages()); n != 1 {
		t.Errorf("messages = %d, want 1", n)
	}
}

func TestStart_ContextCancelDuringInitialDelay(t *testing.T) {
	h := newHarness(t, Config{InitialDelay: time.Hour}, detector.ModeHead, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.poller.Start(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if h.poller.Status().Cycles != 0 {
		t.Error("no cycle should run during the initial delay")
	}
}
