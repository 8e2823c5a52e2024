package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
)

type fakeRunner struct {
	mu      sync.Mutex
	report  *model.Report
	calls   int
	block   chan struct{}
	started chan struct{}
}

func (f *fakeRunner) Run(_ context.Context, trigger model.TriggerType, groups []model.Group) *model.Report {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	r := *f.report
	r.Trigger = trigger
	return &r
}

type recordingNotifier struct {
	mu     sync.Mutex
	bodies []string
	err    error
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Notify(_ context.Context, _, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bodies = append(n.bodies, body)
	return n.err
}

func (n *recordingNotifier) sent() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.bodies)
}

var (
	friday   = time.Date(2025, 3, 14, 11, 0, 0, 0, time.UTC)
	saturday = time.Date(2025, 3, 15, 11, 0, 0, 0, time.UTC)
)

func staticGroups() ([]model.Group, error) {
	return []model.Group{{Name: "V40", Symbols: []string{"TCS.NS"}, Rules: []model.RuleName{model.RuleBreakout}}}, nil
}

func withSignal() *model.Report {
	return &model.Report{
		RunID:     "run-1",
		Evaluated: 1,
		Signals: []model.Signal{{
			Symbol: "TCS.NS", Group: "H45", Rule: model.RuleMeanReversion,
			CurrentPrice: 80, Average: 100, DropPercent: 20,
		}},
	}
}

func newTestScheduler(report *model.Report, n *recordingNotifier, now time.Time) *Scheduler {
	s := NewScheduler(context.Background(), &fakeRunner{report: report}, staticGroups, n, time.UTC)
	s.now = func() time.Time { return now }
	return s
}

func TestRunOnce_Gating(t *testing.T) {
	tests := []struct {
		name        string
		report      *model.Report
		trigger     model.TriggerType
		now         time.Time
		notifyEmpty bool
		wantSent    int
	}{
		{"manual with signals", withSignal(), model.TriggerManual, friday, false, 1},
		{"manual on weekend", withSignal(), model.TriggerManual, saturday, false, 1},
		{"scheduled on weekday", withSignal(), model.TriggerSchedule, friday, false, 1},
		{"scheduled on weekend", withSignal(), model.TriggerSchedule, saturday, false, 0},
		{"other on weekend", withSignal(), model.TriggerOther, saturday, false, 1},
		{"no signals", &model.Report{RunID: "empty"}, model.TriggerManual, friday, false, 0},
		{"no signals, notify empty", &model.Report{RunID: "empty"}, model.TriggerManual, friday, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &recordingNotifier{}
			s := newTestScheduler(tt.report, n, tt.now)
			s.NotifyEmpty = tt.notifyEmpty

			report, err := s.RunOnce(context.Background(), tt.trigger)
			if err != nil {
				t.Fatalf("RunOnce: %v", err)
			}
			if report.Trigger != tt.trigger {
				t.Errorf("trigger = %s, want %s", report.Trigger, tt.trigger)
			}
			if got := n.sent(); got != tt.wantSent {
				t.Errorf("sent %d alerts, want %d", got, tt.wantSent)
			}
			if s.LastReport() != report {
				t.Error("LastReport should return the report of the run")
			}
		})
	}
}

func TestRunOnce_DeliveryError(t *testing.T) {
	n := &recordingNotifier{err: errors.New("smtp down")}
	s := newTestScheduler(withSignal(), n, friday)

	report, err := s.RunOnce(context.Background(), model.TriggerManual)
	if err == nil || !strings.Contains(err.Error(), "smtp down") {
		t.Fatalf("err = %v, want delivery failure", err)
	}
	if report == nil || report.Count() != 1 {
		t.Fatal("report should be returned even when delivery fails")
	}
}

func TestRunOnce_GroupLoadError(t *testing.T) {
	s := newTestScheduler(withSignal(), &recordingNotifier{}, friday)
	s.Groups = func() ([]model.Group, error) { return nil, errors.New("missing file") }

	if _, err := s.RunOnce(context.Background(), model.TriggerManual); err == nil {
		t.Fatal("expected error when groups cannot be loaded")
	}
	if s.LastReport() != nil {
		t.Error("no report should be stored when the run never started")
	}
}

func TestRunOnce_NilNotifier(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeRunner{report: withSignal()}, staticGroups, nil, nil)
	if _, err := s.RunOnce(context.Background(), model.TriggerManual); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
}

func TestRunOnce_Busy(t *testing.T) {
	runner := &fakeRunner{report: withSignal(), block: make(chan struct{}), started: make(chan struct{})}
	s := NewScheduler(context.Background(), runner, staticGroups, &recordingNotifier{}, time.UTC)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background(), model.TriggerManual)
		done <- err
	}()
	<-runner.started

	if _, err := s.RunOnce(context.Background(), model.TriggerManual); !errors.Is(err, ErrBusy) {
		t.Errorf("second run err = %v, want ErrBusy", err)
	}
	if reply := s.HandleCommand(context.Background(), "/scan"); reply != "A scan is already running." {
		t.Errorf("reply = %q", reply)
	}

	close(runner.block)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
}

func TestHandleCommand(t *testing.T) {
	n := &recordingNotifier{}
	s := newTestScheduler(withSignal(), n, friday)
	ctx := context.Background()

	if reply := s.HandleCommand(ctx, "/status"); !strings.Contains(reply, "No run yet.") {
		t.Errorf("status before run = %q", reply)
	}

	reply := s.HandleCommand(ctx, "/scan@AlertBot")
	if reply != "Scan finished: 1 signals, 0 skipped." {
		t.Errorf("scan reply = %q", reply)
	}
	if n.sent() != 1 {
		t.Errorf("sent %d alerts, want 1", n.sent())
	}
	if s.LastReport().Trigger != model.TriggerManual {
		t.Errorf("chat scans should run as MANUAL, got %s", s.LastReport().Trigger)
	}

	if reply := s.HandleCommand(ctx, "/STATUS"); !strings.Contains(reply, "Signals: 1 | Skipped: 0 | Evaluated: 1") {
		t.Errorf("status after run = %q", reply)
	}

	for _, cmd := range []string{"", "   ", "/help", "hello"} {
		if reply := s.HandleCommand(ctx, cmd); !strings.HasPrefix(reply, "Commands:") {
			t.Errorf("HandleCommand(%q) = %q, want help", cmd, reply)
		}
	}
}

func TestHandleCommand_DeliveryFailure(t *testing.T) {
	s := newTestScheduler(withSignal(), &recordingNotifier{err: errors.New("boom")}, friday)
	reply := s.HandleCommand(context.Background(), "/scan")
	if !strings.Contains(reply, "Scan finished: 1 signals") || !strings.Contains(reply, "Delivery failed: boom") {
		t.Errorf("reply = %q", reply)
	}
}

func TestRegister(t *testing.T) {
	s := newTestScheduler(withSignal(), &recordingNotifier{}, friday)

	if err := s.Register("not a cron"); err == nil {
		t.Error("expected error for invalid cron spec")
	}
	if !s.NextRun().IsZero() {
		t.Error("NextRun should be zero before a task is registered")
	}

	if err := s.Register("0 30 16 * * 1-5"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s.Start()
	defer s.Stop()

	next := s.NextRun()
	if next.IsZero() {
		t.Fatal("NextRun should be set once the scheduler is running")
	}
	if next.Hour() != 16 || next.Minute() != 30 {
		t.Errorf("next run at %s, want 16:30", next.Format(time.RFC3339))
	}
	if wd := next.Weekday(); wd == time.Saturday || wd == time.Sunday {
		t.Errorf("next run on %s, want a weekday", wd)
	}
}
