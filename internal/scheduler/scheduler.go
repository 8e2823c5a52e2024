package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
	"github.com/deb4uuu-coder/stock-strategy-alert/internal/notifier"
)

// ErrBusy is returned when a scan is requested while another is running.
var ErrBusy = errors.New("a scan is already running")

// Runner evaluates groups into a report.
type Runner interface {
	Run(ctx context.Context, trigger model.TriggerType, groups []model.Group) *model.Report
}

// GroupSource returns the groups to scan; called once per run so edits to the
// symbols file are picked up without a restart.
type GroupSource func() ([]model.Group, error)

// Scheduler runs scans on a cron schedule and on demand, and delivers the
// resulting alerts.
type Scheduler struct {
	Cron        *cron.Cron
	Runner      Runner
	Groups      GroupSource
	Notifier    notifier.Notifier
	Location    *time.Location
	Subject     string
	NotifyEmpty bool
	Ctx         context.Context

	now     func() time.Time
	running atomic.Bool
	mu      sync.Mutex
	last    *model.Report
	entry   cron.EntryID
}

// NewScheduler creates a new Scheduler whose cron specs are read in loc.
func NewScheduler(ctx context.Context, r Runner, groups GroupSource, n notifier.Notifier, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		Runner:   r,
		Groups:   groups,
		Notifier: n,
		Location: loc,
		Subject:  "Stock Strategy Alert",
		Ctx:      ctx,
		now:      time.Now,
	}
}

// Register adds the scheduled scan.
func (s *Scheduler) Register(scanCron string) error {
	id, err := s.Cron.AddFunc(scanCron, s.scheduledScan)
	if err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	s.entry = id
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

func (s *Scheduler) scheduledScan() {
	if _, err := s.RunOnce(s.Ctx, model.TriggerSchedule); err != nil {
		log.Printf("[ERROR] scheduled scan: %v", err)
	}
}

// RunOnce scans every group, then delivers the alert if the gate allows it.
// The returned error covers loading groups and delivery; per-symbol failures
// live in the report.
func (s *Scheduler) RunOnce(ctx context.Context, trigger model.TriggerType) (*model.Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.running.Store(false)

	groups, err := s.Groups()
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}

	log.Printf("[INFO] running %s scan over %d groups", trigger, len(groups))
	report := s.Runner.Run(ctx, trigger, groups)

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	return report, s.deliver(ctx, report)
}

func (s *Scheduler) deliver(ctx context.Context, report *model.Report) error {
	if report.Count() == 0 && !s.NotifyEmpty {
		log.Println("[INFO] no signals found, nothing to send")
		return nil
	}
	if !notifier.MayNotify(report.Trigger, s.now(), s.Location) {
		log.Println("[INFO] alert suppressed: scheduled run on a weekend")
		return nil
	}
	if s.Notifier == nil {
		return nil
	}
	if err := s.Notifier.Notify(ctx, s.Subject, notifier.FormatReport(report, s.Location)); err != nil {
		return err
	}
	log.Printf("[INFO] alert with %d signals sent via %s", report.Count(), s.Notifier.Name())
	return nil
}

// LastReport returns the most recent report, or nil before the first run.
func (s *Scheduler) LastReport() *model.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// NextRun returns when the scheduled scan fires next, or zero if none is registered.
func (s *Scheduler) NextRun() time.Time {
	if s.entry == 0 {
		return time.Time{}
	}
	return s.Cron.Entry(s.entry).Next
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	var cmd string
	if fields := strings.Fields(command); len(fields) > 0 {
		cmd = strings.ToLower(fields[0])
	}
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i] // "/scan@MyBot"
	}
	switch cmd {
	case "/scan":
		report, err := s.RunOnce(ctx, model.TriggerManual)
		if errors.Is(err, ErrBusy) {
			return "A scan is already running."
		}
		if report == nil {
			return fmt.Sprintf("Scan failed: %v", err)
		}
		reply := fmt.Sprintf("Scan finished: %d signals, %d skipped.", report.Count(), len(report.Skips))
		if err != nil {
			reply += fmt.Sprintf("\nDelivery failed: %v", err)
		}
		return reply
	case "/status":
		return notifier.FormatStatus(s.LastReport(), s.NextRun(), s.Location)
	default:
		return "Commands:\n/scan - run a scan now\n/status - last run and next schedule"
	}
}
