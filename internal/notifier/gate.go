package notifier

import (
	"strings"
	"time"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
)

// TriggerFromEvent maps a CI event name or a --trigger value onto a trigger.
func TriggerFromEvent(event string) model.TriggerType {
	switch strings.ToLower(strings.TrimSpace(event)) {
	case "workflow_dispatch", "manual":
		return model.TriggerManual
	case "schedule", "scheduled", "cron":
		return model.TriggerSchedule
	default:
		return model.TriggerOther
	}
}

// MayNotify decides whether a finished run may send its alert. Manual runs
// always may; scheduled runs are suppressed on Saturday and Sunday in loc;
// anything else may.
func MayNotify(trigger model.TriggerType, now time.Time, loc *time.Location) bool {
	if trigger != model.TriggerSchedule {
		return true
	}
	if loc == nil {
		loc = time.UTC
	}
	switch now.In(loc).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}
