package mqtt

import "github.com/kilianp07/hems/core/model"

// SchedulePublisher pushes a finished schedule to the devices that execute
// it.
type SchedulePublisher interface {
	// PublishSchedule sends the full schedule and the setpoint of its first
	// slot. runID ties the messages to the planning run.
	PublishSchedule(runID string, res model.Result) error
}
