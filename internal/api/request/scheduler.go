package request

// SchedulerEntry reconfigures one scheduled backup kind.
type SchedulerEntry struct {
	Spec    string `json:"spec" validate:"required"`
	Enabled bool   `json:"enabled"`
}

// RestartScheduler replaces the scheduler configuration.
type RestartScheduler struct {
	Database SchedulerEntry `json:"database" validate:"required"`
	Files    SchedulerEntry `json:"files" validate:"required"`
}
