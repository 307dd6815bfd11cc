package tasks

import "time"

// TaskSchedulerInterface is the scheduling surface exposed to the rest of
// the application: the API uses it to trigger a manual poll cycle and report
// poll freshness, tasks use it to enqueue downstream work.
type TaskSchedulerInterface interface {
	Start() error
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueuePoll() error
	LastPollAt() (time.Time, bool)
}
