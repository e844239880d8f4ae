package jobs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vrsandeep/vmfa-addons/internal/addons"
	"github.com/vrsandeep/vmfa-addons/internal/config"
	"github.com/vrsandeep/vmfa-addons/internal/store"
	"github.com/vrsandeep/vmfa-addons/internal/websocket"
)

// Job states reported by GetStatus.
const (
	StatusIdle    = "idle"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobRunning  = errors.New("job is already running")
)

// JobContext provides the dependencies a job needs.
// The core.App struct implements this interface.
type JobContext interface {
	Config() *config.Config
	Logger() *zap.Logger
	Store() *store.Store
	Resolver() *addons.Resolver
	WsHub() *websocket.Hub
	JobManager() *JobManager
}

// A task returns a short summary for the status board.
type jobTask func(ctx JobContext) (string, error)

type JobStatus struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	StartTime time.Time `json:"start_time,omitempty"`
	EndTime   time.Time `json:"end_time,omitempty"`
}

// ProgressUpdate is broadcast on the websocket hub when a job changes state.
type ProgressUpdate struct {
	Type    string `json:"type"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
	Done    bool   `json:"done"`
}

type registeredJob struct {
	task    jobTask
	status  *JobStatus
	running bool
}

// JobManager runs registered jobs, never more than one instance of the same
// job at a time.
type JobManager struct {
	mu     sync.Mutex
	jobs   map[string]*registeredJob
	wg     sync.WaitGroup
	logger *zap.Logger
}

func NewManager(logger *zap.Logger) *JobManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobManager{
		jobs:   make(map[string]*registeredJob),
		logger: logger.Named("jobs"),
	}
}

func (jm *JobManager) Register(id, name string, task jobTask) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.jobs[id] = &registeredJob{
		task:   task,
		status: &JobStatus{ID: id, Name: name, Status: StatusIdle},
	}
}

// RunJob starts the job in the background and returns immediately.
func (jm *JobManager) RunJob(id string, ctx JobContext) error {
	jm.mu.Lock()
	job, ok := jm.jobs[id]
	if !ok {
		jm.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.running {
		jm.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobRunning, id)
	}
	job.running = true
	job.status.Status = StatusRunning
	job.status.StartTime = time.Now()
	job.status.EndTime = time.Time{}
	job.status.Message = "Job started..."
	jm.wg.Add(1)
	jm.mu.Unlock()

	jm.logger.Info("starting job", zap.String("job", id))
	jm.publish(ctx, ProgressUpdate{Type: "job", JobID: id, Message: "Job started..."})

	go func() {
		defer jm.wg.Done()

		var (
			message string
			err     error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("job panicked: %v", r)
				}
			}()
			message, err = job.task(ctx)
		}()

		jm.mu.Lock()
		job.status.EndTime = time.Now()
		if err != nil {
			job.status.Status = StatusFailed
			job.status.Message = err.Error()
		} else {
			job.status.Status = StatusSuccess
			if message == "" {
				message = "Job completed successfully."
			}
			job.status.Message = message
		}
		job.running = false
		final := *job.status
		jm.mu.Unlock()

		if err != nil {
			jm.logger.Error("job failed", zap.String("job", id), zap.Error(err))
		} else {
			jm.logger.Info("finished job", zap.String("job", id), zap.String("message", final.Message))
		}
		jm.publish(ctx, ProgressUpdate{Type: "job", JobID: id, Message: final.Message, Done: true})
	}()
	return nil
}

// Wait blocks until every started job has finished.
func (jm *JobManager) Wait() {
	jm.wg.Wait()
}

// GetStatus returns a snapshot of every registered job ordered by ID.
func (jm *JobManager) GetStatus() []JobStatus {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	statuses := make([]JobStatus, 0, len(jm.jobs))
	for _, j := range jm.jobs {
		statuses = append(statuses, *j.status)
	}
	sort.Slice(statuses, func(i, k int) bool { return statuses[i].ID < statuses[k].ID })
	return statuses
}

func (jm *JobManager) publish(ctx JobContext, update ProgressUpdate) {
	hub := ctx.WsHub()
	if hub == nil {
		return
	}
	if err := hub.BroadcastJSON(update); err != nil {
		jm.logger.Warn("failed to broadcast job progress", zap.Error(err))
	}
}
