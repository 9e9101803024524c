package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hospital-app/hospital-client/models"
)

// AppointmentLister is the gateway surface the scheduler polls
type AppointmentLister interface {
	Appointments(ctx context.Context) ([]models.Appointment, error)
}

// Scheduler handles periodic background jobs for the client: currently one
// job that reminds the user about accepted appointments starting soon.
type Scheduler struct {
	cron    *cron.Cron
	Lister  AppointmentLister
	Window  time.Duration
	Timeout time.Duration
	Notify  func(models.Appointment)

	mu       sync.Mutex
	reminded map[string]bool
}

// New creates a reminder scheduler. Notify is called at most once per
// appointment, from the cron goroutine.
func New(lister AppointmentLister, notify func(models.Appointment)) *Scheduler {
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		Lister:   lister,
		Window:   time.Hour,
		Timeout:  10 * time.Second,
		Notify:   notify,
		reminded: make(map[string]bool),
	}
	// registered once here so Start/Stop cycles never stack duplicate jobs
	if _, err := s.cron.AddFunc("@every 5m", s.CheckUpcoming); err != nil {
		zap.S().With(err).Error("failed to schedule reminder job")
	}
	return s
}

// Start begins the scheduler with all registered jobs. Safe to call again
// after Stop.
func (s *Scheduler) Start() {
	s.cron.Start()
	zap.S().Info("reminder scheduler started")
}

// Stop halts the scheduler; running jobs finish. Reminder bookkeeping is
// dropped so the next session starts fresh.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.mu.Lock()
	s.reminded = make(map[string]bool)
	s.mu.Unlock()
}

// CheckUpcoming fetches the appointment list and fires a reminder for every
// accepted appointment starting within the window that has not been
// reminded yet
func (s *Scheduler) CheckUpcoming() {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	appts, err := s.Lister.Appointments(ctx)
	if err != nil {
		zap.S().Warnw("reminder poll failed",
			"error", err,
		)
		return
	}

	now := time.Now()
	for _, appt := range appts {
		if appt.Status != models.StatusAccepted {
			continue
		}
		start := appt.StartTime.Time
		if start.Before(now) || start.After(now.Add(s.Window)) {
			continue
		}

		s.mu.Lock()
		already := s.reminded[appt.ID]
		if !already {
			s.reminded[appt.ID] = true
		}
		s.mu.Unlock()
		if already {
			continue
		}

		zap.S().Infow("appointment reminder",
			"appointmentId", appt.ID,
			"startTime", models.FormatClock(start),
		)
		if s.Notify != nil {
			s.Notify(appt)
		}
	}
}
