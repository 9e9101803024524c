package feed

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hospital-app/hospital-client/livechannel"
	"github.com/hospital-app/hospital-client/models"
)

// AppointmentLister is the REST surface the appointment feed needs
type AppointmentLister interface {
	Appointments(ctx context.Context) ([]models.Appointment, error)
}

// Appointments keeps the current user's appointment set in sync with live
// status updates. A live update always wins over a stale snapshot for the
// same appointment, and re-applying the same status is a no-op.
type Appointments struct {
	Store   AppointmentLister
	Channel Subscriber

	mu          sync.Mutex
	generation  int
	appts       map[string]models.Appointment
	liveStatus  map[string]models.AppointmentStatus
	unsubscribe func()
	onChange    func([]models.Appointment)
	closed      bool
}

// NewAppointments creates an appointment feed synchronizer
func NewAppointments(store AppointmentLister, channel Subscriber) *Appointments {
	return &Appointments{
		Store:   store,
		Channel: channel,
	}
}

// OnChange sets the callback fired with a sorted copy of the feed after
// every change. Never fires after Close.
func (a *Appointments) OnChange(fn func([]models.Appointment)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChange = fn
}

// Open subscribes to live status updates and loads the snapshot
func (a *Appointments) Open(ctx context.Context) error {
	a.mu.Lock()
	a.generation++
	a.appts = make(map[string]models.Appointment)
	a.liveStatus = make(map[string]models.AppointmentStatus)
	a.closed = false
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.unsubscribe = a.Channel.Subscribe(livechannel.EventReceiveStatusUpdate, func(data json.RawMessage) {
		a.handleLive(data)
	})
	a.mu.Unlock()

	return a.Refresh(ctx)
}

// Refresh refetches the snapshot. Any live status already seen for an
// appointment overrides whatever the snapshot says about it.
func (a *Appointments) Refresh(ctx context.Context) error {
	a.mu.Lock()
	gen := a.generation
	a.mu.Unlock()

	snapshot, err := a.Store.Appointments(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		return nil
	}
	for _, appt := range snapshot {
		if status, ok := a.liveStatus[appt.ID]; ok {
			appt.Status = status
		}
		a.appts[appt.ID] = appt
	}
	a.notifyLocked()
	a.mu.Unlock()
	return nil
}

// Close drops the subscription and the feed state. Idempotent.
func (a *Appointments) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.generation++
	a.closed = true
	a.appts = nil
	a.liveStatus = nil
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}

// All returns a copy of the feed sorted by start time
func (a *Appointments) All() []models.Appointment {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sortedLocked()
}

// ApplyStatus records a status change locally, as after the doctor changes
// it through the gateway. Same rules as a live update: idempotent, wins over
// stale snapshots.
func (a *Appointments) ApplyStatus(id string, status models.AppointmentStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applyStatusLocked(id, status)
}

func (a *Appointments) handleLive(data json.RawMessage) {
	var p livechannel.StatusUpdatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		zap.S().Warnw("dropping malformed status update",
			"error", err,
		)
		return
	}
	status := models.AppointmentStatus(p.Status)
	if !models.ValidStatus(status) {
		zap.S().Warnw("dropping status update with unknown status",
			"appointmentId", p.AppointmentID,
			"status", p.Status,
		)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.applyStatusLocked(p.AppointmentID, status)
}

func (a *Appointments) applyStatusLocked(id string, status models.AppointmentStatus) {
	if a.liveStatus == nil {
		return
	}
	if prev, ok := a.liveStatus[id]; ok && prev == status {
		return
	}
	a.liveStatus[id] = status

	changed := false
	if appt, ok := a.appts[id]; ok && appt.Status != status {
		appt.Status = status
		a.appts[id] = appt
		changed = true
	}
	if changed {
		a.notifyLocked()
	}
}

func (a *Appointments) sortedLocked() []models.Appointment {
	out := make([]models.Appointment, 0, len(a.appts))
	for _, appt := range a.appts {
		out = append(out, appt)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime.Time)
	})
	return out
}

func (a *Appointments) notifyLocked() {
	if a.onChange == nil || a.closed {
		return
	}
	a.onChange(a.sortedLocked())
}
