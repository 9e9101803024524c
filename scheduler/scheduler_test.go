package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hospital-app/hospital-client/models"
)

type stubLister struct {
	appts []models.Appointment
	err   error
}

func (s stubLister) Appointments(ctx context.Context) ([]models.Appointment, error) {
	return s.appts, s.err
}

func futureAppt(id string, in time.Duration, status models.AppointmentStatus) models.Appointment {
	return models.Appointment{
		ID:        id,
		StartTime: models.NewClock(time.Now().Add(in)),
		Status:    status,
	}
}

func TestCheckUpcomingRemindsOnceWithinWindow(t *testing.T) {
	lister := stubLister{appts: []models.Appointment{
		futureAppt("soon", 30*time.Minute, models.StatusAccepted),
		futureAppt("later", 3*time.Hour, models.StatusAccepted),
		futureAppt("pending", 30*time.Minute, models.StatusPending),
	}}

	var reminded []string
	s := New(lister, func(a models.Appointment) { reminded = append(reminded, a.ID) })

	s.CheckUpcoming()
	s.CheckUpcoming() // second pass must not repeat the reminder

	assert.Equal(t, []string{"soon"}, reminded)
}

func TestCheckUpcomingSkipsPast(t *testing.T) {
	lister := stubLister{appts: []models.Appointment{
		futureAppt("done", -time.Hour, models.StatusAccepted),
	}}

	var reminded []string
	s := New(lister, func(a models.Appointment) { reminded = append(reminded, a.ID) })

	s.CheckUpcoming()
	assert.Empty(t, reminded)
}

func TestStartStopCyclesKeepSingleJob(t *testing.T) {
	s := New(stubLister{}, nil)

	s.Start()
	s.Stop()
	s.Start()
	s.Stop()

	assert.Len(t, s.cron.Entries(), 1)
}

func TestStopResetsReminderBookkeeping(t *testing.T) {
	lister := stubLister{appts: []models.Appointment{
		futureAppt("soon", 30*time.Minute, models.StatusAccepted),
	}}

	var reminded []string
	s := New(lister, func(a models.Appointment) { reminded = append(reminded, a.ID) })

	s.CheckUpcoming()
	s.Stop()

	// a new session gets the reminder again
	s.Start()
	s.CheckUpcoming()
	s.Stop()

	assert.Equal(t, []string{"soon", "soon"}, reminded)
}

func TestCheckUpcomingToleratesGatewayFailure(t *testing.T) {
	s := New(stubLister{err: errors.New("backend down")}, func(models.Appointment) {
		t.Fatal("no reminder expected")
	})
	s.CheckUpcoming()
}
