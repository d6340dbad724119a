package service

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerService wraps cron-based jobs.
type SchedulerService struct {
	cron *cron.Cron
}

func NewSchedulerService(loc *time.Location) *SchedulerService {
	if loc == nil {
		loc = time.Local
	}
	return &SchedulerService{
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds()),
	}
}

// ScheduleDaily registers a job that fires every day at hour:minute.
func (s *SchedulerService) ScheduleDaily(hour, minute int, job func()) (cron.EntryID, error) {
	spec, err := buildTriggerSpec(hour, minute, 0)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

// ScheduleWeekly registers a job that fires every weekday at hour:minute,
// with weekday numbered 1=Sunday..7=Saturday.
func (s *SchedulerService) ScheduleWeekly(weekday, hour, minute int, job func()) (cron.EntryID, error) {
	if weekday < 1 || weekday > 7 {
		return 0, fmt.Errorf("invalid weekday %d, expected 1..7", weekday)
	}
	spec, err := buildTriggerSpec(hour, minute, weekday)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

// Remove unregisters a job. Unknown ids are ignored.
func (s *SchedulerService) Remove(id cron.EntryID) {
	s.cron.Remove(id)
}

// Len returns the number of registered jobs.
func (s *SchedulerService) Len() int {
	return len(s.cron.Entries())
}

// Next returns the next activation of a job, zero if unknown or not started.
func (s *SchedulerService) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// buildTriggerSpec returns a six-field cron spec. weekday 0 means every day.
func buildTriggerSpec(hour, minute, weekday int) (string, error) {
	if hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %d", hour)
	}
	if minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %d", minute)
	}
	// cron format: second minute hour dom month dow (0=Sunday)
	if weekday == 0 {
		return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
	}
	return fmt.Sprintf("0 %d %d * * %d", minute, hour, weekday-1), nil
}
