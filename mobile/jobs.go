package mobile

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultJobInterval = 15
	DefaultJobUnit     = "minute"
	JobUnitNone        = "none"

	JobEnabled  = "enabled"
	JobDisabled = "disabled"
)

var JobIntervalUnits = []string{"second", "minute", "hour", "day", "month", "year", JobUnitNone}

type Job struct {
	Name           string `json:"name,omitempty" yaml:"name,omitempty"`
	Status         string `json:"status,omitempty" yaml:"status,omitempty"`
	IntervalUnit   string `json:"intervalUnit,omitempty" yaml:"intervalUnit,omitempty"`
	IntervalPeriod int    `json:"intervalPeriod,omitempty" yaml:"intervalPeriod,omitempty"`
	StartTime      string `json:"startTime,omitempty" yaml:"startTime,omitempty"`
	LastRun        string `json:"lastRun,omitempty" yaml:"lastRun,omitempty"`
	NextRun        string `json:"nextRun,omitempty" yaml:"nextRun,omitempty"`
}

// ScriptName returns the scheduler script of the job.
func (j Job) ScriptName() ScriptName {
	return ScriptName{Kind: ScriptKindScheduler, Name: j.Name}
}

// IntervalView renders the schedule, or "on demand" for jobs without one.
func (j Job) IntervalView() string {
	if j.IntervalUnit == "" {
		return "on demand"
	}
	return fmt.Sprintf("%d [%s]", j.IntervalPeriod, j.IntervalUnit)
}

// NewJob carries the settings of a job to create. Zero values take the
// defaults: every 15 minutes starting now.
type NewJob struct {
	Name         string
	Interval     int
	IntervalUnit string
	StartTime    string
}

// JobUpdate carries the settings to change; zero values keep the current
// setting.
type JobUpdate struct {
	Interval     int
	IntervalUnit string
	StartTime    string
	Status       string
}

func (u JobUpdate) Validate() error {
	if u.Interval < 0 {
		return validationError("the interval must be a positive integer", nil)
	}
	if u.IntervalUnit != "" {
		if err := validateIntervalUnit(u.IntervalUnit); err != nil {
			return err
		}
	}
	if u.Status != "" && u.Status != JobEnabled && u.Status != JobDisabled {
		return validationError("the status must be either enabled or disabled", nil)
	}
	return nil
}

func validateIntervalUnit(unit string) error {
	if !contains(JobIntervalUnits, unit) {
		return validationError("the interval unit must be one of "+strings.Join(JobIntervalUnits, ", "), nil)
	}
	return nil
}

func (c *Client) ListJobs(ctx context.Context, service string) ([]Job, error) {
	name, err := requireName("mobile service", service)
	if err != nil {
		return nil, err
	}

	response, err := c.serviceChannel(name).Path("scheduler").Path("jobs").Get(ctx)
	if err != nil {
		return nil, err
	}

	var jobs []Job
	if err := response.Decode(&jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *Client) GetJob(ctx context.Context, service string, job string) (Job, error) {
	request, err := c.scriptChannel(service, ScriptName{Kind: ScriptKindScheduler, Name: job})
	if err != nil {
		return Job{}, err
	}

	response, err := request.Get(ctx)
	if err != nil {
		return Job{}, err
	}

	var result Job
	if err := response.Decode(&result); err != nil {
		return Job{}, err
	}
	return result, nil
}

// CreateJob creates a job in disabled state. now supplies the default start
// time.
func (c *Client) CreateJob(ctx context.Context, service string, job NewJob, now func() time.Time) error {
	serviceName, err := requireName("mobile service", service)
	if err != nil {
		return err
	}

	body, err := BuildJob(job, now)
	if err != nil {
		return err
	}

	_, err = c.serviceChannel(serviceName).Path("scheduler").Path("jobs").Post(ctx, body)
	return err
}

// BuildJob applies the defaults to job and validates it. Jobs with the unit
// none run on demand and carry no schedule.
func BuildJob(job NewJob, now func() time.Time) (Job, error) {
	name, err := requireName("scheduled job", job.Name)
	if err != nil {
		return Job{}, err
	}
	if job.Interval < 0 {
		return Job{}, validationError("the interval must be a positive integer", nil)
	}

	unit := job.IntervalUnit
	if unit == "" {
		unit = DefaultJobUnit
	}
	if err := validateIntervalUnit(unit); err != nil {
		return Job{}, err
	}
	interval := job.Interval
	if interval == 0 {
		interval = DefaultJobInterval
	}

	result := Job{Name: name}
	if unit == JobUnitNone {
		return result, nil
	}

	result.IntervalUnit = unit
	result.IntervalPeriod = interval
	result.StartTime = job.StartTime
	if result.StartTime == "" {
		if now == nil {
			now = time.Now
		}
		result.StartTime = now().UTC().Format("2006-01-02T15:04:05.000Z")
	}
	return result, nil
}

// PlanJobUpdate merges update over current. changed is false when nothing
// differs.
func PlanJobUpdate(current Job, update JobUpdate) (Job, bool, error) {
	if err := update.Validate(); err != nil {
		return Job{}, false, err
	}

	next := Job{
		IntervalPeriod: current.IntervalPeriod,
		IntervalUnit:   current.IntervalUnit,
		StartTime:      current.StartTime,
		Status:         current.Status,
	}
	if update.Interval != 0 {
		next.IntervalPeriod = update.Interval
	}
	if update.IntervalUnit != "" {
		next.IntervalUnit = update.IntervalUnit
	}
	if update.StartTime != "" {
		next.StartTime = update.StartTime
	}
	if update.Status != "" {
		next.Status = update.Status
	}

	changed := next.IntervalPeriod != current.IntervalPeriod ||
		next.IntervalUnit != current.IntervalUnit ||
		next.StartTime != current.StartTime ||
		next.Status != current.Status
	return next, changed, nil
}

// UpdateJob applies update to a job and reports whether anything changed.
func (c *Client) UpdateJob(ctx context.Context, service string, job string, update JobUpdate) (bool, error) {
	if err := update.Validate(); err != nil {
		return false, err
	}

	current, err := c.GetJob(ctx, service, job)
	if err != nil {
		return false, err
	}

	next, changed, err := PlanJobUpdate(current, update)
	if err != nil || !changed {
		return false, err
	}

	request, err := c.scriptChannel(service, ScriptName{Kind: ScriptKindScheduler, Name: job})
	if err != nil {
		return false, err
	}
	if _, err := request.Put(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) DeleteJob(ctx context.Context, service string, job string) error {
	return c.DeleteScript(ctx, service, ScriptName{Kind: ScriptKindScheduler, Name: job})
}
