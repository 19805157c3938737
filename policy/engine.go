package policy

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/secureteam/access-gate/denyreasons"
)

const (
	DefaultWorkingHoursStart = "09:00"
	DefaultWorkingHoursEnd   = "18:00"

	// ReasonAuthorized is the reason attached to allowing decisions.
	ReasonAuthorized = "Authorized"
)

// DefaultRestrictedDepartments lists the departments subject to the
// working-hours rule.
var DefaultRestrictedDepartments = []string{"engineering", "external_collaborator"}

// Engine evaluates subject, resource, and environment attributes into an
// allow/deny decision. Evaluation is a pure function of its inputs and the
// time passed in; the engine holds only immutable policy constants and is
// safe for concurrent use.
type Engine struct {
	workStart  int // minutes since midnight, inclusive
	workEnd    int // minutes since midnight, inclusive
	restricted map[string]struct{}
	location   *time.Location
}

// NewEngine builds an engine with the given working-hours window (HH:MM,
// inclusive on both ends), restricted departments, and the timezone the
// window is expressed in. A nil location means UTC.
func NewEngine(workingHoursStart, workingHoursEnd string, restrictedDepartments []string, location *time.Location) (*Engine, error) {
	start, err := parseClock(workingHoursStart)
	if err != nil {
		return nil, fmt.Errorf("invalid working-hours start: %w", err)
	}

	end, err := parseClock(workingHoursEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid working-hours end: %w", err)
	}

	if end < start {
		return nil, fmt.Errorf("working-hours end %s precedes start %s", workingHoursEnd, workingHoursStart)
	}

	restricted := make(map[string]struct{}, len(restrictedDepartments))
	for _, d := range restrictedDepartments {
		restricted[d] = struct{}{}
	}

	if location == nil {
		location = time.UTC
	}

	return &Engine{
		workStart:  start,
		workEnd:    end,
		restricted: restricted,
		location:   location,
	}, nil
}

// NewDefaultEngine builds an engine with the standard constants.
func NewDefaultEngine(location *time.Location) (*Engine, error) {
	return NewEngine(DefaultWorkingHoursStart, DefaultWorkingHoursEnd, DefaultRestrictedDepartments, location)
}

// Evaluate applies the rules in fixed order; the first failing rule denies.
// Absence of information never defaults to allow: the final rule allows only
// subjects with a known, non-empty department.
func (e *Engine) Evaluate(subject Subject, resource Resource, env Environment, now time.Time) Decision {
	if subject.AccessExpiry != nil && now.After(*subject.AccessExpiry) {
		return deny(denyreasons.AccessExpired)
	}

	if subject.DeviceID != "" && subject.DeviceID != env.DeviceID {
		return deny(denyreasons.DeviceMismatch)
	}

	if resource.ProjectID != "" && !subject.HasProject(resource.ProjectID) {
		return deny(denyreasons.ProjectNotAuthorized)
	}

	if _, ok := e.restricted[subject.Department]; ok && !e.withinWorkingHours(now) {
		return deny(denyreasons.OutsideAuthorizedHours)
	}

	if subject.Department == "" {
		return deny(denyreasons.UnknownPrincipal)
	}

	return Decision{Allowed: true, Reason: ReasonAuthorized}
}

func (e *Engine) withinWorkingHours(now time.Time) bool {
	local := now.In(e.location)
	minutes := local.Hour()*60 + local.Minute()

	return minutes >= e.workStart && minutes <= e.workEnd
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

func parseClock(value string) (int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%q is not in HH:MM form", value)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%q has an invalid hour", value)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%q has an invalid minute", value)
	}

	return hour*60 + minute, nil
}
