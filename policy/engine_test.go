package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureteam/access-gate/denyreasons"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()

	engine, err := NewDefaultEngine(time.UTC)
	require.NoError(t, err)

	return engine
}

func at(t *testing.T, clock string) time.Time {
	t.Helper()

	parsed, err := time.Parse(time.RFC3339, clock)
	require.NoError(t, err)

	return parsed
}

func TestEvaluate(t *testing.T) {
	engine := testEngine(t)

	past := at(t, "2024-01-01T00:00:00Z")
	future := at(t, "2030-01-01T00:00:00Z")

	businessHours := at(t, "2024-06-03T10:00:00Z")
	evening := at(t, "2024-06-03T20:00:00Z")

	fullSubject := Subject{
		ID:         "alice",
		Department: "engineering",
		DeviceID:   "dev-1",
		Projects:   []string{"PRJ-1"},
	}

	tests := []struct {
		name        string
		subject     Subject
		resource    Resource
		env         Environment
		now         time.Time
		wantAllowed bool
		wantReason  string
	}{
		{
			name:        "full attributes during business hours",
			subject:     fullSubject,
			resource:    Resource{Path: "/projects", ProjectID: "PRJ-1"},
			env:         Environment{DeviceID: "dev-1"},
			now:         businessHours,
			wantAllowed: true,
			wantReason:  ReasonAuthorized,
		},
		{
			name:       "identical inputs at 20:00 denied on hours",
			subject:    fullSubject,
			resource:   Resource{Path: "/projects", ProjectID: "PRJ-1"},
			env:        Environment{DeviceID: "dev-1"},
			now:        evening,
			wantReason: denyreasons.OutsideAuthorizedHours,
		},
		{
			name: "expired access denied regardless of other attributes",
			subject: Subject{
				ID:           "alice",
				Department:   "engineering",
				DeviceID:     "dev-1",
				Projects:     []string{"PRJ-1"},
				AccessExpiry: &past,
			},
			resource:   Resource{Path: "/projects", ProjectID: "PRJ-1"},
			env:        Environment{DeviceID: "dev-1"},
			now:        businessHours,
			wantReason: denyreasons.AccessExpired,
		},
		{
			name: "future access expiry passes",
			subject: Subject{
				ID:           "alice",
				Department:   "sales",
				AccessExpiry: &future,
			},
			resource:    Resource{Path: "/projects"},
			env:         Environment{},
			now:         businessHours,
			wantAllowed: true,
			wantReason:  ReasonAuthorized,
		},
		{
			name:       "device fingerprint mismatch denied despite valid project and time",
			subject:    fullSubject,
			resource:   Resource{Path: "/projects", ProjectID: "PRJ-1"},
			env:        Environment{DeviceID: "dev-2"},
			now:        businessHours,
			wantReason: denyreasons.DeviceMismatch,
		},
		{
			name: "absent registered fingerprint is not a denial",
			subject: Subject{
				ID:         "bob",
				Department: "sales",
			},
			resource:    Resource{Path: "/projects"},
			env:         Environment{DeviceID: "dev-9"},
			now:         businessHours,
			wantAllowed: true,
			wantReason:  ReasonAuthorized,
		},
		{
			name:       "project not in authorized set denied",
			subject:    fullSubject,
			resource:   Resource{Path: "/projects", ProjectID: "PRJ-2"},
			env:        Environment{DeviceID: "dev-1"},
			now:        businessHours,
			wantReason: denyreasons.ProjectNotAuthorized,
		},
		{
			name: "project required but subject has none denied",
			subject: Subject{
				ID:         "bob",
				Department: "sales",
			},
			resource:   Resource{Path: "/projects", ProjectID: "PRJ-1"},
			env:        Environment{},
			now:        businessHours,
			wantReason: denyreasons.ProjectNotAuthorized,
		},
		{
			name: "external collaborator outside hours denied",
			subject: Subject{
				ID:         "carol",
				Department: "external_collaborator",
			},
			resource:   Resource{Path: "/projects"},
			env:        Environment{},
			now:        evening,
			wantReason: denyreasons.OutsideAuthorizedHours,
		},
		{
			name: "unrestricted department ignores hours",
			subject: Subject{
				ID:         "dave",
				Department: "sales",
			},
			resource:    Resource{Path: "/projects"},
			env:         Environment{},
			now:         evening,
			wantAllowed: true,
			wantReason:  ReasonAuthorized,
		},
		{
			name: "missing department denied as unknown principal",
			subject: Subject{
				ID:       "eve",
				DeviceID: "dev-1",
				Projects: []string{"PRJ-1"},
			},
			resource:   Resource{Path: "/projects", ProjectID: "PRJ-1"},
			env:        Environment{DeviceID: "dev-1"},
			now:        businessHours,
			wantReason: denyreasons.UnknownPrincipal,
		},
		{
			name:        "empty subject denied, never allowed by default",
			subject:     Subject{},
			resource:    Resource{},
			env:         Environment{},
			now:         businessHours,
			wantAllowed: false,
			wantReason:  denyreasons.UnknownPrincipal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := engine.Evaluate(tt.subject, tt.resource, tt.env, tt.now)

			assert.Equal(t, tt.wantAllowed, decision.Allowed)
			assert.Equal(t, tt.wantReason, decision.Reason)
		})
	}
}

func TestEvaluateRuleOrder(t *testing.T) {
	engine := testEngine(t)

	past := at(t, "2024-01-01T00:00:00Z")

	// Subject trips every rule at once; expiry must win.
	subject := Subject{
		ID:           "mallory",
		DeviceID:     "dev-1",
		AccessExpiry: &past,
	}

	decision := engine.Evaluate(subject,
		Resource{ProjectID: "PRJ-1"},
		Environment{DeviceID: "dev-2"},
		at(t, "2024-06-03T20:00:00Z"))

	assert.False(t, decision.Allowed)
	assert.Equal(t, denyreasons.AccessExpired, decision.Reason)
}

func TestWorkingHoursBoundaries(t *testing.T) {
	engine := testEngine(t)

	subject := Subject{ID: "alice", Department: "engineering"}

	tests := []struct {
		clock       string
		wantAllowed bool
	}{
		{"2024-06-03T09:00:00Z", true},
		{"2024-06-03T08:59:00Z", false},
		{"2024-06-03T18:00:00Z", true},
		{"2024-06-03T18:01:00Z", false},
	}

	for _, tt := range tests {
		t.Run(tt.clock, func(t *testing.T) {
			decision := engine.Evaluate(subject, Resource{}, Environment{}, at(t, tt.clock))

			assert.Equal(t, tt.wantAllowed, decision.Allowed)
		})
	}
}

func TestEvaluateHonorsLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	engine, err := NewDefaultEngine(berlin)
	require.NoError(t, err)

	subject := Subject{ID: "alice", Department: "engineering"}

	// 08:00 UTC in summer is 10:00 in Berlin.
	decision := engine.Evaluate(subject, Resource{}, Environment{}, at(t, "2024-06-03T08:00:00Z"))
	assert.True(t, decision.Allowed)

	// 17:00 UTC is 19:00 in Berlin.
	decision = engine.Evaluate(subject, Resource{}, Environment{}, at(t, "2024-06-03T17:00:00Z"))
	assert.False(t, decision.Allowed)
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
	}{
		{"not a clock", "morning", "18:00"},
		{"bad hour", "25:00", "18:00"},
		{"bad minute", "09:61", "18:00"},
		{"end before start", "18:00", "09:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.start, tt.end, DefaultRestrictedDepartments, time.UTC)
			assert.Error(t, err)
		})
	}
}
