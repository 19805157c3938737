package policy

import "time"

// Subject carries the attributes of the verified principal. Zero values mean
// the attribute is absent: an empty Department is an unknown department, a
// nil AccessExpiry means no expiry is set, an empty DeviceID means no device
// fingerprint was registered.
type Subject struct {
	ID           string
	Department   string
	DeviceID     string
	Projects     []string
	AccessExpiry *time.Time
}

// HasProject reports whether projectID is in the subject's authorized set.
func (s Subject) HasProject(projectID string) bool {
	for _, p := range s.Projects {
		if p == projectID {
			return true
		}
	}

	return false
}

// Resource carries the attributes of the requested resource. An empty
// ProjectID means the resource declares no project requirement.
type Resource struct {
	Path      string
	ProjectID string
}

// Environment carries the request-context attributes observed by the gate.
type Environment struct {
	DeviceID  string
	IPAddress string
}

// Decision is the evaluation verdict. Reason is always set, on allow and on
// deny, so every audit record carries one.
type Decision struct {
	Allowed bool
	Reason  string
}
