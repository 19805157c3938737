package authorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SubjectRecord carries the directory attributes of a subject: department,
// authorized projects, and access expiry. User record storage and CRUD live
// outside the gate; the pipeline only reads through this interface.
type SubjectRecord struct {
	Department   string     `json:"department"`
	Projects     []string   `json:"projects"`
	AccessExpiry *time.Time `json:"access_expiry,omitempty"`
}

// SubjectDirectory resolves directory attributes for a verified subject.
// A subject absent from the directory resolves to found=false, which the
// policy engine turns into an UnknownPrincipal denial.
type SubjectDirectory interface {
	Lookup(ctx context.Context, subject string) (record SubjectRecord, found bool, err error)
}

// StaticDirectory is a fixed in-memory SubjectDirectory for tests and
// single-node deployments.
type StaticDirectory map[string]SubjectRecord

func (d StaticDirectory) Lookup(_ context.Context, subject string) (SubjectRecord, bool, error) {
	record, found := d[subject]

	return record, found, nil
}

// LoadStaticDirectory reads a JSON file mapping subject identifiers to
// their directory records.
func LoadStaticDirectory(path string) (StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory file: %w", err)
	}

	directory := make(StaticDirectory)

	if err := json.Unmarshal(data, &directory); err != nil {
		return nil, fmt.Errorf("failed to parse directory file: %w", err)
	}

	return directory, nil
}
