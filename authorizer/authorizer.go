package authorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/secureteam/access-gate/audit"
	"github.com/secureteam/access-gate/autherrors"
	"github.com/secureteam/access-gate/policy"
	"github.com/secureteam/access-gate/token"
)

const (
	bearerPrefix = "Bearer "

	deviceHeader       = "X-Device-ID"
	projectHeader      = "X-Project-ID"
	forwardedForHeader = "X-Forwarded-For"
)

// Principal is the verified identity forwarded to the downstream handler.
// It is rebuilt per request from token claims and directory attributes and
// is never persisted by the gate.
type Principal struct {
	Subject      string
	Department   string
	DeviceID     string
	Projects     []string
	AccessExpiry *time.Time
}

// PolicyDeniedError reports a policy denial with its reason code. The caller
// maps it to a generic forbidden response; the reason is for logs and audit.
type PolicyDeniedError struct {
	Reason string
}

func (e *PolicyDeniedError) Error() string {
	return fmt.Sprintf("policy denied: %s", e.Reason)
}

// Authorizer composes token verification, attribute assembly, and policy
// evaluation for each inbound request, emitting every terminal outcome to
// the audit sink. All state is immutable or externalized; the zero shared
// mutable state makes it safe for unbounded request concurrency.
type Authorizer struct {
	tokens    *token.Service
	engine    *policy.Engine
	directory SubjectDirectory
	sink      audit.Sink
	audience  string
	logger    *zap.Logger
	now       func() time.Time
}

func NewAuthorizer(tokens *token.Service, engine *policy.Engine, directory SubjectDirectory, sink audit.Sink, audience string, logger *zap.Logger) *Authorizer {
	return &Authorizer{
		tokens:    tokens,
		engine:    engine,
		directory: directory,
		sink:      sink,
		audience:  audience,
		logger:    logger,
		now:       time.Now,
	}
}

// Authorize runs the full pipeline for one request. It returns the verified
// Principal on allow, an autherrors sentinel on any authentication failure,
// and a PolicyDeniedError on a policy denial. Internal failures (store
// unreachable, directory error) fail closed as authentication failures.
func (a *Authorizer) Authorize(ctx context.Context, authorizationHeader, path string, headers http.Header, remoteAddr string, body json.RawMessage) (*Principal, error) {
	bearer, err := extractBearer(authorizationHeader)
	if err != nil {
		a.record("", path, false, err.Error())

		return nil, err
	}

	claims, err := a.tokens.Verify(ctx, bearer, a.audience)
	if err != nil {
		a.logger.Info("Token verification failed.", zap.String("path", path), zap.Error(err))
		a.record("", path, false, err.Error())

		return nil, err
	}

	record, _, err := a.directory.Lookup(ctx, claims.Subject)
	if err != nil {
		a.logger.Error("Subject directory lookup failed.",
			zap.String("subject", claims.Subject), zap.Error(err))
		a.record(claims.Subject, path, false, "directory unavailable")

		return nil, fmt.Errorf("directory lookup failed: %w", err)
	}

	subject := policy.Subject{
		ID:           claims.Subject,
		Department:   record.Department,
		DeviceID:     claims.DeviceID,
		Projects:     record.Projects,
		AccessExpiry: record.AccessExpiry,
	}

	resource := policy.Resource{
		Path:      path,
		ProjectID: projectID(headers, body),
	}

	env := policy.Environment{
		DeviceID:  headers.Get(deviceHeader),
		IPAddress: originAddress(headers, remoteAddr),
	}

	decision := a.engine.Evaluate(subject, resource, env, a.now())

	a.record(claims.Subject, path, decision.Allowed, decision.Reason)

	if !decision.Allowed {
		a.logger.Info("Request denied by policy.",
			zap.String("subject", claims.Subject),
			zap.String("path", path),
			zap.String("reason", decision.Reason))

		return nil, &PolicyDeniedError{Reason: decision.Reason}
	}

	return &Principal{
		Subject:      subject.ID,
		Department:   subject.Department,
		DeviceID:     subject.DeviceID,
		Projects:     subject.Projects,
		AccessExpiry: subject.AccessExpiry,
	}, nil
}

func (a *Authorizer) record(subject, resource string, granted bool, reason string) {
	entry := audit.NewEntry(a.now(), subject, resource, granted, reason)

	if err := a.sink.Record(entry); err != nil {
		a.logger.Error("Failed to record audit entry.", zap.Error(err))
	}
}

func extractBearer(authorizationHeader string) (string, error) {
	if authorizationHeader == "" {
		return "", autherrors.ErrMissingCredential
	}

	if !strings.HasPrefix(authorizationHeader, bearerPrefix) {
		return "", autherrors.ErrMalformedCredential
	}

	bearer := strings.TrimSpace(strings.TrimPrefix(authorizationHeader, bearerPrefix))
	if bearer == "" {
		return "", autherrors.ErrMalformedCredential
	}

	return bearer, nil
}

// projectID reads the required project from the X-Project-ID header, falling
// back to a project_id field in a JSON request body.
func projectID(headers http.Header, body json.RawMessage) string {
	if id := headers.Get(projectHeader); id != "" {
		return id
	}

	if len(body) == 0 {
		return ""
	}

	if result := gjson.GetBytes(body, "project_id"); result.Exists() {
		return result.String()
	}

	return ""
}

func originAddress(headers http.Header, remoteAddr string) string {
	if forwarded := headers.Get(forwardedForHeader); forwarded != "" {
		return forwarded
	}

	return remoteAddr
}
