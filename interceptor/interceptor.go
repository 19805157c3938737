package interceptor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/secureteam/access-gate/authorizer"
)

const (
	// SubjectHeader carries the verified subject to the upstream service.
	SubjectHeader = "X-Authenticated-Subject"

	// DepartmentHeader carries the verified department to the upstream service.
	DepartmentHeader = "X-Authenticated-Department"
)

// DefaultBypassPrefixes lists the unauthenticated paths that skip the
// pipeline entirely: health check, MFA setup and verification, and the
// public verification key. Matching is exact-prefix against this fixed list.
var DefaultBypassPrefixes = []string{
	"/auth/health",
	"/auth/mfa/setup",
	"/auth/mfa/verify",
	"/keys/public",
}

// Interceptor fronts the protected upstream service with a reverse proxy
// that runs the authorization pipeline on every request.
type Interceptor struct {
	servicePort    int
	proxyPort      int
	proxy          *httputil.ReverseProxy
	authorizer     *authorizer.Authorizer
	bypassPrefixes []string
	logger         *zap.Logger
}

func NewInterceptor(servicePort, proxyPort int, auth *authorizer.Authorizer, bypassPrefixes []string, logger *zap.Logger) (*Interceptor, error) {
	upstreamURL := "http://localhost:" + strconv.Itoa(servicePort)

	proxy, err := setupProxy(upstreamURL)
	if err != nil {
		return nil, err
	}

	if bypassPrefixes == nil {
		bypassPrefixes = DefaultBypassPrefixes
	}

	return &Interceptor{
		servicePort:    servicePort,
		proxyPort:      proxyPort,
		proxy:          proxy,
		authorizer:     auth,
		bypassPrefixes: bypassPrefixes,
		logger:         logger,
	}, nil
}

func setupProxy(target string) (*httputil.ReverseProxy, error) {
	url, err := url.Parse(target)
	if err != nil {
		return nil, err
	}

	proxy := httputil.NewSingleHostReverseProxy(url)
	proxy.Director = func(req *http.Request) {
		req.Header.Add("X-Forwarded-Host", req.Host)
		req.Host = url.Host
		req.URL.Scheme = url.Scheme
		req.URL.Host = url.Host
		req.URL.Path = url.Path + req.URL.Path
	}

	return proxy, nil
}

func (iv *Interceptor) Start() error {
	mux := http.NewServeMux()

	mux.Handle("/", iv.Middleware(iv.proxy))

	listenAddress := ":" + strconv.Itoa(iv.proxyPort)
	server := &http.Server{
		Addr:    listenAddress,
		Handler: mux,
	}

	iv.logger.Info("Starting gate interceptor server...", zap.Int("port", iv.proxyPort))

	if err := server.ListenAndServe(); err != nil {
		iv.logger.Error("Failed to start gate interceptor.", zap.String("listenAddress", listenAddress), zap.Error(err))

		return fmt.Errorf("failed to start gate interceptor: %w", err)
	}

	return nil
}

// Middleware enforces the authorization pipeline before handing the request
// to next. Callers only ever see generic unauthorized/forbidden responses;
// the specific failure kind stays in logs and audit.
func (iv *Interceptor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if iv.bypassed(r.URL.Path) {
			next.ServeHTTP(w, r)

			return
		}

		body, err := readAndReplaceBody(r)
		if err != nil {
			iv.logger.Error("Failed to read request body.", zap.Error(err))
			http.Error(w, "Error reading request body", http.StatusInternalServerError)

			return
		}

		principal, err := iv.authorizer.Authorize(r.Context(), r.Header.Get("Authorization"), r.URL.Path, r.Header, r.RemoteAddr, body)
		if err != nil {
			var denied *authorizer.PolicyDeniedError
			if errors.As(err, &denied) {
				http.Error(w, "Forbidden", http.StatusForbidden)

				return
			}

			http.Error(w, "Unauthorized", http.StatusUnauthorized)

			return
		}

		r.Header.Set(SubjectHeader, principal.Subject)
		r.Header.Set(DepartmentHeader, principal.Department)

		next.ServeHTTP(w, r)
	})
}

func (iv *Interceptor) bypassed(path string) bool {
	for _, prefix := range iv.bypassPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}

func readAndReplaceBody(r *http.Request) (json.RawMessage, error) {
	if r.Body == nil {
		return nil, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	r.Body.Close()

	r.Body = io.NopCloser(bytes.NewBuffer(data))

	return data, nil
}
