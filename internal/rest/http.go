package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/internal/version"
)

const (
	csrfHeader      = "EMC-CSRF-TOKEN"
	requestIDHeader = "X-Request-ID"
	defaultTimeout  = 30 * time.Second
)

// Options configures an HTTPClient.
type Options struct {
	// Address is the management address, with or without scheme.
	Address   string
	Username  string
	Password  string
	VerifyTLS bool
	// CAFile is a PEM bundle used when VerifyTLS is set.
	CAFile  string
	Timeout time.Duration

	Logger  logrus.FieldLogger
	Metrics *Metrics
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// HTTPClient implements Client over the Unity REST API.
type HTTPClient struct {
	base     string
	username string
	password string
	http     *http.Client
	version  *version.Version
	log      logrus.FieldLogger
	metrics  *Metrics

	mu   sync.Mutex
	csrf string
}

// Connect builds a client, opens a login session and probes the array
// software version.
func Connect(ctx context.Context, opts Options) (*HTTPClient, error) {
	if opts.Address == "" {
		return nil, fmt.Errorf("array address is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	hc := opts.HTTPClient
	if hc == nil {
		var err error
		hc, err = newHTTPClient(opts)
		if err != nil {
			return nil, err
		}
	}

	base := opts.Address
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	c := &HTTPClient{
		base:     strings.TrimRight(base, "/"),
		username: opts.Username,
		password: opts.Password,
		http:     hc,
		log:      opts.Logger.WithField("array", opts.Address),
		metrics:  opts.Metrics,
	}

	if err := c.login(ctx); err != nil {
		return nil, fmt.Errorf("failed to log in to %s: %w", opts.Address, err)
	}
	if err := c.probeVersion(ctx); err != nil {
		return nil, fmt.Errorf("failed to probe array version: %w", err)
	}
	return c, nil
}

func newHTTPClient(opts Options) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: !opts.VerifyTLS} //nolint:gosec // arrays commonly ship self-signed certificates
	if opts.VerifyTLS && opts.CAFile != "" {
		pem, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %s: %w", opts.CAFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", opts.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Jar:       jar,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}, nil
}

func (c *HTTPClient) login(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/types/loginSessionInfo/instances", nil, nil)
	if err != nil {
		return err
	}
	return resp.Err()
}

func (c *HTTPClient) probeVersion(ctx context.Context) error {
	q := url.Values{"fields": {"softwareVersion"}}
	resp, err := c.do(ctx, http.MethodGet, "/api/types/basicSystemInfo/instances", q, nil)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	raw, _ := resp.FirstContent()["softwareVersion"].(string)
	v, err := version.Parse(raw)
	if err != nil {
		return err
	}
	c.version = v
	c.log.WithField("version", v.String()).Debug("connected to array")
	return nil
}

// Close ends the login session. It is safe to call Close more than once.
func (c *HTTPClient) Close(ctx context.Context) error {
	if c.token() == "" {
		return nil
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/types/loginSessionInfo/action/logout", nil, Body{"localCleanupOnly": true})
	c.setToken("")
	if err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	return resp.Err()
}

// Ping verifies the session is still usable.
func (c *HTTPClient) Ping(ctx context.Context) error {
	if err := c.probeVersion(ctx); err != nil {
		return fmt.Errorf("array connection is dead: %w", err)
	}
	return nil
}

// Version returns the array software version probed by Connect.
func (c *HTTPClient) Version() *version.Version { return c.version }

func (c *HTTPClient) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.csrf
}

func (c *HTTPClient) setToken(t string) {
	c.mu.Lock()
	c.csrf = t
	c.mu.Unlock()
}

// Logger returns the client logger.
func (c *HTTPClient) Logger() logrus.FieldLogger { return c.log }

// Get fetches one object of typ.
func (c *HTTPClient) Get(ctx context.Context, typ, id string, fields []string) (*Response, error) {
	return c.do(ctx, http.MethodGet, instancePath(typ, id), fieldsQuery(fields, nil), nil)
}

// List fetches every object of typ matching filter.
func (c *HTTPClient) List(ctx context.Context, typ string, filter Body, fields []string) (*Response, error) {
	return c.do(ctx, http.MethodGet, "/api/types/"+typ+"/instances", fieldsQuery(fields, filter), nil)
}

// Post creates an object of typ.
func (c *HTTPClient) Post(ctx context.Context, typ string, body Body) (*Response, error) {
	return c.do(ctx, http.MethodPost, "/api/types/"+typ+"/instances", nil, body)
}

// Modify sends a partial update of one object.
func (c *HTTPClient) Modify(ctx context.Context, typ, id string, body Body) (*Response, error) {
	return c.do(ctx, http.MethodPost, instancePath(typ, id)+"/action/modify", nil, body)
}

// Delete removes one object. body may carry delete options.
func (c *HTTPClient) Delete(ctx context.Context, typ, id string, body Body) (*Response, error) {
	return c.do(ctx, http.MethodDelete, instancePath(typ, id), nil, body)
}

// Action invokes a named action on one object.
func (c *HTTPClient) Action(ctx context.Context, typ, id, action string, body Body) (*Response, error) {
	return c.do(ctx, http.MethodPost, instancePath(typ, id)+"/action/"+action, nil, body)
}

// TypeAction invokes a named action on the type, e.g. createLun.
func (c *HTTPClient) TypeAction(ctx context.Context, typ, action string, body Body) (*Response, error) {
	return c.do(ctx, http.MethodPost, "/api/types/"+typ+"/action/"+action, nil, body)
}

func instancePath(typ, id string) string {
	return "/api/instances/" + typ + "/" + url.PathEscape(id)
}

func fieldsQuery(fields []string, filter Body) url.Values {
	q := url.Values{"compact": {"true"}}
	if len(fields) > 0 {
		q.Set("fields", strings.Join(fields, ","))
	}
	if f := FilterString(filter); f != "" {
		q.Set("filter", f)
	}
	return q
}

// FilterString renders a server-side filter expression such as
// `name eq "Muse" and type eq 2`. Keys are sorted.
func FilterString(filter Body) string {
	if len(filter) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	for _, k := range keys {
		v, keep := Normalize(filter[k], false)
		if !keep {
			continue
		}
		switch t := v.(type) {
		case map[string]any:
			if id, ok := t["id"]; ok {
				clauses = append(clauses, fmt.Sprintf("%s.id eq %q", k, fmt.Sprint(id)))
			}
		case string:
			clauses = append(clauses, fmt.Sprintf("%s eq %q", k, t))
		default:
			clauses = append(clauses, fmt.Sprintf("%s eq %v", k, t))
		}
	}
	return strings.Join(clauses, " and ")
}

type envelope struct {
	Content map[string]any `json:"content"`
	Entries []struct {
		Content map[string]any `json:"content"`
	} `json:"entries"`
	Error *struct {
		ErrorCode      int                 `json:"errorCode"`
		HTTPStatusCode int                 `json:"httpStatusCode"`
		Messages       []map[string]string `json:"messages"`
	} `json:"error"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body Body) (*Response, error) {
	start := time.Now()
	requestID := uuid.New().String()
	resource := resourceOf(path)

	resp, err := c.roundTrip(ctx, method, path, query, body, requestID)
	c.metrics.observe(method, resource, outcomeOf(resp, err), time.Since(start))

	entry := c.log.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"request_id": requestID,
		"elapsed":    time.Since(start).String(),
	})
	switch {
	case err != nil:
		entry.WithError(err).Warn("array request failed")
	case !resp.IsOK():
		entry.WithField("error_code", resp.ErrorCode).Debug("array returned an error")
	default:
		entry.Debug("array request completed")
	}
	return resp, err
}

func (c *HTTPClient) roundTrip(ctx context.Context, method, path string, query url.Values, body Body, requestID string) (*Response, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-EMC-REST-CLIENT", "true")
	req.Header.Set(requestIDHeader, requestID)
	if token := c.token(); token != "" {
		req.Header.Set(csrfHeader, token)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to %s %s: %w", method, path, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if token := httpResp.Header.Get(csrfHeader); token != "" {
		c.setToken(token)
	}

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	resp := &Response{StatusCode: httpResp.StatusCode, RequestID: requestID}
	if len(bytes.TrimSpace(data)) == 0 {
		return resp, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	if env.Error != nil {
		resp.ErrorCode = env.Error.ErrorCode
		for _, m := range env.Error.Messages {
			for _, text := range m {
				resp.Messages = append(resp.Messages, text)
			}
		}
		if resp.ErrorCode == 0 && resp.StatusCode < 400 {
			resp.StatusCode = env.Error.HTTPStatusCode
		}
	}
	if env.Content != nil {
		resp.Contents = append(resp.Contents, env.Content)
	}
	for _, e := range env.Entries {
		resp.Contents = append(resp.Contents, e.Content)
	}
	return resp, nil
}

// resourceOf extracts the resource type from an API path for metric labels.
func resourceOf(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/api/"), "/")
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1]
	}
	return "unknown"
}
