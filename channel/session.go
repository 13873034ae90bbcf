package channel

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crmarques/mobilectl/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	tracerName = "github.com/crmarques/mobilectl/channel"

	headerVersion         = "x-ms-version"
	headerClientRequestID = "x-ms-client-request-id"
	headerRequestID       = "x-ms-request-id"

	maxResponseBytes = 16 << 20
)

// RequestObserver receives one call per completed dispatch. Status is zero
// when no response was received.
type RequestObserver interface {
	ObserveRequest(method string, status int, duration time.Duration)
}

// Session holds what stays fixed for every request of one logical session:
// the authority, the client certificate, the subscription and the API version.
type Session struct {
	baseURL        *url.URL
	subscriptionID string
	apiVersion     string
	defaultHeaders map[string]string
	client         *http.Client
	limiter        *rate.Limiter
	observer       RequestObserver
	tracer         trace.Tracer
}

type SessionOption func(*sessionSettings)

type sessionSettings struct {
	baseURL    string
	apiVersion string
	client     *http.Client
	tlsConfig  *tls.Config
	limiter    *rate.Limiter
	observer   RequestObserver
	tracer     trace.Tracer
}

// WithBaseURL replaces the account's management endpoint, e.g. for the SQL
// management endpoint.
func WithBaseURL(baseURL string) SessionOption {
	return func(s *sessionSettings) {
		s.baseURL = baseURL
	}
}

func WithAPIVersion(version string) SessionOption {
	return func(s *sessionSettings) {
		s.apiVersion = version
	}
}

// WithHTTPClient skips certificate loading and dispatches through client.
func WithHTTPClient(client *http.Client) SessionOption {
	return func(s *sessionSettings) {
		s.client = client
	}
}

func WithTLSConfig(tlsConfig *tls.Config) SessionOption {
	return func(s *sessionSettings) {
		s.tlsConfig = tlsConfig
	}
}

func WithLimiter(limiter *rate.Limiter) SessionOption {
	return func(s *sessionSettings) {
		s.limiter = limiter
	}
}

func WithObserver(observer RequestObserver) SessionOption {
	return func(s *sessionSettings) {
		s.observer = observer
	}
}

func WithTracer(tracer trace.Tracer) SessionOption {
	return func(s *sessionSettings) {
		s.tracer = tracer
	}
}

func NewSession(account config.Account, opts ...SessionOption) (*Session, error) {
	settings := sessionSettings{
		baseURL:    account.EffectiveManagementEndpoint(),
		apiVersion: account.EffectiveAPIVersion(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&settings)
	}

	subscriptionID := strings.TrimSpace(account.SubscriptionID)
	if subscriptionID == "" {
		return nil, validationError("subscription id is required", nil)
	}
	if strings.TrimSpace(settings.apiVersion) == "" {
		return nil, validationError("api version is required", nil)
	}

	baseURL, err := parseBaseURL(settings.baseURL)
	if err != nil {
		return nil, err
	}

	client := settings.client
	if client == nil {
		if settings.tlsConfig == nil {
			return nil, validationError("account "+account.Name+" has no client certificate configuration", nil)
		}

		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = settings.tlsConfig
		client = &http.Client{
			Timeout:   account.EffectiveTimeout(),
			Transport: transport,
		}
	}

	limiter := settings.limiter
	if limiter == nil && account.Requests != nil && account.Requests.RequestsPerSecond > 0 {
		burst := account.Requests.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(account.Requests.RequestsPerSecond), burst)
	}

	tracer := settings.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Session{
		baseURL:        baseURL,
		subscriptionID: subscriptionID,
		apiVersion:     strings.TrimSpace(settings.apiVersion),
		defaultHeaders: cloneStringMap(account.DefaultHeaders),
		client:         client,
		limiter:        limiter,
		observer:       settings.observer,
		tracer:         tracer,
	}, nil
}

func (s *Session) SubscriptionID() string {
	return s.subscriptionID
}

func (s *Session) APIVersion() string {
	return s.apiVersion
}

// Host returns the authority requests are sent to.
func (s *Session) Host() string {
	return s.baseURL.Host
}

// NewChannel returns a channel whose path starts with the subscription id.
func (s *Session) NewChannel() *Channel {
	return s.NewBareChannel().Path(s.subscriptionID)
}

func (s *Session) NewBareChannel() *Channel {
	return &Channel{
		session: s,
		headers: map[string]string{},
		query:   map[string]string{},
	}
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, validationError("management endpoint is required", nil)
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, validationError("management endpoint is invalid", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, validationError("management endpoint must be an absolute URL", nil)
	}

	parsed.RawQuery = ""
	parsed.Fragment = ""
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	return parsed, nil
}

func cloneStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	cloned := make(map[string]string, len(values))
	for key, value := range values {
		cloned[key] = value
	}
	return cloned
}
