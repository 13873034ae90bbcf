package testkit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/crmarques/mobilectl/channel"
	"github.com/crmarques/mobilectl/config"
	"github.com/crmarques/mobilectl/internal/cli/common"
	"github.com/crmarques/mobilectl/mobile"
)

// SubscriptionID is the subscription of the account served by
// ManagementServer.
const SubscriptionID = "sub-1"

type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Body   string
}

// ManagementServer fakes the management endpoint. Routes are keyed by
// "METHOD /path"; unknown routes answer 404 and every request is recorded.
type ManagementServer struct {
	server *httptest.Server

	mu        sync.Mutex
	routes    map[string]http.HandlerFunc
	requests  []Request
	opened    int
	selection config.AccountSelection
}

func NewManagementServer(t *testing.T) *ManagementServer {
	t.Helper()

	fake := &ManagementServer{routes: map[string]http.HandlerFunc{}}
	fake.server = httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(fake.server.Close)
	return fake
}

func (s *ManagementServer) Reply(method string, path string, contentType string, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[method+" "+path] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = io.WriteString(w, body)
	}
}

func (s *ManagementServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	query := map[string]string{}
	for key, values := range r.URL.Query() {
		query[key] = values[len(values)-1]
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Query: query, Body: string(body)})
	handler, ok := s.routes[r.Method+" "+r.URL.Path]
	s.mu.Unlock()

	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":"NotFound","message":"no route"}`)
		return
	}
	handler(w, r)
}

// Find returns the first recorded request matching method and path.
func (s *ManagementServer) Find(method string, path string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, request := range s.requests {
		if request.Method == method && request.Path == path {
			return request, true
		}
	}
	return Request{}, false
}

func (s *ManagementServer) Count(method string, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, request := range s.requests {
		if request.Method == method && request.Path == path {
			total++
		}
	}
	return total
}

// Opened reports how many clients were opened and the last account
// selection passed in.
func (s *ManagementServer) Opened() (int, config.AccountSelection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened, s.selection
}

// OpenMobile returns a client bound to the server whatever account is
// selected.
func (s *ManagementServer) OpenMobile(_ context.Context, _ string, selection config.AccountSelection, observer common.Observer) (*mobile.Client, error) {
	s.mu.Lock()
	s.opened++
	s.selection = selection
	s.mu.Unlock()

	options := []channel.SessionOption{channel.WithHTTPClient(s.server.Client())}
	if observer != nil {
		options = append(options, channel.WithObserver(observer))
	}
	session, err := channel.NewSession(config.Account{
		Name:               "test",
		SubscriptionID:     SubscriptionID,
		ManagementEndpoint: s.server.URL,
	}, options...)
	if err != nil {
		return nil, err
	}
	return mobile.NewClient(session)
}
