package operation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crmarques/mobilectl/channel"
	"github.com/crmarques/mobilectl/config"
	"github.com/crmarques/mobilectl/faults"
)

type scriptedFetcher struct {
	mu     sync.Mutex
	states []State
	errs   []error
	calls  int
}

func (f *scriptedFetcher) FetchState(_ context.Context, _ string) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return State{}, f.errs[idx]
	}
	if idx >= len(f.states) {
		return State{Status: StatusInProgress}, nil
	}
	return f.states[idx], nil
}

type countingClock struct {
	mu        sync.Mutex
	intervals []time.Duration
}

func (c *countingClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.intervals = append(c.intervals, d)
	c.mu.Unlock()

	fired := make(chan time.Time, 1)
	fired <- time.Now()
	return fired
}

func TestTrackerWaitOutcomes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		states       []State
		errs         []error
		wantCategory faults.ErrorCategory
		wantFetches  int
		wantSleeps   int
	}{
		{
			name:        "succeeds after two retries",
			states:      []State{{Status: StatusInProgress}, {Status: StatusInProgress}, {Status: StatusSucceeded}},
			wantFetches: 3,
			wantSleeps:  2,
		},
		{
			name:         "failed without retry",
			states:       []State{{Status: StatusFailed}},
			wantCategory: faults.OperationFailedError,
			wantFetches:  1,
		},
		{
			name:         "unknown status is a protocol violation",
			states:       []State{{Status: "Paused"}},
			wantCategory: faults.ProtocolError,
			wantFetches:  1,
		},
		{
			name:         "fetch error means status unknown",
			states:       []State{{Status: StatusInProgress}},
			errs:         []error{nil, errors.New("connection reset")},
			wantCategory: faults.TransportError,
			wantFetches:  2,
			wantSleeps:   1,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			fetcher := &scriptedFetcher{states: testCase.states, errs: testCase.errs}
			clock := &countingClock{}
			tracker := Tracker{Fetcher: fetcher, Interval: 5 * time.Second, After: clock.After}

			err := tracker.Wait(context.Background(), "op-1")
			if testCase.wantCategory == "" {
				if err != nil {
					t.Fatalf("Wait returned error: %v", err)
				}
			} else if !faults.IsCategory(err, testCase.wantCategory) {
				t.Fatalf("expected %s, got %v", testCase.wantCategory, err)
			}

			if fetcher.calls != testCase.wantFetches {
				t.Fatalf("fetches = %d, want %d", fetcher.calls, testCase.wantFetches)
			}
			if len(clock.intervals) != testCase.wantSleeps {
				t.Fatalf("sleeps = %d, want %d", len(clock.intervals), testCase.wantSleeps)
			}
			for _, interval := range clock.intervals {
				if interval != 5*time.Second {
					t.Fatalf("interval = %s, want 5s", interval)
				}
			}
		})
	}
}

func TestTrackerTransportMessageSaysStatusUnknown(t *testing.T) {
	t.Parallel()

	tracker := Tracker{Fetcher: FetcherFunc(func(context.Context, string) (State, error) {
		return State{}, errors.New("tls handshake timeout")
	})}

	err := tracker.Wait(context.Background(), "op-1")
	if err == nil || !strings.Contains(err.Error(), "unable to determine the status") {
		t.Fatalf("expected status-unknown message, got %v", err)
	}
}

func TestTrackerKeepsRemoteStatusOfFetchError(t *testing.T) {
	t.Parallel()

	tracker := Tracker{Fetcher: FetcherFunc(func(context.Context, string) (State, error) {
		return State{}, faults.NewStatusError(faults.ApplicationError, http.StatusNotFound, "operation not found")
	})}

	err := tracker.Wait(context.Background(), "op-1")
	if !faults.IsCategory(err, faults.TransportError) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if got := faults.StatusCode(err); got != http.StatusNotFound {
		t.Fatalf("StatusCode() = %d, want %d", got, http.StatusNotFound)
	}
}

func TestTrackerFailedCarriesProviderDetail(t *testing.T) {
	t.Parallel()

	tracker := Tracker{Fetcher: FetcherFunc(func(context.Context, string) (State, error) {
		return State{Status: StatusFailed, ErrorCode: "Conflict", ErrorMessage: "name in use"}, nil
	})}

	err := tracker.Wait(context.Background(), "op-1")
	if !faults.IsCategory(err, faults.OperationFailedError) {
		t.Fatalf("expected operation failed error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Conflict: name in use") {
		t.Fatalf("expected provider detail in %q", err.Error())
	}
}

func TestTrackerCancellationStopsWaiting(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &scriptedFetcher{states: []State{{Status: StatusInProgress}}}
	tracker := Tracker{Fetcher: fetcher, Interval: time.Hour}

	done := make(chan error, 1)
	tracker.Track(ctx, "op-1", func(err error) {
		done <- err
	})

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !faults.IsCategory(err, faults.TransportError) {
			t.Fatalf("expected transport error on cancellation, got %v", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled in chain, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tracker did not stop after cancellation")
	}
}

func TestTrackerRejectsEmptyID(t *testing.T) {
	t.Parallel()

	err := Tracker{Fetcher: &scriptedFetcher{}}.Wait(context.Background(), " ")
	if !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type recordingObserver struct {
	statuses []Status
}

func (o *recordingObserver) ObservePoll(_ string, status Status, _ int) {
	o.statuses = append(o.statuses, status)
}

func TestChannelFetcherDecodesJSONAndXML(t *testing.T) {
	t.Parallel()

	var paths []string
	var mu sync.Mutex
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		polls++
		current := polls
		mu.Unlock()

		if r.Header.Get("Accept") != channel.MediaTypeJSON {
			t.Errorf("Accept = %q, want JSON", r.Header.Get("Accept"))
		}
		if current == 1 {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ID":"op-9","Status":"InProgress","HttpStatusCode":200}`))
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<Operation xmlns="http://schemas.microsoft.com/windowsazure"><ID>op-9</ID><Status>Succeeded</Status></Operation>`))
	}))
	defer server.Close()

	session, err := channel.NewSession(config.Account{
		Name:               "test",
		SubscriptionID:     "sub-1",
		ManagementEndpoint: server.URL,
	}, channel.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}

	observer := &recordingObserver{}
	clock := &countingClock{}
	tracker := Tracker{Fetcher: ChannelFetcher{Session: session}, After: clock.After, Observer: observer}
	if err := tracker.Wait(context.Background(), "op-9"); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}

	if len(paths) != 2 || paths[0] != "/sub-1/operations/op-9" {
		t.Fatalf("unexpected poll paths %v", paths)
	}
	if len(observer.statuses) != 2 || observer.statuses[1] != StatusSucceeded {
		t.Fatalf("observer statuses = %v", observer.statuses)
	}
	if len(clock.intervals) != 1 || clock.intervals[0] != DefaultInterval {
		t.Fatalf("expected one default interval wait, got %v", clock.intervals)
	}
}
