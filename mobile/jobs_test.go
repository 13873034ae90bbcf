package mobile

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/crmarques/mobilectl/faults"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.FixedZone("CET", 3600))
}

func TestBuildJob(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		job     NewJob
		want    Job
		wantErr bool
	}{
		{
			name: "defaults",
			job:  NewJob{Name: "cleanup"},
			want: Job{Name: "cleanup", IntervalUnit: "minute", IntervalPeriod: 15, StartTime: "2026-03-04T04:06:07.008Z"},
		},
		{
			name: "explicit schedule",
			job:  NewJob{Name: "cleanup", Interval: 2, IntervalUnit: "hour", StartTime: "2026-01-01T00:00:00.000Z"},
			want: Job{Name: "cleanup", IntervalUnit: "hour", IntervalPeriod: 2, StartTime: "2026-01-01T00:00:00.000Z"},
		},
		{
			name: "on demand",
			job:  NewJob{Name: "cleanup", Interval: 5, IntervalUnit: JobUnitNone},
			want: Job{Name: "cleanup"},
		},
		{name: "unknown unit", job: NewJob{Name: "cleanup", IntervalUnit: "week"}, wantErr: true},
		{name: "negative interval", job: NewJob{Name: "cleanup", Interval: -1}, wantErr: true},
		{name: "missing name", job: NewJob{}, wantErr: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, err := BuildJob(testCase.job, fixedNow)
			if testCase.wantErr {
				if !faults.IsCategory(err, faults.ValidationError) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildJob returned error: %v", err)
			}
			if got != testCase.want {
				t.Fatalf("BuildJob() = %+v, want %+v", got, testCase.want)
			}
		})
	}
}

func TestPlanJobUpdate(t *testing.T) {
	t.Parallel()

	current := Job{Name: "cleanup", Status: JobDisabled, IntervalUnit: "minute", IntervalPeriod: 15, StartTime: "2026-01-01T00:00:00.000Z"}

	next, changed, err := PlanJobUpdate(current, JobUpdate{Status: JobEnabled, Interval: 30})
	if err != nil || !changed {
		t.Fatalf("PlanJobUpdate() = %+v, %t, %v", next, changed, err)
	}
	want := Job{Status: JobEnabled, IntervalUnit: "minute", IntervalPeriod: 30, StartTime: "2026-01-01T00:00:00.000Z"}
	if next != want {
		t.Fatalf("PlanJobUpdate() = %+v, want %+v", next, want)
	}

	if _, changed, err := PlanJobUpdate(current, JobUpdate{Status: JobDisabled, IntervalUnit: "minute"}); err != nil || changed {
		t.Fatalf("expected no change, got changed=%t err=%v", changed, err)
	}
	if _, _, err := PlanJobUpdate(current, JobUpdate{Status: "paused"}); !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateJobSkipsWriteWithoutChanges(t *testing.T) {
	t.Parallel()

	fake := newFakeManagement()
	fake.replyJSON(http.MethodGet, servicePath+"/scheduler/jobs/cleanup", `{"name":"cleanup","status":"enabled","intervalUnit":"hour","intervalPeriod":1}`)
	fake.replyJSON(http.MethodPut, servicePath+"/scheduler/jobs/cleanup", `{}`)
	client := newTestClient(t, fake)

	changed, err := client.UpdateJob(context.Background(), "todo", "cleanup", JobUpdate{Status: JobEnabled})
	if err != nil || changed {
		t.Fatalf("UpdateJob() = %t, %v; want false, nil", changed, err)
	}
	if _, ok := fake.find(http.MethodPut, servicePath+"/scheduler/jobs/cleanup"); ok {
		t.Fatal("expected no PUT for an unchanged job")
	}

	changed, err = client.UpdateJob(context.Background(), "todo", "cleanup", JobUpdate{Status: JobDisabled})
	if err != nil || !changed {
		t.Fatalf("UpdateJob() = %t, %v; want true, nil", changed, err)
	}
	request, _ := fake.find(http.MethodPut, servicePath+"/scheduler/jobs/cleanup")
	if want := `{"status":"disabled","intervalUnit":"hour","intervalPeriod":1}`; request.Body != want {
		t.Fatalf("body = %s, want %s", request.Body, want)
	}
}

func TestCreateJobPostsDefaults(t *testing.T) {
	t.Parallel()

	fake := newFakeManagement()
	fake.replyJSON(http.MethodPost, servicePath+"/scheduler/jobs", `{}`)
	client := newTestClient(t, fake)

	if err := client.CreateJob(context.Background(), "todo", NewJob{Name: "cleanup"}, fixedNow); err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}
	request, _ := fake.find(http.MethodPost, servicePath+"/scheduler/jobs")
	want := `{"name":"cleanup","intervalUnit":"minute","intervalPeriod":15,"startTime":"2026-03-04T04:06:07.008Z"}`
	if request.Body != want {
		t.Fatalf("body = %s, want %s", request.Body, want)
	}
}
