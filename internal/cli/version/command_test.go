package version

import (
	"bytes"
	"testing"

	"github.com/crmarques/mobilectl/faults"
	"github.com/crmarques/mobilectl/internal/cli/common"
)

func TestCheckConstraint(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		version    string
		constraint string
		wantErr    bool
	}{
		{name: "satisfied", version: "1.4.2", constraint: ">= 1.2"},
		{name: "v prefix", version: "v2.0.0", constraint: "^2"},
		{name: "too old", version: "1.1.0", constraint: ">= 1.2", wantErr: true},
		{name: "development build", version: "dev", constraint: ">= 0.1", wantErr: true},
		{name: "bad constraint", version: "1.0.0", constraint: ">>> 1", wantErr: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := CheckConstraint(testCase.version, testCase.constraint)
			if !testCase.wantErr {
				if err != nil {
					t.Fatalf("CheckConstraint(%q, %q) returned error: %v", testCase.version, testCase.constraint, err)
				}
				return
			}
			if !faults.IsCategory(err, faults.ValidationError) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestVersionCommandWritesJSON(t *testing.T) {
	t.Parallel()

	command := NewCommand(&common.GlobalFlags{Output: common.OutputJSON, Query: ".version"})
	stdout := &bytes.Buffer{}
	command.SetOut(stdout)
	command.SetArgs([]string{})

	if err := command.Execute(); err != nil {
		t.Fatalf("version returned error: %v", err)
	}
	if got := stdout.String(); got != "\"dev\"\n" {
		t.Fatalf("version output = %q, want %q", got, "\"dev\"\n")
	}
}
