package jenkins

import (
	"testing"
	"time"

	"github.com/goliatone/go-buildhealth/core"
)

func TestNormalizeCompletedBuild(t *testing.T) {
	payload := []byte(`{
		"number": 456,
		"url": "https://jenkins.example.com/job/nightly/456/",
		"result": "SUCCESS",
		"building": false,
		"timestamp": 1705312800000,
		"duration": 300000,
		"actions": [{"causes": [{"userId": "jdoe", "userName": "Jane Doe"}]}],
		"changeSet": {"items": [{"commitId": "deadbeef"}]}
	}`)

	event, err := NewNormalizer().Normalize(payload, "jenkins-ci")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.ExternalID != "456" {
		t.Fatalf("expected build number as external id, got %q", event.ExternalID)
	}
	if event.Status != core.BuildStatusSuccess {
		t.Fatalf("expected success, got %s", event.Status)
	}
	if event.TriggeredBy != "jdoe" {
		t.Fatalf("expected cause user id, got %q", event.TriggeredBy)
	}
	if event.CommitSHA != "deadbeef" {
		t.Fatalf("expected changeset commit, got %q", event.CommitSHA)
	}

	wantStart := time.UnixMilli(1705312800000).UTC()
	if event.StartedAt == nil || !event.StartedAt.Equal(wantStart) {
		t.Fatalf("expected epoch-millis start time")
	}
	duration := event.Duration()
	if duration == nil || *duration != 300 {
		t.Fatalf("expected 300s duration from millis, got %v", duration)
	}
}

func TestResultTable(t *testing.T) {
	cases := []struct {
		result   string
		building bool
		want     core.BuildStatus
	}{
		{"SUCCESS", false, core.BuildStatusSuccess},
		{"FAILURE", false, core.BuildStatusFailed},
		{"UNSTABLE", false, core.BuildStatusFailed},
		{"ABORTED", false, core.BuildStatusCancelled},
		{"NOT_BUILT", false, core.BuildStatusUnknown},
		{"", true, core.BuildStatusRunning},
		{"", false, core.BuildStatusQueued},
	}
	for _, tc := range cases {
		if got := mapResult(tc.result, tc.building); got != tc.want {
			t.Fatalf("mapResult(%q, %v) = %s, want %s", tc.result, tc.building, got, tc.want)
		}
	}
}

func TestNormalizeRunningBuildHasNoFinishTime(t *testing.T) {
	payload := []byte(`{
		"number": 457,
		"building": true,
		"timestamp": 1705312800000,
		"duration": 0
	}`)
	event, err := NewNormalizer().Normalize(payload, "jenkins-ci")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.Status != core.BuildStatusRunning {
		t.Fatalf("expected running, got %s", event.Status)
	}
	if event.FinishedAt != nil {
		t.Fatalf("running builds must not carry a finish time")
	}
	if event.Duration() != nil {
		t.Fatalf("expected nil duration for running build")
	}
}

func TestNormalizeRejectsMissingNumber(t *testing.T) {
	_, err := NewNormalizer().Normalize([]byte(`{"result": "SUCCESS"}`), "jenkins-ci")
	if err == nil {
		t.Fatalf("expected missing build number to be rejected")
	}
	if !core.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNormalizeMissingTimestampDegrades(t *testing.T) {
	payload := []byte(`{"number": 458, "result": "FAILURE", "duration": 1000}`)
	event, err := NewNormalizer().Normalize(payload, "jenkins-ci")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.StartedAt != nil || event.FinishedAt != nil {
		t.Fatalf("expected nil timestamps without epoch value")
	}
	if event.Duration() != nil {
		t.Fatalf("expected nil duration, never zero-defaulted")
	}
}
