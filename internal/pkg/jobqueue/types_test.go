package jobqueue

import (
	"testing"
	"time"
)

func TestGroupContemplatedJobPayloadRoundTrip(t *testing.T) {
	payload := GroupContemplatedJobPayload{
		GroupID:       42,
		GroupPublicID: "7f0457d1-25cb-49bd-86a1-d053bbcdadf7",
		PlanID:        3,
		WinnerUserID:  9,
		MemberUserIDs: []uint{1, 5, 9},
	}

	restored, err := GroupContemplatedJobPayloadFromMap(payload.ToMap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored.GroupID != payload.GroupID || restored.PlanID != payload.PlanID {
		t.Fatalf("restored = %+v, want %+v", restored, payload)
	}
	if restored.WinnerUserID != payload.WinnerUserID {
		t.Fatalf("winner = %d, want %d", restored.WinnerUserID, payload.WinnerUserID)
	}
	if len(restored.MemberUserIDs) != 3 || restored.MemberUserIDs[2] != 9 {
		t.Fatalf("members = %v, want %v", restored.MemberUserIDs, payload.MemberUserIDs)
	}
}

func TestAmountMismatchJobPayloadRoundTrip(t *testing.T) {
	payload := AmountMismatchJobPayload{
		OrderID:       7,
		OrderPublicID: "0d4dbb1a-6f93-4a29-9b40-c8c446b1f0a1",
		UserID:        2,
		AmountCents:   9999,
		ExpectedCents: 10000,
	}

	restored, err := AmountMismatchJobPayloadFromMap(payload.ToMap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *restored != payload {
		t.Fatalf("restored = %+v, want %+v", restored, payload)
	}
}

func TestJobRetryLifecycle(t *testing.T) {
	job := &Job{
		ID:         "job-1",
		Type:       JobTypeGroupContemplated,
		Status:     JobStatusPending,
		MaxRetries: 3,
		CreatedAt:  time.Now(),
	}

	if job.IsRetryable() {
		t.Fatalf("pending job must not be retryable")
	}

	job.MarkAsProcessing()
	if job.Status != JobStatusProcessing || job.ProcessedAt == nil {
		t.Fatalf("MarkAsProcessing left job in %+v", job)
	}

	job.MarkAsFailed("boom")
	if !job.IsRetryable() {
		t.Fatalf("failed job under max retries must be retryable")
	}
	if job.RetryCount != 1 || job.ErrorMsg != "boom" {
		t.Fatalf("failure bookkeeping wrong: %+v", job)
	}

	job.MarkAsFailed("boom")
	job.MarkAsFailed("boom")
	if job.IsRetryable() {
		t.Fatalf("job at max retries must not be retryable")
	}

	job.MarkAsCompleted()
	if job.Status != JobStatusCompleted || job.CompletedAt == nil || job.ErrorMsg != "" {
		t.Fatalf("MarkAsCompleted left job in %+v", job)
	}
}
