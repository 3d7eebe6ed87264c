package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"review-tracker-api/models"
)

func TestApplyReviewerResponseRejectsEmptyToken(t *testing.T) {
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()

	service := NewResponseService(db)
	_, err := service.ApplyReviewerResponse(context.Background(), "", ReviewerResponsePayload{Category: "Approved"})
	if !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("empty token should not touch the database: %v", err)
	}
}

func TestApplyReviewerResponseUnknownTokenChecksBothSources(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT `item_id` FROM `items` WHERE email_token_reviewer = \\? AND delete_at IS NULL"),
			columns: []string{"item_id"},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT `assignment_id`,`item_id` FROM `reviewer_assignments` WHERE email_token = \\?"),
			columns: []string{"assignment_id", "item_id"},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	service := NewResponseService(db)
	_, err := service.ApplyReviewerResponse(context.Background(), "tok-unknown", ReviewerResponsePayload{Category: "Approved"})
	if !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyReviewerResponseRejectsRotatedToken(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT `item_id` FROM `items` WHERE email_token_reviewer = \\? AND delete_at IS NULL"),
			columns: []string{"item_id"},
			rows:    [][]driver.Value{{int64(3)}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `items` WHERE item_id = \\? AND delete_at IS NULL.*FOR UPDATE"),
			columns: []string{"item_id", "email_token_reviewer"},
			rows:    [][]driver.Value{{int64(3), "tok-rev-2"}},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	// The probe matched before a concurrent send-back rotated the token;
	// the re-check against the locked row has to catch it.
	service := NewResponseService(db)
	_, err := service.ApplyReviewerResponse(context.Background(), "tok-rev-1", ReviewerResponsePayload{Category: "Approved"})
	if !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken for a rotated token, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyReviewerResponseEnforcesTheVersionFence(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT `item_id` FROM `items` WHERE email_token_reviewer = \\? AND delete_at IS NULL"),
			columns: []string{"item_id"},
			rows:    [][]driver.Value{{int64(3)}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `items` WHERE item_id = \\? AND delete_at IS NULL.*FOR UPDATE"),
			columns: []string{"item_id", "email_token_reviewer", "reviewer_response_version"},
			rows:    [][]driver.Value{{int64(3), "tok-rev-1", int64(2)}},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	service := NewResponseService(db)
	_, err := service.ApplyReviewerResponse(context.Background(), "tok-rev-1", ReviewerResponsePayload{
		Version:  1,
		Category: "Approved",
	})
	if !errors.Is(err, ErrStaleVersion) {
		t.Fatalf("expected ErrStaleVersion, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyReviewerResponseRepeatDeliveryIsRejected(t *testing.T) {
	respondedAt := date(2026, time.March, 4)
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT `item_id` FROM `items` WHERE email_token_reviewer = \\? AND delete_at IS NULL"),
			columns: []string{"item_id"},
			rows:    [][]driver.Value{{int64(3)}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `items` WHERE item_id = \\? AND delete_at IS NULL.*FOR UPDATE"),
			columns: []string{"item_id", "email_token_reviewer", "reviewer_response_at", "reviewer_response_version"},
			rows:    [][]driver.Value{{int64(3), "tok-rev-1", respondedAt, int64(1)}},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	service := NewResponseService(db)
	_, err := service.ApplyReviewerResponse(context.Background(), "tok-rev-1", ReviewerResponsePayload{Category: "Approved"})
	if !errors.Is(err, ErrAlreadyResponded) {
		t.Fatalf("expected ErrAlreadyResponded, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyQcrResponseRequiresACompleteReviewerStage(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT `item_id` FROM `items` WHERE email_token_qcr = \\? AND delete_at IS NULL"),
			columns: []string{"item_id"},
			rows:    [][]driver.Value{{int64(3)}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `items` WHERE item_id = \\? AND delete_at IS NULL.*FOR UPDATE"),
			columns: []string{"item_id", "email_token_qcr", "status"},
			rows:    [][]driver.Value{{int64(3), "tok-qcr-1", models.StatusInReview}},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	service := NewResponseService(db)
	_, err := service.ApplyQcrResponse(context.Background(), "tok-qcr-1", QcrResponsePayload{Action: models.QcrActionApprove})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if !strings.Contains(err.Error(), "reviewer stage not complete") {
		t.Fatalf("expected stage detail, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyQcrResponseRejectsUnknownAction(t *testing.T) {
	respondedAt := date(2026, time.March, 4)
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT `item_id` FROM `items` WHERE email_token_qcr = \\? AND delete_at IS NULL"),
			columns: []string{"item_id"},
			rows:    [][]driver.Value{{int64(3)}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `items` WHERE item_id = \\? AND delete_at IS NULL.*FOR UPDATE"),
			columns: []string{"item_id", "email_token_qcr", "reviewer_response_at", "reviewer_response_version"},
			rows:    [][]driver.Value{{int64(3), "tok-qcr-1", respondedAt, int64(1)}},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	service := NewResponseService(db)
	_, err := service.ApplyQcrResponse(context.Background(), "tok-qcr-1", QcrResponsePayload{Action: "Escalate"})
	if err == nil || !strings.Contains(err.Error(), "unknown qc action") {
		t.Fatalf("expected unknown-action error, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResolveReviewerTokenEmptyTokenShortCircuits(t *testing.T) {
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()

	service := NewResponseService(db)
	_, _, err := service.ResolveReviewerToken(context.Background(), "")
	if !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("empty token should not touch the database: %v", err)
	}
}
