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

func TestCreateItemRejectsIncompleteInput(t *testing.T) {
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()

	service := NewWorkflowService(db)
	ctx := context.Background()

	_, err := service.CreateItem(ctx, CreateItemInput{Bucket: "MAIN-ST", Category: models.CategoryRFI})
	if err == nil || !strings.Contains(err.Error(), "required") {
		t.Fatalf("expected missing-field error, got %v", err)
	}

	_, err = service.CreateItem(ctx, CreateItemInput{
		Bucket:     "MAIN-ST",
		Identifier: "RFI-0042",
		Category:   "Memo",
		Title:      "Door hardware conflict",
	})
	if err == nil || !strings.Contains(err.Error(), "unknown category") {
		t.Fatalf("expected category error, got %v", err)
	}

	_, err = service.CreateItem(ctx, CreateItemInput{
		Bucket:     "MAIN-ST",
		Identifier: "RFI-0042",
		Category:   models.CategoryRFI,
		Title:      "Door hardware conflict",
	})
	if err == nil || !strings.Contains(err.Error(), "date_received and contractor_due") {
		t.Fatalf("expected date error, got %v", err)
	}

	if err := state.verifyComplete(); err != nil {
		t.Fatalf("validation should not touch the database: %v", err)
	}
}

func TestCreateItemRejectsReviewerActingAsQcr(t *testing.T) {
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()

	service := NewWorkflowService(db)
	_, err := service.CreateItem(context.Background(), CreateItemInput{
		Bucket:        "MAIN-ST",
		Identifier:    "SUB-0117",
		Category:      models.CategorySubmittal,
		Title:         "Storefront shop drawings",
		DateReceived:  date(2026, time.January, 19),
		ContractorDue: date(2026, time.January, 30),
		ReviewerEmail: "alice@example.com",
		QcrEmail:      "alice@example.com",
	})
	if err == nil || !strings.Contains(err.Error(), "different people") {
		t.Fatalf("expected same-person error, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("validation should not touch the database: %v", err)
	}
}

func TestCreateItemRejectsSingleContactOnMultiReviewerItem(t *testing.T) {
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()

	service := NewWorkflowService(db)
	_, err := service.CreateItem(context.Background(), CreateItemInput{
		Bucket:        "MAIN-ST",
		Identifier:    "SUB-0117",
		Category:      models.CategorySubmittal,
		Title:         "Storefront shop drawings",
		DateReceived:  date(2026, time.January, 19),
		ContractorDue: date(2026, time.January, 30),
		MultiReviewer: true,
		ReviewerEmail: "alice@example.com",
	})
	if err == nil || !strings.Contains(err.Error(), "reviewers list") {
		t.Fatalf("expected reviewers-list error, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("validation should not touch the database: %v", err)
	}
}

func TestCreateItemRejectsDuplicateIdentifierInBucket(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT count\\(\\*\\) FROM `items` WHERE identifier = \\? AND bucket = \\? AND delete_at IS NULL"),
			args:    []driver.Value{"SUB-0117", "MAIN-ST"},
			columns: []string{"count(*)"},
			rows:    [][]driver.Value{{int64(1)}},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	service := NewWorkflowService(db)
	_, err := service.CreateItem(context.Background(), CreateItemInput{
		Bucket:        "MAIN-ST",
		Identifier:    "SUB-0117",
		Category:      models.CategorySubmittal,
		Title:         "Storefront shop drawings",
		DateReceived:  date(2026, time.January, 19),
		ContractorDue: date(2026, time.January, 30),
	})
	if !errors.Is(err, ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCloseItemAlreadyClosedIsInvalid(t *testing.T) {
	closedAt := date(2026, time.February, 10)
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `items` WHERE item_id = \\? AND delete_at IS NULL.*FOR UPDATE"),
			columns: []string{"item_id", "status", "closed_at"},
			rows:    [][]driver.Value{{int64(7), models.StatusClosed, closedAt}},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	service := NewWorkflowService(db)
	_, err := service.CloseItem(context.Background(), 7, "", "", "pm")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if !strings.Contains(err.Error(), "already closed") {
		t.Fatalf("expected already-closed detail, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCloseItemRequiresReadyForResponse(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `items` WHERE item_id = \\? AND delete_at IS NULL.*FOR UPDATE"),
			columns: []string{"item_id", "status"},
			rows:    [][]driver.Value{{int64(7), models.StatusInQC}},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	service := NewWorkflowService(db)
	_, err := service.CloseItem(context.Background(), 7, "Approved", "No exceptions taken.", "pm")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if !strings.Contains(err.Error(), models.StatusInQC) {
		t.Fatalf("expected current status in error, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
