package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"review-tracker-api/models"
)

func TestClassifyDueCoversTodayAndYesterdayOnly(t *testing.T) {
	today := date(2026, time.March, 5)

	if got := ClassifyDue(date(2026, time.March, 5), today); got != models.ReminderStageDueToday {
		t.Fatalf("expected due_today on the due date, got %q", got)
	}
	if got := ClassifyDue(date(2026, time.March, 4), today); got != models.ReminderStageOverdue {
		t.Fatalf("expected overdue one day past, got %q", got)
	}
	if got := ClassifyDue(date(2026, time.March, 6), today); got != "" {
		t.Fatalf("expected nothing before the due date, got %q", got)
	}
	// Day two and beyond is a human follow-up, never an email.
	if got := ClassifyDue(date(2026, time.March, 3), today); got != "" {
		t.Fatalf("expected nothing two days past, got %q", got)
	}
}

func TestClassifyItemRemindersSingleReviewerDueToday(t *testing.T) {
	today := date(2026, time.March, 5)
	item := &models.Item{
		ItemID:              3,
		Bucket:              "MAIN-ST",
		Identifier:          "RFI-0042",
		ReviewerDue:         timeptr(today),
		ReviewerEmail:       strptr("alice@example.com"),
		ReviewerEmailSentAt: timeptr(date(2026, time.March, 2)),
	}

	batch := &ReminderBatch{}
	classifyItemReminders(batch, item, nil, today, map[string]bool{})

	if len(batch.SingleReviewer) != 1 {
		t.Fatalf("expected one candidate, got %d", len(batch.SingleReviewer))
	}
	c := batch.SingleReviewer[0]
	if c.Role != models.ReminderRoleReviewer {
		t.Fatalf("expected reviewer role, got %q", c.Role)
	}
	if c.Stage != models.ReminderStageDueToday {
		t.Fatalf("expected due_today stage, got %q", c.Stage)
	}
	if c.Recipient != "alice@example.com" {
		t.Fatalf("expected reviewer recipient, got %q", c.Recipient)
	}
}

func TestClassifyItemRemindersRequireANotifiedReviewer(t *testing.T) {
	today := date(2026, time.March, 5)
	item := &models.Item{
		ItemID:        3,
		ReviewerDue:   timeptr(today),
		ReviewerEmail: strptr("alice@example.com"),
	}

	batch := &ReminderBatch{}
	classifyItemReminders(batch, item, nil, today, map[string]bool{})

	if len(batch.SingleReviewer) != 0 || len(batch.Skipped) != 0 {
		t.Fatalf("expected no candidates before the first notification, got %+v", batch)
	}
}

func TestClassifyItemRemindersSuppressAlreadySentKeys(t *testing.T) {
	today := date(2026, time.March, 5)
	item := &models.Item{
		ItemID:              3,
		ReviewerDue:         timeptr(today),
		ReviewerEmail:       strptr("alice@example.com"),
		ReviewerEmailSentAt: timeptr(date(2026, time.March, 2)),
	}
	sent := map[string]bool{
		reminderKey(3, models.ReminderRoleReviewer, models.ReminderStageDueToday, today, "alice@example.com"): true,
	}

	batch := &ReminderBatch{}
	classifyItemReminders(batch, item, nil, today, sent)

	if len(batch.SingleReviewer) != 0 {
		t.Fatalf("expected the sent key to suppress the candidate, got %d", len(batch.SingleReviewer))
	}
}

func TestClassifyItemRemindersMultiReviewerTargetsOutstandingOnly(t *testing.T) {
	today := date(2026, time.March, 5)
	item := &models.Item{
		ItemID:        9,
		MultiReviewer: true,
		ReviewerDue:   timeptr(date(2026, time.March, 4)),
	}
	assignments := []models.ReviewerAssignment{
		{
			AssignmentID: 1, ItemID: 9, ReviewerName: "Alice Wu", ReviewerEmail: "alice@example.com",
			NeedsResponse: true, EmailSentAt: timeptr(date(2026, time.March, 2)), ResponseAt: timeptr(date(2026, time.March, 3)),
		},
		{
			AssignmentID: 2, ItemID: 9, ReviewerName: "Bob Nash", ReviewerEmail: "bob@example.com",
			NeedsResponse: true, EmailSentAt: timeptr(date(2026, time.March, 2)),
		},
		{
			// Never notified; reminders only follow a first email.
			AssignmentID: 3, ItemID: 9, ReviewerName: "Cara Diaz", ReviewerEmail: "cara@example.com",
			NeedsResponse: true,
		},
	}

	batch := &ReminderBatch{}
	classifyItemReminders(batch, item, assignments, today, map[string]bool{})

	if len(batch.MultiReviewer) != 1 {
		t.Fatalf("expected one outstanding candidate, got %d", len(batch.MultiReviewer))
	}
	c := batch.MultiReviewer[0]
	if c.Assignment.ReviewerEmail != "bob@example.com" {
		t.Fatalf("expected the notified, unanswered reviewer, got %q", c.Assignment.ReviewerEmail)
	}
	if c.Stage != models.ReminderStageOverdue {
		t.Fatalf("expected overdue stage, got %q", c.Stage)
	}
}

func TestClassifyItemRemindersRecordSkipForMissingAssignmentEmail(t *testing.T) {
	today := date(2026, time.March, 5)
	item := &models.Item{
		ItemID:        9,
		Bucket:        "MAIN-ST",
		Identifier:    "SUB-0117",
		MultiReviewer: true,
		ReviewerDue:   timeptr(today),
	}
	assignments := []models.ReviewerAssignment{
		{AssignmentID: 1, ItemID: 9, ReviewerName: "Alice Wu", NeedsResponse: true, EmailSentAt: timeptr(date(2026, time.March, 2))},
	}

	batch := &ReminderBatch{}
	classifyItemReminders(batch, item, assignments, today, map[string]bool{})

	if len(batch.MultiReviewer) != 0 {
		t.Fatalf("expected no candidate without an email, got %d", len(batch.MultiReviewer))
	}
	if len(batch.Skipped) != 1 {
		t.Fatalf("expected one skip record, got %d", len(batch.Skipped))
	}
	s := batch.Skipped[0]
	if s.ItemID != 9 || s.Role != models.ReminderRoleReviewer {
		t.Fatalf("unexpected skip record %+v", s)
	}
	if s.Reason != "no reviewer email on assignment" {
		t.Fatalf("unexpected skip reason %q", s.Reason)
	}
}

func TestClassifyItemRemindersQcrWaitsForTheReviewerStage(t *testing.T) {
	today := date(2026, time.March, 5)
	item := &models.Item{
		ItemID:         3,
		QcrDue:         timeptr(today),
		QcrEmail:       strptr("quinn@example.com"),
		QcrEmailSentAt: timeptr(date(2026, time.March, 4)),
	}

	batch := &ReminderBatch{}
	classifyItemReminders(batch, item, nil, today, map[string]bool{})
	if len(batch.SingleReviewer) != 0 {
		t.Fatalf("expected no qcr candidate while the reviewer stage is open, got %d", len(batch.SingleReviewer))
	}

	item.ReviewerResponseAt = timeptr(date(2026, time.March, 4))
	batch = &ReminderBatch{}
	classifyItemReminders(batch, item, nil, today, map[string]bool{})
	if len(batch.SingleReviewer) != 1 {
		t.Fatalf("expected one qcr candidate, got %d", len(batch.SingleReviewer))
	}
	c := batch.SingleReviewer[0]
	if c.Role != models.ReminderRoleQcr || c.Recipient != "quinn@example.com" {
		t.Fatalf("unexpected qcr candidate %+v", c)
	}
}

func TestClassifyItemRemindersQcrOnMultiItemGetsItsOwnList(t *testing.T) {
	today := date(2026, time.March, 5)
	item := &models.Item{
		ItemID:         9,
		MultiReviewer:  true,
		QcrDue:         timeptr(today),
		QcrEmail:       strptr("quinn@example.com"),
		QcrEmailSentAt: timeptr(date(2026, time.March, 4)),
	}
	assignments := []models.ReviewerAssignment{
		{AssignmentID: 1, ItemID: 9, ReviewerName: "Alice Wu", ReviewerEmail: "alice@example.com",
			NeedsResponse: true, ResponseAt: timeptr(date(2026, time.March, 3))},
	}

	batch := &ReminderBatch{}
	classifyItemReminders(batch, item, assignments, today, map[string]bool{})

	if len(batch.MultiReviewerQcr) != 1 {
		t.Fatalf("expected one qcr candidate, got %d", len(batch.MultiReviewerQcr))
	}
	if batch.MultiReviewerQcr[0].Recipient != "quinn@example.com" {
		t.Fatalf("unexpected recipient %q", batch.MultiReviewerQcr[0].Recipient)
	}
}

func TestProcessAllReportsBusyWhenAnotherRunHoldsTheLock(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT GET_LOCK\\(\\?, 0\\)"),
			args:    []driver.Value{reminderRunLock},
			columns: []string{"GET_LOCK"},
			rows:    [][]driver.Value{{int64(0)}},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	service := NewReminderService(db, nil)
	_, err := service.ProcessAll(context.Background(), date(2026, time.March, 5))
	if !errors.Is(err, ErrReminderRunBusy) {
		t.Fatalf("expected ErrReminderRunBusy, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProcessAllReleasesTheLockOnAnEmptyRun(t *testing.T) {
	today := date(2026, time.March, 5)
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT GET_LOCK\\(\\?, 0\\)"),
			args:    []driver.Value{reminderRunLock},
			columns: []string{"GET_LOCK"},
			rows:    [][]driver.Value{{int64(1)}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `items` WHERE status <> \\? AND delete_at IS NULL"),
			args:    []driver.Value{models.StatusClosed},
			columns: []string{"item_id"},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT \\* FROM `reminder_log` WHERE due_date IN"),
			args:    []driver.Value{"2026-03-05", "2026-03-04"},
			columns: []string{"reminder_id"},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT RELEASE_LOCK\\(\\?\\)"),
			args:    []driver.Value{reminderRunLock},
			columns: []string{"RELEASE_LOCK"},
			rows:    [][]driver.Value{{int64(1)}},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	service := NewReminderService(db, nil)
	summary, err := service.ProcessAll(context.Background(), today)
	if err != nil {
		t.Fatalf("expected clean run, got %v", err)
	}
	if summary.SingleReviewerSent != 0 || summary.MultiReviewerSent != 0 || summary.QcrSent != 0 {
		t.Fatalf("expected nothing sent, got %+v", summary)
	}
	if len(summary.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", summary.Errors)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
