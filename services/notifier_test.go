package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"review-tracker-api/models"
)

func TestResponseLinkRoutesByRole(t *testing.T) {
	t.Setenv("APP_BASE_URL", "https://review.example.com/")

	got := responseLink(models.ReminderRoleReviewer, "tok-1")
	if got != "https://review.example.com/api/v1/respond/reviewer?token=tok-1" {
		t.Fatalf("unexpected reviewer link %q", got)
	}
	got = responseLink(models.ReminderRoleQcr, "tok-2")
	if got != "https://review.example.com/api/v1/respond/qcr?token=tok-2" {
		t.Fatalf("unexpected qcr link %q", got)
	}
}

func TestApplyPlaceholdersReplacesEveryOccurrence(t *testing.T) {
	data := map[string]string{"identifier": "RFI-0042", "bucket": "MAIN-ST"}
	got := applyPlaceholders("{{identifier}} in {{bucket}}: {{identifier}} {{unknown}}", data)
	if got != "RFI-0042 in MAIN-ST: RFI-0042 {{unknown}}" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestReminderContentOverdueSubjectAndLink(t *testing.T) {
	t.Setenv("APP_BASE_URL", "https://review.example.com")

	item := &models.Item{
		Identifier: "RFI-0042",
		Bucket:     "MAIN-ST",
		Category:   models.CategoryRFI,
		Title:      "Door hardware conflict",
		Priority:   models.PriorityHigh,
	}
	due := date(2026, time.March, 4)
	subject, body := reminderContent(item, "Alice Wu", models.ReminderRoleReviewer, "tok-1", due, models.ReminderStageOverdue)

	if subject != "[RFI RFI-0042] OVERDUE: review response was due 2026-03-04" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "was due yesterday, 2026-03-04") {
		t.Fatalf("expected overdue wording in body %q", body)
	}
	if !strings.Contains(body, "https://review.example.com/api/v1/respond/reviewer?token=tok-1") {
		t.Fatalf("expected response link in body %q", body)
	}
}

func TestReminderContentQcrDueToday(t *testing.T) {
	item := &models.Item{
		Identifier: "SUB-0117",
		Bucket:     "MAIN-ST",
		Category:   models.CategorySubmittal,
		Title:      "Storefront shop drawings",
		Priority:   models.PriorityMedium,
	}
	due := date(2026, time.March, 5)
	subject, body := reminderContent(item, "Quinn Park", models.ReminderRoleQcr, "tok-2", due, models.ReminderStageDueToday)

	if subject != "[Submittal SUB-0117] Reminder: QC review due today" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "is due today, 2026-03-05") {
		t.Fatalf("expected due-today wording in body %q", body)
	}
	if !strings.Contains(body, "/respond/qcr?token=tok-2") {
		t.Fatalf("expected qcr link in body %q", body)
	}
}

func TestReminderContentWithoutTokenPointsAtTheCoordinator(t *testing.T) {
	item := &models.Item{Identifier: "RFI-0042", Bucket: "MAIN-ST", Category: models.CategoryRFI}
	_, body := reminderContent(item, "Alice Wu", models.ReminderRoleReviewer, "", date(2026, time.March, 5), models.ReminderStageDueToday)
	if !strings.Contains(body, "(ask the coordinator for a fresh response link)") {
		t.Fatalf("expected coordinator fallback in body %q", body)
	}
}

func TestBuildFormalEmailHTMLEscapesAndBreaks(t *testing.T) {
	html := buildFormalEmailHTML("Subject <1>", "Alice Wu", "line one\nline two")
	if !strings.Contains(html, "Subject &lt;1&gt;") {
		t.Fatalf("expected escaped subject in %q", html)
	}
	if !strings.Contains(html, "Dear Alice Wu,") {
		t.Fatalf("expected greeting in %q", html)
	}
	if !strings.Contains(html, "line one<br />line two") {
		t.Fatalf("expected line breaks in %q", html)
	}

	html = buildFormalEmailHTML("Subject", "", "body")
	if !strings.Contains(html, "Dear Reviewer,") {
		t.Fatalf("expected default greeting in %q", html)
	}
}

func TestReviewerSummaryCoversBothModes(t *testing.T) {
	single := &models.Item{
		ReviewerResponseCategory: strptr("Approved"),
		ReviewerResponseNotes:    strptr("No exceptions taken."),
	}
	if got := reviewerSummary(single); got != "Approved\nNo exceptions taken." {
		t.Fatalf("unexpected single summary %q", got)
	}

	if got := reviewerSummary(&models.Item{}); got != "(no response recorded)" {
		t.Fatalf("expected placeholder summary, got %q", got)
	}

	multi := &models.Item{
		MultiReviewer: true,
		Assignments: []models.ReviewerAssignment{
			{
				ReviewerName:     "Alice Wu",
				NeedsResponse:    true,
				ResponseAt:       timeptr(date(2026, time.March, 4)),
				ResponseCategory: strptr("Approved"),
				ResponseNotes:    strptr("No exceptions taken."),
			},
		},
	}
	if got := reviewerSummary(multi); got != "Alice Wu (Approved):\nNo exceptions taken." {
		t.Fatalf("unexpected multi summary %q", got)
	}
}

func TestSendReviewerReminderDeliversAndRecords(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO `notifications`"),
			result:  scriptedResult{lastInsertID: 1, rowsAffected: 1},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	oldSend := sendMailFunc
	defer func() { sendMailFunc = oldSend }()
	var gotTo []string
	var gotSubject string
	sendMailFunc = func(to []string, subject, html string) error {
		gotTo = to
		gotSubject = subject
		return nil
	}

	n := &mailNotifier{db: db}
	item := &models.Item{
		ItemID:             3,
		Identifier:         "RFI-0042",
		Bucket:             "MAIN-ST",
		Category:           models.CategoryRFI,
		Title:              "Door hardware conflict",
		Priority:           models.PriorityHigh,
		ReviewerName:       strptr("Alice Wu"),
		ReviewerEmail:      strptr("alice@example.com"),
		EmailTokenReviewer: strptr("tok-1"),
	}
	err := n.SendReviewerReminder(context.Background(), item, models.ReminderRoleReviewer, date(2026, time.March, 5), models.ReminderStageDueToday)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(gotTo) != 1 || gotTo[0] != "alice@example.com" {
		t.Fatalf("unexpected recipients %v", gotTo)
	}
	if gotSubject != "[RFI RFI-0042] Reminder: review response due today" {
		t.Fatalf("unexpected subject %q", gotSubject)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("expected a notifications row: %v", err)
	}
}

func TestSendReviewerReminderRecordsFailuresToo(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO `notifications`"),
			result:  scriptedResult{lastInsertID: 2, rowsAffected: 1},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	oldSend := sendMailFunc
	defer func() { sendMailFunc = oldSend }()
	sendMailFunc = func(to []string, subject, html string) error {
		return errors.New("smtp not configured")
	}

	n := &mailNotifier{db: db}
	item := &models.Item{
		ItemID:             3,
		Identifier:         "RFI-0042",
		Bucket:             "MAIN-ST",
		Category:           models.CategoryRFI,
		ReviewerEmail:      strptr("alice@example.com"),
		EmailTokenReviewer: strptr("tok-1"),
	}
	err := n.SendReviewerReminder(context.Background(), item, models.ReminderRoleReviewer, date(2026, time.March, 5), models.ReminderStageDueToday)
	if err == nil || !strings.Contains(err.Error(), "smtp not configured") {
		t.Fatalf("expected the send error back, got %v", err)
	}
	// The failed attempt still lands in the audit trail.
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("expected a notifications row: %v", err)
	}
}

func TestSendQcrReminderRequiresAnEmail(t *testing.T) {
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()

	n := &mailNotifier{db: db}
	err := n.SendQcrReminder(context.Background(), &models.Item{ItemID: 3}, date(2026, time.March, 5), models.ReminderStageDueToday)
	if err == nil || !strings.Contains(err.Error(), "no qcr email") {
		t.Fatalf("expected missing-email error, got %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("missing email should not touch the database: %v", err)
	}
}
