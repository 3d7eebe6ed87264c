package services

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"os"
	"strings"
	"time"

	"review-tracker-api/config"
	"review-tracker-api/models"

	"gorm.io/gorm"
)

// Notifier delivers workflow email. Implementations must be safe for
// concurrent use; failures are soft and reported to the caller, which
// decides whether to record or retry. Swappable so the reminder engine
// can run against a fake in tests.
type Notifier interface {
	SendReviewerAssignment(ctx context.Context, item *models.Item, assignment *models.ReviewerAssignment) error
	SendQcrAssignment(ctx context.Context, item *models.Item) error
	SendQcrDecision(ctx context.Context, item *models.Item) error
	SendReviewerReminder(ctx context.Context, item *models.Item, role string, due time.Time, stage string) error
	SendMultiReviewerReminder(ctx context.Context, item *models.Item, assignment *models.ReviewerAssignment, due time.Time, stage string) error
	SendQcrReminder(ctx context.Context, item *models.Item, due time.Time, stage string) error
}

// sendMailFunc is the delivery seam; tests swap it out.
var sendMailFunc = config.SendMail

// mailNotifier sends through SMTP and writes one notifications row per
// attempt, success or not.
type mailNotifier struct {
	db *gorm.DB
}

func NewMailNotifier(db *gorm.DB) Notifier {
	if db == nil {
		db = config.DB
	}
	return &mailNotifier{db: db}
}

func (n *mailNotifier) SendReviewerAssignment(ctx context.Context, item *models.Item, assignment *models.ReviewerAssignment) error {
	name, email, token := reviewerContact(item, assignment)
	if email == "" {
		return fmt.Errorf("no reviewer email for item %d", item.ItemID)
	}
	if token == "" {
		return fmt.Errorf("no reviewer response token for item %d", item.ItemID)
	}
	data := itemPlaceholders(item)
	data["reviewer_name"] = name
	data["link"] = responseLink("reviewer", token)
	if item.ReviewerDue != nil {
		data["due"] = dateKey(*item.ReviewerDue)
	}
	subject := applyPlaceholders("[{{category}} {{identifier}}] Review requested: {{title}}", data)
	body := applyPlaceholders(
		"A {{category}} has been assigned to you for review.\n\n"+
			"Item: {{identifier}} ({{bucket}})\n"+
			"Title: {{title}}\n"+
			"Priority: {{priority}}\n"+
			"Review due: {{due}}\n\n"+
			"Submit your response here:\n{{link}}", data)
	return n.deliver(ctx, item, "reviewer_assignment", email, subject, buildFormalEmailHTML(subject, name, body))
}

func (n *mailNotifier) SendQcrAssignment(ctx context.Context, item *models.Item) error {
	if item.QcrEmail == nil || *item.QcrEmail == "" {
		return fmt.Errorf("no qcr email for item %d", item.ItemID)
	}
	if item.EmailTokenQcr == nil || *item.EmailTokenQcr == "" {
		return fmt.Errorf("no qcr response token for item %d", item.ItemID)
	}
	data := itemPlaceholders(item)
	data["qcr_name"] = strValue(item.QcrName)
	data["link"] = responseLink("qcr", *item.EmailTokenQcr)
	if item.QcrDue != nil {
		data["due"] = dateKey(*item.QcrDue)
	}
	data["responses"] = reviewerSummary(item)
	subject := applyPlaceholders("[{{category}} {{identifier}}] QC review requested: {{title}}", data)
	body := applyPlaceholders(
		"The review stage for {{identifier}} ({{bucket}}) is complete and "+
			"awaits your quality-control review.\n\n"+
			"Title: {{title}}\n"+
			"QC review due: {{due}}\n\n"+
			"Reviewer response:\n{{responses}}\n\n"+
			"Record your decision here:\n{{link}}", data)
	return n.deliver(ctx, item, "qcr_assignment", *item.QcrEmail, subject, buildFormalEmailHTML(subject, strValue(item.QcrName), body))
}

// SendQcrDecision tells the reviewer(s) how QC ruled on their response.
// A send-back message carries the freshly rotated response link; approve
// and modify messages show the final text.
func (n *mailNotifier) SendQcrDecision(ctx context.Context, item *models.Item) error {
	var lastErr error
	if item.MultiReviewer {
		for i := range item.Assignments {
			a := &item.Assignments[i]
			if !a.NeedsResponse || a.ReviewerEmail == "" {
				continue
			}
			if err := n.sendDecisionTo(ctx, item, a.ReviewerName, a.ReviewerEmail, strValue(a.EmailToken)); err != nil {
				lastErr = err
			}
		}
		return lastErr
	}
	name, email, token := reviewerContact(item, nil)
	if email == "" {
		return fmt.Errorf("no reviewer email for item %d", item.ItemID)
	}
	return n.sendDecisionTo(ctx, item, name, email, token)
}

func (n *mailNotifier) sendDecisionTo(ctx context.Context, item *models.Item, name, email, token string) error {
	action := strValue(item.QcrAction)
	version := item.ReviewerResponseVersion

	data := itemPlaceholders(item)
	data["name"] = name
	data["version"] = fmt.Sprintf("%d", version)
	data["qcr_notes"] = strValue(item.QcrNotes)
	if data["qcr_notes"] == "" {
		data["qcr_notes"] = "(no notes provided)"
	}

	var subject, body string
	switch action {
	case models.QcrActionApprove:
		subject = applyPlaceholders("[{{category}} {{identifier}}] Your response (v{{version}}) was approved", data)
		body = applyPlaceholders(
			"Your response (v{{version}}) for {{identifier}} ({{bucket}}) was approved by QC.\n\n"+
				"QC notes:\n{{qcr_notes}}", data)
	case models.QcrActionModify:
		data["final_text"] = strValue(item.FinalText)
		subject = applyPlaceholders("[{{category}} {{identifier}}] Your response (v{{version}}) was modified by QC", data)
		body = applyPlaceholders(
			"Your response (v{{version}}) for {{identifier}} ({{bucket}}) was modified by QC and is now final.\n\n"+
				"Final response:\n{{final_text}}\n\n"+
				"QC notes:\n{{qcr_notes}}", data)
	case models.QcrActionSendBack:
		data["link"] = responseLink(models.ReminderRoleReviewer, token)
		data["next_version"] = fmt.Sprintf("%d", version+1)
		subject = applyPlaceholders("[{{category}} {{identifier}}] Revisions requested on v{{version}}", data)
		body = applyPlaceholders(
			"Your response (v{{version}}) for {{identifier}} ({{bucket}}) was returned for revision by QC.\n\n"+
				"QC notes:\n{{qcr_notes}}\n\n"+
				"Submit your revised response (v{{next_version}}) here:\n{{link}}", data)
	default:
		return fmt.Errorf("no qcr decision recorded for item %d", item.ItemID)
	}
	return n.deliver(ctx, item, "qcr_decision", email, subject, buildFormalEmailHTML(subject, name, body))
}

func (n *mailNotifier) SendReviewerReminder(ctx context.Context, item *models.Item, role string, due time.Time, stage string) error {
	var name, email, token, kind string
	if role == models.ReminderRoleQcr {
		name, email = strValue(item.QcrName), strValue(item.QcrEmail)
		token = strValue(item.EmailTokenQcr)
		kind = "qcr_reminder"
	} else {
		name, email, token = reviewerContact(item, nil)
		kind = "reviewer_reminder"
	}
	if email == "" {
		return fmt.Errorf("no %s email for item %d", role, item.ItemID)
	}
	subject, body := reminderContent(item, name, role, token, due, stage)
	return n.deliver(ctx, item, kind, email, subject, buildFormalEmailHTML(subject, name, body))
}

func (n *mailNotifier) SendMultiReviewerReminder(ctx context.Context, item *models.Item, assignment *models.ReviewerAssignment, due time.Time, stage string) error {
	if assignment.ReviewerEmail == "" {
		return fmt.Errorf("no reviewer email on assignment %d", assignment.AssignmentID)
	}
	subject, body := reminderContent(item, assignment.ReviewerName,
		models.ReminderRoleReviewer, strValue(assignment.EmailToken), due, stage)
	return n.deliver(ctx, item, "reviewer_reminder", assignment.ReviewerEmail, subject,
		buildFormalEmailHTML(subject, assignment.ReviewerName, body))
}

func (n *mailNotifier) SendQcrReminder(ctx context.Context, item *models.Item, due time.Time, stage string) error {
	if item.QcrEmail == nil || *item.QcrEmail == "" {
		return fmt.Errorf("no qcr email for item %d", item.ItemID)
	}
	subject, body := reminderContent(item, strValue(item.QcrName),
		models.ReminderRoleQcr, strValue(item.EmailTokenQcr), due, stage)
	return n.deliver(ctx, item, "qcr_reminder", *item.QcrEmail, subject,
		buildFormalEmailHTML(subject, strValue(item.QcrName), body))
}

// deliver sends one message and records the attempt. The notifications
// row is the audit trail; a failed insert never fails the send.
func (n *mailNotifier) deliver(ctx context.Context, item *models.Item, kind, recipient, subject, html string) error {
	sendErr := sendMailFunc([]string{recipient}, subject, html)

	now := time.Now()
	itemID := item.ItemID
	entry := models.Notification{
		ItemID:    &itemID,
		Kind:      kind,
		Recipient: recipient,
		Subject:   subject,
		Status:    models.NotificationSent,
		SentAt:    &now,
		CreateAt:  now,
	}
	if sendErr != nil {
		entry.Status = models.NotificationFailed
		msg := sendErr.Error()
		entry.Error = &msg
		entry.SentAt = nil
	}
	if err := n.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Printf("notifier: recording %s to %s: %v", kind, recipient, err)
	}
	if sendErr != nil {
		log.Printf("notifier: %s to %s failed: %v", kind, recipient, sendErr)
	}
	return sendErr
}

func reminderContent(item *models.Item, name, role, token string, due time.Time, stage string) (string, string) {
	data := itemPlaceholders(item)
	data["name"] = name
	data["due"] = dateKey(due)
	data["role_label"] = "review response"
	if role == models.ReminderRoleQcr {
		data["role_label"] = "QC review"
	}
	if token != "" {
		data["link"] = responseLink(role, token)
	} else {
		data["link"] = "(ask the coordinator for a fresh response link)"
	}

	var subject string
	if stage == models.ReminderStageOverdue {
		subject = applyPlaceholders("[{{category}} {{identifier}}] OVERDUE: {{role_label}} was due {{due}}", data)
		data["when"] = "was due yesterday, " + data["due"]
	} else {
		subject = applyPlaceholders("[{{category}} {{identifier}}] Reminder: {{role_label}} due today", data)
		data["when"] = "is due today, " + data["due"]
	}
	body := applyPlaceholders(
		"Your {{role_label}} for {{identifier}} ({{bucket}}) {{when}}.\n\n"+
			"Title: {{title}}\n"+
			"Priority: {{priority}}\n\n"+
			"Respond here:\n{{link}}", data)
	return subject, body
}

func itemPlaceholders(item *models.Item) map[string]string {
	return map[string]string{
		"identifier": item.Identifier,
		"bucket":     item.Bucket,
		"category":   item.Category,
		"title":      item.Title,
		"priority":   item.Priority,
		"due":        "",
	}
}

func applyPlaceholders(text string, data map[string]string) string {
	result := text
	for key, value := range data {
		placeholder := "{{" + key + "}}"
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}

// reviewerSummary renders what the QCR is reviewing: the aggregated
// per-reviewer responses for multi items, the single response otherwise.
func reviewerSummary(item *models.Item) string {
	if item.MultiReviewer {
		return AggregateReviewerResponses(item.Assignments)
	}
	category := strValue(item.ReviewerResponseCategory)
	notes := strValue(item.ReviewerResponseNotes)
	if category == "" && notes == "" {
		return "(no response recorded)"
	}
	return strings.TrimSpace(category + "\n" + notes)
}

func reviewerContact(item *models.Item, assignment *models.ReviewerAssignment) (name, email, token string) {
	if assignment != nil {
		return assignment.ReviewerName, assignment.ReviewerEmail, strValue(assignment.EmailToken)
	}
	return strValue(item.ReviewerName), strValue(item.ReviewerEmail), strValue(item.EmailTokenReviewer)
}

func responseLink(role, token string) string {
	base := strings.TrimRight(os.Getenv("APP_BASE_URL"), "/")
	if base == "" {
		base = "http://localhost:8080"
	}
	if role == models.ReminderRoleQcr {
		return fmt.Sprintf("%s/api/v1/respond/qcr?token=%s", base, token)
	}
	return fmt.Sprintf("%s/api/v1/respond/reviewer?token=%s", base, token)
}

func buildFormalEmailHTML(subject, recipientName, message string) string {
	name := strings.TrimSpace(recipientName)
	if name == "" {
		name = "Reviewer"
	}

	escapedSubject := template.HTMLEscapeString(subject)
	escapedGreeting := template.HTMLEscapeString(fmt.Sprintf("Dear %s,", name))
	escapedMessage := template.HTMLEscapeString(strings.TrimSpace(message))
	escapedMessage = strings.ReplaceAll(strings.ReplaceAll(escapedMessage, "\r\n", "\n"), "\r", "\n")
	escapedMessage = strings.ReplaceAll(escapedMessage, "\n", "<br />")

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
</head>
<body style="margin:0;padding:0;background-color:#f9fafb;font-family:'Segoe UI',Tahoma,Arial,sans-serif;">
<div style="max-width:640px;margin:0 auto;padding:24px 20px;">
  <div style="background-color:#ffffff;border:1px solid #e5e7eb;border-radius:12px;padding:24px 24px 28px 24px;">
    <p style="margin:0 0 16px 0;font-size:16px;line-height:1.7;color:#111827;">%s</p>
    <p style="margin:0 0 0 0;font-size:16px;line-height:1.7;color:#111827;word-break:break-word;">%s</p>
  </div>
</div>
</body>
</html>`, escapedSubject, escapedGreeting, escapedMessage)
}

// NotifyQcrOnReviewComplete sends the QCR their assignment email after a
// reviewer response completed the stage, then records the send. Called
// by the delivery channels after a successful apply; ingestion itself
// never sends. Safe to call when nothing is due, it just returns.
func NotifyQcrOnReviewComplete(ctx context.Context, db *gorm.DB, notifier Notifier, itemID int) error {
	if db == nil {
		db = config.DB
	}
	var item models.Item
	if err := db.WithContext(ctx).Preload("Assignments").
		Where("item_id = ? AND delete_at IS NULL", itemID).
		First(&item).Error; err != nil {
		return err
	}
	if item.QcrEmail == nil || *item.QcrEmail == "" {
		return nil
	}
	if item.QcrResponseAt != nil || !ReviewerStageComplete(&item, item.Assignments) {
		return nil
	}
	if err := notifier.SendQcrAssignment(ctx, &item); err != nil {
		return err
	}
	_, err := NewWorkflowService(db).RecordNotificationSent(ctx, item.ItemID, models.ReminderRoleQcr, *item.QcrEmail, time.Now())
	return err
}

// NotifyReviewerOfQcrDecision sends the decision email(s) for the QCR
// verdict currently on the item. Called after a successful QCR apply.
func NotifyReviewerOfQcrDecision(ctx context.Context, db *gorm.DB, notifier Notifier, itemID int) error {
	if db == nil {
		db = config.DB
	}
	var item models.Item
	if err := db.WithContext(ctx).Preload("Assignments").
		Where("item_id = ? AND delete_at IS NULL", itemID).
		First(&item).Error; err != nil {
		return err
	}
	if item.QcrAction == nil {
		return nil
	}
	return notifier.SendQcrDecision(ctx, &item)
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
