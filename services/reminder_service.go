package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"review-tracker-api/config"
	"review-tracker-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const reminderRunLock = "review_tracker_reminder_run"

// ClassifyDue maps a due date to its reminder window for a given day:
// due_today on the due date itself, overdue exactly one day past, and
// nothing otherwise. Escalation beyond day one is deliberately absent;
// the contract treats later follow-up as a human call.
func ClassifyDue(due, today time.Time) string {
	switch {
	case sameDate(due, today):
		return models.ReminderStageDueToday
	case sameDate(due, today.AddDate(0, 0, -1)):
		return models.ReminderStageOverdue
	default:
		return ""
	}
}

// ReviewerReminderCandidate is a reminder for the one contact of a
// single-reviewer item; Role says which stage (reviewer or qcr).
type ReviewerReminderCandidate struct {
	Item      models.Item `json:"item"`
	Role      string      `json:"role"`
	DueDate   time.Time   `json:"due_date"`
	Stage     string      `json:"stage"`
	Recipient string      `json:"recipient"`
}

// MultiReviewerReminderCandidate is a reminder for one outstanding
// reviewer on a multi-reviewer item.
type MultiReviewerReminderCandidate struct {
	Item       models.Item               `json:"item"`
	Assignment models.ReviewerAssignment `json:"assignment"`
	DueDate    time.Time                 `json:"due_date"`
	Stage      string                    `json:"stage"`
}

// QcrReminderCandidate is a QCR reminder on a multi-reviewer item.
type QcrReminderCandidate struct {
	Item      models.Item `json:"item"`
	DueDate   time.Time   `json:"due_date"`
	Stage     string      `json:"stage"`
	Recipient string      `json:"recipient"`
}

// SkippedReminder reports why an otherwise-due candidate was not
// emitted. Skips are per item and never fail the batch.
type SkippedReminder struct {
	ItemID     int    `json:"item_id"`
	Bucket     string `json:"bucket"`
	Identifier string `json:"identifier"`
	Role       string `json:"role"`
	Reason     string `json:"reason"`
}

// ReminderBatch is the classified result of one scheduling pass.
type ReminderBatch struct {
	SingleReviewer   []ReviewerReminderCandidate      `json:"single_reviewer"`
	MultiReviewer    []MultiReviewerReminderCandidate `json:"multi_reviewer"`
	MultiReviewerQcr []QcrReminderCandidate           `json:"multi_reviewer_qcr"`
	Skipped          []SkippedReminder                `json:"skipped"`
}

// ReminderRunSummary is the outcome of a ProcessAll run.
type ReminderRunSummary struct {
	SingleReviewerSent int      `json:"single_reviewer_sent"`
	MultiReviewerSent  int      `json:"multi_reviewer_sent"`
	QcrSent            int      `json:"qcr_sent"`
	Suppressed         int      `json:"suppressed"`
	Skipped            int      `json:"skipped"`
	Errors             []string `json:"errors,omitempty"`
}

// ReminderService determines who needs a nudge and logs what was sent.
// It only ever writes reminder_log rows; item state belongs to the
// workflow service.
type ReminderService struct {
	db       *gorm.DB
	notifier Notifier
}

func NewReminderService(db *gorm.DB, notifier Notifier) *ReminderService {
	if db == nil {
		db = config.DB
	}
	if notifier == nil {
		notifier = NewMailNotifier(db)
	}
	return &ReminderService{db: db, notifier: notifier}
}

// ItemsNeedingReminders classifies every open item against today. Pure
// read: calling it twice returns the same candidates twice; only a
// confirmed send writes the log entry that suppresses a candidate.
func (s *ReminderService) ItemsNeedingReminders(ctx context.Context, today time.Time) (*ReminderBatch, error) {
	var items []models.Item
	if err := s.db.WithContext(ctx).
		Where("status <> ? AND delete_at IS NULL", models.StatusClosed).
		Order("item_id").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load open items: %w", err)
	}

	multiIDs := make([]int, 0, len(items))
	for i := range items {
		if items[i].MultiReviewer {
			multiIDs = append(multiIDs, items[i].ItemID)
		}
	}
	assignmentsByItem := make(map[int][]models.ReviewerAssignment)
	if len(multiIDs) > 0 {
		var assignments []models.ReviewerAssignment
		if err := s.db.WithContext(ctx).
			Where("item_id IN ?", multiIDs).
			Order("assignment_id").
			Find(&assignments).Error; err != nil {
			return nil, fmt.Errorf("load assignments: %w", err)
		}
		for _, a := range assignments {
			assignmentsByItem[a.ItemID] = append(assignmentsByItem[a.ItemID], a)
		}
	}

	sent, err := s.loadSentKeys(ctx, today)
	if err != nil {
		return nil, err
	}

	batch := &ReminderBatch{}
	for i := range items {
		item := &items[i]
		assignments := assignmentsByItem[item.ItemID]
		item.Assignments = assignments
		classifyItemReminders(batch, item, assignments, today, sent)
	}
	return batch, nil
}

// loadSentKeys fetches the dedup keys that could suppress today's
// candidates. Candidates only ever carry due dates equal to today or
// yesterday, so two dates bound the fetch.
func (s *ReminderService) loadSentKeys(ctx context.Context, today time.Time) (map[string]bool, error) {
	dates := []string{dateKey(today), dateKey(today.AddDate(0, 0, -1))}
	var logs []models.ReminderLog
	if err := s.db.WithContext(ctx).
		Where("due_date IN ?", dates).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("load reminder log: %w", err)
	}
	sent := make(map[string]bool, len(logs))
	for _, l := range logs {
		sent[reminderKey(l.ItemID, l.Role, l.Stage, l.DueDate, l.RecipientEmail)] = true
	}
	return sent, nil
}

func reminderKey(itemID int, role, stage string, due time.Time, recipient string) string {
	return fmt.Sprintf("%d|%s|%s|%s|%s", itemID, role, stage, dateKey(due), recipient)
}

// classifyItemReminders appends this item's due candidates to the batch.
// Eligibility: the stage was notified at least once, no response yet,
// and no log entry exists for the dedup key.
func classifyItemReminders(batch *ReminderBatch, item *models.Item, assignments []models.ReviewerAssignment, today time.Time, sent map[string]bool) {
	// Reviewer stage.
	if item.ReviewerDue != nil {
		stage := ClassifyDue(*item.ReviewerDue, today)
		if stage != "" && !ReviewerStageComplete(item, assignments) {
			if item.MultiReviewer {
				for _, a := range assignments {
					if !a.NeedsResponse || a.Responded() || a.EmailSentAt == nil {
						continue
					}
					if a.ReviewerEmail == "" {
						batch.Skipped = append(batch.Skipped, SkippedReminder{
							ItemID: item.ItemID, Bucket: item.Bucket, Identifier: item.Identifier,
							Role: models.ReminderRoleReviewer, Reason: "no reviewer email on assignment",
						})
						continue
					}
					if sent[reminderKey(item.ItemID, models.ReminderRoleReviewer, stage, *item.ReviewerDue, a.ReviewerEmail)] {
						continue
					}
					batch.MultiReviewer = append(batch.MultiReviewer, MultiReviewerReminderCandidate{
						Item: *item, Assignment: a, DueDate: *item.ReviewerDue, Stage: stage,
					})
				}
			} else if item.ReviewerResponseAt == nil && item.ReviewerEmailSentAt != nil {
				if item.ReviewerEmail == nil || *item.ReviewerEmail == "" {
					batch.Skipped = append(batch.Skipped, SkippedReminder{
						ItemID: item.ItemID, Bucket: item.Bucket, Identifier: item.Identifier,
						Role: models.ReminderRoleReviewer, Reason: "no reviewer email",
					})
				} else if !sent[reminderKey(item.ItemID, models.ReminderRoleReviewer, stage, *item.ReviewerDue, *item.ReviewerEmail)] {
					batch.SingleReviewer = append(batch.SingleReviewer, ReviewerReminderCandidate{
						Item: *item, Role: models.ReminderRoleReviewer,
						DueDate: *item.ReviewerDue, Stage: stage, Recipient: *item.ReviewerEmail,
					})
				}
			}
		}
	}

	// QCR stage: only once every required reviewer answered.
	if item.QcrDue == nil || item.QcrEmailSentAt == nil || item.QcrResponseAt != nil {
		return
	}
	stage := ClassifyDue(*item.QcrDue, today)
	if stage == "" || !ReviewerStageComplete(item, assignments) {
		return
	}
	if item.QcrEmail == nil || *item.QcrEmail == "" {
		batch.Skipped = append(batch.Skipped, SkippedReminder{
			ItemID: item.ItemID, Bucket: item.Bucket, Identifier: item.Identifier,
			Role: models.ReminderRoleQcr, Reason: "no qcr email",
		})
		return
	}
	if sent[reminderKey(item.ItemID, models.ReminderRoleQcr, stage, *item.QcrDue, *item.QcrEmail)] {
		return
	}
	if item.MultiReviewer {
		batch.MultiReviewerQcr = append(batch.MultiReviewerQcr, QcrReminderCandidate{
			Item: *item, DueDate: *item.QcrDue, Stage: stage, Recipient: *item.QcrEmail,
		})
	} else {
		batch.SingleReviewer = append(batch.SingleReviewer, ReviewerReminderCandidate{
			Item: *item, Role: models.ReminderRoleQcr,
			DueDate: *item.QcrDue, Stage: stage, Recipient: *item.QcrEmail,
		})
	}
}

// ProcessAll runs one reminder pass: classify, send, log. The MySQL
// named lock keeps overlapping runs (cron plus manual trigger) from
// double-sending; the unique key on reminder_log backs that up. A send
// failure leaves no log entry, so the item stays eligible next pass.
func (s *ReminderService) ProcessAll(ctx context.Context, today time.Time) (*ReminderRunSummary, error) {
	release, err := s.acquireRunLock(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(); err != nil {
			log.Printf("reminders: releasing run lock: %v", err)
		}
	}()

	batch, err := s.ItemsNeedingReminders(ctx, today)
	if err != nil {
		return nil, err
	}

	summary := &ReminderRunSummary{Skipped: len(batch.Skipped)}
	for _, c := range batch.SingleReviewer {
		err := s.notifier.SendReviewerReminder(ctx, &c.Item, c.Role, c.DueDate, c.Stage)
		if s.afterSend(ctx, summary, err, c.Item.ItemID, c.Role, c.Stage, c.DueDate, c.Recipient) {
			summary.SingleReviewerSent++
		}
	}
	for _, c := range batch.MultiReviewer {
		err := s.notifier.SendMultiReviewerReminder(ctx, &c.Item, &c.Assignment, c.DueDate, c.Stage)
		if s.afterSend(ctx, summary, err, c.Item.ItemID, models.ReminderRoleReviewer, c.Stage, c.DueDate, c.Assignment.ReviewerEmail) {
			summary.MultiReviewerSent++
		}
	}
	for _, c := range batch.MultiReviewerQcr {
		err := s.notifier.SendQcrReminder(ctx, &c.Item, c.DueDate, c.Stage)
		if s.afterSend(ctx, summary, err, c.Item.ItemID, models.ReminderRoleQcr, c.Stage, c.DueDate, c.Recipient) {
			summary.QcrSent++
		}
	}

	log.Printf("reminders: run for %s: single=%d multi=%d qcr=%d suppressed=%d skipped=%d errors=%d",
		dateKey(today), summary.SingleReviewerSent, summary.MultiReviewerSent, summary.QcrSent,
		summary.Suppressed, summary.Skipped, len(summary.Errors))
	return summary, nil
}

// afterSend records the outcome of one reminder attempt and reports
// whether it counts as sent.
func (s *ReminderService) afterSend(ctx context.Context, summary *ReminderRunSummary, sendErr error, itemID int, role, stage string, due time.Time, recipient string) bool {
	if sendErr != nil {
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("item %d %s %s to %s: %v", itemID, role, stage, recipient, sendErr))
		return false
	}
	logged, err := s.logReminderSent(ctx, itemID, role, stage, due, recipient)
	if err != nil {
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("item %d %s %s to %s: log write: %v", itemID, role, stage, recipient, err))
		return true // the mail went out; only the bookkeeping failed
	}
	if !logged {
		// Lost a race with another writer after our send. Nothing to
		// undo; the key now exists either way.
		summary.Suppressed++
	}
	return true
}

// logReminderSent inserts the dedup entry. ON CONFLICT DO NOTHING makes
// the reservation atomic; false means the key already existed.
func (s *ReminderService) logReminderSent(ctx context.Context, itemID int, role, stage string, due time.Time, recipient string) (bool, error) {
	entry := models.ReminderLog{
		ItemID:         itemID,
		Role:           role,
		Stage:          stage,
		DueDate:        due,
		RecipientEmail: recipient,
		SentAt:         time.Now(),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *ReminderService) acquireRunLock(ctx context.Context) (func() error, error) {
	var ok int
	if err := s.db.WithContext(ctx).Raw("SELECT GET_LOCK(?, 0)", reminderRunLock).Scan(&ok).Error; err != nil {
		return nil, err
	}
	if ok != 1 {
		return nil, ErrReminderRunBusy
	}
	return func() error {
		var released int
		return s.db.WithContext(ctx).Raw("SELECT RELEASE_LOCK(?)", reminderRunLock).Scan(&released).Error
	}, nil
}
