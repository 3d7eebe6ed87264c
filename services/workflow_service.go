package services

import (
	"context"
	"fmt"
	"time"

	"review-tracker-api/config"
	"review-tracker-api/models"
	"review-tracker-api/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkflowService owns every write to item status and response fields.
// Response ingestion and the controllers go through it; the reminder
// scheduler only reads. All mutating operations run inside a transaction
// that takes a row lock on the item first, so concurrent appliers for
// the same item serialize and check-then-mutate sequences stay sound.
type WorkflowService struct {
	db  *gorm.DB
	cal *Calendar
}

func NewWorkflowService(db *gorm.DB) *WorkflowService {
	if db == nil {
		db = config.DB
	}
	return &WorkflowService{db: db, cal: NewCalendar()}
}

// ReviewerInput names one reviewer on a multi-reviewer item.
type ReviewerInput struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	NeedsResponse bool   `json:"needs_response"`
}

type CreateItemInput struct {
	Bucket        string          `json:"bucket"`
	Identifier    string          `json:"identifier"`
	Category      string          `json:"category"`
	Title         string          `json:"title"`
	Description   *string         `json:"description"`
	Priority      string          `json:"priority"`
	DateReceived  time.Time       `json:"date_received"`
	ContractorDue time.Time       `json:"contractor_due"`
	MultiReviewer bool            `json:"multi_reviewer"`
	ReviewerName  string          `json:"reviewer_name"`
	ReviewerEmail string          `json:"reviewer_email"`
	Reviewers     []ReviewerInput `json:"reviewers"`
	QcrName       string          `json:"qcr_name"`
	QcrEmail      string          `json:"qcr_email"`
	Actor         string          `json:"-"`
}

// CreateItem validates a normalized new-item record, computes the stage
// due dates and persists the item in Unassigned or Assigned state.
func (s *WorkflowService) CreateItem(ctx context.Context, in CreateItemInput) (*models.Item, error) {
	if in.Bucket == "" || in.Identifier == "" || in.Title == "" {
		return nil, fmt.Errorf("bucket, identifier and title are required")
	}
	if in.Category != models.CategoryRFI && in.Category != models.CategorySubmittal {
		return nil, fmt.Errorf("unknown category %q", in.Category)
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if in.DateReceived.IsZero() || in.ContractorDue.IsZero() {
		return nil, fmt.Errorf("date_received and contractor_due are required")
	}
	if err := validateContacts(in.ReviewerEmail, in.QcrEmail, in.Reviewers); err != nil {
		return nil, err
	}
	if in.MultiReviewer && len(in.Reviewers) == 0 && in.ReviewerEmail != "" {
		return nil, fmt.Errorf("multi-reviewer items take a reviewers list, not a single reviewer contact")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Item{}).
		Where("identifier = ? AND bucket = ? AND delete_at IS NULL", in.Identifier, in.Bucket).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrDuplicateIdentifier, in.Identifier, in.Bucket)
	}

	due := ComputeDueDatesOn(s.cal, in.DateReceived, in.ContractorDue, in.Priority)
	now := time.Now()

	item := models.Item{
		Bucket:                 in.Bucket,
		Identifier:             in.Identifier,
		Category:               in.Category,
		Title:                  in.Title,
		Description:            in.Description,
		Priority:               in.Priority,
		DateReceived:           in.DateReceived,
		ContractorDue:          in.ContractorDue,
		ReviewerDue:            &due.ReviewerDue,
		QcrDue:                 &due.QcrDue,
		MultiReviewer:          in.MultiReviewer,
		ReviewerResponseStatus: models.ResponseNotSent,
		QcrResponseStatus:      models.ResponseNotSent,
		CreateAt:               now,
	}
	if !in.MultiReviewer && in.ReviewerEmail != "" {
		item.ReviewerName = optional(in.ReviewerName)
		item.ReviewerEmail = optional(in.ReviewerEmail)
		item.EmailTokenReviewer = newResponseToken()
	}
	if in.QcrEmail != "" {
		item.QcrName = optional(in.QcrName)
		item.QcrEmail = optional(in.QcrEmail)
		item.EmailTokenQcr = newResponseToken()
	}

	var assignments []models.ReviewerAssignment
	for _, r := range in.Reviewers {
		assignments = append(assignments, models.ReviewerAssignment{
			ReviewerName:  r.Name,
			ReviewerEmail: r.Email,
			EmailToken:    newResponseToken(),
			NeedsResponse: r.NeedsResponse,
			CreateAt:      now,
		})
	}
	item.Status = DeriveStatus(&item, assignments)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		for i := range assignments {
			assignments[i].ItemID = item.ItemID
			if err := tx.Create(&assignments[i]).Error; err != nil {
				return err
			}
		}
		return statusHistoryTx(tx, item.ItemID, nil, item.Status, in.Actor, "item created")
	})
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	item.Assignments = assignments
	return &item, nil
}

type UpdateItemInput struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	Priority      *string    `json:"priority"`
	DateReceived  *time.Time `json:"date_received"`
	ContractorDue *time.Time `json:"contractor_due"`
	// Supplying either stage due date marks the pair manually set and
	// stops automatic recalculation.
	ReviewerDue *time.Time `json:"reviewer_due"`
	QcrDue      *time.Time `json:"qcr_due"`
	Actor       string     `json:"-"`
}

// UpdateItem applies coordinator edits. Due dates recompute only when
// date_received or contractor_due changed and the item is not flagged
// manual.
func (s *WorkflowService) UpdateItem(ctx context.Context, itemID int, in UpdateItemInput) (*models.Item, error) {
	var updated *models.Item
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := lockItemForUpdate(tx, itemID)
		if err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{"update_at": now}

		if in.Title != nil {
			item.Title = *in.Title
			updates["title"] = *in.Title
		}
		if in.Description != nil {
			item.Description = in.Description
			updates["description"] = in.Description
		}
		if in.Priority != nil {
			item.Priority = *in.Priority
			updates["priority"] = *in.Priority
		}

		datesChanged := false
		if in.DateReceived != nil && !sameDate(*in.DateReceived, item.DateReceived) {
			item.DateReceived = *in.DateReceived
			updates["date_received"] = *in.DateReceived
			datesChanged = true
		}
		if in.ContractorDue != nil && !sameDate(*in.ContractorDue, item.ContractorDue) {
			item.ContractorDue = *in.ContractorDue
			updates["contractor_due"] = *in.ContractorDue
			datesChanged = true
		}

		if in.ReviewerDue != nil || in.QcrDue != nil {
			if in.ReviewerDue != nil {
				item.ReviewerDue = in.ReviewerDue
				updates["reviewer_due"] = in.ReviewerDue
			}
			if in.QcrDue != nil {
				item.QcrDue = in.QcrDue
				updates["qcr_due"] = in.QcrDue
			}
			if item.ReviewerDue != nil && item.QcrDue != nil && beforeDate(*item.QcrDue, *item.ReviewerDue) {
				return fmt.Errorf("qcr due date cannot precede reviewer due date")
			}
			item.DueDatesManual = true
			updates["due_dates_manual"] = true
		} else if datesChanged && !item.DueDatesManual {
			due := ComputeDueDatesOn(s.cal, item.DateReceived, item.ContractorDue, item.Priority)
			item.ReviewerDue = &due.ReviewerDue
			item.QcrDue = &due.QcrDue
			updates["reviewer_due"] = due.ReviewerDue
			updates["qcr_due"] = due.QcrDue
		}

		if err := tx.Model(&models.Item{}).Where("item_id = ?", item.ItemID).Updates(updates).Error; err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type AssignInput struct {
	ReviewerName  string          `json:"reviewer_name"`
	ReviewerEmail string          `json:"reviewer_email"`
	Reviewers     []ReviewerInput `json:"reviewers"`
	QcrName       string          `json:"qcr_name"`
	QcrEmail      string          `json:"qcr_email"`
	Actor         string          `json:"-"`
}

// AssignReviewers sets or replaces the stage contacts and issues fresh
// response tokens for anyone newly named. Replacing a reviewer who has
// already responded is refused; the response would be orphaned.
func (s *WorkflowService) AssignReviewers(ctx context.Context, itemID int, in AssignInput) (*models.Item, error) {
	if err := validateContacts(in.ReviewerEmail, in.QcrEmail, in.Reviewers); err != nil {
		return nil, err
	}

	var updated *models.Item
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := lockItemForUpdate(tx, itemID)
		if err != nil {
			return err
		}
		if item.IsClosed() {
			return fmt.Errorf("%w: item is closed", ErrInvalidTransition)
		}

		now := time.Now()
		updates := map[string]interface{}{"update_at": now}
		prior := item.Status

		if !item.MultiReviewer && in.ReviewerEmail != "" {
			changed := item.ReviewerEmail == nil || *item.ReviewerEmail != in.ReviewerEmail
			if changed && item.ReviewerResponseAt != nil {
				return fmt.Errorf("%w: reviewer already responded", ErrInvalidTransition)
			}
			item.ReviewerName = optional(in.ReviewerName)
			item.ReviewerEmail = optional(in.ReviewerEmail)
			updates["reviewer_name"] = item.ReviewerName
			updates["reviewer_email"] = item.ReviewerEmail
			if changed {
				item.EmailTokenReviewer = newResponseToken()
				item.ReviewerEmailSentAt = nil
				item.ReviewerResponseStatus = models.ResponseNotSent
				updates["email_token_reviewer"] = item.EmailTokenReviewer
				updates["reviewer_email_sent_at"] = nil
				updates["reviewer_response_status"] = models.ResponseNotSent
			}
		}

		if item.MultiReviewer {
			for _, r := range in.Reviewers {
				a := models.ReviewerAssignment{
					ItemID:        item.ItemID,
					ReviewerName:  r.Name,
					ReviewerEmail: r.Email,
					EmailToken:    newResponseToken(),
					NeedsResponse: r.NeedsResponse,
					CreateAt:      now,
				}
				if err := tx.Create(&a).Error; err != nil {
					return err
				}
				item.Assignments = append(item.Assignments, a)
			}
		}

		if in.QcrEmail != "" {
			changed := item.QcrEmail == nil || *item.QcrEmail != in.QcrEmail
			if changed && item.QcrResponseAt != nil {
				return fmt.Errorf("%w: qcr already responded", ErrInvalidTransition)
			}
			item.QcrName = optional(in.QcrName)
			item.QcrEmail = optional(in.QcrEmail)
			updates["qcr_name"] = item.QcrName
			updates["qcr_email"] = item.QcrEmail
			if changed {
				item.EmailTokenQcr = newResponseToken()
				item.QcrEmailSentAt = nil
				item.QcrResponseStatus = models.ResponseNotSent
				updates["email_token_qcr"] = item.EmailTokenQcr
				updates["qcr_email_sent_at"] = nil
				updates["qcr_response_status"] = models.ResponseNotSent
			}
		}

		item.Status = DeriveStatus(item, item.Assignments)
		updates["status"] = item.Status
		if err := tx.Model(&models.Item{}).Where("item_id = ?", item.ItemID).Updates(updates).Error; err != nil {
			return err
		}
		if item.Status != prior {
			if err := statusHistoryTx(tx, item.ItemID, &prior, item.Status, in.Actor, "reviewers assigned"); err != nil {
				return err
			}
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ExcuseReviewer drops the needs-response requirement for one assignment
// on a multi-reviewer item. The row stays for the record, and excusing
// the last outstanding reviewer can complete the stage.
func (s *WorkflowService) ExcuseReviewer(ctx context.Context, itemID, assignmentID int, actor string) (string, error) {
	var status string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := lockItemForUpdate(tx, itemID)
		if err != nil {
			return err
		}
		if !item.MultiReviewer {
			return fmt.Errorf("%w: not a multi-reviewer item", ErrInvalidTransition)
		}
		found := false
		for i := range item.Assignments {
			if item.Assignments[i].AssignmentID == assignmentID {
				item.Assignments[i].NeedsResponse = false
				found = true
			}
		}
		if !found {
			return gorm.ErrRecordNotFound
		}

		now := time.Now()
		if err := tx.Model(&models.ReviewerAssignment{}).
			Where("assignment_id = ?", assignmentID).
			Updates(map[string]interface{}{"needs_response": false, "update_at": now}).Error; err != nil {
			return err
		}

		prior := item.Status
		item.Status = DeriveStatus(item, item.Assignments)
		if item.Status != prior {
			if err := tx.Model(&models.Item{}).Where("item_id = ?", item.ItemID).
				Updates(map[string]interface{}{"status": item.Status, "update_at": now}).Error; err != nil {
				return err
			}
			if err := statusHistoryTx(tx, item.ItemID, &prior, item.Status, actor, "reviewer excused"); err != nil {
				return err
			}
		}
		status = item.Status
		return nil
	})
	return status, err
}

// RecordNotificationSent marks a stage notification as delivered. The
// notifier calls this after a successful send; the timestamp feeds both
// the Assigned -> In Review transition and the reminder eligibility
// rule (reminders only follow an initial notification).
func (s *WorkflowService) RecordNotificationSent(ctx context.Context, itemID int, stage, recipient string, at time.Time) (string, error) {
	if stage != models.ReminderRoleReviewer && stage != models.ReminderRoleQcr {
		return "", fmt.Errorf("unknown stage %q", stage)
	}

	var status string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := lockItemForUpdate(tx, itemID)
		if err != nil {
			return err
		}
		if item.IsClosed() {
			return fmt.Errorf("%w: item is closed", ErrInvalidTransition)
		}

		now := time.Now()
		updates := map[string]interface{}{"update_at": now}
		prior := item.Status

		switch stage {
		case models.ReminderRoleReviewer:
			if item.MultiReviewer {
				matched := false
				for i := range item.Assignments {
					a := &item.Assignments[i]
					if a.ReviewerEmail != recipient {
						continue
					}
					matched = true
					a.EmailSentAt = &at
					if err := tx.Model(&models.ReviewerAssignment{}).
						Where("assignment_id = ?", a.AssignmentID).
						Updates(map[string]interface{}{"email_sent_at": at, "update_at": now}).Error; err != nil {
						return err
					}
				}
				if !matched {
					return fmt.Errorf("no reviewer assignment for recipient %s", recipient)
				}
				if item.ReviewerResponseStatus == models.ResponseNotSent {
					item.ReviewerResponseStatus = models.ResponseEmailSent
					updates["reviewer_response_status"] = models.ResponseEmailSent
				}
			} else {
				if !item.ReviewerAssigned() {
					return fmt.Errorf("%w: no reviewer assigned", ErrInvalidTransition)
				}
				item.ReviewerEmailSentAt = &at
				updates["reviewer_email_sent_at"] = at
				if item.ReviewerResponseStatus == models.ResponseNotSent {
					item.ReviewerResponseStatus = models.ResponseEmailSent
					updates["reviewer_response_status"] = models.ResponseEmailSent
				}
			}
		case models.ReminderRoleQcr:
			if item.QcrEmail == nil || *item.QcrEmail == "" {
				return fmt.Errorf("%w: no qcr assigned", ErrInvalidTransition)
			}
			item.QcrEmailSentAt = &at
			updates["qcr_email_sent_at"] = at
			if item.QcrResponseStatus == models.ResponseNotSent {
				item.QcrResponseStatus = models.ResponseEmailSent
				updates["qcr_response_status"] = models.ResponseEmailSent
			}
		}

		item.Status = DeriveStatus(item, item.Assignments)
		updates["status"] = item.Status
		if err := tx.Model(&models.Item{}).Where("item_id = ?", item.ItemID).Updates(updates).Error; err != nil {
			return err
		}
		if item.Status != prior {
			note := fmt.Sprintf("%s notification sent to %s", stage, recipient)
			if err := statusHistoryTx(tx, item.ItemID, &prior, item.Status, "", note); err != nil {
				return err
			}
		}
		status = item.Status
		return nil
	})
	return status, err
}

// CloseItem records the contractor-facing response and closes the item.
// Category and text default from the merged final disposition; both must
// end up non-empty.
func (s *WorkflowService) CloseItem(ctx context.Context, itemID int, category, text, actor string) (*models.Item, error) {
	var closed *models.Item
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := lockItemForUpdate(tx, itemID)
		if err != nil {
			return err
		}
		if item.IsClosed() {
			return fmt.Errorf("%w: already closed", ErrInvalidTransition)
		}
		if item.Status != models.StatusReadyForResponse {
			return fmt.Errorf("%w: close requires Ready for Response, item is %s", ErrInvalidTransition, item.Status)
		}

		if category == "" && item.FinalCategory != nil {
			category = *item.FinalCategory
		}
		if text == "" && item.FinalText != nil {
			text = *item.FinalText
		}
		if category == "" || text == "" {
			return fmt.Errorf("%w: response category and text are required to close", ErrInvalidTransition)
		}
		if !models.ValidResponseCategory(category) {
			return fmt.Errorf("unknown response category %q", category)
		}

		now := time.Now()
		prior := item.Status
		item.ResponseCategory = &category
		item.ResponseText = &text
		item.ClosedAt = &now
		item.Status = DeriveStatus(item, item.Assignments)

		updates := map[string]interface{}{
			"response_category": category,
			"response_text":     text,
			"closed_at":         now,
			"status":            item.Status,
			"update_at":         now,
		}
		if err := tx.Model(&models.Item{}).Where("item_id = ?", item.ItemID).Updates(updates).Error; err != nil {
			return err
		}
		if err := statusHistoryTx(tx, item.ItemID, &prior, item.Status, actor, "item closed"); err != nil {
			return err
		}
		closed = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// ReopenItem re-activates a closed item against a new contractor due
// date: due dates recompute, the review cycle resets, and every response
// token is rotated so pre-reopen links die. The merged disposition of
// the closed round stays on the item for display; the superseded
// reviewer responses are archived first.
func (s *WorkflowService) ReopenItem(ctx context.Context, itemID int, newContractorDue time.Time, note, actor string) (*models.Item, error) {
	if newContractorDue.IsZero() {
		return nil, fmt.Errorf("new contractor due date is required")
	}

	var reopened *models.Item
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := lockItemForUpdate(tx, itemID)
		if err != nil {
			return err
		}
		if !item.IsClosed() {
			return fmt.Errorf("%w: only closed items can be reopened", ErrInvalidTransition)
		}

		now := time.Now()
		if err := archiveReviewerResponsesTx(tx, item, "reopened", now); err != nil {
			return err
		}

		prior := item.Status
		previousDue := item.ContractorDue
		due := ComputeDueDatesOn(s.cal, item.DateReceived, newContractorDue, item.Priority)

		item.ReopenCount++
		item.PreviousDueDate = &previousDue
		item.ContractorDue = newContractorDue
		item.ReviewerDue = &due.ReviewerDue
		item.QcrDue = &due.QcrDue
		item.DueDatesManual = false
		item.ClosedAt = nil
		item.ReviewerEmailSentAt = nil
		item.ReviewerResponseAt = nil
		item.ReviewerResponseCategory = nil
		item.ReviewerResponseNotes = nil
		item.ReviewerResponseFiles = nil
		item.ReviewerResponseStatus = models.ResponseNotSent
		item.QcrEmailSentAt = nil
		item.QcrResponseAt = nil
		item.QcrAction = nil
		item.QcrResponseMode = nil
		item.QcrNotes = nil
		item.QcrInternalNotes = nil
		item.QcrResponseStatus = models.ResponseNotSent
		if item.ReviewerEmail != nil && *item.ReviewerEmail != "" {
			item.EmailTokenReviewer = newResponseToken()
		}
		if item.QcrEmail != nil && *item.QcrEmail != "" {
			item.EmailTokenQcr = newResponseToken()
		}

		updates := map[string]interface{}{
			"reopen_count":               item.ReopenCount,
			"previous_due_date":          previousDue,
			"contractor_due":             newContractorDue,
			"reviewer_due":               due.ReviewerDue,
			"qcr_due":                    due.QcrDue,
			"due_dates_manual":           false,
			"closed_at":                  nil,
			"reviewer_email_sent_at":     nil,
			"reviewer_response_at":       nil,
			"reviewer_response_category": nil,
			"reviewer_response_notes":    nil,
			"reviewer_response_files":    nil,
			"reviewer_response_status":   models.ResponseNotSent,
			"qcr_email_sent_at":          nil,
			"qcr_response_at":            nil,
			"qcr_action":                 nil,
			"qcr_response_mode":          nil,
			"qcr_notes":                  nil,
			"qcr_internal_notes":         nil,
			"qcr_response_status":        models.ResponseNotSent,
			"email_token_reviewer":       item.EmailTokenReviewer,
			"email_token_qcr":            item.EmailTokenQcr,
			"update_at":                  now,
		}

		for i := range item.Assignments {
			a := &item.Assignments[i]
			a.EmailToken = newResponseToken()
			a.EmailSentAt = nil
			a.ResponseAt = nil
			a.ResponseCategory = nil
			a.ResponseNotes = nil
			if err := tx.Model(&models.ReviewerAssignment{}).
				Where("assignment_id = ?", a.AssignmentID).
				Updates(map[string]interface{}{
					"email_token":       a.EmailToken,
					"email_sent_at":     nil,
					"response_at":       nil,
					"response_category": nil,
					"response_notes":    nil,
					"update_at":         now,
				}).Error; err != nil {
				return err
			}
		}

		item.Status = DeriveStatus(item, item.Assignments)
		updates["status"] = item.Status
		if err := tx.Model(&models.Item{}).Where("item_id = ?", item.ItemID).Updates(updates).Error; err != nil {
			return err
		}
		historyNote := "item reopened"
		if note != "" {
			historyNote = "item reopened: " + note
		}
		if err := statusHistoryTx(tx, item.ItemID, &prior, item.Status, actor, historyNote); err != nil {
			return err
		}
		reopened = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reopened, nil
}

// lockItemForUpdate loads the item under SELECT ... FOR UPDATE inside tx
// and, for multi-reviewer items, its assignment rows. Both reads happen
// after the row lock, so the snapshot is the one the mutation applies to.
func lockItemForUpdate(tx *gorm.DB, itemID int) (*models.Item, error) {
	var item models.Item
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("item_id = ? AND delete_at IS NULL", itemID).
		First(&item).Error; err != nil {
		return nil, err
	}
	if item.MultiReviewer {
		if err := tx.Where("item_id = ?", item.ItemID).
			Order("assignment_id").
			Find(&item.Assignments).Error; err != nil {
			return nil, err
		}
	}
	return &item, nil
}

func statusHistoryTx(tx *gorm.DB, itemID int, from *string, to, actor, note string) error {
	h := models.ItemStatusHistory{
		ItemID:     itemID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      optional(actor),
		Note:       optional(note),
		CreatedAt:  time.Now(),
	}
	return tx.Create(&h).Error
}

// archiveReviewerResponsesTx copies the current reviewer response(s)
// into the history table before they are cleared or overwritten.
func archiveReviewerResponsesTx(tx *gorm.DB, item *models.Item, reason string, now time.Time) error {
	if item.MultiReviewer {
		for i := range item.Assignments {
			if err := archiveAssignmentResponseTx(tx, item, &item.Assignments[i], reason, now); err != nil {
				return err
			}
		}
		return nil
	}
	return archiveItemResponseTx(tx, item, reason, now)
}

func archiveItemResponseTx(tx *gorm.DB, item *models.Item, reason string, now time.Time) error {
	if item.ReviewerResponseCategory == nil && item.ReviewerResponseNotes == nil && item.ReviewerResponseAt == nil {
		return nil
	}
	h := models.ReviewerResponseHistory{
		ItemID:           item.ItemID,
		Version:          item.ReviewerResponseVersion,
		ResponseCategory: item.ReviewerResponseCategory,
		ResponseNotes:    item.ReviewerResponseNotes,
		ResponseFiles:    item.ReviewerResponseFiles,
		RespondedAt:      item.ReviewerResponseAt,
		Reason:           reason,
		CreatedAt:        now,
	}
	return tx.Create(&h).Error
}

func archiveAssignmentResponseTx(tx *gorm.DB, item *models.Item, a *models.ReviewerAssignment, reason string, now time.Time) error {
	if a.ResponseCategory == nil && a.ResponseNotes == nil && a.ResponseAt == nil {
		return nil
	}
	id := a.AssignmentID
	h := models.ReviewerResponseHistory{
		ItemID:           item.ItemID,
		AssignmentID:     &id,
		Version:          item.ReviewerResponseVersion,
		ResponseCategory: a.ResponseCategory,
		ResponseNotes:    a.ResponseNotes,
		RespondedAt:      a.ResponseAt,
		Reason:           reason,
		CreatedAt:        now,
	}
	return tx.Create(&h).Error
}

func validateContacts(reviewerEmail, qcrEmail string, reviewers []ReviewerInput) error {
	if reviewerEmail != "" && !utils.ValidateEmail(reviewerEmail) {
		return fmt.Errorf("invalid reviewer email %q", reviewerEmail)
	}
	if qcrEmail != "" && !utils.ValidateEmail(qcrEmail) {
		return fmt.Errorf("invalid qcr email %q", qcrEmail)
	}
	// The QC reviewer must be a second pair of eyes.
	if reviewerEmail != "" && qcrEmail != "" && reviewerEmail == qcrEmail {
		return fmt.Errorf("reviewer and qcr must be different people")
	}
	for _, r := range reviewers {
		if r.Email == "" || !utils.ValidateEmail(r.Email) {
			return fmt.Errorf("invalid reviewer email %q", r.Email)
		}
		if qcrEmail != "" && r.Email == qcrEmail {
			return fmt.Errorf("reviewer and qcr must be different people")
		}
	}
	return nil
}

func newResponseToken() *string {
	t := uuid.NewString()
	return &t
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
