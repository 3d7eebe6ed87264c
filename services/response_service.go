package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"review-tracker-api/config"
	"review-tracker-api/models"

	"gorm.io/gorm"
)

// ReviewerResponsePayload is an inbound reviewer response. The json tags
// match the artifact files the form generator drops next to an item, so
// both delivery channels decode the same shape. Version is the fence the
// submitting surface saw when the form was built; zero skips the check.
type ReviewerResponsePayload struct {
	Version       int      `json:"version"`
	Category      string   `json:"response_category"`
	Notes         string   `json:"response_text"`
	SelectedFiles []string `json:"selected_files"`
}

// QcrResponsePayload is an inbound QCR decision.
type QcrResponsePayload struct {
	ReviewerVersion int      `json:"version"`
	Action          string   `json:"qc_action"`     // Approve | Modify | Send Back
	Mode            string   `json:"response_mode"` // Keep | Tweak | Revise
	Category        string   `json:"response_category"`
	Text            string   `json:"response_text"`
	Notes           string   `json:"qcr_notes"`
	InternalNotes   string   `json:"qcr_internal_notes"`
	SelectedFiles   []string `json:"selected_files"`
}

// ApplyResult tells the delivery channel what happened so it can decide
// on downstream notifications (reviewer done -> tell the QCR). Ingestion
// itself never sends anything.
type ApplyResult struct {
	ItemID     int    `json:"item_id"`
	Bucket     string `json:"bucket"`
	Identifier string `json:"identifier"`
	Version    int    `json:"version"`
	Status     string `json:"status"`
}

// ResponseService is the ingestion edge: it resolves tokens, enforces
// idempotency and version fences, and hands the actual mutation to the
// workflow appliers inside one locked transaction per call. Safe to call
// concurrently from independent channels; calls for the same item
// serialize on the row lock.
type ResponseService struct {
	db *gorm.DB
	wf *WorkflowService
}

func NewResponseService(db *gorm.DB) *ResponseService {
	if db == nil {
		db = config.DB
	}
	return &ResponseService{db: db, wf: NewWorkflowService(db)}
}

// ApplyReviewerResponse applies one reviewer response identified by its
// token. Repeat deliveries of an applied response fail ErrAlreadyResponded
// and change nothing; automated callers treat that as success.
func (s *ResponseService) ApplyReviewerResponse(ctx context.Context, token string, p ReviewerResponsePayload) (*ApplyResult, error) {
	if token == "" {
		return nil, ErrUnknownToken
	}
	var result *ApplyResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, assignment, err := resolveReviewerTarget(tx, token)
		if err != nil {
			return err
		}
		version, status, err := s.wf.applyReviewerResponseTx(tx, item, assignment, p, time.Now())
		if err != nil {
			return err
		}
		result = &ApplyResult{
			ItemID:     item.ItemID,
			Bucket:     item.Bucket,
			Identifier: item.Identifier,
			Version:    version,
			Status:     status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("response: reviewer response applied for %s/%s (v%d, now %s)",
		result.Bucket, result.Identifier, result.Version, result.Status)
	return result, nil
}

// ApplyQcrResponse applies one QCR decision identified by its token.
func (s *ResponseService) ApplyQcrResponse(ctx context.Context, token string, p QcrResponsePayload) (*ApplyResult, error) {
	if token == "" {
		return nil, ErrUnknownToken
	}
	var result *ApplyResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := resolveQcrTarget(tx, token)
		if err != nil {
			return err
		}
		status, err := s.wf.applyQcrResponseTx(tx, item, p, time.Now())
		if err != nil {
			return err
		}
		result = &ApplyResult{
			ItemID:     item.ItemID,
			Bucket:     item.Bucket,
			Identifier: item.Identifier,
			Version:    item.ReviewerResponseVersion,
			Status:     status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("response: qcr %s applied for %s/%s (now %s)",
		p.Action, result.Bucket, result.Identifier, result.Status)
	return result, nil
}

// ResolveReviewerToken is the read-only lookup behind the response form:
// no locks, no writes. The POST path re-resolves under the row lock.
func (s *ResponseService) ResolveReviewerToken(ctx context.Context, token string) (*models.Item, *models.ReviewerAssignment, error) {
	if token == "" {
		return nil, nil, ErrUnknownToken
	}
	var item models.Item
	err := s.db.WithContext(ctx).
		Where("email_token_reviewer = ? AND delete_at IS NULL", token).
		First(&item).Error
	if err == nil {
		return &item, nil, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	var a models.ReviewerAssignment
	if err := s.db.WithContext(ctx).Where("email_token = ?", token).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrUnknownToken
		}
		return nil, nil, err
	}
	if err := s.db.WithContext(ctx).
		Where("item_id = ? AND delete_at IS NULL", a.ItemID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrUnknownToken
		}
		return nil, nil, err
	}
	return &item, &a, nil
}

// ResolveQcrToken is the read-only QCR form lookup. Multi-reviewer items
// come back with their assignment rows so the form can show the
// aggregated responses.
func (s *ResponseService) ResolveQcrToken(ctx context.Context, token string) (*models.Item, error) {
	if token == "" {
		return nil, ErrUnknownToken
	}
	var item models.Item
	err := s.db.WithContext(ctx).
		Where("email_token_qcr = ? AND delete_at IS NULL", token).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownToken
		}
		return nil, err
	}
	if item.MultiReviewer {
		if err := s.db.WithContext(ctx).
			Where("item_id = ?", item.ItemID).
			Order("assignment_id").
			Find(&item.Assignments).Error; err != nil {
			return nil, err
		}
	}
	return &item, nil
}

// resolveReviewerTarget finds the item (and assignment, in multi mode)
// for a reviewer token and locks the item row. The unlocked probe only
// yields the item id; the token is re-checked against the locked row so
// a reopen racing this call cannot smuggle an old token through.
func resolveReviewerTarget(tx *gorm.DB, token string) (*models.Item, *models.ReviewerAssignment, error) {
	var probe models.Item
	err := tx.Select("item_id").
		Where("email_token_reviewer = ? AND delete_at IS NULL", token).
		First(&probe).Error
	if err == nil {
		item, err := lockItemForUpdate(tx, probe.ItemID)
		if err != nil {
			return nil, nil, err
		}
		if item.EmailTokenReviewer == nil || *item.EmailTokenReviewer != token {
			return nil, nil, ErrUnknownToken
		}
		return item, nil, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	var a models.ReviewerAssignment
	if err := tx.Select("assignment_id", "item_id").
		Where("email_token = ?", token).
		First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrUnknownToken
		}
		return nil, nil, err
	}
	item, err := lockItemForUpdate(tx, a.ItemID)
	if err != nil {
		return nil, nil, err
	}
	for i := range item.Assignments {
		if item.Assignments[i].EmailToken != nil && *item.Assignments[i].EmailToken == token {
			return item, &item.Assignments[i], nil
		}
	}
	return nil, nil, ErrUnknownToken
}

func resolveQcrTarget(tx *gorm.DB, token string) (*models.Item, error) {
	var probe models.Item
	err := tx.Select("item_id").
		Where("email_token_qcr = ? AND delete_at IS NULL", token).
		First(&probe).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownToken
		}
		return nil, err
	}
	item, err := lockItemForUpdate(tx, probe.ItemID)
	if err != nil {
		return nil, err
	}
	if item.EmailTokenQcr == nil || *item.EmailTokenQcr != token {
		return nil, ErrUnknownToken
	}
	return item, nil
}

// applyReviewerResponseTx is the reviewer-stage transition. item is
// locked; assignment is non-nil in multi-reviewer mode. Returns the new
// version and resulting status.
func (s *WorkflowService) applyReviewerResponseTx(tx *gorm.DB, item *models.Item, assignment *models.ReviewerAssignment, p ReviewerResponsePayload, now time.Time) (int, string, error) {
	if item.IsClosed() {
		return 0, "", fmt.Errorf("%w: item is closed", ErrInvalidTransition)
	}
	if qcrDispositionMerged(item) {
		return 0, "", fmt.Errorf("%w: qcr disposition already recorded", ErrInvalidTransition)
	}
	if assignment != nil {
		if assignment.Responded() {
			return 0, "", fmt.Errorf("%w: %s already responded", ErrAlreadyResponded, assignment.ReviewerEmail)
		}
	} else if item.ReviewerResponseAt != nil {
		return 0, "", fmt.Errorf("%w: reviewer response already recorded", ErrAlreadyResponded)
	}
	if p.Version != 0 && p.Version != item.ReviewerResponseVersion {
		return 0, "", fmt.Errorf("%w: payload built at v%d, item is at v%d",
			ErrStaleVersion, p.Version, item.ReviewerResponseVersion)
	}
	if p.Category == "" {
		return 0, "", fmt.Errorf("response category is required")
	}
	if !models.ValidResponseCategory(p.Category) {
		return 0, "", fmt.Errorf("unknown response category %q", p.Category)
	}

	version := item.ReviewerResponseVersion + 1
	prior := item.Status
	updates := map[string]interface{}{
		"reviewer_response_version": version,
		"update_at":                 now,
	}

	actor := ""
	if assignment != nil {
		// A post-send-back resubmission supersedes the old answer.
		if err := archiveAssignmentResponseTx(tx, item, assignment, "resubmitted", now); err != nil {
			return 0, "", err
		}
		assignment.ResponseAt = &now
		assignment.ResponseCategory = &p.Category
		assignment.ResponseNotes = optional(p.Notes)
		if err := tx.Model(&models.ReviewerAssignment{}).
			Where("assignment_id = ?", assignment.AssignmentID).
			Updates(map[string]interface{}{
				"response_at":       now,
				"response_category": p.Category,
				"response_notes":    assignment.ResponseNotes,
				"update_at":         now,
			}).Error; err != nil {
			return 0, "", err
		}
		actor = assignment.ReviewerEmail
	} else {
		if err := archiveItemResponseTx(tx, item, "resubmitted", now); err != nil {
			return 0, "", err
		}
		item.ReviewerResponseAt = &now
		item.ReviewerResponseCategory = &p.Category
		item.ReviewerResponseNotes = optional(p.Notes)
		item.ReviewerResponseFiles = models.EncodeFileList(p.SelectedFiles)
		item.ReviewerResponseStatus = models.ResponseResponded
		updates["reviewer_response_at"] = now
		updates["reviewer_response_category"] = p.Category
		updates["reviewer_response_notes"] = item.ReviewerResponseNotes
		updates["reviewer_response_files"] = item.ReviewerResponseFiles
		updates["reviewer_response_status"] = models.ResponseResponded
		if item.ReviewerEmail != nil {
			actor = *item.ReviewerEmail
		}
	}
	item.ReviewerResponseVersion = version

	if item.MultiReviewer && ReviewerStageComplete(item, item.Assignments) {
		item.ReviewerResponseStatus = models.ResponseResponded
		updates["reviewer_response_status"] = models.ResponseResponded
	}

	// Completing the stage after a send-back retires the stale verdict so
	// the QCR can rule on the new response.
	if item.QcrResponseStatus == models.QcrWaitingForRevision && ReviewerStageComplete(item, item.Assignments) {
		item.QcrAction = nil
		item.QcrResponseMode = nil
		item.QcrResponseAt = nil
		item.QcrResponseStatus = models.ResponseNotSent
		updates["qcr_action"] = nil
		updates["qcr_response_mode"] = nil
		updates["qcr_response_at"] = nil
		updates["qcr_response_status"] = models.ResponseNotSent
	}

	item.Status = DeriveStatus(item, item.Assignments)
	updates["status"] = item.Status
	if err := tx.Model(&models.Item{}).Where("item_id = ?", item.ItemID).Updates(updates).Error; err != nil {
		return 0, "", err
	}
	if item.Status != prior {
		if err := statusHistoryTx(tx, item.ItemID, &prior, item.Status, actor, "reviewer response applied"); err != nil {
			return 0, "", err
		}
	}
	return version, item.Status, nil
}

// applyQcrResponseTx is the QCR-stage transition on a locked item.
func (s *WorkflowService) applyQcrResponseTx(tx *gorm.DB, item *models.Item, p QcrResponsePayload, now time.Time) (string, error) {
	if item.IsClosed() {
		return "", fmt.Errorf("%w: item is closed", ErrInvalidTransition)
	}
	if !ReviewerStageComplete(item, item.Assignments) {
		return "", fmt.Errorf("%w: reviewer stage not complete", ErrInvalidTransition)
	}
	if item.QcrResponseAt != nil {
		return "", fmt.Errorf("%w: qcr already responded", ErrAlreadyResponded)
	}
	if p.ReviewerVersion != 0 && p.ReviewerVersion != item.ReviewerResponseVersion {
		return "", fmt.Errorf("%w: qcr reviewed v%d, item is at v%d",
			ErrStaleVersion, p.ReviewerVersion, item.ReviewerResponseVersion)
	}

	switch p.Action {
	case models.QcrActionApprove, models.QcrActionModify:
		if p.Mode == "" {
			p.Mode = models.QcrModeKeep
		}
		if p.Mode != models.QcrModeKeep && p.Mode != models.QcrModeTweak && p.Mode != models.QcrModeRevise {
			return "", fmt.Errorf("unknown response mode %q", p.Mode)
		}
		if p.Category != "" && !models.ValidResponseCategory(p.Category) {
			return "", fmt.Errorf("unknown response category %q", p.Category)
		}
	case models.QcrActionSendBack:
	default:
		return "", fmt.Errorf("unknown qc action %q", p.Action)
	}

	prior := item.Status
	actor := ""
	if item.QcrEmail != nil {
		actor = *item.QcrEmail
	}
	updates := map[string]interface{}{
		"qcr_action":         p.Action,
		"qcr_response_at":    now,
		"qcr_notes":          optional(p.Notes),
		"qcr_internal_notes": optional(p.InternalNotes),
		"update_at":          now,
	}
	action := p.Action
	item.QcrAction = &action
	item.QcrResponseAt = &now
	item.QcrNotes = optional(p.Notes)
	item.QcrInternalNotes = optional(p.InternalNotes)

	if p.Action == models.QcrActionSendBack {
		item.QcrResponseStatus = models.QcrWaitingForRevision
		updates["qcr_response_status"] = models.QcrWaitingForRevision
		item.ReviewerResponseStatus = models.ResponseRevisionRequested
		updates["reviewer_response_status"] = models.ResponseRevisionRequested

		// The prior answer stays on the row for editing; only its
		// "responded" mark is lifted so ingestion accepts the rework.
		// Tokens rotate so the revision email carries the only live link
		// and a form opened before the send-back cannot submit.
		if item.MultiReviewer {
			for i := range item.Assignments {
				a := &item.Assignments[i]
				if !a.NeedsResponse || a.ResponseAt == nil {
					continue
				}
				a.ResponseAt = nil
				a.EmailToken = newResponseToken()
				if err := tx.Model(&models.ReviewerAssignment{}).
					Where("assignment_id = ?", a.AssignmentID).
					Updates(map[string]interface{}{
						"response_at": nil,
						"email_token": a.EmailToken,
						"update_at":   now,
					}).Error; err != nil {
					return "", err
				}
			}
		} else {
			item.ReviewerResponseAt = nil
			item.EmailTokenReviewer = newResponseToken()
			updates["reviewer_response_at"] = nil
			updates["email_token_reviewer"] = item.EmailTokenReviewer
		}
	} else {
		mode := p.Mode
		item.QcrResponseMode = &mode
		updates["qcr_response_mode"] = mode
		item.QcrResponseStatus = models.ResponseResponded
		updates["qcr_response_status"] = models.ResponseResponded

		category, text, files := FinalDisposition(item, item.Assignments, DispositionInput{
			Mode:             p.Mode,
			OverrideCategory: p.Category,
			OverrideText:     p.Text,
			SelectedFiles:    p.SelectedFiles,
		})
		item.FinalCategory = category
		item.FinalText = text
		item.FinalFiles = files
		updates["final_category"] = category
		updates["final_text"] = text
		updates["final_files"] = files
	}

	item.Status = DeriveStatus(item, item.Assignments)
	updates["status"] = item.Status
	if err := tx.Model(&models.Item{}).Where("item_id = ?", item.ItemID).Updates(updates).Error; err != nil {
		return "", err
	}
	if item.Status != prior {
		note := fmt.Sprintf("qcr action: %s", p.Action)
		if err := statusHistoryTx(tx, item.ItemID, &prior, item.Status, actor, note); err != nil {
			return "", err
		}
	}
	return item.Status, nil
}
