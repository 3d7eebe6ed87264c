package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"review-tracker-api/models"

	"gorm.io/gorm"
)

const (
	reviewerArtifactSuffix = "_reviewer_response.json"
	qcrArtifactSuffix      = "_qcr_response.json"

	appliedArtifactExt  = ".applied.json"
	rejectedArtifactExt = ".rejected.json"
)

// ArtifactScanSummary is the outcome of one directory pass.
type ArtifactScanSummary struct {
	Applied    int      `json:"applied"`
	Duplicates int      `json:"duplicates"`
	Rejected   int      `json:"rejected"`
	Errors     []string `json:"errors,omitempty"`
}

// ArtifactSyncService ingests response files dropped on the shared
// drive. Locally saved response forms write
// <identifier>_reviewer_response.json / <identifier>_qcr_response.json
// next to the item's documents; this service walks the tree, applies
// each file through response ingestion, renames what it consumed and
// sends the same follow-up mail the web channel would. Apply funcs are
// injectable so tests can run against a temp dir; a nil notifier
// disables the follow-ups.
type ArtifactSyncService struct {
	dir           string
	db            *gorm.DB
	notifier      Notifier
	applyReviewer func(ctx context.Context, token string, payload ReviewerResponsePayload) (*ApplyResult, error)
	applyQcr      func(ctx context.Context, token string, payload QcrResponsePayload) (*ApplyResult, error)
}

func NewArtifactSyncService(dir string, responses *ResponseService, notifier Notifier) *ArtifactSyncService {
	if responses == nil {
		responses = NewResponseService(nil)
	}
	return &ArtifactSyncService{
		dir:           dir,
		db:            responses.db,
		notifier:      notifier,
		applyReviewer: responses.ApplyReviewerResponse,
		applyQcr:      responses.ApplyQcrResponse,
	}
}

// StartLoop scans on a fixed interval until ctx is canceled. An
// unreadable share is logged and retried; the files wait.
func (s *ArtifactSyncService) StartLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	log.Printf("artifact sync: watching %s every %s", s.dir, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.ScanOnce(ctx); err != nil {
			log.Printf("artifact sync: scan failed: %v", err)
		}
		select {
		case <-ctx.Done():
			log.Printf("artifact sync: stopped")
			return
		case <-ticker.C:
		}
	}
}

// ScanOnce walks the response directory and applies every pending
// artifact. Consumed files are renamed to .applied.json, terminally
// rejected ones to .rejected.json; anything that fails on an
// infrastructure error stays in place for the next pass.
func (s *ArtifactSyncService) ScanOnce(ctx context.Context) (*ArtifactScanSummary, error) {
	summary := &ArtifactScanSummary{}

	var pending []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, reviewerArtifactSuffix) || strings.HasSuffix(name, qcrArtifactSuffix) {
			pending = append(pending, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.dir, err)
	}

	for _, path := range pending {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		s.processFile(ctx, path, summary)
	}

	if summary.Applied > 0 || summary.Rejected > 0 || len(summary.Errors) > 0 {
		log.Printf("artifact sync: applied=%d duplicates=%d rejected=%d errors=%d",
			summary.Applied, summary.Duplicates, summary.Rejected, len(summary.Errors))
	}
	return summary, nil
}

func (s *ArtifactSyncService) processFile(ctx context.Context, path string, summary *ArtifactScanSummary) {
	raw, err := os.ReadFile(path)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: read: %v", path, err))
		return
	}

	// Every artifact carries its response token in the envelope; the
	// saved form embeds it the same way the emailed link does.
	var envelope struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		s.reject(path, summary, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if strings.TrimSpace(envelope.Token) == "" {
		s.reject(path, summary, "missing token")
		return
	}

	var applyErr error
	var result *ApplyResult
	isQcr := strings.HasSuffix(path, qcrArtifactSuffix)
	if isQcr {
		var payload QcrResponsePayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			s.reject(path, summary, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
		result, applyErr = s.applyQcr(ctx, envelope.Token, payload)
	} else {
		var payload ReviewerResponsePayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			s.reject(path, summary, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
		result, applyErr = s.applyReviewer(ctx, envelope.Token, payload)
	}

	switch {
	case applyErr == nil:
		summary.Applied++
		log.Printf("artifact sync: applied %s (%s %s, v%d)",
			filepath.Base(path), result.Bucket, result.Identifier, result.Version)
		s.consume(path, appliedArtifactExt, summary)
		s.sendFollowUps(ctx, result, isQcr)
	case errors.Is(applyErr, ErrAlreadyResponded):
		// The response is already in the database; the file is just a
		// leftover from a double save.
		summary.Duplicates++
		s.consume(path, appliedArtifactExt, summary)
	case errors.Is(applyErr, ErrUnknownToken),
		errors.Is(applyErr, ErrStaleVersion),
		errors.Is(applyErr, ErrInvalidTransition):
		s.reject(path, summary, applyErr.Error())
	default:
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", path, applyErr))
	}
}

// sendFollowUps mirrors the web channel: a reviewer apply that finished
// the stage hands off to the QCR, a QCR apply tells the reviewers the
// verdict. Failures are soft; the applied response stays applied.
func (s *ArtifactSyncService) sendFollowUps(ctx context.Context, result *ApplyResult, isQcr bool) {
	if s.notifier == nil {
		return
	}
	if isQcr {
		if err := NotifyReviewerOfQcrDecision(ctx, s.db, s.notifier, result.ItemID); err != nil {
			log.Printf("artifact sync: qcr decision mail for item %d: %v", result.ItemID, err)
		}
		return
	}
	if result.Status == models.StatusInQC {
		if err := NotifyQcrOnReviewComplete(ctx, s.db, s.notifier, result.ItemID); err != nil {
			log.Printf("artifact sync: qcr hand-off mail for item %d: %v", result.ItemID, err)
		}
	}
}

func (s *ArtifactSyncService) reject(path string, summary *ArtifactScanSummary, reason string) {
	summary.Rejected++
	summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", path, reason))
	log.Printf("artifact sync: rejected %s: %s", filepath.Base(path), reason)
	s.consume(path, rejectedArtifactExt, summary)
}

// consume renames a handled artifact so the next pass skips it. A
// failed rename is safe to leave: reviewer applies are idempotent, so
// the retry lands on AlreadyResponded and renames again.
func (s *ArtifactSyncService) consume(path, ext string, summary *ArtifactScanSummary) {
	target := strings.TrimSuffix(path, ".json") + ext
	if err := os.Rename(path, target); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: rename: %v", path, err))
	}
}
