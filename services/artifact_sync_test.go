package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"review-tracker-api/models"
)

func writeArtifact(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}
}

func mustNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be gone, stat err %v", path, err)
	}
}

func mustExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

func TestArtifactScanAppliesReviewerAndQcrFiles(t *testing.T) {
	dir := t.TempDir()
	reviewerPath := filepath.Join(dir, "SUB-0117_reviewer_response.json")
	qcrPath := filepath.Join(dir, "nested", "SUB-0117_qcr_response.json")
	writeArtifact(t, reviewerPath, `{"token":"tok-rev-1","version":1,"response_category":"Approved","response_text":"No exceptions taken."}`)
	writeArtifact(t, qcrPath, `{"token":"tok-qcr-1","qc_action":"Approve","response_mode":"Keep"}`)
	writeArtifact(t, filepath.Join(dir, "notes.txt"), "not an artifact")

	var gotReviewerToken, gotQcrToken string
	var gotPayload ReviewerResponsePayload
	s := &ArtifactSyncService{
		dir: dir,
		applyReviewer: func(ctx context.Context, token string, p ReviewerResponsePayload) (*ApplyResult, error) {
			gotReviewerToken = token
			gotPayload = p
			return &ApplyResult{ItemID: 3, Bucket: "MAIN-ST", Identifier: "SUB-0117", Version: 1, Status: models.StatusInQC}, nil
		},
		applyQcr: func(ctx context.Context, token string, p QcrResponsePayload) (*ApplyResult, error) {
			gotQcrToken = token
			return &ApplyResult{ItemID: 3, Bucket: "MAIN-ST", Identifier: "SUB-0117", Version: 1, Status: models.StatusReadyForResponse}, nil
		},
	}

	summary, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if summary.Applied != 2 {
		t.Fatalf("expected 2 applied, got %+v", summary)
	}
	if gotReviewerToken != "tok-rev-1" || gotQcrToken != "tok-qcr-1" {
		t.Fatalf("unexpected tokens %q %q", gotReviewerToken, gotQcrToken)
	}
	if gotPayload.Version != 1 || gotPayload.Category != "Approved" || gotPayload.Notes != "No exceptions taken." {
		t.Fatalf("unexpected reviewer payload %+v", gotPayload)
	}

	mustNotExist(t, reviewerPath)
	mustExist(t, filepath.Join(dir, "SUB-0117_reviewer_response.applied.json"))
	mustNotExist(t, qcrPath)
	mustExist(t, filepath.Join(dir, "nested", "SUB-0117_qcr_response.applied.json"))
	mustExist(t, filepath.Join(dir, "notes.txt"))
}

func TestArtifactScanRejectsMalformedAndTokenlessFiles(t *testing.T) {
	dir := t.TempDir()
	badPath := filepath.Join(dir, "bad_reviewer_response.json")
	tokenlessPath := filepath.Join(dir, "none_reviewer_response.json")
	writeArtifact(t, badPath, `{not json`)
	writeArtifact(t, tokenlessPath, `{"response_category":"Approved"}`)

	s := &ArtifactSyncService{
		dir: dir,
		applyReviewer: func(ctx context.Context, token string, p ReviewerResponsePayload) (*ApplyResult, error) {
			t.Fatalf("apply should not run for %q", token)
			return nil, nil
		},
	}

	summary, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if summary.Rejected != 2 {
		t.Fatalf("expected 2 rejected, got %+v", summary)
	}
	if len(summary.Errors) != 2 {
		t.Fatalf("expected 2 error entries, got %v", summary.Errors)
	}
	mustExist(t, filepath.Join(dir, "bad_reviewer_response.rejected.json"))
	mustExist(t, filepath.Join(dir, "none_reviewer_response.rejected.json"))
}

func TestArtifactScanTreatsRepeatDeliveryAsConsumed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "RFI-0042_reviewer_response.json")
	writeArtifact(t, path, `{"token":"tok-rev-1","response_category":"Approved"}`)

	s := &ArtifactSyncService{
		dir: dir,
		applyReviewer: func(ctx context.Context, token string, p ReviewerResponsePayload) (*ApplyResult, error) {
			return nil, fmt.Errorf("%w: reviewer response already recorded", ErrAlreadyResponded)
		},
	}

	summary, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if summary.Duplicates != 1 || summary.Applied != 0 || summary.Rejected != 0 {
		t.Fatalf("expected one duplicate, got %+v", summary)
	}
	if len(summary.Errors) != 0 {
		t.Fatalf("expected no errors for a double save, got %v", summary.Errors)
	}
	mustExist(t, filepath.Join(dir, "RFI-0042_reviewer_response.applied.json"))
}

func TestArtifactScanRejectsTerminalApplyErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "RFI-0042_reviewer_response.json")
	writeArtifact(t, path, `{"token":"tok-gone","response_category":"Approved"}`)

	s := &ArtifactSyncService{
		dir: dir,
		applyReviewer: func(ctx context.Context, token string, p ReviewerResponsePayload) (*ApplyResult, error) {
			return nil, ErrUnknownToken
		},
	}

	summary, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if summary.Rejected != 1 {
		t.Fatalf("expected one rejection, got %+v", summary)
	}
	mustNotExist(t, path)
	mustExist(t, filepath.Join(dir, "RFI-0042_reviewer_response.rejected.json"))
}

func TestArtifactScanLeavesFilesOnInfrastructureErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "RFI-0042_reviewer_response.json")
	writeArtifact(t, path, `{"token":"tok-rev-1","response_category":"Approved"}`)

	s := &ArtifactSyncService{
		dir: dir,
		applyReviewer: func(ctx context.Context, token string, p ReviewerResponsePayload) (*ApplyResult, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}

	summary, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if summary.Applied != 0 || summary.Rejected != 0 || summary.Duplicates != 0 {
		t.Fatalf("expected nothing consumed, got %+v", summary)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("expected one error entry, got %v", summary.Errors)
	}
	// The file stays for the next pass.
	mustExist(t, path)
}
