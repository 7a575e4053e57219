package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/crushlink-backend/internal/crushes"
	"github.com/angelmondragon/crushlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crushlink-backend/pkg/errors"
)

type stubCrushService struct {
	result *crushes.SubmitResult
	err    error
	got    crushes.SubmitInput
}

func (s *stubCrushService) Submit(_ context.Context, input crushes.SubmitInput) (*crushes.SubmitResult, error) {
	s.got = input
	return s.result, s.err
}

type submitEnvelope struct {
	Data struct {
		Status           string `json:"status"`
		DisplayName      string `json:"displayName"`
		MatchDisplayName string `json:"matchDisplayName"`
	} `json:"data"`
	Error struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

const submitBody = `{"name":"Ravi","email":"ravi@college.edu","usn":"4vp21cs099","crushName":"Asha","crushUsn":"4VP21CS045"}`

func postSubmit(t *testing.T, svc crushes.Service, body string) (*httptest.ResponseRecorder, submitEnvelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/crushes", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	SubmitCrush(svc, nil).ServeHTTP(rec, req)

	var envelope submitEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec, envelope
}

func TestSubmitCrushPending(t *testing.T) {
	svc := &stubCrushService{result: &crushes.SubmitResult{
		Outcome:     enums.SubmissionOutcomePending,
		CrushID:     uuid.New(),
		DisplayName: "Ravi",
	}}
	rec, envelope := postSubmit(t, svc, submitBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if envelope.Data.Status != "pending" {
		t.Fatalf("expected pending got %q", envelope.Data.Status)
	}
	if envelope.Data.MatchDisplayName != "" || envelope.Data.DisplayName != "" {
		t.Fatalf("pending response must not carry names")
	}
	want := crushes.SubmitInput{
		RequesterID:          "4vp21cs099",
		RequesterContact:     "ravi@college.edu",
		RequesterDisplayName: "Ravi",
		TargetID:             "4VP21CS045",
		TargetDisplayName:    "Asha",
	}
	if svc.got != want {
		t.Fatalf("unexpected service input %+v", svc.got)
	}
}

func TestSubmitCrushMatched(t *testing.T) {
	svc := &stubCrushService{result: &crushes.SubmitResult{
		Outcome:          enums.SubmissionOutcomeMatched,
		DisplayName:      "Ravi",
		MatchDisplayName: "Asha",
	}}
	rec, envelope := postSubmit(t, svc, submitBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if envelope.Data.Status != "matched" || envelope.Data.DisplayName != "Ravi" || envelope.Data.MatchDisplayName != "Asha" {
		t.Fatalf("unexpected matched payload %+v", envelope.Data)
	}
}

func TestSubmitCrushErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   pkgerrors.Code
	}{
		{
			name:   "validation",
			err:    pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{"usn": "must be a valid USN"}),
			status: http.StatusBadRequest,
			code:   pkgerrors.CodeValidation,
		},
		{
			name:   "duplicate",
			err:    pkgerrors.New(pkgerrors.CodeDuplicateSubmission, "you already have a pending crush"),
			status: http.StatusConflict,
			code:   pkgerrors.CodeDuplicateSubmission,
		},
		{
			name:   "store down",
			err:    pkgerrors.Wrap(pkgerrors.CodeDependency, context.DeadlineExceeded, "submission timed out, please try again"),
			status: http.StatusServiceUnavailable,
			code:   pkgerrors.CodeDependency,
		},
	}
	for _, tt := range tests {
		rec, envelope := postSubmit(t, &stubCrushService{err: tt.err}, submitBody)
		if rec.Code != tt.status {
			t.Fatalf("%s: expected %d got %d", tt.name, tt.status, rec.Code)
		}
		if envelope.Error.Code != string(tt.code) {
			t.Fatalf("%s: expected code %s got %s", tt.name, tt.code, envelope.Error.Code)
		}
	}
}

func TestSubmitCrushRejectsMalformedBody(t *testing.T) {
	svc := &stubCrushService{}
	rec, envelope := postSubmit(t, svc, `{"name":"Ravi","password":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if envelope.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
	if svc.got != (crushes.SubmitInput{}) {
		t.Fatalf("service must not be called for a malformed body")
	}
}
