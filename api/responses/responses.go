package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/crushlink-backend/pkg/errors"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
)

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// WriteError maps err onto the error envelope. Untyped errors surface as
// internal errors; only client-facing codes keep their own message.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeConflict,
		pkgerrors.CodeDuplicateSubmission,
		pkgerrors.CodeIdempotency,
		pkgerrors.CodeRateLimit,
		pkgerrors.CodeDependency:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := ErrorEnvelope{
		Error: APIError{
			Code:      string(typed.Code()),
			Message:   msg,
			Retryable: meta.Retryable,
		},
	}

	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	if logg != nil {
		dump := pkgerrors.Dump(err)
		fields := map[string]any{
			"error":       dump.TopMessage,
			"error_code":  dump.Code,
			"error_chain": dump.Chain,
		}
		if dump.PGCode != "" {
			fields["pg_code"] = dump.PGCode
			fields["pg_detail"] = dump.PGDetail
			fields["pg_message"] = dump.PGMessage
			fields["pg_table"] = dump.PGTable
			fields["pg_constraint"] = dump.PGConstraint
		}
		ctx = logg.WithFields(ctx, fields)
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	if typed.Code() == pkgerrors.CodeRateLimit || typed.Code() == pkgerrors.CodeDependency {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, meta.HTTPStatus, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
