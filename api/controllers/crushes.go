package controllers

import (
	"net/http"

	"github.com/angelmondragon/crushlink-backend/api/responses"
	"github.com/angelmondragon/crushlink-backend/api/validators"
	"github.com/angelmondragon/crushlink-backend/internal/crushes"
	"github.com/angelmondragon/crushlink-backend/pkg/enums"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
)

// CrushSubmitBody mirrors the submission form.
type CrushSubmitBody struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	USN       string `json:"usn"`
	CrushName string `json:"crushName"`
	CrushUSN  string `json:"crushUsn"`
}

type crushSubmitResponse struct {
	Status           string `json:"status"`
	DisplayName      string `json:"displayName,omitempty"`
	MatchDisplayName string `json:"matchDisplayName,omitempty"`
}

// SubmitCrush records a crush and reports whether it closed a match. Field
// rules live in the service so this endpoint and the sweep agree on them.
func SubmitCrush(svc crushes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body CrushSubmitBody
		if err := validators.DecodeJSON(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Submit(r.Context(), crushes.SubmitInput{
			RequesterID:          body.USN,
			RequesterContact:     body.Email,
			RequesterDisplayName: body.Name,
			TargetID:             body.CrushUSN,
			TargetDisplayName:    body.CrushName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := crushSubmitResponse{Status: result.Outcome.String()}
		if result.Outcome == enums.SubmissionOutcomeMatched {
			resp.DisplayName = result.DisplayName
			resp.MatchDisplayName = result.MatchDisplayName
		}
		responses.WriteSuccess(w, resp)
	}
}
