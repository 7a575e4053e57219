package controllers

import (
	"net/http"

	"github.com/angelmondragon/crushlink-backend/api/responses"
	"github.com/angelmondragon/crushlink-backend/api/validators"
	"github.com/angelmondragon/crushlink-backend/internal/crushes"
	pkgerrors "github.com/angelmondragon/crushlink-backend/pkg/errors"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
)

type PublicValidateBody struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,contact"`
	USN       string `json:"usn" validate:"required,usn"`
	CrushName string `json:"crushName" validate:"required"`
	CrushUSN  string `json:"crushUsn" validate:"required,usn"`
}

// PublicValidate checks a submission without storing anything and echoes the
// normalized values the submission endpoint would store.
func PublicValidate(maxDisplayName int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body PublicValidateBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		in := crushes.SubmitInput{
			RequesterID:          body.USN,
			RequesterContact:     body.Email,
			RequesterDisplayName: body.Name,
			TargetID:             body.CrushUSN,
			TargetDisplayName:    body.CrushName,
		}.Normalize(maxDisplayName)
		normalized := PublicValidateBody{
			Name:      in.RequesterDisplayName,
			Email:     in.RequesterContact,
			USN:       in.RequesterID,
			CrushName: in.TargetDisplayName,
			CrushUSN:  in.TargetID,
		}
		details := map[string]string{}
		if normalized.Name == "" {
			details[crushes.FieldName] = "is required"
		}
		if normalized.CrushName == "" {
			details[crushes.FieldCrushName] = "is required"
		}
		if normalized.USN == normalized.CrushUSN {
			details[crushes.FieldCrushUSN] = "must differ from your own USN"
		}
		if len(details) > 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details))
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"valid":      true,
			"submission": normalized,
		})
	}
}
