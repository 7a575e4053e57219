package crushes

import (
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/angelmondragon/crushlink-backend/pkg/errors"
	"github.com/angelmondragon/crushlink-backend/pkg/identity"
)

// Field names reported in validation details. They match the submission form.
const (
	FieldName      = "name"
	FieldEmail     = "email"
	FieldUSN       = "usn"
	FieldCrushName = "crushName"
	FieldCrushUSN  = "crushUsn"
)

// SubmitInput is one crush declaration as typed by the requester.
type SubmitInput struct {
	RequesterID          string
	RequesterContact     string
	RequesterDisplayName string
	TargetID             string
	TargetDisplayName    string
}

type identityValidator interface {
	ValidateIdentity(token string) bool
}

// Normalize trims every field, upper-cases both identity tokens and caps
// display names at maxName runes (the default cap when maxName is not set).
func (in SubmitInput) Normalize(maxName int) SubmitInput {
	if maxName <= 0 {
		maxName = defaultMaxDisplayName
	}
	return SubmitInput{
		RequesterID:          identity.Normalize(in.RequesterID),
		RequesterContact:     identity.NormalizeContact(in.RequesterContact),
		RequesterDisplayName: capRunes(strings.TrimSpace(in.RequesterDisplayName), maxName),
		TargetID:             identity.Normalize(in.TargetID),
		TargetDisplayName:    capRunes(strings.TrimSpace(in.TargetDisplayName), maxName),
	}
}

// validate expects normalized input and reports every failing field at once.
func (in SubmitInput) validate(ids identityValidator) error {
	details := map[string]string{}
	if in.RequesterDisplayName == "" {
		details[FieldName] = "is required"
	}
	switch {
	case in.RequesterContact == "":
		details[FieldEmail] = "is required"
	case !identity.ValidateContact(in.RequesterContact):
		details[FieldEmail] = "must be a valid email"
	}
	switch {
	case in.RequesterID == "":
		details[FieldUSN] = "is required"
	case !ids.ValidateIdentity(in.RequesterID):
		details[FieldUSN] = "must be a valid USN"
	}
	if in.TargetDisplayName == "" {
		details[FieldCrushName] = "is required"
	}
	switch {
	case in.TargetID == "":
		details[FieldCrushUSN] = "is required"
	case !ids.ValidateIdentity(in.TargetID):
		details[FieldCrushUSN] = "must be a valid USN"
	case in.TargetID == in.RequesterID:
		details[FieldCrushUSN] = "must differ from your own USN"
	}
	if len(details) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func capRunes(value string, max int) string {
	if max <= 0 || utf8.RuneCountInString(value) <= max {
		return value
	}
	runes := []rune(value)
	return strings.TrimSpace(string(runes[:max]))
}
