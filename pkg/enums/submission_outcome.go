package enums

// SubmissionOutcome is what a caller learns about its submission.
type SubmissionOutcome string

const (
	SubmissionOutcomePending SubmissionOutcome = "pending"
	SubmissionOutcomeMatched SubmissionOutcome = "matched"
)

func (o SubmissionOutcome) String() string {
	return string(o)
}
