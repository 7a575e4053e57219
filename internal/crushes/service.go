package crushes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/crushlink-backend/pkg/db/models"
	"github.com/angelmondragon/crushlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crushlink-backend/pkg/errors"
	"github.com/angelmondragon/crushlink-backend/pkg/identity"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox"
)

const (
	defaultSubmitTimeout  = 10 * time.Second
	defaultMaxDisplayName = 64
)

// Submission outcome labels for metrics.
const (
	outcomePending   = "pending"
	outcomeMatched   = "matched"
	outcomeStale     = "stale"
	outcomeInvalid   = "rejected_validation"
	outcomeDuplicate = "rejected_duplicate"
	outcomeError     = "error"
)

type submissionStore interface {
	Create(ctx context.Context, record *models.CrushRecord) (*models.CrushRecord, error)
	FindPendingByRequester(ctx context.Context, requesterID string) (*models.CrushRecord, error)
}

type matchResolver interface {
	Resolve(ctx context.Context, record *models.CrushRecord) (*models.CrushRecord, error)
}

type statusUpdater interface {
	MarkMatched(ctx context.Context, initiatorID, counterpartID uuid.UUID, actor *outbox.ActorRef) (*MatchedPair, error)
}

// MatchNotifier is told about every committed match. Implementations own
// their failures; nothing they do can fail the submission.
type MatchNotifier interface {
	NotifyMatch(ctx context.Context, pair MatchedPair)
}

type submissionRecorder interface {
	IncSubmission(outcome string)
}

// Service runs the submission pipeline: validate, reject duplicates, insert,
// resolve, transition and notify.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error)
}

// SubmitResult is what the requester learns. MatchDisplayName is the
// counterpart's own display name and is only set when Outcome is matched.
type SubmitResult struct {
	Outcome          enums.SubmissionOutcome
	CrushID          uuid.UUID
	DisplayName      string
	MatchDisplayName string
}

type ServiceParams struct {
	Store          submissionStore
	Resolver       matchResolver
	Updater        statusUpdater
	Identity       identityValidator
	Logger         *logger.Logger
	Notifier       MatchNotifier
	Metrics        submissionRecorder
	Timeout        time.Duration
	MaxDisplayName int
}

type service struct {
	store          submissionStore
	resolver       matchResolver
	updater        statusUpdater
	ids            identityValidator
	logg           *logger.Logger
	notifier       MatchNotifier
	metrics        submissionRecorder
	timeout        time.Duration
	maxDisplayName int
}

// NewService builds the submission service. A nil Notifier means match
// notifications are delivered asynchronously from the outbox.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("crush store required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("match resolver required")
	}
	if params.Updater == nil {
		return nil, fmt.Errorf("status updater required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	ids := params.Identity
	if ids == nil {
		v, err := identity.NewValidator(identity.DefaultPrefix)
		if err != nil {
			return nil, err
		}
		ids = v
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	maxName := params.MaxDisplayName
	if maxName <= 0 {
		maxName = defaultMaxDisplayName
	}
	return &service{
		store:          params.Store,
		resolver:       params.Resolver,
		updater:        params.Updater,
		ids:            ids,
		logg:           params.Logger,
		notifier:       params.Notifier,
		metrics:        params.Metrics,
		timeout:        timeout,
		maxDisplayName: maxName,
	}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	in := input.Normalize(s.maxDisplayName)
	if err := in.validate(s.ids); err != nil {
		s.count(outcomeInvalid)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx = s.logg.WithFields(s.logg.WithRequester(ctx, in.RequesterID), map[string]any{
		"contact_fingerprint": identity.Fingerprint(in.RequesterContact),
	})

	existing, err := s.store.FindPendingByRequester(ctx, in.RequesterID)
	if err != nil {
		return nil, s.storeFailure(ctx, "lookup pending crush", err)
	}
	if existing != nil {
		s.count(outcomeDuplicate)
		return nil, duplicateError()
	}

	record, err := s.store.Create(ctx, &models.CrushRecord{
		RequesterID:          in.RequesterID,
		RequesterContact:     in.RequesterContact,
		RequesterDisplayName: in.RequesterDisplayName,
		TargetID:             in.TargetID,
		TargetDisplayName:    in.TargetDisplayName,
	})
	if err != nil {
		if errors.Is(err, ErrPendingExists) {
			s.count(outcomeDuplicate)
			return nil, duplicateError()
		}
		return nil, s.storeFailure(ctx, "insert crush", err)
	}
	ctx = s.logg.WithCrushID(ctx, record.ID.String())

	result := &SubmitResult{
		Outcome:     enums.SubmissionOutcomePending,
		CrushID:     record.ID,
		DisplayName: record.RequesterDisplayName,
	}

	candidate, err := s.resolver.Resolve(ctx, record)
	if err != nil {
		return nil, s.storeFailure(ctx, "resolve crush", err)
	}
	if candidate == nil {
		s.count(outcomePending)
		s.logg.Info(ctx, "crush recorded as pending")
		return result, nil
	}

	pair, err := s.updater.MarkMatched(ctx, record.ID, candidate.ID, &outbox.ActorRef{
		Source:      outbox.ActorSourceSubmission,
		RequesterID: record.RequesterID,
	})
	if err != nil {
		if errors.Is(err, ErrStaleMatch) {
			s.count(outcomeStale)
			s.logg.Info(s.logg.WithField(ctx, "candidate_id", candidate.ID.String()), "reciprocal crush already matched elsewhere")
			return result, nil
		}
		return nil, s.storeFailure(ctx, "mark crushes matched", err)
	}

	s.count(outcomeMatched)
	s.logg.Info(s.logg.WithField(ctx, "counterpart_id", pair.Counterpart.ID.String()), "crush matched")
	if s.notifier != nil {
		s.notifier.NotifyMatch(ctx, *pair)
	}

	result.Outcome = enums.SubmissionOutcomeMatched
	result.MatchDisplayName = pair.Counterpart.RequesterDisplayName
	return result, nil
}

func (s *service) storeFailure(ctx context.Context, op string, err error) error {
	s.count(outcomeError)
	s.logg.Error(ctx, op+" failed", err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "submission timed out, please try again")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "crush store unavailable, please try again")
}

func (s *service) count(outcome string) {
	if s.metrics != nil {
		s.metrics.IncSubmission(outcome)
	}
}

func duplicateError() error {
	return pkgerrors.New(pkgerrors.CodeDuplicateSubmission, "you already have a pending crush; wait for it to resolve")
}
