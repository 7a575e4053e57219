package crushes

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/crushlink-backend/pkg/db"
	"github.com/angelmondragon/crushlink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/crushlink-backend/pkg/db/models"
	"github.com/angelmondragon/crushlink-backend/pkg/enums"
	"github.com/angelmondragon/crushlink-backend/pkg/logger"
	"github.com/angelmondragon/crushlink-backend/pkg/outbox"
)

type harness struct {
	client   *db.Client
	repo     *Repository
	resolver *Resolver
	updater  *StatusUpdater
	notifier *recordingNotifier
	logg     *logger.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Client(t)
	logg := testLogger()
	repo := NewRepository(client.DB())
	resolver, err := NewResolver(repo, logg, nil)
	require.NoError(t, err)
	updater, err := NewStatusUpdater(repo, client, outbox.NewService(outbox.NewRepository(client.DB()), logg))
	require.NoError(t, err)
	return &harness{
		client:   client,
		repo:     repo,
		resolver: resolver,
		updater:  updater,
		notifier: &recordingNotifier{},
		logg:     logg,
	}
}

func (h *harness) service(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Store:    h.repo,
		Resolver: h.resolver,
		Updater:  h.updater,
		Logger:   h.logg,
		Notifier: h.notifier,
	})
	require.NoError(t, err)
	return svc
}

// seed inserts a pending record directly, bypassing the pipeline.
func (h *harness) seed(t *testing.T, requester, target string, createdAt time.Time) *models.CrushRecord {
	t.Helper()
	rec, err := h.repo.Create(context.Background(), &models.CrushRecord{
		RequesterID:          requester,
		RequesterContact:     requester + "@college.edu",
		RequesterDisplayName: "name-" + requester,
		TargetID:             target,
		TargetDisplayName:    "name-" + target,
		CreatedAt:            createdAt,
	})
	require.NoError(t, err)
	return rec
}

func (h *harness) mustFind(t *testing.T, id uuid.UUID) *models.CrushRecord {
	t.Helper()
	rec, err := h.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func (h *harness) countCrushes(t *testing.T, requester string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.client.DB().Model(&models.CrushRecord{}).Where("requester_id = ?", requester).Count(&n).Error)
	return n
}

func (h *harness) outboxEvents(t *testing.T) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, h.client.DB().Where("event_type = ?", enums.EventCrushMatched).Find(&rows).Error)
	return rows
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "crushes-test", Output: io.Discard})
}

type recordingNotifier struct {
	mu    sync.Mutex
	pairs []MatchedPair
}

func (n *recordingNotifier) NotifyMatch(_ context.Context, pair MatchedPair) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pairs = append(n.pairs, pair)
}

func (n *recordingNotifier) calls() []MatchedPair {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]MatchedPair(nil), n.pairs...)
}

// recipients returns how many notifications each requester would receive.
func (n *recordingNotifier) recipients() map[string]int {
	out := map[string]int{}
	for _, pair := range n.calls() {
		for _, party := range pair.Parties() {
			out[party.RequesterID]++
		}
	}
	return out
}

type failingTx struct {
	err error
}

func (f failingTx) WithTx(context.Context, func(*gorm.DB) error) error {
	return f.err
}
