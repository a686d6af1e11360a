package blacklist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
)

type fakeBlacklistRepo struct {
	entries []*entity.BlacklistEntry
	err     error
	created []*entity.BlacklistEntry
}

func (f *fakeBlacklistRepo) Create(ctx context.Context, e *entity.BlacklistEntry) error {
	f.created = append(f.created, e)
	return nil
}
func (f *fakeBlacklistRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.BlacklistEntry, error) {
	return nil, nil
}
func (f *fakeBlacklistRepo) ListActive(ctx context.Context, today time.Time) ([]*entity.BlacklistEntry, error) {
	return f.entries, f.err
}
func (f *fakeBlacklistRepo) Update(ctx context.Context, e *entity.BlacklistEntry) error { return nil }
func (f *fakeBlacklistRepo) Count(ctx context.Context) (int64, error)                  { return int64(len(f.entries)), nil }

func vmID(id int64) *int64 { return &id }

func TestFilter_IsBlacklisted_MatchesOnVMAccountID(t *testing.T) {
	repo := &fakeBlacklistRepo{
		entries: []*entity.BlacklistEntry{
			{ID: uuid.New(), VMAccountID: vmID(42), ExclusionType: entity.ExclusionAll, IsActive: true},
		},
	}
	today := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	f := Load(context.Background(), repo, today, zap.NewNop().Sugar())
	require.Equal(t, 1, f.Count())

	account := &entity.Account{VMAccountID: 42}
	assert.True(t, f.IsBlacklisted(account, entity.ExclusionDownload))
	assert.False(t, f.IsBlacklisted(&entity.Account{VMAccountID: 99}, entity.ExclusionDownload))
}

func TestFilter_IsBlacklisted_ScopedExclusionType(t *testing.T) {
	repo := &fakeBlacklistRepo{
		entries: []*entity.BlacklistEntry{
			{ID: uuid.New(), VMAccountID: vmID(42), ExclusionType: entity.ExclusionRebill, IsActive: true},
		},
	}
	today := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	f := Load(context.Background(), repo, today, zap.NewNop().Sugar())

	account := &entity.Account{VMAccountID: 42}
	assert.False(t, f.IsBlacklisted(account, entity.ExclusionDownload))
	assert.True(t, f.IsBlacklisted(account, entity.ExclusionRebill))
}

func TestFilter_IsBlacklisted_RespectsEffectiveWindow(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeBlacklistRepo{
		entries: []*entity.BlacklistEntry{
			{ID: uuid.New(), VMAccountID: vmID(42), ExclusionType: entity.ExclusionAll, IsActive: true, EffectiveStart: &start},
		},
	}
	before := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	f := Load(context.Background(), repo, before, zap.NewNop().Sugar())

	assert.False(t, f.IsBlacklisted(&entity.Account{VMAccountID: 42}, entity.ExclusionDownload))
}

func TestLoad_FailsOpenOnRepositoryError(t *testing.T) {
	repo := &fakeBlacklistRepo{err: errors.New("connection refused")}
	today := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	f := Load(context.Background(), repo, today, zap.NewNop().Sugar())

	assert.Equal(t, 0, f.Count())
	assert.False(t, f.IsBlacklisted(&entity.Account{VMAccountID: 1}, entity.ExclusionAll))
}

func TestCreateEntry_RejectsEmptyMatchFields(t *testing.T) {
	repo := &fakeBlacklistRepo{}
	err := CreateEntry(context.Background(), repo, &entity.BlacklistEntry{ExclusionType: entity.ExclusionAll})
	require.Error(t, err)
	assert.Empty(t, repo.created)
}

func TestCreateEntry_RejectsUnknownExclusionType(t *testing.T) {
	repo := &fakeBlacklistRepo{}
	err := CreateEntry(context.Background(), repo, &entity.BlacklistEntry{
		VMAccountID:   vmID(1),
		ExclusionType: entity.ExclusionType("Bogus"),
	})
	require.Error(t, err)
}

func TestCreateEntry_Succeeds(t *testing.T) {
	repo := &fakeBlacklistRepo{}
	err := CreateEntry(context.Background(), repo, &entity.BlacklistEntry{
		VMAccountID:   vmID(1),
		ExclusionType: entity.ExclusionAll,
	})
	require.NoError(t, err)
	assert.Len(t, repo.created, 1)
}
