package qloo

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/FACorreiaa/culture-voyage/internal/types"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) SearchTags(ctx context.Context, query string) ([]types.SearchResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.SearchResult), args.Error(1)
}

func (m *MockSearcher) SearchEntities(ctx context.Context, query string) ([]types.SearchResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.SearchResult), args.Error(1)
}

func TestResolverResolve(t *testing.T) {
	logger := slog.Default()
	ctx := context.Background()

	t.Run("tag match stops before entity search", func(t *testing.T) {
		searcher := new(MockSearcher)
		searcher.On("SearchTags", mock.Anything, "Jazz").
			Return([]types.SearchResult{{ID: "T1", Name: "Jazz"}, {ID: "T2"}}, nil).Once()

		got := NewResolver(searcher, 0, logger).Resolve(ctx, []string{"Jazz"})

		assert.Equal(t, []string{"T1"}, got.TagIDs)
		assert.Empty(t, got.EntityIDs)
		searcher.AssertNotCalled(t, "SearchEntities", mock.Anything, mock.Anything)
		searcher.AssertExpectations(t)
	})

	t.Run("falls back to entities when no tag matches", func(t *testing.T) {
		searcher := new(MockSearcher)
		searcher.On("SearchTags", mock.Anything, "Radiohead").Return([]types.SearchResult{}, nil).Once()
		searcher.On("SearchEntities", mock.Anything, "Radiohead").
			Return([]types.SearchResult{{ID: "E1", Type: "urn:entity:artist"}}, nil).Once()

		got := NewResolver(searcher, 0, logger).Resolve(ctx, []string{"Radiohead"})

		assert.Empty(t, got.TagIDs)
		assert.Equal(t, []string{"E1"}, got.EntityIDs)
		searcher.AssertExpectations(t)
	})

	t.Run("search errors count as misses and do not stop resolution", func(t *testing.T) {
		searcher := new(MockSearcher)
		searcher.On("SearchTags", mock.Anything, "Broken").Return(nil, errors.New("timeout")).Once()
		searcher.On("SearchEntities", mock.Anything, "Broken").Return(nil, errors.New("timeout")).Once()
		searcher.On("SearchTags", mock.Anything, "Sushi").Return([]types.SearchResult{{ID: "T9"}}, nil).Once()

		got := NewResolver(searcher, 0, logger).Resolve(ctx, []string{"Broken", "Sushi"})

		assert.Equal(t, []string{"T9"}, got.TagIDs)
		assert.Empty(t, got.EntityIDs)
		assert.False(t, got.Empty())
		searcher.AssertExpectations(t)
	})

	t.Run("keeps interest order within each list", func(t *testing.T) {
		searcher := new(MockSearcher)
		searcher.On("SearchTags", mock.Anything, "A").Return([]types.SearchResult{{ID: "TA"}}, nil).Once()
		searcher.On("SearchTags", mock.Anything, "B").Return([]types.SearchResult{}, nil).Once()
		searcher.On("SearchEntities", mock.Anything, "B").Return([]types.SearchResult{{ID: "EB"}}, nil).Once()
		searcher.On("SearchTags", mock.Anything, "C").Return([]types.SearchResult{{ID: "TC"}}, nil).Once()

		got := NewResolver(searcher, 0, logger).Resolve(ctx, []string{"A", "B", "C"})

		assert.Equal(t, []string{"TA", "TC"}, got.TagIDs)
		assert.Equal(t, []string{"EB"}, got.EntityIDs)
	})

	t.Run("nothing resolves", func(t *testing.T) {
		searcher := new(MockSearcher)
		searcher.On("SearchTags", mock.Anything, "zzz").Return([]types.SearchResult{}, nil).Once()
		searcher.On("SearchEntities", mock.Anything, "zzz").Return([]types.SearchResult{}, nil).Once()

		got := NewResolver(searcher, 0, logger).Resolve(ctx, []string{"zzz"})

		assert.True(t, got.Empty())
	})
}

func TestResolverMemo(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("SearchTags", mock.Anything, "Jazz").Return([]types.SearchResult{{ID: "T1"}}, nil).Once()
	searcher.On("SearchTags", mock.Anything, "Nothing").Return([]types.SearchResult{}, nil).Twice()
	searcher.On("SearchEntities", mock.Anything, "Nothing").Return([]types.SearchResult{}, nil).Twice()

	r := NewResolver(searcher, time.Minute, slog.Default())
	ctx := context.Background()

	first := r.Resolve(ctx, []string{"Jazz", "Nothing"})
	second := r.Resolve(ctx, []string{"jazz", "Nothing"})

	assert.Equal(t, []string{"T1"}, first.TagIDs)
	assert.Equal(t, []string{"T1"}, second.TagIDs)
	// misses are searched again every time
	searcher.AssertExpectations(t)
}
