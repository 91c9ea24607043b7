package feed

import (
	"errors"
	"fmt"
	"iter"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	errs "igfeed/pkg/errors"
	"igfeed/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func makeItems(n int) []models.MediaItem {
	items := make([]models.MediaItem, n)
	for i := range items {
		items[i] = models.MediaItem{
			ID:  fmt.Sprint(i),
			URL: fmt.Sprintf("https://cdn.example/i%d.jpg", i),
		}
		if i%5 == 0 {
			items[i].IsVideo = true
			items[i].VideoURL = fmt.Sprintf("https://cdn.example/v%d.mp4", i)
		}
	}
	return items
}

// countingSeq records how many items the consumer pulled
func countingSeq(items []models.MediaItem, pulled *int) iter.Seq2[models.MediaItem, error] {
	return func(yield func(models.MediaItem, error) bool) {
		for _, item := range items {
			*pulled++
			if !yield(item, nil) {
				return
			}
		}
	}
}

func TestPaginateSecondPage(t *testing.T) {
	items := makeItems(30)

	got, err := Paginate(Items(items), UnknownCount, 2)
	require.NoError(t, err)

	var want []Entry
	for i := 9; i <= 18; i++ {
		want = append(want, NewEntry(items[i]))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("page 2 mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, got, PageSize+InclusiveBoundOffset)
	// index 10 is a video, 9 is not
	assert.Equal(t, "https://cdn.example/i9.jpg", got[0].URL)
	assert.Equal(t, "https://cdn.example/i10.jpg", got[1].Image)
	assert.Equal(t, "https://cdn.example/v10.mp4", got[1].URL)
}

func TestPaginateNonBoundaryPagesHaveOffset(t *testing.T) {
	items := makeItems(100)
	for page := 1; page <= 10; page++ {
		got, err := Paginate(Items(items), len(items), page)
		require.NoError(t, err)

		skip, limit := Window(page)
		if limit >= len(items) {
			assert.Len(t, got, len(items)-skip, "page %d", page)
			continue
		}
		assert.Len(t, got, PageSize+InclusiveBoundOffset, "page %d", page)
		assert.Equal(t, items[skip].URL, got[0].Image)
		assert.Equal(t, items[limit].URL, got[len(got)-1].Image)
	}
}

func TestPaginateStopsPullingAfterWindow(t *testing.T) {
	pulled := 0
	got, err := Paginate(countingSeq(makeItems(1000), &pulled), UnknownCount, 1)
	require.NoError(t, err)

	assert.Len(t, got, 10)
	assert.Equal(t, PageSize+InclusiveBoundOffset, pulled)
}

func TestPaginateShortCircuitsPastKnownCount(t *testing.T) {
	pulled := 0
	items := makeItems(12)

	got, err := Paginate(countingSeq(items, &pulled), len(items), 3)
	require.NoError(t, err)

	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, pulled)
}

func TestPaginateSkipEqualToCountStillReads(t *testing.T) {
	pulled := 0
	items := makeItems(9)

	// skip == known is not past the end, so the source is walked
	got, err := Paginate(countingSeq(items, &pulled), len(items), 2)
	require.NoError(t, err)

	assert.Empty(t, got)
	assert.Equal(t, len(items), pulled)
}

func TestPaginateUnderstatedCount(t *testing.T) {
	// the known count is an optimisation only; when it is low the sequence still wins
	items := makeItems(25)
	got, err := Paginate(Items(items), 12, 2)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestPaginateShortFinalPage(t *testing.T) {
	items := makeItems(13)
	got, err := Paginate(Items(items), UnknownCount, 2)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestPaginateSourceError(t *testing.T) {
	boom := errors.New("upstream went away")
	seq := func(yield func(models.MediaItem, error) bool) {
		if !yield(models.MediaItem{URL: "a"}, nil) {
			return
		}
		yield(models.MediaItem{}, boom)
	}

	got, err := Paginate(seq, UnknownCount, 1)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, boom)
}

func TestPaginateRejectsPageZero(t *testing.T) {
	_, err := Paginate(Items(makeItems(3)), UnknownCount, 0)
	require.Error(t, err)
	assert.Equal(t, errs.KindBadRequest, errs.KindOf(err))
}

func TestPaginateNilSource(t *testing.T) {
	got, err := Paginate(nil, UnknownCount, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func reels() []models.Reel {
	return []models.Reel{
		{UniqueID: 17890001, Title: "Travel", CoverCroppedURL: "https://cdn.example/travel.jpg", ItemCount: 20, Items: Items(makeItems(20))},
		{UniqueID: 17890002, Title: "Food", CoverCroppedURL: "https://cdn.example/food.jpg", ItemCount: 3, Items: Items(makeItems(3))},
	}
}

func TestSelectHighlightPage(t *testing.T) {
	got, err := SelectHighlightPage(Items(reels()), 17890001, 2)
	require.NoError(t, err)
	assert.Len(t, got, 10)

	got, err = SelectHighlightPage(Items(reels()), 17890002, 1)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSelectHighlightPageNoMatch(t *testing.T) {
	for _, page := range []int{-1, 0, 1, 2, 50} {
		got, err := SelectHighlightPage(Items(reels()), 42, page)
		require.NoError(t, err, "page %d", page)
		assert.NotNil(t, got)
		assert.Empty(t, got, "page %d", page)
	}
}

func TestSelectHighlightPageDoesNotTouchOtherReels(t *testing.T) {
	touched := false
	rs := reels()
	rs[0].Items = func(yield func(models.MediaItem, error) bool) {
		touched = true
	}

	_, err := SelectHighlightPage(Items(rs), 17890002, 1)
	require.NoError(t, err)
	assert.False(t, touched)
}

func TestSummarizeHighlights(t *testing.T) {
	got, err := SummarizeHighlights(Items(reels()))
	require.NoError(t, err)

	want := []HighlightSummary{
		{ID: 17890001, Title: "Travel", URL: "https://cdn.example/travel.jpg"},
		{ID: 17890002, Title: "Food", URL: "https://cdn.example/food.jpg"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summaries mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectStories(t *testing.T) {
	stories := []models.Story{
		{UserID: "1", Items: makeItems(2)},
		{UserID: "2"},
		{UserID: "3", Items: makeItems(1)},
	}

	got, err := CollectStories(Items(stories))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "https://cdn.example/v0.mp4", got[0].URL)
	assert.Equal(t, "https://cdn.example/i1.jpg", got[1].URL)
}
