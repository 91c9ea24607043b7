package scraper

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "igfeed/pkg/errors"
	"igfeed/pkg/feed"
	"igfeed/pkg/logger"
	"igfeed/pkg/models"
)

// fakeReader serves canned data and counts what the service pulled
type fakeReader struct {
	profiles   map[string]*models.Profile
	posts      []models.MediaItem
	stories    []models.Story
	reels      []models.Reel
	picture    string
	pictureErr error

	postsPulled   int
	storyRequests [][]string
	highlightReqs []string
}

func (f *fakeReader) ResolveProfile(_ context.Context, username string) (*models.Profile, error) {
	p, ok := f.profiles[username]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, http.StatusNotFound, "Profile %s does not exist.", username)
	}
	return p, nil
}

func (f *fakeReader) Posts(_ context.Context, _ *models.Profile) iter.Seq2[models.MediaItem, error] {
	return func(yield func(models.MediaItem, error) bool) {
		for _, item := range f.posts {
			f.postsPulled++
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (f *fakeReader) Stories(_ context.Context, userIDs ...string) iter.Seq2[models.Story, error] {
	f.storyRequests = append(f.storyRequests, userIDs)
	return feed.Items(f.stories)
}

func (f *fakeReader) Highlights(_ context.Context, userID string) iter.Seq2[models.Reel, error] {
	f.highlightReqs = append(f.highlightReqs, userID)
	return feed.Items(f.reels)
}

func (f *fakeReader) ProfilePicture(_ context.Context, _ *models.Profile) (string, error) {
	return f.picture, f.pictureErr
}

func newFakeReader() *fakeReader {
	posts := make([]models.MediaItem, 40)
	for i := range posts {
		posts[i] = models.MediaItem{ID: fmt.Sprint(i), URL: fmt.Sprintf("https://cdn.example/p%d.jpg", i)}
	}
	return &fakeReader{
		profiles: map[string]*models.Profile{
			"alice": {UserID: "1001", Username: "alice", MediaCount: len(posts)},
		},
		posts: posts,
		stories: []models.Story{{
			UserID: "1001",
			Items: []models.MediaItem{
				{ID: "s1", URL: "https://cdn.example/s1.jpg"},
				{ID: "s2", URL: "https://cdn.example/s2.jpg", IsVideo: true, VideoURL: "https://cdn.example/s2.mp4"},
			},
		}},
		reels: []models.Reel{
			{UniqueID: 11, Title: "Trips", CoverCroppedURL: "https://cdn.example/c11.jpg", ItemCount: 3, Items: feed.Items(posts[:3])},
			{UniqueID: 12, Title: "Food", CoverCroppedURL: "https://cdn.example/c12.jpg", ItemCount: 22, Items: feed.Items(posts[3:25])},
		},
		picture: "https://cdn.example/hd.jpg",
	}
}

func newTestService() (*Service, *logger.TestLogger) {
	log := logger.NewTestLogger()
	return New(log), log
}

func TestProfilePage(t *testing.T) {
	svc, _ := newTestService()
	r := newFakeReader()

	entries, err := svc.ProfilePage(context.Background(), r, "alice", 1)
	require.NoError(t, err)
	assert.Len(t, entries, feed.PageSize+feed.InclusiveBoundOffset)
	assert.Equal(t, "https://cdn.example/p0.jpg", entries[0].Image)
	assert.Equal(t, feed.PageSize+feed.InclusiveBoundOffset, r.postsPulled)
}

func TestProfilePagePastEndSkipsFetch(t *testing.T) {
	svc, _ := newTestService()
	r := newFakeReader()

	entries, err := svc.ProfilePage(context.Background(), r, "alice", 6)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	assert.Zero(t, r.postsPulled)
}

func TestProfilePageInvalidPage(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.ProfilePage(context.Background(), newFakeReader(), "alice", 0)
	require.Error(t, err)
	assert.Equal(t, errs.KindBadRequest, errs.KindOf(err))
}

func TestUnknownProfileForwardsMessage(t *testing.T) {
	svc, log := newTestService()
	r := newFakeReader()
	ctx := context.Background()

	calls := map[string]func() error{
		"profile": func() error { _, err := svc.ProfilePage(ctx, r, "bob", 1); return err },
		"stories": func() error { _, err := svc.Stories(ctx, r, mustNotGate(t), "bob"); return err },
		"highlights": func() error {
			_, err := svc.Highlights(ctx, r, mustNotGate(t), "bob")
			return err
		},
		"highlight page": func() error {
			_, err := svc.HighlightPage(ctx, r, mustNotGate(t), "bob", 11, 1)
			return err
		},
		"picture": func() error { _, err := svc.ProfilePicture(ctx, r, "bob"); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
			assert.Equal(t, "Profile bob does not exist.", errs.MessageOf(err))
		})
	}
	assert.Zero(t, r.postsPulled)
	assert.Empty(t, r.storyRequests)
	assert.Empty(t, r.highlightReqs)
	assert.True(t, log.HasMessage("Profile lookup failed"))
}

// mustNotGate fails the test when a gated path gets past the profile lookup
func mustNotGate(t *testing.T) Gate {
	return func() (Reader, error) {
		t.Error("gate consulted before the profile was resolved")
		return nil, errs.New(errs.KindUnauthorized, http.StatusUnauthorized, "denied")
	}
}

func TestGateRunsAfterProfileLookup(t *testing.T) {
	svc, _ := newTestService()
	lookup := newFakeReader()
	ctx := context.Background()

	gateCalls := 0
	denied := func() (Reader, error) {
		gateCalls++
		return nil, errs.New(errs.KindUnauthorized, http.StatusUnauthorized, "You need to log in first.")
	}

	_, err := svc.Stories(ctx, lookup, denied, "bob")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.Zero(t, gateCalls)

	_, err = svc.Stories(ctx, lookup, denied, "alice")
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
	assert.Equal(t, 1, gateCalls)
	assert.Empty(t, lookup.storyRequests)

	// the gated reader, not the lookup reader, fetches the items
	gated := newFakeReader()
	_, err = svc.Highlights(ctx, lookup, Allow(gated), "alice")
	require.NoError(t, err)
	assert.Empty(t, lookup.highlightReqs)
	assert.Equal(t, []string{"1001"}, gated.highlightReqs)
}

func TestStories(t *testing.T) {
	svc, _ := newTestService()
	r := newFakeReader()

	entries, err := svc.Stories(context.Background(), r, Allow(r), "alice")
	require.NoError(t, err)
	assert.Equal(t, []feed.Entry{
		{Image: "https://cdn.example/s1.jpg", URL: "https://cdn.example/s1.jpg"},
		{Image: "https://cdn.example/s2.jpg", URL: "https://cdn.example/s2.mp4"},
	}, entries)
	assert.Equal(t, [][]string{{"1001"}}, r.storyRequests)
}

func TestHighlights(t *testing.T) {
	svc, _ := newTestService()
	r := newFakeReader()

	summaries, err := svc.Highlights(context.Background(), r, Allow(r), "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, []string{"1001"}, r.highlightReqs)
	assert.Equal(t, "Food", summaries[1].Title)
}

func TestHighlightPage(t *testing.T) {
	svc, _ := newTestService()
	r := newFakeReader()
	ctx := context.Background()

	entries, err := svc.HighlightPage(ctx, r, Allow(r), "alice", 12, 2)
	require.NoError(t, err)
	// reel 12 holds posts 3..24, page 2 spans indexes 9..18 of the reel
	require.Len(t, entries, feed.PageSize+feed.InclusiveBoundOffset)
	assert.Equal(t, "https://cdn.example/p12.jpg", entries[0].Image)

	entries, err = svc.HighlightPage(ctx, r, Allow(r), "alice", 99, 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProfilePicture(t *testing.T) {
	svc, _ := newTestService()
	r := newFakeReader()

	url, err := svc.ProfilePicture(context.Background(), r, "alice")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/hd.jpg", url)

	r.pictureErr = errors.New("boom")
	_, err = svc.ProfilePicture(context.Background(), r, "alice")
	assert.EqualError(t, err, "boom")
}

func TestTwoFactorRequiredError(t *testing.T) {
	challenge := &models.TwoFactorChallenge{Username: "alice", Identifier: "abc"}
	var err error = fmt.Errorf("login: %w", &TwoFactorRequiredError{Challenge: challenge})

	var tfa *TwoFactorRequiredError
	require.True(t, errors.As(err, &tfa))
	assert.Same(t, challenge, tfa.Challenge)
	assert.Equal(t, errs.KindChallengeRequired, errs.KindOf(err))
	assert.Equal(t, TwoFactorMessage, tfa.Error())
}
