// Package feed turns lazy media sequences into the page-sized JSON shapes
// served by the API.
package feed

import (
	"iter"

	errs "igfeed/pkg/errors"
	"igfeed/pkg/models"
)

const (
	// PageSize is the nominal number of items per page
	PageSize = 9
	// InclusiveBoundOffset is the extra item every page carries because both
	// window bounds are inclusive. Clients depend on the overlap.
	InclusiveBoundOffset = 1
	// UnknownCount disables the skip short-circuit in Paginate
	UnknownCount = -1
)

// Entry is one media item as returned to clients
type Entry struct {
	Image string `json:"image"`
	URL   string `json:"url"`
}

// HighlightSummary describes a highlight reel without its items
type HighlightSummary struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// NewEntry maps an item to its output shape. Videos link to the video.
func NewEntry(item models.MediaItem) Entry {
	url := item.URL
	if item.IsVideo && item.VideoURL != "" {
		url = item.VideoURL
	}
	return Entry{Image: item.URL, URL: url}
}

// Window returns the inclusive zero-based counter bounds of page
func Window(page int) (skip, limit int) {
	return (page - 1) * PageSize, page * PageSize
}

// Paginate extracts page from items. known is the total item count when the
// caller has it, or UnknownCount. A page starting past known returns empty
// without pulling from items. The source is never read past the window.
func Paginate(items iter.Seq2[models.MediaItem, error], known, page int) ([]Entry, error) {
	if page < 1 {
		return nil, invalidPage(page)
	}

	entries := []Entry{}
	skip, limit := Window(page)
	if known >= 0 && skip > known {
		return entries, nil
	}
	if items == nil {
		return entries, nil
	}

	counter := 0
	for item, err := range items {
		if err != nil {
			return nil, err
		}
		if counter >= skip {
			entries = append(entries, NewEntry(item))
		}
		if counter >= limit {
			break
		}
		counter++
	}
	return entries, nil
}

// SelectHighlightPage paginates the items of the reel whose id matches reelID.
// An unknown id yields an empty page whatever the page number.
func SelectHighlightPage(reels iter.Seq2[models.Reel, error], reelID int64, page int) ([]Entry, error) {
	for reel, err := range reels {
		if err != nil {
			return nil, err
		}
		if reel.UniqueID != reelID {
			continue
		}
		return Paginate(reel.Items, reel.ItemCount, page)
	}
	return []Entry{}, nil
}

// SummarizeHighlights lists every reel without touching its items
func SummarizeHighlights(reels iter.Seq2[models.Reel, error]) ([]HighlightSummary, error) {
	out := []HighlightSummary{}
	for reel, err := range reels {
		if err != nil {
			return nil, err
		}
		out = append(out, HighlightSummary{
			ID:    reel.UniqueID,
			Title: reel.Title,
			URL:   reel.CoverCroppedURL,
		})
	}
	return out, nil
}

// CollectStories flattens the items of all stories in order
func CollectStories(stories iter.Seq2[models.Story, error]) ([]Entry, error) {
	out := []Entry{}
	for story, err := range stories {
		if err != nil {
			return nil, err
		}
		for _, item := range story.Items {
			out = append(out, NewEntry(item))
		}
	}
	return out, nil
}

func invalidPage(page int) error {
	return errs.Newf(errs.KindBadRequest, 0, "Page must be at least 1, got %d.", page)
}

// Items adapts a slice to a lazy sequence
func Items[T any](items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}
