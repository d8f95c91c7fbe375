// Package source describes the two scraped feeds: which fields identify a
// record, how its session key is built and which fields are derived.
package source

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"jobfeed/internal/dedup"
	"jobfeed/internal/filter"
	"jobfeed/internal/models"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrExtraction marks a candidate the extractor could not turn into a usable
// record. It is counted as a failed extraction and the run continues.
var ErrExtraction = errors.New("extraction failed")

const (
	KindJobs  = "jobs"
	KindPosts = "posts"
)

const notAvailable = "N/A"

// Jobs is the search-results feed of job listings.
type Jobs struct{}

// Posts is the saved-items feed of social posts.
type Posts struct{}

// Lookup returns the profile registered under name.
func Lookup(name string) (Profile, error) {
	switch strings.ToLower(name) {
	case KindJobs:
		return Jobs{}, nil
	case KindPosts:
		return Posts{}, nil
	}
	return nil, fmt.Errorf("unknown source %q (want %s or %s)", name, KindJobs, KindPosts)
}

// Profile is implemented by Jobs and Posts.
type Profile interface {
	Name() string
	OutputPrefix() string
	SessionKey(rec models.Record) string
	Prepare(rec models.Record) (models.Record, error)
	Enrich(rec models.Record, now time.Time) models.Record
}

func (Jobs) Name() string         { return KindJobs }
func (Jobs) OutputPrefix() string { return "google_jobs" }

// SessionKey is the folded title and company.
func (Jobs) SessionKey(rec models.Record) string {
	return Normalize(rec.Get(models.FieldTitle)) + "_" + Normalize(rec.Get(models.FieldCompany))
}

// Prepare trims identity fields, requires a title and fills a missing
// company or location with N/A so the fingerprint fields are always present.
func (Jobs) Prepare(rec models.Record) (models.Record, error) {
	out := rec.Clone()
	title := strings.TrimSpace(out.Get(models.FieldTitle))
	if title == "" {
		return models.Record{}, fmt.Errorf("%w: job has no title", ErrExtraction)
	}
	out.Set(models.FieldTitle, title)
	for _, f := range []string{models.FieldCompany, models.FieldLocation} {
		v := strings.TrimSpace(out.Get(f))
		if v == "" {
			v = notAvailable
		}
		out.Set(f, v)
	}
	return out, nil
}

func (Jobs) Enrich(rec models.Record, now time.Time) models.Record {
	out := rec.Clone()
	scraped := scrapedAt(&out, now)
	out.Set(models.FieldEstimatedPostedDate, filter.EstimatePostedDate(out.Get(models.FieldPosted), scraped, filter.StyleSearch))
	if fp, err := dedup.FullFingerprint(out); err == nil {
		out.Set(models.FieldFingerprint, fp)
	}
	return out
}

func (Posts) Name() string         { return KindPosts }
func (Posts) OutputPrefix() string { return "linkedin_posts" }

// SessionKey is person, posted time and content length.
func (Posts) SessionKey(rec models.Record) string {
	return Normalize(rec.Get(models.FieldPersonName)) + "_" +
		Normalize(rec.Get(models.FieldPostedTime)) + "_" +
		strconv.Itoa(utf8.RuneCountInString(rec.Get(models.FieldPostContent)))
}

// Prepare requires some content or a link to be worth saving.
func (Posts) Prepare(rec models.Record) (models.Record, error) {
	out := rec.Clone()
	if strings.TrimSpace(out.Get(models.FieldPostContent)) == "" && strings.TrimSpace(out.Get(models.FieldPostLink)) == "" {
		return models.Record{}, fmt.Errorf("%w: post has neither content nor link", ErrExtraction)
	}
	if strings.TrimSpace(out.Get(models.FieldPersonName)) == "" {
		out.Set(models.FieldPersonName, "Unknown")
	}
	return out, nil
}

func (Posts) Enrich(rec models.Record, now time.Time) models.Record {
	out := rec.Clone()
	scraped := scrapedAt(&out, now)
	out.Set(models.FieldEstimatedPostedDate, filter.EstimatePostedDate(out.Get(models.FieldPostedTime), scraped, filter.StyleFeed))
	// store the identifier dedup actually uses, even over a blank post_id
	if id := dedup.PostIdentifier(out); id != "" && id != out.Get(models.FieldPostID) {
		out.Set(models.FieldPostID, id)
	}
	return out
}

// scrapedAt keeps an extractor-provided scraped_date and sets it otherwise.
func scrapedAt(rec *models.Record, now time.Time) time.Time {
	if v := rec.Get(models.FieldScrapedDate); v != "" {
		if t, err := time.ParseInLocation(filter.TimestampLayout, v, now.Location()); err == nil {
			return t
		}
	}
	rec.Set(models.FieldScrapedDate, now.Format(filter.TimestampLayout))
	return now
}

// Normalize lowercases, strips diacritics and collapses whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	return strings.Join(strings.Fields(strings.ToLower(result)), " ")
}
