package registry

import (
	"github.com/webitel/im-tag-router/internal/domain/model"
)

// Handle is the stable arena identifier of a registered entry.
type Handle uint64

// ErrAlreadyRegistered is returned when a handle is added twice; the existing
// registration is left untouched.
var ErrAlreadyRegistered = model.Validationf("index.add", "entry is already registered")

// TagIndex maps (name, value) pairs to the handles filed under them.
// It is not safe for concurrent use; Hub serialises access.
type TagIndex struct {
	// [ALL_ENTRIES] handle -> the immutable tag set it was registered with.
	entries map[Handle]model.TagSet

	// [BUCKETS] exact pair -> set of handles. Empty buckets are removed eagerly.
	buckets map[model.Tag]map[Handle]struct{}
}

func NewTagIndex() *TagIndex {
	return &TagIndex{
		entries: make(map[Handle]model.TagSet),
		buckets: make(map[model.Tag]map[Handle]struct{}),
	}
}

// Add files h under every pair of tags. Validation happens before any state
// changes, so a failed Add leaves no partial registration behind.
func (ix *TagIndex) Add(h Handle, tags model.TagSet) error {
	if err := tags.Validate(); err != nil {
		return err
	}
	if _, ok := ix.entries[h]; ok {
		return ErrAlreadyRegistered
	}

	owned := tags.Clone()
	ix.entries[h] = owned

	for _, tag := range owned.Pairs() {
		bucket, ok := ix.buckets[tag]
		if !ok {
			bucket = make(map[Handle]struct{})
			ix.buckets[tag] = bucket
		}
		bucket[h] = struct{}{}
	}
	return nil
}

// Delete removes h from every bucket. It reports whether h was registered.
func (ix *TagIndex) Delete(h Handle) bool {
	tags, ok := ix.entries[h]
	if !ok {
		return false
	}

	for _, tag := range tags.Pairs() {
		bucket := ix.buckets[tag]
		delete(bucket, h)
		if len(bucket) == 0 {
			delete(ix.buckets, tag)
		}
	}
	delete(ix.entries, h)
	return true
}

func (ix *TagIndex) Contains(h Handle) bool {
	_, ok := ix.entries[h]
	return ok
}

func (ix *TagIndex) Count() int { return len(ix.entries) }

// BucketCount returns the number of distinct (name, value) pairs in use.
func (ix *TagIndex) BucketCount() int { return len(ix.buckets) }

// Tags returns a copy of the set h was registered with.
func (ix *TagIndex) Tags(h Handle) (model.TagSet, bool) {
	tags, ok := ix.entries[h]
	if !ok {
		return nil, false
	}
	return tags.Clone(), true
}

// FindByTags returns every entry carrying all the queried pairs. An empty
// query returns all entries. A pair without a bucket empties the result.
func (ix *TagIndex) FindByTags(tags model.TagSet) []Handle {
	if len(tags) == 0 {
		out := make([]Handle, 0, len(ix.entries))
		for h := range ix.entries {
			out = append(out, h)
		}
		return out
	}

	// [SMALLEST_FIRST] Intersect starting from the narrowest bucket.
	buckets := make([]map[Handle]struct{}, 0, len(tags))
	smallest := -1
	for _, tag := range tags.Pairs() {
		bucket, ok := ix.buckets[tag]
		if !ok {
			return nil
		}
		buckets = append(buckets, bucket)
		if smallest < 0 || len(bucket) < len(buckets[smallest]) {
			smallest = len(buckets) - 1
		}
	}

	out := make([]Handle, 0, len(buckets[smallest]))
candidates:
	for h := range buckets[smallest] {
		for i, bucket := range buckets {
			if i == smallest {
				continue
			}
			if _, ok := bucket[h]; !ok {
				continue candidates
			}
		}
		out = append(out, h)
	}
	return out
}

// Reset drops every entry and bucket.
func (ix *TagIndex) Reset() {
	ix.entries = make(map[Handle]model.TagSet)
	ix.buckets = make(map[model.Tag]map[Handle]struct{})
}
