package codec

import (
	"net/url"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/webitel/im-tag-router/internal/domain/model"
)

// DefaultTagsParam is the handshake query parameter carrying connection tags.
const DefaultTagsParam = "tags"

// QueryTagsParser extracts the tag set from handshake query parameters.
// Browser clients tend to reuse identical tag strings, so successful parses
// are memoised in an LRU keyed by the raw parameter value.
type QueryTagsParser struct {
	param string
	cache *lru.Cache[string, model.TagSet]
}

// NewQueryTagsParser builds a parser for param; cacheSize <= 0 disables memoisation.
func NewQueryTagsParser(param string, cacheSize int) *QueryTagsParser {
	if param == "" {
		param = DefaultTagsParam
	}
	p := &QueryTagsParser{param: param}
	if cacheSize > 0 {
		// [MEMORY_MANAGEMENT] lru.New only fails on a non-positive size.
		p.cache, _ = lru.New[string, model.TagSet](cacheSize)
	}
	return p
}

// Param returns the query parameter name.
func (p *QueryTagsParser) Param() string { return p.param }

// Parse returns an empty set when the parameter is absent. Malformed JSON or a
// non-object value is a validation error. The returned set is owned by the caller.
func (p *QueryTagsParser) Parse(query url.Values) (model.TagSet, error) {
	if !query.Has(p.param) {
		return model.TagSet{}, nil
	}
	raw := query.Get(p.param)

	if p.cache != nil {
		if cached, ok := p.cache.Get(raw); ok {
			return cached.Clone(), nil
		}
	}

	tags, err := model.ParseTagSet([]byte(raw))
	if err != nil {
		return nil, model.Validationf("query.parse", "the '%s' URL parameter is not a valid JSON object", p.param).WithCause(err)
	}

	if p.cache != nil {
		p.cache.Add(raw, tags.Clone())
	}
	return tags, nil
}
