package model

import (
	"bytes"
	"encoding/json"
	"maps"
	"strconv"
)

type tagKind uint8

const (
	tagInvalid tagKind = iota
	tagInt
	tagString
)

// TagValue is either an integer or a string. The zero value is invalid and is
// rejected wherever a TagSet enters the core.
type TagValue struct {
	kind tagKind
	i    int64
	s    string
}

// IntTag returns an integer tag value.
func IntTag(i int64) TagValue { return TagValue{kind: tagInt, i: i} }

// StringTag returns a string tag value.
func StringTag(s string) TagValue { return TagValue{kind: tagString, s: s} }

func (v TagValue) IsValid() bool  { return v.kind != tagInvalid }
func (v TagValue) IsInt() bool    { return v.kind == tagInt }
func (v TagValue) IsString() bool { return v.kind == tagString }

// Int returns the integer variant.
func (v TagValue) Int() (int64, bool) { return v.i, v.kind == tagInt }

// Str returns the string variant.
func (v TagValue) Str() (string, bool) { return v.s, v.kind == tagString }

func (v TagValue) String() string {
	switch v.kind {
	case tagInt:
		return strconv.FormatInt(v.i, 10)
	case tagString:
		return v.s
	default:
		return "<invalid>"
	}
}

func (v TagValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case tagInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case tagString:
		return json.Marshal(v.s)
	default:
		return nil, Validationf("tag.marshal", "invalid tag value")
	}
}

// UnmarshalJSON accepts a JSON string or a JSON integer. Floats, booleans,
// null, arrays and objects are rejected.
func (v *TagValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Validationf("tag.unmarshal", "empty tag value")
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Validationf("tag.unmarshal", "malformed string").WithCause(err)
		}
		*v = StringTag(s)
		return nil
	}

	i, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return Validationf("tag.unmarshal", "value %s is not an integer or a string", data)
	}
	*v = IntTag(i)
	return nil
}

// Tag is a single (name, value) routing pair. It is comparable and used as an index key.
type Tag struct {
	Name  string
	Value TagValue
}

// TagSet maps tag names to values. A set is immutable once registered.
type TagSet map[string]TagValue

// Validate ensures every value is one of the two allowed variants.
func (t TagSet) Validate() error {
	for name, value := range t {
		if !value.IsValid() {
			return Validationf("tags.validate", "the tag named '%s' has a value which is not an integer or a string", name)
		}
	}
	return nil
}

// Clone returns an independent copy; a nil set clones to an empty set.
func (t TagSet) Clone() TagSet {
	out := make(TagSet, len(t))
	maps.Copy(out, t)
	return out
}

// Pairs flattens the set into tags.
func (t TagSet) Pairs() []Tag {
	out := make([]Tag, 0, len(t))
	for name, value := range t {
		out = append(out, Tag{Name: name, Value: value})
	}
	return out
}

// Merge returns base overlaid with over. Neither input is modified.
func (t TagSet) Merge(over TagSet) TagSet {
	out := t.Clone()
	maps.Copy(out, over)
	return out
}

// MarshalJSON renders an empty or nil set as {}.
func (t TagSet) MarshalJSON() ([]byte, error) {
	if len(t) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]TagValue(t))
}

// ParseTagSet decodes a JSON object of {name: int|string}.
func ParseTagSet(data []byte) (TagSet, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, Validationf("tags.parse", "tags must be a JSON object")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, Validationf("tags.parse", "tags are not valid JSON").WithCause(err)
	}

	tags := make(TagSet, len(raw))
	for name, rv := range raw {
		var v TagValue
		if err := v.UnmarshalJSON(rv); err != nil {
			return nil, Validationf("tags.parse", "the '%s' tag is not an integer or a string", name).WithCause(err)
		}
		tags[name] = v
	}
	return tags, nil
}

// UnmarshalJSON decodes through ParseTagSet; null yields an empty set.
func (t *TagSet) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*t = TagSet{}
		return nil
	}
	parsed, err := ParseTagSet(data)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
