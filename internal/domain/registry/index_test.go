package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-tag-router/internal/domain/model"
)

func tags(kv ...any) model.TagSet {
	out := model.TagSet{}
	for i := 0; i+1 < len(kv); i += 2 {
		name := kv[i].(string)
		switch v := kv[i+1].(type) {
		case int:
			out[name] = model.IntTag(int64(v))
		case string:
			out[name] = model.StringTag(v)
		}
	}
	return out
}

func TestTagIndex_Symmetry(t *testing.T) {
	ix := NewTagIndex()
	set := tags("room", "42", "floor", 2)

	require.NoError(t, ix.Add(1, set))
	assert.True(t, ix.Contains(1))
	assert.Equal(t, 1, ix.Count())

	for name, value := range set {
		assert.Contains(t, ix.FindByTags(model.TagSet{name: value}), Handle(1))
	}

	assert.True(t, ix.Delete(1))
	assert.False(t, ix.Contains(1))
	assert.Zero(t, ix.Count())
	for name, value := range set {
		assert.NotContains(t, ix.FindByTags(model.TagSet{name: value}), Handle(1))
	}
	assert.Zero(t, ix.BucketCount(), "empty buckets must not linger")
}

func TestTagIndex_AndSemantics(t *testing.T) {
	ix := NewTagIndex()
	require.NoError(t, ix.Add(1, tags("a", 1)))
	require.NoError(t, ix.Add(2, tags("b", 2)))
	require.NoError(t, ix.Add(3, tags("a", 1, "b", 2)))
	require.NoError(t, ix.Add(4, nil))

	assert.ElementsMatch(t, []Handle{3}, ix.FindByTags(tags("a", 1, "b", 2)))
	assert.ElementsMatch(t, []Handle{1, 3}, ix.FindByTags(tags("a", 1)))
	assert.ElementsMatch(t, []Handle{1, 2, 3, 4}, ix.FindByTags(model.TagSet{}))
	assert.ElementsMatch(t, []Handle{1, 2, 3, 4}, ix.FindByTags(nil))
	assert.Empty(t, ix.FindByTags(tags("a", 1, "b", 99)))
	assert.Empty(t, ix.FindByTags(tags("missing", "x")))
}

func TestTagIndex_IntAndStringAreDistinct(t *testing.T) {
	ix := NewTagIndex()
	require.NoError(t, ix.Add(1, tags("room", 42)))
	require.NoError(t, ix.Add(2, tags("room", "42")))

	assert.ElementsMatch(t, []Handle{1}, ix.FindByTags(tags("room", 42)))
	assert.ElementsMatch(t, []Handle{2}, ix.FindByTags(tags("room", "42")))
}

func TestTagIndex_Reset(t *testing.T) {
	ix := NewTagIndex()
	require.NoError(t, ix.Add(1, tags("a", 1)))
	require.NoError(t, ix.Add(2, tags("b", "x")))

	ix.Reset()

	assert.Zero(t, ix.Count())
	assert.Empty(t, ix.FindByTags(nil))
	assert.Empty(t, ix.FindByTags(tags("a", 1)))
	assert.Empty(t, ix.FindByTags(tags("b", "x")))

	ix.Reset()
	assert.Zero(t, ix.Count())
}

func TestTagIndex_AddRejectsInvalidWithoutMutation(t *testing.T) {
	ix := NewTagIndex()
	err := ix.Add(1, model.TagSet{"good": model.IntTag(1), "bad": {}})

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.False(t, ix.Contains(1))
	assert.Zero(t, ix.BucketCount())
}

func TestTagIndex_ReAddIsRejected(t *testing.T) {
	ix := NewTagIndex()
	require.NoError(t, ix.Add(1, tags("a", 1)))

	err := ix.Add(1, tags("b", 2))
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.ErrorIs(t, err, model.ErrValidation)

	got, ok := ix.Tags(1)
	require.True(t, ok)
	assert.Equal(t, tags("a", 1), got, "the original registration is kept")
	assert.Empty(t, ix.FindByTags(tags("b", 2)))
}

func TestTagIndex_DeleteUnknownIsNoop(t *testing.T) {
	ix := NewTagIndex()
	assert.False(t, ix.Delete(7))
	assert.Zero(t, ix.Count())
}

func TestTagIndex_OwnsItsTagSet(t *testing.T) {
	ix := NewTagIndex()
	set := tags("a", 1)
	require.NoError(t, ix.Add(1, set))

	set["a"] = model.IntTag(2)

	assert.ElementsMatch(t, []Handle{1}, ix.FindByTags(tags("a", 1)))
	assert.Empty(t, ix.FindByTags(tags("a", 2)))
}
