package tabula_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/tabula"
	"github.com/syssam/tabula/internal/bookstore"
)

func book(id int64, title string) *tabula.Entity {
	return tabula.Inflate(bookstore.Books, map[string]any{"id": id, "title": title})
}

func TestCollection(t *testing.T) {
	c := tabula.NewCollection(bookstore.Books)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, tabula.RelationNone, c.Kind())
	assert.Nil(t, c.Owner())
	assert.Same(t, bookstore.Books, c.Table())

	b1, b2 := book(1, "one"), book(2, "two")
	require.NoError(t, c.Add(b1))
	require.NoError(t, c.Add(b2))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []any{int64(1), int64(2)}, c.Keys())

	t.Run("Get", func(t *testing.T) {
		assert.Same(t, b1, c.Get(1), "keys of any integer type match")
		assert.Same(t, b2, c.Get(int64(2)))
		assert.Same(t, b2, c.Get(b2))
		assert.Nil(t, c.Get(3))
		assert.True(t, c.Has(uint8(1)))
		assert.False(t, c.Has(book(1, "other")), "membership of an entity is by instance")
		assert.Nil(t, c.Get([]int{1}), "keys that are not comparable are never members")
		assert.False(t, c.Has(map[string]any{"id": 1}))
		assert.Nil(t, c.Remove(func() {}))
		assert.Equal(t, 2, c.Len())
	})

	t.Run("Replace", func(t *testing.T) {
		b1bis := book(1, "one bis")
		require.NoError(t, c.Add(b1bis))
		assert.Equal(t, 2, c.Len())
		assert.Same(t, b1bis, c.Get(1))
		assert.Equal(t, []any{int64(1), int64(2)}, c.Keys(), "replacing keeps the position")
		require.NoError(t, c.Add(b1))
	})

	t.Run("Unsaved", func(t *testing.T) {
		n1, n2 := tabula.New(bookstore.Books), tabula.New(bookstore.Books)
		require.NoError(t, c.Add(n1))
		require.NoError(t, c.Add(n2))
		require.NoError(t, c.Add(n1))
		assert.Equal(t, 4, c.Len(), "unsaved entities get distinct keys")
		assert.Same(t, n1, c.Get(n1))
		assert.Same(t, n2, c.Remove(n2))
		assert.Same(t, n1, c.Remove(n1))
	})

	t.Run("Remove", func(t *testing.T) {
		assert.Nil(t, c.Remove(42))
		removed := c.Remove(2)
		assert.Same(t, b2, removed)
		assert.False(t, c.Has(2))
		assert.Nil(t, c.Get(b2))
		assert.Contains(t, c.Removed(), b2)

		require.NoError(t, c.Add(b2))
		assert.NotContains(t, c.Removed(), b2, "adding back cancels the removal")
		assert.True(t, c.Has(2))
	})

	t.Run("All", func(t *testing.T) {
		var keys []any
		for k, e := range c.All() {
			keys = append(keys, k)
			assert.Same(t, c.Get(k), e)
		}
		assert.Equal(t, c.Keys(), keys)
		assert.Len(t, c.Entities(), c.Len())
	})

	t.Run("WrongTable", func(t *testing.T) {
		err := c.Add(tabula.New(bookstore.Authors))
		assert.Error(t, err)
	})
}

func TestOwnedCollection(t *testing.T) {
	author := tabula.Inflate(bookstore.Authors, map[string]any{"id": int64(9), "name": "Ada"})
	books, err := author.Collection("books")
	require.NoError(t, err)
	assert.Equal(t, tabula.OneToMany, books.Kind())
	assert.Same(t, author, books.Owner())
	assert.Equal(t, "author_id", books.Relation().ForeignKey)

	again, err := author.Collection("books")
	require.NoError(t, err)
	assert.Same(t, books, again)

	b := tabula.New(bookstore.Books)
	require.NoError(t, books.Add(b))
	assert.Equal(t, int64(9), b.Get("author_id"), "members get the owner key")
	assert.True(t, b.IsModified("author_id"))

	_, err = author.Collection("publisher")
	var rerr *tabula.RelationNotDefinedError
	assert.ErrorAs(t, err, &rerr)

	b2 := tabula.Inflate(bookstore.Books, map[string]any{"id": int64(1)})
	_, err = b2.Collection("author")
	assert.Error(t, err, "belongs-to relations are not collections")
}

func TestCollectionSort(t *testing.T) {
	c := tabula.NewCollection(bookstore.Books)
	for i, title := range []string{"b", "c", "a", "b"} {
		require.NoError(t, c.Add(book(int64(i+1), title)))
	}

	require.NoError(t, c.SortByField("title", tabula.Asc))
	assert.Equal(t, []any{int64(3), int64(1), int64(4), int64(2)}, c.Keys(), "the sort is stable")

	require.NoError(t, c.SortByField("title", tabula.Desc))
	assert.Equal(t, []any{int64(2), int64(1), int64(4), int64(3)}, c.Keys())

	c.SortBy(func(e *tabula.Entity) any { return e.KeyID() }, tabula.Desc)
	assert.Equal(t, []any{int64(4), int64(3), int64(2), int64(1)}, c.Keys())
	assert.Same(t, c.Get(4), c.Entities()[0])

	err := c.SortByField("rating", tabula.Asc)
	assert.True(t, tabula.IsFieldNotDefined(err))

	t.Run("Nil", func(t *testing.T) {
		c := tabula.NewCollection(bookstore.Books)
		require.NoError(t, c.Add(book(1, "x")))
		require.NoError(t, c.Add(tabula.Inflate(bookstore.Books, map[string]any{"id": int64(2)})))
		require.NoError(t, c.SortByField("title", tabula.Asc))
		assert.Equal(t, []any{int64(2), int64(1)}, c.Keys(), "nil values sort first")
	})
}
