package tabula_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/tabula"
	"github.com/syssam/tabula/internal/bookstore"
)

func TestRegistry(t *testing.T) {
	r := tabula.NewRegistry(2)
	a1 := tabula.Inflate(bookstore.Authors, map[string]any{"id": int64(1)})
	a2 := tabula.Inflate(bookstore.Authors, map[string]any{"id": int64(2)})
	b1 := tabula.Inflate(bookstore.Books, map[string]any{"id": int64(1)})

	r.Register(a1)
	r.Register(a2)
	assert.Same(t, a1, r.Lookup(bookstore.Authors, 1))
	assert.Nil(t, r.Lookup(bookstore.Books, 1), "keys are scoped by table")

	r.Register(b1)
	assert.Equal(t, 2, r.Len())
	assert.Nil(t, r.Lookup(bookstore.Authors, 2), "the least recently used entity is evicted")
	assert.Same(t, b1, r.Lookup(bookstore.Books, int32(1)))
	assert.Nil(t, r.Lookup(bookstore.Books, []int64{1}))

	r.Register(tabula.New(bookstore.Authors))
	assert.Equal(t, 2, r.Len(), "entities without a key id are not registered")
}

func TestMsgpackRoundTrip(t *testing.T) {
	t.Run("Inflated", func(t *testing.T) {
		e := tabula.Inflate(bookstore.Authors, map[string]any{"id": int64(3), "name": "Ada", "book_count": int64(2)})
		require.NoError(t, e.SetField("bio", "mathematician"))

		data, err := msgpack.Marshal(e)
		require.NoError(t, err)
		got, err := tabula.DecodeEntity(data, bookstore.Schema)
		require.NoError(t, err)

		assert.Equal(t, tabula.StateInflated, got.State())
		assert.Same(t, bookstore.Authors, got.Table())
		assert.EqualValues(t, 3, got.KeyID())
		assert.True(t, got.HasKeyID())
		assert.Equal(t, "Ada", got.Get("name"))
		assert.Equal(t, "mathematician", got.Get("bio"))
		assert.True(t, got.IsModified("bio"))
		assert.False(t, got.IsModified("name"))
		old, err := got.OldFieldValue("bio")
		require.NoError(t, err)
		assert.Nil(t, old)
		n, ok := got.Derived("book_count")
		require.True(t, ok)
		assert.EqualValues(t, 2, n)
	})

	t.Run("New", func(t *testing.T) {
		e := bookstore.NewBook("Dune")
		data, err := e.MarshalMsgpack()
		require.NoError(t, err)
		got, err := tabula.DecodeEntity(data, bookstore.Schema)
		require.NoError(t, err)
		assert.True(t, got.IsNew())
		assert.False(t, got.HasKeyID())
		assert.Equal(t, "Dune", got.Get("title"))
		assert.True(t, got.IsModified("title"))
	})

	t.Run("UnknownTable", func(t *testing.T) {
		logs := &tabula.Table{Name: "logs", Columns: []string{"message"}}
		data, err := tabula.New(logs).MarshalMsgpack()
		require.NoError(t, err)
		_, err = tabula.DecodeEntity(data, bookstore.Schema)
		assert.ErrorContains(t, err, `unknown table "logs"`)

		_, err = tabula.DecodeEntity([]byte{0xc1}, bookstore.Schema)
		assert.Error(t, err)
	})
}
