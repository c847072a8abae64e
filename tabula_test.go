package tabula_test

import (
	"context"
	stdsql "database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/tabula"
	"github.com/syssam/tabula/dialect"
	"github.com/syssam/tabula/dialect/sql"
	"github.com/syssam/tabula/dialect/sql/sqlgraph"
	"github.com/syssam/tabula/internal/bookstore"
	"github.com/syssam/tabula/migrate"
)

// openCatalog returns a driver on a fresh in-memory SQLite database with
// the catalog tables created.
func openCatalog(t *testing.T) *sql.Driver {
	t.Helper()
	db, err := stdsql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	// Every connection to :memory: opens a different database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	m, err := migrate.New(db, dialect.SQLite, bookstore.SQLiteMigrations)
	require.NoError(t, err)
	n, err := m.Up()
	require.NoError(t, err)
	require.Equal(t, len(bookstore.SQLiteMigrations), n)
	return sql.OpenDB(dialect.SQLite, db)
}

func count(t *testing.T, drv *sql.Driver, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, drv.DB().QueryRowContext(context.Background(), query, args...).Scan(&n))
	return n
}

func TestSaveGraph(t *testing.T) {
	ctx := context.Background()
	drv := openCatalog(t)

	author := bookstore.NewAuthor("Ursula K. Le Guin")
	first, second := bookstore.NewBook("A Wizard of Earthsea"), bookstore.NewBook("The Tombs of Atuan")
	require.NoError(t, author.AddBook(first))
	require.NoError(t, author.AddBook(second))
	assert.Equal(t, 2, author.Books().Len())
	assert.Zero(t, first.AuthorID(), "author has no key yet")

	ok, err := author.Save(ctx, drv)
	require.NoError(t, err)
	require.True(t, ok)

	require.NotZero(t, author.ID())
	assert.True(t, author.IsInflated())
	assert.False(t, author.HasModifiedFields())
	for _, b := range []*bookstore.Book{first, second} {
		assert.NotZero(t, b.ID())
		assert.Equal(t, author.ID(), b.AuthorID())
		assert.True(t, b.IsInflated())
		assert.False(t, b.HasModifiedFields())
	}
	assert.Equal(t, []any{first.ID(), second.ID()}, author.Books().Keys(), "members are re-keyed in place")
	assert.Same(t, first.Entity, author.Books().Get(first.ID()))

	loaded, err := bookstore.FindAuthor(ctx, drv, author.ID())
	require.NoError(t, err)
	assert.Equal(t, "Ursula K. Le Guin", loaded.Name())
	assert.Equal(t, "", loaded.Bio(), "unset columns take the column default")
	books, err := loaded.LoadBooks(ctx, drv)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "A Wizard of Earthsea", books[0].Title())
	assert.Equal(t, "The Tombs of Atuan", books[1].Title())
}

func TestSaveBelongsTo(t *testing.T) {
	ctx := context.Background()
	drv := openCatalog(t)

	author := bookstore.NewAuthor("Frank Herbert")
	book := bookstore.NewBook("Dune")
	require.NoError(t, book.SetAuthor(author))

	ok, err := book.Save(ctx, drv)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotZero(t, author.ID(), "the parent is inserted first")
	assert.Equal(t, author.ID(), book.AuthorID())

	loaded, err := bookstore.FindBook(ctx, drv, book.ID())
	require.NoError(t, err)
	parent, err := loaded.QueryAuthor(ctx, drv)
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, "Frank Herbert", parent.Name())

	t.Run("Cycle", func(t *testing.T) {
		author := bookstore.NewAuthor("Iain M. Banks")
		book := bookstore.NewBook("Excession")
		require.NoError(t, author.AddBook(book))
		require.NoError(t, book.SetAuthor(author))
		ok, err := author.Save(ctx, drv)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, author.ID(), book.AuthorID())
		assert.EqualValues(t, 1, count(t, drv, `SELECT COUNT(*) FROM authors WHERE name = ?`, "Iain M. Banks"))
	})

	t.Run("Unset", func(t *testing.T) {
		orphan := bookstore.NewBook("Anonymous")
		_, err := orphan.Save(ctx, drv)
		require.NoError(t, err)
		parent, err := orphan.QueryAuthor(ctx, drv)
		require.NoError(t, err)
		assert.Nil(t, parent)
	})
}

func TestManyToMany(t *testing.T) {
	ctx := context.Background()
	drv := openCatalog(t)

	central := bookstore.NewLibrary("Central").SetCity("Lisbon")
	_, err := central.Save(ctx, drv)
	require.NoError(t, err)

	book := bookstore.NewBook("Solaris")
	branch := bookstore.NewLibrary("Branch")
	require.NoError(t, book.AddLibrary(central, "2024-05-01"))
	require.NoError(t, book.AddLibrary(branch, "2024-06-15"))
	assert.Equal(t, tabula.NewJoin, central.JoinStatus())
	assert.Equal(t, bookstore.HoldingsTable, central.JoinTable())

	ok, err := book.Save(ctx, drv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tabula.NotJoined, central.JoinStatus())
	assert.NotZero(t, branch.ID(), "unsaved members are inserted before their join row")
	assert.EqualValues(t, 2, count(t, drv, `SELECT COUNT(*) FROM books_libraries WHERE book_id = ?`, book.ID()))

	t.Run("Load", func(t *testing.T) {
		lib, err := bookstore.FindLibrary(ctx, drv, central.ID())
		require.NoError(t, err)
		books, err := lib.LoadBooks(ctx, drv)
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Equal(t, "Solaris", books[0].Title())
		assert.Equal(t, "2024-05-01", books[0].JoinedAt())
		assert.Equal(t, tabula.NotJoined, books[0].JoinStatus())
		_, err = books[0].JoinField("missing")
		assert.True(t, tabula.IsFieldNotDefined(err))
	})

	t.Run("UpdateJoinField", func(t *testing.T) {
		lib, err := bookstore.FindLibrary(ctx, drv, central.ID())
		require.NoError(t, err)
		books, err := lib.LoadBooks(ctx, drv)
		require.NoError(t, err)
		require.NoError(t, books[0].SetJoinField("joined_at", "2025-01-01"))
		assert.Equal(t, tabula.ModifiedJoin, books[0].JoinStatus())
		_, err = lib.Save(ctx, drv)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count(t, drv, `SELECT COUNT(*) FROM books_libraries WHERE joined_at = ?`, "2025-01-01"))
	})

	t.Run("SharedRegistry", func(t *testing.T) {
		reg := tabula.NewRegistry(0)
		atCentral, err := central.LoadCollection(ctx, drv, "books", tabula.WithRegistry(reg))
		require.NoError(t, err)
		atBranch, err := branch.LoadCollection(ctx, drv, "books", tabula.WithRegistry(reg))
		require.NoError(t, err)

		shared := atBranch.Get(book.ID())
		require.NotNil(t, shared)
		assert.Same(t, atCentral.Get(book.ID()), shared, "one instance per row")
		assert.Equal(t, tabula.NotJoined, shared.JoinStatus())
		joinedAt, err := shared.JoinField("joined_at")
		require.NoError(t, err)
		assert.Equal(t, "2024-06-15", joinedAt, "join fields come from the last loaded row")

		ok, err := branch.Save(ctx, drv)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.EqualValues(t, 2, count(t, drv, `SELECT COUNT(*) FROM books_libraries WHERE book_id = ?`, book.ID()))
	})

	t.Run("Remove", func(t *testing.T) {
		loaded, err := bookstore.FindBook(ctx, drv, book.ID())
		require.NoError(t, err)
		libs, err := loaded.LoadCollection(ctx, drv, "libraries")
		require.NoError(t, err)
		require.Equal(t, 2, libs.Len())
		removed := libs.Remove(central.ID())
		require.NotNil(t, removed)
		assert.Equal(t, tabula.JoinRemoved, removed.JoinStatus())

		_, err = loaded.Save(ctx, drv)
		require.NoError(t, err)
		assert.Empty(t, libs.Removed())
		assert.EqualValues(t, 1, count(t, drv, `SELECT COUNT(*) FROM books_libraries WHERE book_id = ?`, book.ID()))
		assert.EqualValues(t, 1, count(t, drv, `SELECT COUNT(*) FROM libraries WHERE id = ?`, central.ID()), "only the association is deleted")

		libs, err = loaded.LoadCollection(ctx, drv, "libraries")
		require.NoError(t, err)
		assert.Equal(t, []any{branch.ID()}, libs.Keys())
	})
}

func TestClone(t *testing.T) {
	ctx := context.Background()
	drv := openCatalog(t)

	author := bookstore.NewAuthor("Stanisław Lem").SetBio("Polish writer")
	_, err := author.Save(ctx, drv)
	require.NoError(t, err)

	clone := author.Clone()
	assert.True(t, clone.IsNew())
	assert.False(t, clone.HasKeyID())
	assert.Nil(t, clone.Get("id"))
	assert.True(t, clone.IsModified("name"))
	assert.True(t, clone.IsModified("bio"))

	ok, err := clone.Save(ctx, drv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, author.KeyID(), clone.KeyID())
	assert.Equal(t, author.Name(), clone.Get("name"))

	c, err := tabula.Query(ctx, drv, bookstore.Authors, tabula.Where("name", "Stanisław Lem"))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	drv := openCatalog(t)

	for _, name := range []string{"Ada", "Grace", "Barbara"} {
		a := bookstore.NewAuthor(name)
		require.NoError(t, a.AddBook(bookstore.NewBook(name+"'s notes")))
		_, err := a.Save(ctx, drv)
		require.NoError(t, err)
	}

	t.Run("Options", func(t *testing.T) {
		c, err := tabula.Query(ctx, drv, bookstore.Authors, tabula.OrderBy(sql.Desc("name")), tabula.Limit(2))
		require.NoError(t, err)
		require.Equal(t, 2, c.Len())
		assert.Equal(t, "Grace", c.Entities()[0].Get("name"))
		assert.Equal(t, "Barbara", c.Entities()[1].Get("name"))

		c, err = tabula.Query(ctx, drv, bookstore.Authors, tabula.WherePredicate(sql.In("name", "Ada", "Grace")))
		require.NoError(t, err)
		assert.Equal(t, 2, c.Len())

		c, err = tabula.Query(ctx, drv, bookstore.Authors, tabula.WherePredicate(sql.In("name")))
		require.NoError(t, err)
		assert.True(t, c.IsEmpty())
	})

	t.Run("Raw", func(t *testing.T) {
		c, err := tabula.QueryRaw(ctx, drv, bookstore.Authors, `
			SELECT authors.*, COUNT(books.id) AS book_count
			FROM authors LEFT JOIN books ON books.author_id = authors.id
			GROUP BY authors.id ORDER BY authors.id`, nil)
		require.NoError(t, err)
		require.Equal(t, 3, c.Len())
		for _, e := range c.Entities() {
			n, ok := e.Derived("book_count")
			require.True(t, ok)
			assert.EqualValues(t, 1, n)
			v, err := e.Field("book_count")
			require.NoError(t, err)
			assert.EqualValues(t, 1, v)
			assert.False(t, e.HasModifiedFields())
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := tabula.Find(ctx, drv, bookstore.Authors, int64(999))
		require.Error(t, err)
		assert.True(t, tabula.IsNotFound(err))
		var nf *tabula.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "authors", nf.Table)
		assert.Equal(t, int64(999), nf.Key)

		_, err = tabula.Find(ctx, drv, bookstore.Authors)
		assert.Error(t, err)
	})

	t.Run("Registry", func(t *testing.T) {
		r := tabula.NewRegistry(0)
		c1, err := tabula.Query(ctx, drv, bookstore.Authors, tabula.WithRegistry(r))
		require.NoError(t, err)
		c2, err := tabula.Query(ctx, drv, bookstore.Authors, tabula.WithRegistry(r), tabula.OrderBy(sql.Desc("id")))
		require.NoError(t, err)
		assert.Equal(t, 3, r.Len())
		for _, e := range c1.Entities() {
			assert.Same(t, e, c2.Get(e.KeyID()))
		}
		first := c1.Entities()[0]
		found, err := tabula.FindWith(ctx, drv, r, bookstore.Authors, first.KeyID())
		require.NoError(t, err)
		assert.Same(t, first, found)

		r.Forget(first)
		assert.Nil(t, r.Lookup(bookstore.Authors, first.KeyID()))
		r.Clear()
		assert.Zero(t, r.Len())
	})
}

func TestReload(t *testing.T) {
	ctx := context.Background()
	drv := openCatalog(t)

	author := bookstore.NewAuthor("Octavia Butler")
	err := author.Reload(ctx, drv)
	assert.ErrorIs(t, err, tabula.ErrMissingKey)

	_, err = author.Save(ctx, drv)
	require.NoError(t, err)
	author.SetName("changed")
	require.True(t, author.HasModifiedFields())
	require.NoError(t, author.Reload(ctx, drv))
	assert.Equal(t, "Octavia Butler", author.Name())
	assert.False(t, author.HasModifiedFields())

	_, err = drv.DB().ExecContext(ctx, `DELETE FROM authors WHERE id = ?`, author.ID())
	require.NoError(t, err)
	assert.True(t, tabula.IsNotFound(author.Reload(ctx, drv)))
}

func TestDeleteAndConstraints(t *testing.T) {
	ctx := context.Background()
	drv := openCatalog(t)

	lib := bookstore.NewLibrary("Unique")
	_, err := lib.Save(ctx, drv)
	require.NoError(t, err)

	dup := bookstore.NewLibrary("Unique")
	ok, err := dup.Save(ctx, drv)
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, dup.IsNew())
	assert.True(t, dup.IsModified("name"), "a failed save keeps the entity dirty")
	assert.True(t, tabula.IsStorageError(err))
	assert.True(t, tabula.IsConstraintError(err))
	var serr *tabula.StorageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "libraries", serr.Table)
	assert.Equal(t, "insert", serr.Op)
	assert.Equal(t, sqlgraph.UniqueConstraint, serr.Constraint())

	book := bookstore.NewBook("Orphan")
	require.NoError(t, book.SetField("author_id", int64(12345)))
	_, err = book.Save(ctx, drv)
	assert.True(t, sqlgraph.IsForeignKeyConstraintError(err))

	ok, err = lib.Delete(ctx, drv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, lib.IsDeleted())
	assert.EqualValues(t, 0, count(t, drv, `SELECT COUNT(*) FROM libraries`))

	ok, err = lib.Save(ctx, drv)
	require.NoError(t, err)
	assert.False(t, ok, "deleted entities are not saved")
	assert.EqualValues(t, 0, count(t, drv, `SELECT COUNT(*) FROM libraries`))
}

func TestWithTxRollback(t *testing.T) {
	ctx := context.Background()
	drv := openCatalog(t)

	boom := errors.New("boom")
	err := tabula.WithTx(ctx, drv, func(tx dialect.Tx) error {
		author := bookstore.NewAuthor("Transient")
		require.NoError(t, author.AddBook(bookstore.NewBook("Draft")))
		if _, err := author.Save(ctx, tx); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.EqualValues(t, 0, count(t, drv, `SELECT COUNT(*) FROM authors`))
	assert.EqualValues(t, 0, count(t, drv, `SELECT COUNT(*) FROM books`))

	err = tabula.WithTx(ctx, drv, func(tx dialect.Tx) error {
		_, err := bookstore.NewAuthor("Durable").Save(ctx, tx)
		return err
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count(t, drv, `SELECT COUNT(*) FROM authors`))
}
