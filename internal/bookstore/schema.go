// Package bookstore declares a small catalog of authors, books and
// libraries on top of tabula, with typed accessors in the style of
// generated code. It is used by the tests of the tabula packages.
package bookstore

import (
	"strings"

	"github.com/syssam/tabula"
	"github.com/syssam/tabula/migrate"
)

// Table names.
const (
	AuthorsTable   = "authors"
	BooksTable     = "books"
	LibrariesTable = "libraries"
	HoldingsTable  = "books_libraries"
)

// Declarations of the catalog tables. They are resolved by Schema.
var (
	Authors = &tabula.Table{
		Name:       AuthorsTable,
		Columns:    []string{"id", "name", "bio"},
		PrimaryKey: []string{"id"},
		Derived:    []string{"book_count"},
		Relations: []*tabula.Relation{
			{Name: "books", Kind: tabula.OneToMany, Target: BooksTable, OrderBy: []string{"id"}},
		},
		Validate: validateAuthor,
	}
	Books = &tabula.Table{
		Name:       BooksTable,
		Columns:    []string{"id", "title", "author_id", "published"},
		PrimaryKey: []string{"id"},
		Relations: []*tabula.Relation{
			{Name: "author", Kind: tabula.BelongsTo, Target: AuthorsTable},
			{Name: "libraries", Kind: tabula.ManyToMany, Target: LibrariesTable, JoinColumns: []string{"joined_at"}, OrderBy: []string{"libraries.id"}},
		},
		Validate: validateBook,
	}
	Libraries = &tabula.Table{
		Name:       LibrariesTable,
		Columns:    []string{"id", "name", "city"},
		PrimaryKey: []string{"id"},
		Relations: []*tabula.Relation{
			{Name: "books", Kind: tabula.ManyToMany, Target: BooksTable, JoinColumns: []string{"joined_at"}, OrderBy: []string{"books.id"}},
		},
	}
)

// Schema is the resolved catalog schema.
var Schema = mustSchema(Authors, Books, Libraries)

func mustSchema(tables ...*tabula.Table) *tabula.Schema {
	s, err := tabula.NewSchema(tables...)
	if err != nil {
		panic(err)
	}
	return s
}

func validateAuthor(e *tabula.Entity) {
	if name, _ := e.Get("name").(string); strings.TrimSpace(name) == "" {
		e.InvalidateField("name", "must not be empty")
	}
}

func validateBook(e *tabula.Entity) {
	title, _ := e.Get("title").(string)
	switch {
	case strings.TrimSpace(title) == "":
		e.InvalidateField("title", "must not be empty")
	case len(title) > 200:
		e.InvalidateField("title", "must be at most 200 characters")
	}
}

// SQLiteMigrations creates the catalog tables on SQLite.
var SQLiteMigrations = []migrate.Migration{
	{
		ID: "0001_catalog",
		Up: []string{
			`CREATE TABLE authors (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				bio TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE books (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				title TEXT NOT NULL,
				author_id INTEGER REFERENCES authors(id),
				published INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE libraries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE,
				city TEXT
			)`,
		},
		Down: []string{
			`DROP TABLE libraries`,
			`DROP TABLE books`,
			`DROP TABLE authors`,
		},
	},
	{
		ID: "0002_holdings",
		Up: []string{
			`CREATE TABLE books_libraries (
				book_id INTEGER NOT NULL REFERENCES books(id),
				library_id INTEGER NOT NULL REFERENCES libraries(id),
				joined_at TEXT,
				PRIMARY KEY (book_id, library_id)
			)`,
		},
		Down: []string{
			`DROP TABLE books_libraries`,
		},
	},
}
