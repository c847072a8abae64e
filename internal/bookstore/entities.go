package bookstore

import (
	"context"

	"github.com/syssam/tabula"
)

// Author is an entity of the authors table.
type Author struct {
	*tabula.Entity
}

// NewAuthor returns a new author with the given name.
func NewAuthor(name string) *Author {
	a := &Author{tabula.New(Authors)}
	a.SetName(name)
	return a
}

// ID returns the key of the author, 0 until it is saved.
func (a *Author) ID() int64 { return toInt64(a.Get("id")) }

// Name returns the value of the "name" field.
func (a *Author) Name() string { return toString(a.Get("name")) }

// SetName sets the value of the "name" field.
func (a *Author) SetName(v string) *Author {
	mustSet(a.Entity, "name", v)
	return a
}

// Bio returns the value of the "bio" field.
func (a *Author) Bio() string { return toString(a.Get("bio")) }

// SetBio sets the value of the "bio" field.
func (a *Author) SetBio(v string) *Author {
	mustSet(a.Entity, "bio", v)
	return a
}

// Books returns the collection of books written by the author, without
// querying storage.
func (a *Author) Books() *tabula.Collection {
	return mustCollection(a.Entity, "books")
}

// LoadBooks queries the books written by the author.
func (a *Author) LoadBooks(ctx context.Context, ex tabula.Executor, opts ...tabula.QueryOption) ([]*Book, error) {
	c, err := a.LoadCollection(ctx, ex, "books", opts...)
	if err != nil {
		return nil, err
	}
	return wrapBooks(c), nil
}

// AddBook adds b to the books written by the author.
func (a *Author) AddBook(b *Book) error {
	return a.Books().Add(b.Entity)
}

// Book is an entity of the books table.
type Book struct {
	*tabula.Entity
}

// NewBook returns a new book with the given title.
func NewBook(title string) *Book {
	b := &Book{tabula.New(Books)}
	b.SetTitle(title)
	return b
}

// ID returns the key of the book, 0 until it is saved.
func (b *Book) ID() int64 { return toInt64(b.Get("id")) }

// Title returns the value of the "title" field.
func (b *Book) Title() string { return toString(b.Get("title")) }

// SetTitle sets the value of the "title" field.
func (b *Book) SetTitle(v string) *Book {
	mustSet(b.Entity, "title", v)
	return b
}

// AuthorID returns the value of the "author_id" field, 0 if unset.
func (b *Book) AuthorID() int64 { return toInt64(b.Get("author_id")) }

// Published reports whether the book is published.
func (b *Book) Published() bool { return toInt64(b.Get("published")) != 0 }

// SetPublished sets the value of the "published" field.
func (b *Book) SetPublished(v bool) *Book {
	var n int64
	if v {
		n = 1
	}
	mustSet(b.Entity, "published", n)
	return b
}

// SetAuthor sets the author of the book.
func (b *Book) SetAuthor(a *Author) error {
	if a == nil {
		return b.SetRelated("author", nil)
	}
	return b.SetRelated("author", a.Entity)
}

// QueryAuthor loads the author of the book.
func (b *Book) QueryAuthor(ctx context.Context, ex tabula.Executor) (*Author, error) {
	e, err := b.Related(ctx, ex, "author")
	if err != nil || e == nil {
		return nil, err
	}
	return &Author{e}, nil
}

// Libraries returns the collection of libraries holding the book, without
// querying storage.
func (b *Book) Libraries() *tabula.Collection {
	return mustCollection(b.Entity, "libraries")
}

// AddLibrary adds l to the libraries holding the book. The holding is
// stored when the book is saved.
func (b *Book) AddLibrary(l *Library, joinedAt string) error {
	if err := b.Libraries().Add(l.Entity); err != nil {
		return err
	}
	return l.SetJoinField("joined_at", joinedAt)
}

// JoinedAt returns the date the book entered the library it was loaded
// through.
func (b *Book) JoinedAt() string {
	v, _ := b.JoinField("joined_at")
	return toString(v)
}

// Library is an entity of the libraries table.
type Library struct {
	*tabula.Entity
}

// NewLibrary returns a new library with the given name.
func NewLibrary(name string) *Library {
	l := &Library{tabula.New(Libraries)}
	mustSet(l.Entity, "name", name)
	return l
}

// ID returns the key of the library, 0 until it is saved.
func (l *Library) ID() int64 { return toInt64(l.Get("id")) }

// Name returns the value of the "name" field.
func (l *Library) Name() string { return toString(l.Get("name")) }

// City returns the value of the "city" field.
func (l *Library) City() string { return toString(l.Get("city")) }

// SetCity sets the value of the "city" field.
func (l *Library) SetCity(v string) *Library {
	mustSet(l.Entity, "city", v)
	return l
}

// JoinedAt returns the date the library received the book it was loaded
// through.
func (l *Library) JoinedAt() string {
	v, _ := l.JoinField("joined_at")
	return toString(v)
}

// LoadBooks queries the books held by the library.
func (l *Library) LoadBooks(ctx context.Context, ex tabula.Executor, opts ...tabula.QueryOption) ([]*Book, error) {
	c, err := l.LoadCollection(ctx, ex, "books", opts...)
	if err != nil {
		return nil, err
	}
	return wrapBooks(c), nil
}

// FindAuthor loads the author with the given id.
func FindAuthor(ctx context.Context, ex tabula.Executor, id int64) (*Author, error) {
	e, err := tabula.Find(ctx, ex, Authors, id)
	if err != nil {
		return nil, err
	}
	return &Author{e}, nil
}

// FindBook loads the book with the given id.
func FindBook(ctx context.Context, ex tabula.Executor, id int64) (*Book, error) {
	e, err := tabula.Find(ctx, ex, Books, id)
	if err != nil {
		return nil, err
	}
	return &Book{e}, nil
}

// FindLibrary loads the library with the given id.
func FindLibrary(ctx context.Context, ex tabula.Executor, id int64) (*Library, error) {
	e, err := tabula.Find(ctx, ex, Libraries, id)
	if err != nil {
		return nil, err
	}
	return &Library{e}, nil
}

func wrapBooks(c *tabula.Collection) []*Book {
	books := make([]*Book, 0, c.Len())
	for _, e := range c.All() {
		books = append(books, &Book{e})
	}
	return books
}

// mustSet panics on undeclared fields, which are programming errors in
// the declarations above.
func mustSet(e *tabula.Entity, name string, v any) {
	if err := e.SetField(name, v); err != nil {
		panic(err)
	}
}

func mustCollection(e *tabula.Entity, name string) *tabula.Collection {
	c, err := e.Collection(name)
	if err != nil {
		panic(err)
	}
	return c
}

func toInt64(v any) int64 {
	switch v := v.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	default:
		return 0
	}
}

func toString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}
