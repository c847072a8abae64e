// Package tabula maps table rows to in-memory entities and persists graphs
// of related entities with a single call.
//
// # Declarations
//
// A Table declares the columns, primary key, derived fields and relations
// of a database table. Tables referencing each other are resolved together
// by NewSchema, or loaded from YAML with LoadSchema.
//
// # Entities
//
// An Entity is one row. It starts New (created in memory) or Inflated
// (loaded from storage), records every field written since the last save
// with its previous value, and becomes Deleted after Delete:
//
//	author := tabula.New(authors)
//	_ = author.SetField("name", "Ursula")
//	ok, err := author.Save(ctx, drv)
//
// Insert statements carry only the modified fields, so unset columns get
// their database defaults. Update statements carry only the modified
// fields, and saving an unmodified entity writes nothing.
//
// # Collections and cascading saves
//
// Entity.Collection returns the collection of a one-to-many or
// many-to-many relation. Saving the owner saves its row first, hands a
// generated key to the members already attached, then saves the members,
// their join rows and the removed members:
//
//	books, _ := author.Collection("books")
//	_ = books.Add(tabula.New(booksTable))
//	_, err := author.Save(ctx, drv) // inserts the author, then the book with author_id set
//
// # Errors
//
// Validation problems make Save return false without error: read them
// with Entity.ValidationErrors. Database failures are returned as
// *StorageError and stop the cascade. Statements that already ran are not
// undone unless the caller passed a transaction (see WithTx) and rolls it
// back.
//
// Entities, collections and registries are not safe for concurrent use.
package tabula
