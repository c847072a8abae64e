package sql

import (
	"testing"

	"github.com/syssam/tabula/dialect"
)

func BenchmarkInsertBuilder_Default(b *testing.B) {
	for _, d := range []string{dialect.SQLite, dialect.MySQL, dialect.Postgres} {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Dialect(d).Insert("users").Returning("id").Query()
			}
		})
	}
}

func BenchmarkInsertBuilder_Small(b *testing.B) {
	for _, d := range []string{dialect.SQLite, dialect.MySQL, dialect.Postgres} {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Dialect(d).Insert("users").
					Set("age", 30).
					Set("first_name", "Ariel").
					Set("last_name", "Mashraki").
					Set("nickname", "a8m").
					Set("spouse_id", 2).
					Set("created_at", "2009-11-10 23:00:00").
					Returning("id").
					Query()
			}
		})
	}
}

func BenchmarkSelectBuilder_WithJoin(b *testing.B) {
	for _, d := range []string{dialect.SQLite, dialect.MySQL, dialect.Postgres} {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Dialect(d).Select("groups.*", As("group_users.role", "group_users.role")).
					From("groups").
					Join("group_users", "group_users.group_id", "groups.id").
					Where(EQ("group_users.user_id", 1)).
					OrderBy(Desc("groups.id")).
					Limit(10).
					Query()
			}
		})
	}
}

func BenchmarkUpdateBuilder_Multiple(b *testing.B) {
	for _, d := range []string{dialect.SQLite, dialect.MySQL, dialect.Postgres} {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Dialect(d).Update("users").
					Set("name", "foo").
					Set("age", 10).
					Set("active", true).
					Where(FieldsEQ(map[string]any{"id": 1, "tenant": "t"})).
					Query()
			}
		})
	}
}

func BenchmarkInline(b *testing.B) {
	query, args := Dialect(dialect.Postgres).Update("users").
		Set("name", "it's").
		Set("age", 10).
		Where(EQ("id", 1)).
		Query()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Inline(dialect.Postgres, query, args)
	}
}
