// Package postgres содержит общие помощники для работы с PostgreSQL
package postgres

import (
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate применяет goose миграции из встроенной файловой системы.
// Вызывается сервисами при старте до открытия пула соединений.
func Migrate(dsn string, migrations fs.FS) error {
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	return goose.Up(db, ".")
}
