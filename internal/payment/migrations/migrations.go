// Package migrations содержит встроенные SQL миграции Payment Service
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
