// Package migrations содержит встроенные SQL миграции Delivery Service
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
