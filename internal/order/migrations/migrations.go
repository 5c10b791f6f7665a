// Package migrations содержит встроенные SQL миграции Order Service
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
