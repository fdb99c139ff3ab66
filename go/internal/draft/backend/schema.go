package backend

import _ "embed"

// Schema creates every table the repository and the outbox relay use.
// Statements are idempotent.
//
//go:embed schema.sql
var Schema string
