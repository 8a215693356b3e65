package core

import "context"

// FieldStore is the remote side of a workspace: the field administration API
// of a single GlobalSearch database.
type FieldStore interface {
	// Token returns the license token issued for the configured credentials.
	Token(ctx context.Context) (string, error)

	// Version returns the raw server version string (e.g. "6.3.188.0").
	Version(ctx context.Context) (string, error)

	// Field fetches a single field by ID.
	Field(ctx context.Context, id int) (Field, error)

	// Fields returns every field of the database, live or not.
	Fields(ctx context.Context) ([]Field, error)

	// LiveFields returns only the fields carrying a live field configuration.
	LiveFields(ctx context.Context) ([]Field, error)

	// CreateLiveField creates a character field with a live field script.
	CreateLiveField(ctx context.Context, name, script string) (Field, error)

	// UpdateLiveField replaces the script and request settings of a live field,
	// keeping every other member of the field untouched.
	UpdateLiveField(ctx context.Context, id int, script string, m Mapping) error

	// DeleteField removes a field permanently.
	DeleteField(ctx context.Context, id int) error
}
