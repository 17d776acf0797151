package models

// All lists every persisted model in dependency order, for AutoMigrate on
// drivers without goose migrations.
func All() []any {
	return []any{
		&Member{},
		&User{},
		&Transaction{},
		&LocationEvent{},
		&MenuItem{},
		&OutboxEvent{},
	}
}
