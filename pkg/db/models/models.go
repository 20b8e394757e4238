package models

// All returns every persisted model in dependency order.
func All() []any {
	return []any{&Payment{}, &License{}, &User{}, &DemoUsage{}}
}
