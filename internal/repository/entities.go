package repository

// AllEntities lists every persisted entity, for AutoMigrate in tests and
// local tooling.
func AllEntities() []any {
	return []any{
		&TenantEntity{},
		&CustomerEntity{},
		&FlowEntity{},
		&StepEntity{},
		&TemplateEntity{},
		&MessageJobEntity{},
		&CartEntity{},
	}
}
