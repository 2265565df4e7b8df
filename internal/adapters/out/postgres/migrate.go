package postgres

import (
	"fmt"

	"routeopt/internal/adapters/out/postgres/directoryrepo"
	"routeopt/internal/adapters/out/postgres/optimisationrepo"
	"routeopt/internal/adapters/out/postgres/routerepo"
	"routeopt/internal/adapters/out/postgres/taskrepo"

	"gorm.io/gorm"
)

// Models returns the tables owned by this service.
func Models() []any {
	return []any{
		&optimisationrepo.OptimisationDTO{},
		&routerepo.RouteDTO{},
		&routerepo.PointDTO{},
		&routerepo.RouteJobDTO{},
		&taskrepo.TaskDTO{},
	}
}

// Migrate creates or updates the schema. With withDirectory set the
// replicated entity tables are created too, which is what local setups and
// tests need.
func Migrate(db *gorm.DB, withDirectory bool) error {
	models := Models()
	if withDirectory {
		models = append(models, directoryrepo.Models()...)
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
