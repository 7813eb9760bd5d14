// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct. Migration source presence
// is deliberately not checked here: it is only required when a migration job runs
// and is enforced by the job itself as a fatal configuration error.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateMainSettings(&settings.Main); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSearchSettings(&settings.Search); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMigrationSettings(&settings.Migration); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMainSettings(main *MainSettings) error {
	if main.Name == "" {
		return fmt.Errorf("main.name must not be empty")
	}
	switch main.Log.Rotation {
	case RotationDaily, RotationWeekly, RotationSize, "":
	default:
		return fmt.Errorf("main.log.rotation must be one of daily, weekly, size: got %q", main.Log.Rotation)
	}
	return nil
}

func validateSearchSettings(search *SearchSettings) error {
	if search.Host != "" {
		if _, err := url.ParseRequestURI(search.Host); err != nil {
			return fmt.Errorf("search.host is not a valid URL: %w", err)
		}
	}
	if search.Scope == "" {
		return fmt.Errorf("search.scope must not be empty")
	}
	if search.Timeout < 0 {
		return fmt.Errorf("search.timeout must not be negative")
	}
	return nil
}

func validateMigrationSettings(migration *MigrationSettings) error {
	if migration.RetentionDays < 0 {
		return fmt.Errorf("migration.retentiondays must not be negative")
	}
	if migration.Source.Host != "" {
		if _, err := url.ParseRequestURI(migration.Source.Host); err != nil {
			return fmt.Errorf("migration.source.host is not a valid URL: %w", err)
		}
	}
	return nil
}
