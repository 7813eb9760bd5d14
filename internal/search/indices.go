package search

import (
	"fmt"
	"time"
)

// Index naming for the two generations. The previous generation keeps the fixed
// logical collections in one shared physical index discriminated by a type field;
// the new generation gives each collection its own index. Daily event partitions
// keep their date suffix across generations.
const (
	// EventDateFormat is the date suffix of daily event partitions.
	EventDateFormat = "2006.01.02"

	// EventDateField is the timestamp field of event documents, used for
	// cutoff filtering and reindex ordering.
	EventDateField = "date"

	// IDField is the stable identifier field used for reindex ordering when
	// no date field applies.
	IDField = "id"
)

// MainIndex returns the previous-generation shared index for fixed collections.
func MainIndex(scope string) string {
	return fmt.Sprintf("%s-main", scope)
}

// CollectionIndex returns the new-generation index for a fixed logical collection.
func CollectionIndex(scope, collection string) string {
	return fmt.Sprintf("%s-v2-%s", scope, collection)
}

// EventIndex returns the previous-generation daily event partition for a day.
func EventIndex(scope string, day time.Time) string {
	return fmt.Sprintf("%s-events-%s", scope, day.Format(EventDateFormat))
}

// NewEventIndex returns the new-generation daily event partition for a day.
func NewEventIndex(scope string, day time.Time) string {
	return fmt.Sprintf("%s-v2-events-%s", scope, day.Format(EventDateFormat))
}

// EventAlias returns the stable read alias for event data.
func EventAlias(scope string) string {
	return fmt.Sprintf("%s-events", scope)
}
