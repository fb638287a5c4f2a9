// Package reconcile diffs proposed contact field updates against a
// freshly fetched record, keeping only the suggestions that would
// actually change stored data.
package reconcile

import (
	"github.com/notewell/crmbridge/internal/crm"
)

// Merge fills each suggestion's current value from the live record,
// drops suggestions whose new value equals the current one, and marks
// every survivor as a real, applicable change. Pure function, no I/O.
//
// The proposer's idea of the current value is never trusted; it is
// overwritten with whatever the live record holds. An empty result is
// success, it means nothing needs to change.
func Merge(suggestions []crm.FieldUpdate, liveContact *crm.ContactRecord, policy *Policy) []crm.FieldUpdate {
	merged := []crm.FieldUpdate{}

	for _, suggestion := range suggestions {
		var current *string
		if liveContact != nil {
			if value, ok := liveContact.Value(suggestion.Field); ok {
				v := value
				current = &v
			}
		}

		if !differs(current, suggestion.NewValue, policy.emptyEqualsNull(suggestion.Field)) {
			continue
		}

		suggestion.CurrentValue = current
		suggestion.HasChange = true
		suggestion.Apply = true
		merged = append(merged, suggestion)
	}

	return merged
}

// differs reports whether writing newValue would change the stored
// value. Absent (nil) and empty string are distinct unless the field's
// policy collapses them.
func differs(current *string, newValue string, emptyEqualsNull bool) bool {
	if current == nil {
		if emptyEqualsNull && newValue == "" {
			return false
		}
		return true
	}

	if emptyEqualsNull && *current == "" && newValue == "" {
		return false
	}

	return *current != newValue
}
