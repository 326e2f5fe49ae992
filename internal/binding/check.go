package binding

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/starford/vellum/internal/models"
)

var (
	// ErrAsymmetric reports a binding recorded on one side only.
	ErrAsymmetric = errors.New("asymmetric binding")
	// ErrDuplicateLabel reports a container with more than one live label.
	ErrDuplicateLabel = errors.New("duplicate label")
	// ErrSameTarget reports a two-point connector bound to one element at both ends.
	ErrSameTarget = errors.New("connector bound to the same element at both ends")
)

// Check verifies the binding invariants over the live elements and returns
// every violation combined. Deleted elements are exempt.
func Check(elements *models.ElementsMap) error {
	var err error
	live := func(id string) (*models.Element, bool) {
		el, ok := elements.Get(id)
		if !ok || el.IsDeleted {
			return nil, false
		}
		return el, true
	}

	for el := range elements.All {
		if el.IsDeleted {
			continue
		}
		if sameTargetEnds(el) {
			err = multierr.Append(err, fmt.Errorf("%w: %q", ErrSameTarget, el.ID))
		}
		for _, p := range Properties {
			if p == FrameID {
				continue
			}
			target := Target(el, p)
			if target == "" {
				continue
			}
			counterpart, ok := live(target)
			if ok && !counterpart.HasBoundElement(el.ID) {
				err = multierr.Append(err, fmt.Errorf("%w: %q.%v -> %q not listed", ErrAsymmetric, el.ID, p, target))
			}
		}

		labels := 0
		for _, entry := range el.BoundElements {
			bound, ok := live(entry.ID)
			if !ok {
				continue
			}
			if !References(bound, el.ID) {
				err = multierr.Append(err, fmt.Errorf("%w: %q lists %q which does not point back", ErrAsymmetric, el.ID, entry.ID))
				continue
			}
			if bound.Type == models.TypeText {
				labels++
			}
		}
		if labels > 1 {
			err = multierr.Append(err, fmt.Errorf("%w: %q has %d labels", ErrDuplicateLabel, el.ID, labels))
		}
	}
	return err
}

// Violations splits a Check result into individual errors.
func Violations(err error) []error {
	return multierr.Errors(err)
}
