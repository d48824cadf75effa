// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bandit

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidConfiguration indicates a caller precondition was violated.
	ErrInvalidConfiguration = errors.New("invalid bandit configuration")

	// ErrEmptyArmSet indicates an arm set was built with no arms.
	ErrEmptyArmSet = fmt.Errorf("%w: arm set must contain at least one arm", ErrInvalidConfiguration)

	// ErrArmOutOfRange indicates an arm index outside [0, K).
	ErrArmOutOfRange = fmt.Errorf("%w: arm index out of range", ErrInvalidConfiguration)

	// ErrInvalidTrials indicates a non-positive trial count.
	ErrInvalidTrials = fmt.Errorf("%w: trial count must be positive", ErrInvalidConfiguration)

	// ErrNilPolicy indicates a nil policy was handed to the runner.
	ErrNilPolicy = fmt.Errorf("%w: policy must not be nil", ErrInvalidConfiguration)

	// ErrNilArmSet indicates a policy was built without an arm set.
	ErrNilArmSet = fmt.Errorf("%w: arm set must not be nil", ErrInvalidConfiguration)
)

// armError reports an out-of-range arm with its bounds.
func armError(arm, k int) error {
	return fmt.Errorf("%w: got %d, want [0, %d)", ErrArmOutOfRange, arm, k)
}
