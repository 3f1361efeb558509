// Copyright (C) 2025 Kestrel Edge Systems (engineering@kestreledge.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package planfile

import "errors"

// Sentinel errors for plan-description ingestion.
var (
	// ErrInvalidPlan indicates the plan description failed structural or
	// field validation. The wrapped detail names the offending field.
	ErrInvalidPlan = errors.New("invalid plan description")

	// ErrMuxTooDeep indicates a mux predecessor tree exceeds the depth
	// bound, which means a cyclic or runaway reference in the description.
	ErrMuxTooDeep = errors.New("mux predecessor tree too deep")

	// ErrDuplicateLayout indicates two variants of one core-op declare the
	// same cluster-layout bitmap.
	ErrDuplicateLayout = errors.New("duplicate cluster-layout bitmap")
)
