// Copyright (C) 2025 Kestrel Edge Systems (engineering@kestreledge.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package plan

import "errors"

// Sentinel errors for the plan package.
var (
	// ErrStreamNotFound indicates no layer carries the requested physical
	// stream name.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrVStreamNotFound indicates no layer resolves to the requested
	// virtual stream name.
	ErrVStreamNotFound = errors.New("vstream not found")

	// ErrNetworkNotFound indicates a network-name filter matched no layers.
	ErrNetworkNotFound = errors.New("network not found in plan metadata")

	// ErrInvalidFormat indicates a layer's declared shape or format does not
	// yield a computable frame size.
	ErrInvalidFormat = errors.New("layer has no computable frame size")

	// ErrNotInSortedOutputs indicates a derived output virtual stream is
	// missing from the declared output ordering. The plan is internally
	// inconsistent; callers must not fall back to an arbitrary order.
	ErrNotInSortedOutputs = errors.New("vstream missing from sorted output names")

	// ErrNetworkNameTooLong indicates a declared network name does not fit a
	// fixed-capacity network info record.
	ErrNetworkNameTooLong = errors.New("network name exceeds record capacity")

	// ErrNoVariant indicates a variant selector holds no metadata at all.
	ErrNoVariant = errors.New("no core-op metadata variants stored")

	// ErrUnknownLayout indicates no metadata variant was stored for the
	// requested cluster-layout bitmap.
	ErrUnknownLayout = errors.New("no metadata for cluster layout")
)
