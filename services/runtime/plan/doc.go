// Copyright (C) 2025 Kestrel Edge Systems (engineering@kestreledge.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package plan models the execution plan of a compiled network on a Kestrel
// accelerator: how a core-op's computation is partitioned into hardware
// contexts, how each context's data edges are classified for buffer and
// transport planning, and how physical device streams map to user-facing
// virtual streams (including demultiplexing of muxed edges and resolution of
// fused NMS outputs).
//
// The entity graph is layer -> context -> core-op:
//
//	LayerInfo              one data edge (direction, naming, mux/fusion links)
//	ContextMetadata        one context's layers, actions and config buffers
//	CoreOpMetadata         one core-op: preliminary + dynamic contexts, query surface
//	CoreOpMetadataPerArch  core-op variants keyed by cluster-layout bitmap
//
// Every downstream stage (buffer allocation, context-switch programming,
// stream construction) reads its construction metadata from this package.
//
// # Lifecycle
//
// Entities are assembled once at network ingestion (see the planfile package
// for the file-borne collaborator surface) and are immutable afterwards.
// Mutating methods (AddBoundaryLayer and friends, CoreOpMetadataPerArch.Add)
// belong to the build phase only.
//
// # Thread Safety
//
// After construction, all query methods are pure reads over immutable data
// and are safe to call concurrently from multiple goroutines without
// synchronization. Construction and querying must not overlap; the package
// does not lock.
//
// # Errors
//
// Queries report failure through error returns built on the package sentinel
// errors: lookup misses wrap ErrStreamNotFound, ErrVStreamNotFound or
// ErrNetworkNotFound; internal-consistency failures wrap
// ErrNotInSortedOutputs, ErrNetworkNameTooLong, ErrNoVariant or
// ErrUnknownLayout. Aggregate computations fail fast on the first
// sub-failure; there is no partial result mode.
package plan
