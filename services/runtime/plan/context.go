// Copyright (C) 2025 Kestrel Edge Systems (engineering@kestreledge.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package plan

import "fmt"

// ContextMetadata owns the layers, actions and config buffers of one
// hardware-executable context.
//
// Layers are classified at insertion into exactly one category (boundary,
// inter-context, ddr) and split by direction. Callers guarantee the category;
// the Add methods only dispatch on direction. A context is built once during
// ingestion and immutable afterwards.
type ContextMetadata struct {
	actions           []Action
	configBufferSizes ConfigBufferSizes

	boundaryInput      []LayerInfo
	boundaryOutput     []LayerInfo
	interContextInput  []LayerInfo
	interContextOutput []LayerInfo
	ddrInput           []LayerInfo
	ddrOutput          []LayerInfo
}

// NewContextMetadata creates a context over its action list and config-buffer
// size map. Both are owned by the context after the call.
func NewContextMetadata(actions []Action, configBufferSizes ConfigBufferSizes) *ContextMetadata {
	return &ContextMetadata{
		actions:           actions,
		configBufferSizes: configBufferSizes,
	}
}

// AddBoundaryLayer records a network-level input/output edge.
func (c *ContextMetadata) AddBoundaryLayer(layer LayerInfo) {
	if layer.Direction == HostToDevice {
		c.boundaryInput = append(c.boundaryInput, layer)
	} else {
		c.boundaryOutput = append(c.boundaryOutput, layer)
	}
}

// AddInterContextLayer records an edge carrying data between contexts.
func (c *ContextMetadata) AddInterContextLayer(layer LayerInfo) {
	if layer.Direction == HostToDevice {
		c.interContextInput = append(c.interContextInput, layer)
	} else {
		c.interContextOutput = append(c.interContextOutput, layer)
	}
}

// AddDDRLayer records an edge routed through secondary storage.
func (c *ContextMetadata) AddDDRLayer(layer LayerInfo) {
	if layer.Direction == HostToDevice {
		c.ddrInput = append(c.ddrInput, layer)
	} else {
		c.ddrOutput = append(c.ddrOutput, layer)
	}
}

// Actions returns the full action list in execution order.
func (c *ContextMetadata) Actions() []Action {
	return c.actions
}

// ActionsOfType returns the sub-sequence of actions whose type is one of the
// given types, preserving original order.
func (c *ContextMetadata) ActionsOfType(types ...ActionType) []Action {
	wanted := make(map[ActionType]struct{}, len(types))
	for _, t := range types {
		wanted[t] = struct{}{}
	}
	var filtered []Action
	for _, action := range c.actions {
		if _, ok := wanted[action.Type]; ok {
			filtered = append(filtered, action)
		}
	}
	return filtered
}

// ConfigBufferSizes returns the per-config-stream burst size map.
func (c *ContextMetadata) ConfigBufferSizes() ConfigBufferSizes {
	return c.configBufferSizes
}

// BoundaryInputLayers returns the boundary layers in host-to-device direction.
func (c *ContextMetadata) BoundaryInputLayers() []LayerInfo { return c.boundaryInput }

// BoundaryOutputLayers returns the boundary layers in device-to-host direction.
func (c *ContextMetadata) BoundaryOutputLayers() []LayerInfo { return c.boundaryOutput }

// InterContextInputLayers returns the inter-context layers in host-to-device direction.
func (c *ContextMetadata) InterContextInputLayers() []LayerInfo { return c.interContextInput }

// InterContextOutputLayers returns the inter-context layers in device-to-host direction.
func (c *ContextMetadata) InterContextOutputLayers() []LayerInfo { return c.interContextOutput }

// DDRInputLayers returns the ddr layers in host-to-device direction.
func (c *ContextMetadata) DDRInputLayers() []LayerInfo { return c.ddrInput }

// DDROutputLayers returns the ddr layers in device-to-host direction.
func (c *ContextMetadata) DDROutputLayers() []LayerInfo { return c.ddrOutput }

// TransferSize sums the config-buffer sizes and the transfer size of every
// layer in the context, across all six category sequences. The first layer
// whose size cannot be computed fails the whole sum.
func (c *ContextMetadata) TransferSize() (uint64, error) {
	var total uint64
	for _, sizes := range c.configBufferSizes {
		for _, size := range sizes {
			total += uint64(size)
		}
	}
	for _, layers := range [][]LayerInfo{
		c.boundaryInput, c.boundaryOutput,
		c.interContextInput, c.interContextOutput,
		c.ddrInput, c.ddrOutput,
	} {
		size, err := layersTransferSize(layers)
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}

func layersTransferSize(layers []LayerInfo) (uint64, error) {
	var total uint64
	for _, layer := range layers {
		size, err := TransferSize(layer)
		if err != nil {
			return 0, fmt.Errorf("layer transfer size: %w", err)
		}
		total += size
	}
	return total, nil
}
