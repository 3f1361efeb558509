// Copyright (C) 2025 Kestrel Edge Systems (engineering@kestreledge.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package plan

import (
	"fmt"
	"sort"
)

const (
	// NonDynamicContextsCount is the number of always-present contexts that
	// are not part of the dynamic execution sequence: the activation context
	// and the preliminary context.
	NonDynamicContextsCount = 2

	// MaxNetworkNameSize is the fixed capacity of a NetworkInfo name record,
	// including the NUL terminator.
	MaxNetworkNameSize = 128
)

// NetworkInfo is a fixed-capacity network name record, NUL-terminated, as
// handed to enumeration consumers.
type NetworkInfo struct {
	Name [MaxNetworkNameSize]byte
}

// NameString returns the name up to the NUL terminator.
func (n NetworkInfo) NameString() string {
	for i, b := range n.Name {
		if b == 0 {
			return string(n.Name[:i])
		}
	}
	return string(n.Name[:])
}

// DefaultNetworkName derives the implicit single-network name of a core-op.
// A filter equal to this name matches every layer of the core-op.
func DefaultNetworkName(coreOpName string) string {
	return coreOpName + "/" + coreOpName
}

// Config carries everything the external parser resolves for one core-op.
type Config struct {
	Name string

	// PreliminaryContext runs once before any dynamic context. It never
	// holds boundary layers.
	PreliminaryContext *ContextMetadata

	// DynamicContexts is the execution sequence of the core-op, in order.
	DynamicContexts []*ContextMetadata

	ConfigChannels     []ConfigChannelInfo
	SortedOutputNames  []string
	SortedNetworkNames []string
	Features           SupportedFeatures

	// OutputVStreams is the precomputed output vstream list, returned
	// verbatim when Features.NetFlow is set.
	OutputVStreams []VStreamInfo

	// DefaultNetworkName overrides the derived default network name.
	// Empty means DefaultNetworkName(Name).
	DefaultNetworkName string
}

// CoreOpMetadata is the query surface over one compiled core-op: its
// preliminary context, its ordered dynamic contexts and the per-network
// bookkeeping declared by the compiler. Immutable after construction; see the
// package documentation for the concurrency contract.
type CoreOpMetadata struct {
	name               string
	preliminaryContext *ContextMetadata
	dynamicContexts    []*ContextMetadata
	configChannels     []ConfigChannelInfo
	sortedOutputNames  []string
	sortedOutputIndex  map[string]int
	sortedNetworkNames []string
	features           SupportedFeatures
	outputVStreams     []VStreamInfo
	defaultNetworkName string
}

// NewCoreOpMetadata assembles the metadata of one core-op from parser output.
func NewCoreOpMetadata(cfg Config) *CoreOpMetadata {
	preliminary := cfg.PreliminaryContext
	if preliminary == nil {
		preliminary = NewContextMetadata(nil, nil)
	}
	defaultName := cfg.DefaultNetworkName
	if defaultName == "" {
		defaultName = DefaultNetworkName(cfg.Name)
	}
	sortedIndex := make(map[string]int, len(cfg.SortedOutputNames))
	for i, name := range cfg.SortedOutputNames {
		if _, ok := sortedIndex[name]; !ok {
			sortedIndex[name] = i
		}
	}
	return &CoreOpMetadata{
		name:               cfg.Name,
		preliminaryContext: preliminary,
		dynamicContexts:    cfg.DynamicContexts,
		configChannels:     cfg.ConfigChannels,
		sortedOutputNames:  cfg.SortedOutputNames,
		sortedOutputIndex:  sortedIndex,
		sortedNetworkNames: cfg.SortedNetworkNames,
		features:           cfg.Features,
		outputVStreams:     cfg.OutputVStreams,
		defaultNetworkName: defaultName,
	}
}

// Name returns the core-op name.
func (m *CoreOpMetadata) Name() string { return m.name }

// PreliminaryContext returns the context executed once before the dynamic
// sequence.
func (m *CoreOpMetadata) PreliminaryContext() *ContextMetadata { return m.preliminaryContext }

// DynamicContexts returns the execution sequence of the core-op.
func (m *CoreOpMetadata) DynamicContexts() []*ContextMetadata { return m.dynamicContexts }

// ConfigChannelInfos returns the config-channel descriptors.
func (m *CoreOpMetadata) ConfigChannelInfos() []ConfigChannelInfo { return m.configChannels }

// SortedOutputNames returns the declared canonical output ordering.
func (m *CoreOpMetadata) SortedOutputNames() []string { return m.sortedOutputNames }

// SortedNetworkNames returns the declared network names of the core-op.
func (m *CoreOpMetadata) SortedNetworkNames() []string { return m.sortedNetworkNames }

// Features returns the compiler-declared capability flags.
func (m *CoreOpMetadata) Features() SupportedFeatures { return m.features }

// =============================================================================
// Layer queries
// =============================================================================

// networkMatches implements the filter rule shared by every filtered query:
// a layer matches when its network equals the filter, the filter is empty, or
// the filter names the core-op's default network.
func (m *CoreOpMetadata) networkMatches(layerNetwork, filter string) bool {
	return filter == "" || layerNetwork == filter || filter == m.defaultNetworkName
}

// LayerInfoByStreamName returns the boundary layer carrying the given
// physical stream name.
func (m *CoreOpMetadata) LayerInfoByStreamName(streamName string) (LayerInfo, error) {
	for _, layer := range m.allBoundaryLayers() {
		if layer.Name == streamName {
			return layer, nil
		}
	}
	return LayerInfo{}, fmt.Errorf("layer %q: %w", streamName, ErrStreamNotFound)
}

// InputLayerInfos collects the boundary input layers across all dynamic
// contexts, optionally filtered by network name. An empty filter never fails;
// a non-empty filter fails when it matches nothing.
//
// Boundary layers exist only in dynamic contexts, so the preliminary context
// is never consulted.
func (m *CoreOpMetadata) InputLayerInfos(network string) ([]LayerInfo, error) {
	var layers []LayerInfo
	for _, ctx := range m.dynamicContexts {
		for _, layer := range ctx.BoundaryInputLayers() {
			if m.networkMatches(layer.NetworkName, network) {
				layers = append(layers, layer)
			}
		}
	}
	if network != "" && len(layers) == 0 {
		return nil, fmt.Errorf("network %q: %w", network, ErrNetworkNotFound)
	}
	return layers, nil
}

// OutputLayerInfos collects the boundary output layers across all dynamic
// contexts, with the same filter semantics as InputLayerInfos.
func (m *CoreOpMetadata) OutputLayerInfos(network string) ([]LayerInfo, error) {
	var layers []LayerInfo
	for _, ctx := range m.dynamicContexts {
		for _, layer := range ctx.BoundaryOutputLayers() {
			if m.networkMatches(layer.NetworkName, network) {
				layers = append(layers, layer)
			}
		}
	}
	if network != "" && len(layers) == 0 {
		return nil, fmt.Errorf("network %q: %w", network, ErrNetworkNotFound)
	}
	return layers, nil
}

// AllLayerInfos concatenates the filtered input layers, then output layers.
func (m *CoreOpMetadata) AllLayerInfos(network string) ([]LayerInfo, error) {
	inputs, err := m.InputLayerInfos(network)
	if err != nil {
		return nil, err
	}
	outputs, err := m.OutputLayerInfos(network)
	if err != nil {
		return nil, err
	}
	all := make([]LayerInfo, 0, len(inputs)+len(outputs))
	all = append(all, inputs...)
	return append(all, outputs...), nil
}

// allBoundaryLayers is the unfiltered input-then-output collection used by
// the name-resolution queries.
func (m *CoreOpMetadata) allBoundaryLayers() []LayerInfo {
	inputs, _ := m.InputLayerInfos("")
	outputs, _ := m.OutputLayerInfos("")
	all := make([]LayerInfo, 0, len(inputs)+len(outputs))
	all = append(all, inputs...)
	return append(all, outputs...)
}

// =============================================================================
// Stream and vstream resolution
// =============================================================================

// InputStreamInfos maps the filtered input layers 1:1 to physical stream
// descriptors, in layer collection order.
func (m *CoreOpMetadata) InputStreamInfos(network string) ([]StreamInfo, error) {
	layers, err := m.InputLayerInfos(network)
	if err != nil {
		return nil, err
	}
	return layersToStreamInfos(layers), nil
}

// OutputStreamInfos maps the filtered output layers 1:1 to physical stream
// descriptors, in layer collection order.
func (m *CoreOpMetadata) OutputStreamInfos(network string) ([]StreamInfo, error) {
	layers, err := m.OutputLayerInfos(network)
	if err != nil {
		return nil, err
	}
	return layersToStreamInfos(layers), nil
}

// AllStreamInfos concatenates the filtered input stream infos, then outputs.
func (m *CoreOpMetadata) AllStreamInfos(network string) ([]StreamInfo, error) {
	inputs, err := m.InputStreamInfos(network)
	if err != nil {
		return nil, err
	}
	outputs, err := m.OutputStreamInfos(network)
	if err != nil {
		return nil, err
	}
	all := make([]StreamInfo, 0, len(inputs)+len(outputs))
	all = append(all, inputs...)
	return append(all, outputs...), nil
}

// InputVStreamInfos derives the virtual stream descriptors of the filtered
// input layers. A vstream already present by name is not duplicated.
func (m *CoreOpMetadata) InputVStreamInfos(network string) ([]VStreamInfo, error) {
	layers, err := m.InputLayerInfos(network)
	if err != nil {
		return nil, err
	}
	return layersToVStreamInfos(layers), nil
}

// OutputVStreamInfos returns the output virtual stream descriptors.
//
// Under the net-flow feature the compiler precomputes the list and it is
// returned verbatim. Otherwise the vstreams are derived from the filtered
// output layers and sorted by the declared output ordering; a derived name
// absent from that ordering is an internal-consistency failure, never a
// silently arbitrary order.
func (m *CoreOpMetadata) OutputVStreamInfos(network string) ([]VStreamInfo, error) {
	if m.features.NetFlow {
		infos := make([]VStreamInfo, len(m.outputVStreams))
		copy(infos, m.outputVStreams)
		return infos, nil
	}
	layers, err := m.OutputLayerInfos(network)
	if err != nil {
		return nil, err
	}
	infos := layersToVStreamInfos(layers)

	// Validate before sorting so the comparator stays total.
	for _, info := range infos {
		if _, ok := m.sortedOutputIndex[info.Name]; !ok {
			return nil, fmt.Errorf("vstream %q: %w", info.Name, ErrNotInSortedOutputs)
		}
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return m.sortedOutputIndex[infos[i].Name] < m.sortedOutputIndex[infos[j].Name]
	})
	return infos, nil
}

// AllVStreamInfos concatenates the input vstream infos, then outputs.
func (m *CoreOpMetadata) AllVStreamInfos(network string) ([]VStreamInfo, error) {
	inputs, err := m.InputVStreamInfos(network)
	if err != nil {
		return nil, err
	}
	outputs, err := m.OutputVStreamInfos(network)
	if err != nil {
		return nil, err
	}
	all := make([]VStreamInfo, 0, len(inputs)+len(outputs))
	all = append(all, inputs...)
	return append(all, outputs...), nil
}

// VStreamNamesFromStreamName resolves a physical stream name to the virtual
// stream names it backs: the canonical fused name for a defused NMS layer,
// the pre-order demux leaves for a mux layer, the layer's own name otherwise.
func (m *CoreOpMetadata) VStreamNamesFromStreamName(streamName string) ([]string, error) {
	for _, layer := range m.allBoundaryLayers() {
		if layer.Name != streamName {
			continue
		}
		switch {
		case layer.IsDefusedNMS:
			return []string{layer.FusedLayer[0].Name}, nil
		case layer.IsMux:
			return DemuxNames(layer), nil
		default:
			return []string{layer.Name}, nil
		}
	}
	return nil, fmt.Errorf("stream %q: %w", streamName, ErrStreamNotFound)
}

// StreamNamesFromVStreamName resolves a virtual stream name to every physical
// stream backing it: mux layers whose predecessor tree reaches the name,
// defused NMS layers fused into it, and plain layers matching by name. Under
// net-flow every output layer backs every output vstream.
func (m *CoreOpMetadata) StreamNamesFromVStreamName(vstreamName string) ([]string, error) {
	var names []string
	for _, layer := range m.allBoundaryLayers() {
		switch {
		case layer.IsMux:
			if EdgeUnderMux(layer, vstreamName) {
				names = append(names, layer.Name)
			}
		case layer.IsDefusedNMS:
			if layer.FusedLayer[0].Name == vstreamName {
				names = append(names, layer.Name)
			}
		case m.features.NetFlow && layer.Direction == DeviceToHost:
			names = append(names, layer.Name)
		case layer.Name == vstreamName:
			names = append(names, layer.Name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("vstream %q: %w", vstreamName, ErrVStreamNotFound)
	}
	return names, nil
}

func layersToStreamInfos(layers []LayerInfo) []StreamInfo {
	infos := make([]StreamInfo, 0, len(layers))
	for _, layer := range layers {
		infos = append(infos, StreamInfoFromLayer(layer))
	}
	return infos
}

func layersToVStreamInfos(layers []LayerInfo) []VStreamInfo {
	var infos []VStreamInfo
	for _, layer := range layers {
		// Several defused layers expand to the same fused vstream; keep the
		// first occurrence.
		for _, info := range VStreamInfosFromLayer(layer) {
			if !vstreamInList(infos, info.Name) {
				infos = append(infos, info)
			}
		}
	}
	return infos
}

// =============================================================================
// Aggregate accounting
// =============================================================================

// NetworkInfos produces one fixed-capacity name record per declared network.
// A name that does not fit the record (terminator included) fails the whole
// enumeration.
func (m *CoreOpMetadata) NetworkInfos() ([]NetworkInfo, error) {
	infos := make([]NetworkInfo, 0, len(m.sortedNetworkNames))
	for _, name := range m.sortedNetworkNames {
		if len(name)+1 > MaxNetworkNameSize {
			return nil, fmt.Errorf("network %q (%d bytes): %w", name, len(name), ErrNetworkNameTooLong)
		}
		var info NetworkInfo
		copy(info.Name[:], name)
		infos = append(infos, info)
	}
	return infos, nil
}

// ContextsCount returns the total context count programmed on the device:
// the dynamic contexts plus the fixed non-dynamic ones.
func (m *CoreOpMetadata) ContextsCount() int {
	return len(m.dynamicContexts) + NonDynamicContextsCount
}

// TotalTransferSize sums the per-context transfer size over all dynamic
// contexts, failing fast on the first context that cannot be sized.
func (m *CoreOpMetadata) TotalTransferSize() (uint64, error) {
	var total uint64
	for i, ctx := range m.dynamicContexts {
		size, err := ctx.TransferSize()
		if err != nil {
			return 0, fmt.Errorf("dynamic context %d: %w", i, err)
		}
		total += size
	}
	return total, nil
}
