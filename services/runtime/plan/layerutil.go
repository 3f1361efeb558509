// Copyright (C) 2025 Kestrel Edge Systems (engineering@kestreledge.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Layer classification utilities: pure functions converting a layer
// descriptor into transport-facing stream/vstream descriptors and computing
// per-layer transfer size.

package plan

import "fmt"

// StreamInfo is the device-facing descriptor of one physical stream.
type StreamInfo struct {
	Name      string
	Direction Direction
	FrameSize uint64
	Shape     Shape
	Format    Format
	Quant     QuantInfo
}

// VStreamInfo is the user-facing descriptor of one virtual stream.
type VStreamInfo struct {
	Name        string
	NetworkName string
	Direction   Direction
	Shape       Shape
	Format      Format
	Quant       QuantInfo
}

// StreamInfoFromLayer builds the physical stream descriptor of a layer.
func StreamInfoFromLayer(layer LayerInfo) StreamInfo {
	return StreamInfo{
		Name:      layer.Name,
		Direction: layer.Direction,
		FrameSize: frameSizeBytes(layer),
		Shape:     layer.Shape,
		Format:    layer.Format,
		Quant:     layer.Quant,
	}
}

// VStreamInfosFromLayer expands a layer into its virtual stream descriptors.
//
// A defused NMS layer yields the single canonical fused vstream. A mux layer
// yields one vstream per non-mux leaf of its predecessor tree, in pre-order.
// Any other layer yields itself.
func VStreamInfosFromLayer(layer LayerInfo) []VStreamInfo {
	if layer.IsDefusedNMS {
		fused := layer.FusedLayer[0]
		return []VStreamInfo{{
			Name:        fused.Name,
			NetworkName: layer.NetworkName,
			Direction:   layer.Direction,
			Shape:       fused.Shape,
			Format:      fused.Format,
			Quant:       fused.Quant,
		}}
	}
	if layer.IsMux {
		var infos []VStreamInfo
		for _, pred := range layer.Predecessors {
			infos = append(infos, VStreamInfosFromLayer(pred)...)
		}
		return infos
	}
	return []VStreamInfo{{
		Name:        layer.Name,
		NetworkName: layer.NetworkName,
		Direction:   layer.Direction,
		Shape:       layer.Shape,
		Format:      layer.Format,
		Quant:       layer.Quant,
	}}
}

// TransferSize returns the number of bytes one frame of the layer moves over
// the transport. Detection outputs are sized from their NMS declaration; all
// other layers from shape and element width. An unknown data type or a
// zero-sized frame means the descriptor is ill-formed and fails the whole
// computation.
func TransferSize(layer LayerInfo) (uint64, error) {
	size := frameSizeBytes(layer)
	if size == 0 {
		return 0, fmt.Errorf("layer %q (%v/%v): %w",
			layer.Name, layer.Format.Type, layer.Format.Order, ErrInvalidFormat)
	}
	return size, nil
}

// frameSizeBytes computes a layer's frame size, 0 when ill-formed.
func frameSizeBytes(layer LayerInfo) uint64 {
	if layer.Format.Order == OrderNMS {
		nms := layer.NMS
		// One burst-sized count record precedes each class's box block.
		perClass := uint64(nms.MaxBboxesPerClass)*uint64(nms.BboxSizeBytes) + uint64(nms.BurstSize)
		return uint64(nms.NumberOfClasses) * perClass
	}
	elems := uint64(layer.Shape.Height) * uint64(layer.Shape.Width) * uint64(layer.Shape.Features)
	return elems * layer.Format.Type.Bytes()
}

// DemuxNames collects the names of all non-mux leaves reachable through a
// layer's predecessor tree, in pre-order. For a non-mux layer it is the
// layer's own name.
func DemuxNames(layer LayerInfo) []string {
	var names []string
	appendDemuxNames(layer, &names)
	return names
}

func appendDemuxNames(layer LayerInfo, names *[]string) {
	if !layer.IsMux {
		*names = append(*names, layer.Name)
		return
	}
	for _, pred := range layer.Predecessors {
		appendDemuxNames(pred, names)
	}
}

// EdgeUnderMux reports whether edgeName names a non-mux leaf reachable under
// the layer's predecessor tree. A non-mux layer matches by name equality.
func EdgeUnderMux(layer LayerInfo, edgeName string) bool {
	if !layer.IsMux {
		return layer.Name == edgeName
	}
	for _, pred := range layer.Predecessors {
		if EdgeUnderMux(pred, edgeName) {
			return true
		}
	}
	return false
}

// vstreamInList reports whether a vstream with the given name is already
// present. Fused NMS outputs reach the same vstream through several physical
// layers; derivation keeps the first.
func vstreamInList(infos []VStreamInfo, name string) bool {
	for _, info := range infos {
		if info.Name == name {
			return true
		}
	}
	return false
}
