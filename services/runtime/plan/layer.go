// Copyright (C) 2025 Kestrel Edge Systems (engineering@kestreledge.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package plan

// =============================================================================
// Directions and Formats
// =============================================================================

// Direction indicates which way a data edge moves relative to the device.
type Direction int

const (
	// HostToDevice marks an input edge (host writes, device reads).
	HostToDevice Direction = iota

	// DeviceToHost marks an output edge (device writes, host reads).
	DeviceToHost
)

// String returns the string representation of the Direction.
func (d Direction) String() string {
	switch d {
	case HostToDevice:
		return "h2d"
	case DeviceToHost:
		return "d2h"
	default:
		return "unknown"
	}
}

// DataType is the element type of a layer's data.
type DataType int

const (
	// DataTypeUnknown is the zero value; it has no byte width.
	DataTypeUnknown DataType = iota

	// DataTypeUInt8 is one byte per element.
	DataTypeUInt8

	// DataTypeUInt16 is two bytes per element.
	DataTypeUInt16

	// DataTypeFloat32 is four bytes per element.
	DataTypeFloat32
)

// Bytes returns the width of one element in bytes, or 0 for an unknown type.
func (t DataType) Bytes() uint64 {
	switch t {
	case DataTypeUInt8:
		return 1
	case DataTypeUInt16:
		return 2
	case DataTypeFloat32:
		return 4
	default:
		return 0
	}
}

// String returns the string representation of the DataType.
func (t DataType) String() string {
	switch t {
	case DataTypeUInt8:
		return "uint8"
	case DataTypeUInt16:
		return "uint16"
	case DataTypeFloat32:
		return "float32"
	default:
		return "unknown"
	}
}

// FormatOrder is the memory ordering of a layer's data.
type FormatOrder int

const (
	// OrderNHWC is height-major row order, features interleaved.
	OrderNHWC FormatOrder = iota

	// OrderNCHW is feature-major planar order.
	OrderNCHW

	// OrderNC is a flat feature vector (fully-connected edges).
	OrderNC

	// OrderNMS marks detection output carrying class-grouped bounding
	// boxes instead of a dense tensor. Frame size is derived from NMSInfo,
	// not from Shape.
	OrderNMS
)

// String returns the string representation of the FormatOrder.
func (o FormatOrder) String() string {
	switch o {
	case OrderNHWC:
		return "nhwc"
	case OrderNCHW:
		return "nchw"
	case OrderNC:
		return "nc"
	case OrderNMS:
		return "nms"
	default:
		return "unknown"
	}
}

// Format describes how a layer's elements are typed and laid out.
type Format struct {
	Type  DataType
	Order FormatOrder
}

// Shape is a layer's dense tensor shape. Unused axes are 1.
type Shape struct {
	Height   uint32
	Width    uint32
	Features uint32
}

// QuantInfo carries the affine dequantization parameters of a layer.
type QuantInfo struct {
	Scale     float32
	ZeroPoint float32
}

// NMSInfo describes a detection-output edge. It is meaningful only when the
// owning layer's Format.Order is OrderNMS.
type NMSInfo struct {
	NumberOfClasses   uint32
	MaxBboxesPerClass uint32
	BboxSizeBytes     uint32
	BurstSize         uint32
}

// =============================================================================
// Layer Descriptor
// =============================================================================

// LayerInfo describes one data edge of a compiled network.
//
// Name is the physical stream name, unique within a core-op. A mux layer is a
// logical edge synthesized from multiple physical predecessors: IsMux is set
// and Predecessors holds the ordered children, forming a finite tree whose
// leaves are non-mux layers. A defused NMS layer is one of several physical
// outputs that combine into a single logical detection output: IsDefusedNMS
// is set and FusedLayer holds exactly one element, the canonical fused
// representation.
//
// LayerInfo has value semantics. Query results copy descriptors; there is no
// shared mutable aliasing between callers and the owning context.
type LayerInfo struct {
	Name        string
	NetworkName string
	Direction   Direction
	Shape       Shape
	Format      Format
	Quant       QuantInfo

	// NMS is consulted only when Format.Order is OrderNMS.
	NMS NMSInfo

	// IsMux is true iff Predecessors is non-empty.
	IsMux        bool
	Predecessors []LayerInfo

	// FusedLayer has exactly one element when IsDefusedNMS is set.
	IsDefusedNMS bool
	FusedLayer   []LayerInfo
}
