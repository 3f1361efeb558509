// Copyright (C) 2025 Kestrel Edge Systems (engineering@kestreledge.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Assembly of validated plan descriptions into plan entities.

package planfile

import (
	"fmt"

	"github.com/KestrelEdge/KestrelRT/pkg/logging"
	"github.com/KestrelEdge/KestrelRT/services/runtime/plan"
)

func buildCoreOp(desc CoreOpDesc, logger *logging.Logger) (*plan.CoreOpMetadataPerArch, error) {
	perArch := plan.NewCoreOpMetadataPerArch()
	seen := make(map[uint32]struct{}, len(desc.Variants))
	for _, variantDesc := range desc.Variants {
		if _, dup := seen[variantDesc.LayoutBitmap]; dup {
			return nil, fmt.Errorf("%w: 0x%x", ErrDuplicateLayout, variantDesc.LayoutBitmap)
		}
		seen[variantDesc.LayoutBitmap] = struct{}{}

		metadata, err := buildVariant(desc.Name, variantDesc)
		if err != nil {
			return nil, fmt.Errorf("layout 0x%x: %w", variantDesc.LayoutBitmap, err)
		}
		perArch.Add(metadata, variantDesc.LayoutBitmap)
		logger.Debug("variant assembled",
			"core_op", desc.Name,
			"layout_bitmap", variantDesc.LayoutBitmap,
			"dynamic_contexts", len(variantDesc.DynamicContexts))
	}
	logger.Info("core-op assembled", "core_op", desc.Name, "variants", perArch.Layouts())
	return perArch, nil
}

func buildVariant(coreOpName string, desc VariantDesc) (*plan.CoreOpMetadata, error) {
	preliminary, err := buildContext(desc.PreliminaryContext)
	if err != nil {
		return nil, fmt.Errorf("preliminary context: %w", err)
	}
	// Boundary layers exist only inside dynamic contexts.
	for _, layer := range desc.PreliminaryContext.Layers {
		if layer.Category == "boundary" {
			return nil, fmt.Errorf("%w: boundary layer %q in preliminary context",
				ErrInvalidPlan, layer.Name)
		}
	}

	dynamics := make([]*plan.ContextMetadata, 0, len(desc.DynamicContexts))
	for i, ctxDesc := range desc.DynamicContexts {
		ctx, err := buildContext(ctxDesc)
		if err != nil {
			return nil, fmt.Errorf("dynamic context %d: %w", i, err)
		}
		dynamics = append(dynamics, ctx)
	}

	channels := make([]plan.ConfigChannelInfo, 0, len(desc.ConfigChannels))
	for _, ch := range desc.ConfigChannels {
		channels = append(channels, plan.ConfigChannelInfo{EngineIndex: ch.EngineIndex})
	}

	return plan.NewCoreOpMetadata(plan.Config{
		Name:               coreOpName,
		PreliminaryContext: preliminary,
		DynamicContexts:    dynamics,
		ConfigChannels:     channels,
		SortedOutputNames:  desc.SortedOutputNames,
		SortedNetworkNames: desc.SortedNetworkNames,
		DefaultNetworkName: desc.DefaultNetworkName,
		Features: plan.SupportedFeatures{
			MultiContext:       desc.Features.MultiContext,
			MultiNetwork:       desc.Features.MultiNetwork,
			PreliminaryRunAsap: desc.Features.PreliminaryRunAsap,
			NetFlow:            desc.Features.NetFlow,
			NMSBurstMode:       desc.Features.NMSBurstMode,
		},
	}), nil
}

func buildContext(desc ContextDesc) (*plan.ContextMetadata, error) {
	actions := make([]plan.Action, 0, len(desc.Actions))
	for _, actionDesc := range desc.Actions {
		actions = append(actions, plan.Action{
			Type:    actionTypeFromString(actionDesc.Type),
			Payload: actionDesc.Payload,
		})
	}
	buffers := make(plan.ConfigBufferSizes, len(desc.ConfigBuffers))
	for stream, sizes := range desc.ConfigBuffers {
		buffers[stream] = sizes
	}

	ctx := plan.NewContextMetadata(actions, buffers)
	for _, layerDesc := range desc.Layers {
		layer, err := buildLayer(layerDesc.LayerDesc, directionFromString(layerDesc.Direction), 0)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", layerDesc.Name, err)
		}
		switch layerDesc.Category {
		case "boundary":
			ctx.AddBoundaryLayer(layer)
		case "inter_context":
			ctx.AddInterContextLayer(layer)
		case "ddr":
			ctx.AddDDRLayer(layer)
		}
	}
	return ctx, nil
}

// buildLayer converts one layer node, recursing through mux predecessors.
// The depth bound enforces the acyclicity invariant once, at ingestion;
// query-time traversal assumes it.
func buildLayer(desc LayerDesc, direction plan.Direction, depth int) (plan.LayerInfo, error) {
	if depth > MaxMuxDepth {
		return plan.LayerInfo{}, fmt.Errorf("layer %q: %w", desc.Name, ErrMuxTooDeep)
	}

	layer := plan.LayerInfo{
		Name:        desc.Name,
		NetworkName: desc.Network,
		Direction:   direction,
		Shape: plan.Shape{
			Height:   desc.Shape.Height,
			Width:    desc.Shape.Width,
			Features: desc.Shape.Features,
		},
		Format: plan.Format{
			Type:  dataTypeFromString(desc.Format.Type),
			Order: formatOrderFromString(desc.Format.Order),
		},
		Quant: plan.QuantInfo{
			Scale:     desc.Quant.Scale,
			ZeroPoint: desc.Quant.ZeroPoint,
		},
	}
	if desc.NMS != nil {
		layer.NMS = plan.NMSInfo{
			NumberOfClasses:   desc.NMS.NumberOfClasses,
			MaxBboxesPerClass: desc.NMS.MaxBboxesPerClass,
			BboxSizeBytes:     desc.NMS.BboxSizeBytes,
			BurstSize:         desc.NMS.BurstSize,
		}
	}

	if desc.Fused != nil && len(desc.Predecessors) > 0 {
		return plan.LayerInfo{}, fmt.Errorf("%w: layer %q is both mux and defused nms",
			ErrInvalidPlan, desc.Name)
	}

	if len(desc.Predecessors) > 0 {
		layer.IsMux = true
		layer.Predecessors = make([]plan.LayerInfo, 0, len(desc.Predecessors))
		for _, predDesc := range desc.Predecessors {
			pred := inheritDefaults(predDesc, desc)
			built, err := buildLayer(pred, direction, depth+1)
			if err != nil {
				return plan.LayerInfo{}, err
			}
			layer.Predecessors = append(layer.Predecessors, built)
		}
	}

	if desc.Fused != nil {
		fusedDesc := inheritDefaults(*desc.Fused, desc)
		fused, err := buildLayer(fusedDesc, direction, depth+1)
		if err != nil {
			return plan.LayerInfo{}, err
		}
		layer.IsDefusedNMS = true
		layer.FusedLayer = []plan.LayerInfo{fused}
	}

	return layer, nil
}

// inheritDefaults fills a nested node's network and format from its parent
// when omitted.
func inheritDefaults(child LayerDesc, parent LayerDesc) LayerDesc {
	if child.Network == "" {
		child.Network = parent.Network
	}
	if child.Format.Type == "" {
		child.Format.Type = parent.Format.Type
	}
	if child.Format.Order == "" {
		child.Format.Order = parent.Format.Order
	}
	return child
}

func directionFromString(s string) plan.Direction {
	if s == "d2h" {
		return plan.DeviceToHost
	}
	return plan.HostToDevice
}

func dataTypeFromString(s string) plan.DataType {
	switch s {
	case "uint8":
		return plan.DataTypeUInt8
	case "uint16":
		return plan.DataTypeUInt16
	case "float32":
		return plan.DataTypeFloat32
	default:
		return plan.DataTypeUnknown
	}
}

func formatOrderFromString(s string) plan.FormatOrder {
	switch s {
	case "nchw":
		return plan.OrderNCHW
	case "nc":
		return plan.OrderNC
	case "nms":
		return plan.OrderNMS
	default:
		return plan.OrderNHWC
	}
}

func actionTypeFromString(s string) plan.ActionType {
	switch s {
	case "activate_config_channel":
		return plan.ActionTypeActivateConfigChannel
	case "deactivate_config_channel":
		return plan.ActionTypeDeactivateConfigChannel
	case "write_data_burst":
		return plan.ActionTypeWriteDataBurst
	case "enable_lcu":
		return plan.ActionTypeEnableLCU
	case "disable_lcu":
		return plan.ActionTypeDisableLCU
	case "trigger_sequencer":
		return plan.ActionTypeTriggerSequencer
	case "wait_for_sequencer":
		return plan.ActionTypeWaitForSequencer
	case "fetch_inter_context":
		return plan.ActionTypeFetchInterContext
	default:
		return plan.ActionTypeNone
	}
}
