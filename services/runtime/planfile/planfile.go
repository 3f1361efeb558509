// Copyright (C) 2025 Kestrel Edge Systems (engineering@kestreledge.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package planfile ingests YAML execution-plan descriptions into plan
// metadata entities.
//
// A plan description is the tooling serialization of what the compiled-network
// parser hands the runtime per core-op: layer descriptors with resolved
// mux/fusion relationships, per-context actions and config buffers, config
// channels, the declared output and network orderings, and feature flags.
// One file may describe several core-ops, each with one metadata variant per
// cluster-layout bitmap.
//
// Ingestion is the only mutation phase of the plan entities: Load decodes,
// validates and assembles, and the result is immutable from then on.
//
// # Validation
//
// Field-level constraints are enforced with go-playground/validator struct
// tags; structural invariants that tags cannot express (mux trees are finite
// and non-empty iff mux, fused references are single-element, layout bitmaps
// are unique) are checked during assembly. Any violation fails the whole load
// with ErrInvalidPlan; there is no partially ingested plan.
package planfile

import (
	"fmt"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/KestrelEdge/KestrelRT/pkg/logging"
	"github.com/KestrelEdge/KestrelRT/services/runtime/plan"
)

// MaxMuxDepth bounds mux predecessor tree recursion. The compiler never emits
// mux-of-mux nesting anywhere near this deep, so hitting the bound means a
// cyclic or corrupt description.
const MaxMuxDepth = 8

// planValidate is the validator instance for plan descriptions.
// Initialized in init() with custom validators.
var planValidate *validator.Validate

var edgeNamePattern = regexp.MustCompile(`^[0-9A-Za-z_./-]+$`)

func init() {
	planValidate = validator.New()
	_ = planValidate.RegisterValidation("edge_name", validateEdgeName)
}

// validateEdgeName restricts stream/vstream names to the compiler's edge-name
// charset.
func validateEdgeName(fl validator.FieldLevel) bool {
	return edgeNamePattern.MatchString(fl.Field().String())
}

// =============================================================================
// Description Schema
// =============================================================================

// Description is the root of a plan-description file.
type Description struct {
	CoreOps []CoreOpDesc `yaml:"core_ops" validate:"required,min=1,dive"`
}

// CoreOpDesc describes one core-op and its per-layout variants.
type CoreOpDesc struct {
	Name     string        `yaml:"name" validate:"required,edge_name"`
	Variants []VariantDesc `yaml:"variants" validate:"required,min=1,dive"`
}

// VariantDesc describes one cluster-layout variant of a core-op.
type VariantDesc struct {
	LayoutBitmap       uint32              `yaml:"layout_bitmap"`
	PreliminaryContext ContextDesc         `yaml:"preliminary_context"`
	DynamicContexts    []ContextDesc       `yaml:"dynamic_contexts" validate:"dive"`
	ConfigChannels     []ConfigChannelDesc `yaml:"config_channels" validate:"dive"`
	SortedOutputNames  []string            `yaml:"sorted_output_names"`
	SortedNetworkNames []string            `yaml:"sorted_network_names"`
	DefaultNetworkName string              `yaml:"default_network_name"`
	Features           FeaturesDesc        `yaml:"features"`
}

// ContextDesc describes one context's actions, config buffers and layers.
type ContextDesc struct {
	Actions       []ActionDesc       `yaml:"actions" validate:"dive"`
	ConfigBuffers map[uint8][]uint32 `yaml:"config_buffers"`
	Layers        []ContextLayerDesc `yaml:"layers" validate:"dive"`
}

// ActionDesc is one configuration action.
type ActionDesc struct {
	Type    string `yaml:"type" validate:"required,oneof=activate_config_channel deactivate_config_channel write_data_burst enable_lcu disable_lcu trigger_sequencer wait_for_sequencer fetch_inter_context"`
	Payload []byte `yaml:"payload"`
}

// ConfigChannelDesc is one config-channel descriptor.
type ConfigChannelDesc struct {
	EngineIndex uint8 `yaml:"engine_index"`
}

// FeaturesDesc mirrors plan.SupportedFeatures.
type FeaturesDesc struct {
	MultiContext       bool `yaml:"multi_context"`
	MultiNetwork       bool `yaml:"multi_network"`
	PreliminaryRunAsap bool `yaml:"preliminary_run_asap"`
	NetFlow            bool `yaml:"net_flow"`
	NMSBurstMode       bool `yaml:"nms_burst_mode"`
}

// ContextLayerDesc is a layer owned by a context, with its buffer-planning
// category.
type ContextLayerDesc struct {
	LayerDesc `yaml:",inline"`

	Category  string `yaml:"category" validate:"required,oneof=boundary inter_context ddr"`
	Direction string `yaml:"direction" validate:"required,oneof=h2d d2h"`
}

// LayerDesc describes one data edge. Predecessors (recursive) mark a mux
// layer; Fused marks a defused NMS layer and names its canonical fused
// representation. Nested nodes inherit network and direction from the
// enclosing context layer.
type LayerDesc struct {
	Name         string      `yaml:"name" validate:"required,edge_name"`
	Network      string      `yaml:"network" validate:"omitempty,edge_name"`
	Shape        ShapeDesc   `yaml:"shape"`
	Format       FormatDesc  `yaml:"format"`
	Quant        QuantDesc   `yaml:"quant"`
	NMS          *NMSDesc    `yaml:"nms"`
	Predecessors []LayerDesc `yaml:"predecessors" validate:"dive"`
	Fused        *LayerDesc  `yaml:"fused"`
}

// ShapeDesc mirrors plan.Shape.
type ShapeDesc struct {
	Height   uint32 `yaml:"height"`
	Width    uint32 `yaml:"width"`
	Features uint32 `yaml:"features"`
}

// FormatDesc mirrors plan.Format with string enums.
type FormatDesc struct {
	Type  string `yaml:"type" validate:"omitempty,oneof=uint8 uint16 float32"`
	Order string `yaml:"order" validate:"omitempty,oneof=nhwc nchw nc nms"`
}

// QuantDesc mirrors plan.QuantInfo.
type QuantDesc struct {
	Scale     float32 `yaml:"scale"`
	ZeroPoint float32 `yaml:"zero_point"`
}

// NMSDesc mirrors plan.NMSInfo.
type NMSDesc struct {
	NumberOfClasses   uint32 `yaml:"number_of_classes"`
	MaxBboxesPerClass uint32 `yaml:"max_bboxes_per_class"`
	BboxSizeBytes     uint32 `yaml:"bbox_size_bytes"`
	BurstSize         uint32 `yaml:"burst_size"`
}

// =============================================================================
// Loading
// =============================================================================

// Load reads, validates and assembles a plan-description file. The result
// maps core-op name to its per-layout variant selector. A nil logger falls
// back to logging.Default().
func Load(path string, logger *logging.Logger) (map[string]*plan.CoreOpMetadataPerArch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan description: %w", err)
	}
	return Parse(data, logger)
}

// Parse validates and assembles a plan description from raw YAML.
func Parse(data []byte, logger *logging.Logger) (map[string]*plan.CoreOpMetadataPerArch, error) {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.With("ingest_id", uuid.NewString())

	var desc Description
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if err := planValidate.Struct(&desc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}

	coreOps := make(map[string]*plan.CoreOpMetadataPerArch, len(desc.CoreOps))
	for _, coreOpDesc := range desc.CoreOps {
		perArch, err := buildCoreOp(coreOpDesc, logger)
		if err != nil {
			return nil, fmt.Errorf("core-op %q: %w", coreOpDesc.Name, err)
		}
		coreOps[coreOpDesc.Name] = perArch
	}
	logger.Info("plan ingested", "core_ops", len(coreOps))
	return coreOps, nil
}
