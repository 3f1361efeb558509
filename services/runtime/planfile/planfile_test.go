// Copyright (C) 2025 Kestrel Edge Systems (engineering@kestreledge.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package planfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KestrelEdge/KestrelRT/pkg/logging"
	"github.com/KestrelEdge/KestrelRT/services/runtime/plan"
)

const testPlan = `
core_ops:
  - name: shortcut_net
    variants:
      - layout_bitmap: 1
        sorted_output_names: [out_b, out_a]
        sorted_network_names: [shortcut_net/net0]
        features:
          multi_context: true
        config_channels:
          - engine_index: 0
        preliminary_context:
          actions:
            - type: activate_config_channel
            - type: write_data_burst
          config_buffers:
            0: [64, 64]
        dynamic_contexts:
          - actions:
              - type: enable_lcu
            config_buffers:
              1: [128]
            layers:
              - name: in0
                category: boundary
                direction: h2d
                network: shortcut_net/net0
                shape: {height: 10, width: 10, features: 1}
                format: {type: uint8, order: nhwc}
                quant: {scale: 0.5}
              - name: mid0
                category: inter_context
                direction: d2h
                network: shortcut_net/net0
                shape: {height: 16, width: 16, features: 16}
                format: {type: uint8, order: nhwc}
          - layers:
              - name: out_a
                category: boundary
                direction: d2h
                network: shortcut_net/net0
                shape: {height: 4, width: 4, features: 4}
                format: {type: uint8, order: nhwc}
              - name: out_b
                category: boundary
                direction: d2h
                network: shortcut_net/net0
                shape: {height: 2, width: 2, features: 2}
                format: {type: uint8, order: nhwc}
  - name: mux_net
    variants:
      - layout_bitmap: 3
        sorted_output_names: [a, b]
        sorted_network_names: [mux_net/net0]
        dynamic_contexts:
          - layers:
              - name: muxed
                category: boundary
                direction: d2h
                network: mux_net/net0
                format: {type: uint8, order: nhwc}
                predecessors:
                  - name: a
                    shape: {height: 1, width: 1, features: 8}
                  - name: b
                    shape: {height: 1, width: 1, features: 8}
`

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Quiet: true})
}

func TestParse_BuildsQueryableMetadata(t *testing.T) {
	coreOps, err := Parse([]byte(testPlan), quietLogger())
	require.NoError(t, err)
	require.Len(t, coreOps, 2)
	require.Contains(t, coreOps, "shortcut_net")
	require.Contains(t, coreOps, "mux_net")

	metadata, err := coreOps["shortcut_net"].Metadata(1)
	require.NoError(t, err)

	assert.Equal(t, "shortcut_net", metadata.Name())
	assert.Equal(t, 2+plan.NonDynamicContextsCount, metadata.ContextsCount())
	assert.True(t, metadata.Features().MultiContext)
	require.Len(t, metadata.ConfigChannelInfos(), 1)

	// Preliminary context carries its actions and config buffers.
	preliminary := metadata.PreliminaryContext()
	assert.Len(t, preliminary.Actions(), 2)
	assert.Len(t, preliminary.ActionsOfType(plan.ActionTypeWriteDataBurst), 1)

	// Output vstreams follow the declared order, not derivation order.
	vstreams, err := metadata.OutputVStreamInfos("")
	require.NoError(t, err)
	require.Len(t, vstreams, 2)
	assert.Equal(t, "out_b", vstreams[0].Name)
	assert.Equal(t, "out_a", vstreams[1].Name)

	// 100 bytes in0 + 4096 mid0 + 128 buffer, then 64 + 8 in context 1.
	total, err := metadata.TotalTransferSize()
	require.NoError(t, err)
	assert.Equal(t, uint64(100+4096+128+64+8), total)

	networks, err := metadata.NetworkInfos()
	require.NoError(t, err)
	require.Len(t, networks, 1)
	assert.Equal(t, "shortcut_net/net0", networks[0].NameString())
}

func TestParse_MuxTreeResolution(t *testing.T) {
	coreOps, err := Parse([]byte(testPlan), quietLogger())
	require.NoError(t, err)

	metadata, err := coreOps["mux_net"].Metadata(3)
	require.NoError(t, err)

	names, err := metadata.VStreamNamesFromStreamName("muxed")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	streams, err := metadata.StreamNamesFromVStreamName("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"muxed"}, streams)

	// Predecessors inherit network and format from the mux root.
	layer, err := metadata.LayerInfoByStreamName("muxed")
	require.NoError(t, err)
	require.Len(t, layer.Predecessors, 2)
	assert.Equal(t, "mux_net/net0", layer.Predecessors[0].NetworkName)
	assert.Equal(t, plan.DataTypeUInt8, layer.Predecessors[0].Format.Type)
}

func TestParse_UnknownLayoutFails(t *testing.T) {
	coreOps, err := Parse([]byte(testPlan), quietLogger())
	require.NoError(t, err)

	_, err = coreOps["shortcut_net"].Metadata(2)
	assert.True(t, errors.Is(err, plan.ErrUnknownLayout))
}

func TestParse_InvalidDescriptions(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			"not yaml at all",
			`{core_ops: [`,
			ErrInvalidPlan,
		},
		{
			"missing core-op name",
			`
core_ops:
  - variants:
      - layout_bitmap: 1
`,
			ErrInvalidPlan,
		},
		{
			"no variants",
			`
core_ops:
  - name: net
    variants: []
`,
			ErrInvalidPlan,
		},
		{
			"bad direction",
			`
core_ops:
  - name: net
    variants:
      - layout_bitmap: 1
        dynamic_contexts:
          - layers:
              - name: in0
                category: boundary
                direction: sideways
`,
			ErrInvalidPlan,
		},
		{
			"bad edge name charset",
			`
core_ops:
  - name: net
    variants:
      - layout_bitmap: 1
        dynamic_contexts:
          - layers:
              - name: "in 0"
                category: boundary
                direction: h2d
`,
			ErrInvalidPlan,
		},
		{
			"boundary layer in preliminary context",
			`
core_ops:
  - name: net
    variants:
      - layout_bitmap: 1
        preliminary_context:
          layers:
            - name: in0
              category: boundary
              direction: h2d
`,
			ErrInvalidPlan,
		},
		{
			"duplicate layout bitmap",
			`
core_ops:
  - name: net
    variants:
      - layout_bitmap: 1
      - layout_bitmap: 1
`,
			ErrDuplicateLayout,
		},
		{
			"layer both mux and defused nms",
			`
core_ops:
  - name: net
    variants:
      - layout_bitmap: 1
        dynamic_contexts:
          - layers:
              - name: out0
                category: boundary
                direction: d2h
                predecessors:
                  - name: a
                fused:
                  name: detections
`,
			ErrInvalidPlan,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml), quietLogger())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.wantErr), "expected %v, got %v", tc.wantErr, err)
		})
	}
}

func TestBuildLayer_MuxDepthBound(t *testing.T) {
	// A predecessor chain deeper than MaxMuxDepth means a cyclic or corrupt
	// description; assembly must reject it rather than recurse away.
	desc := LayerDesc{Name: "leaf"}
	for i := 0; i <= MaxMuxDepth+1; i++ {
		desc = LayerDesc{Name: "mux", Predecessors: []LayerDesc{desc}}
	}

	_, err := buildLayer(desc, plan.DeviceToHost, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMuxTooDeep))
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testPlan), 0o600))

	coreOps, err := Load(path, quietLogger())
	require.NoError(t, err)
	assert.Len(t, coreOps, 2)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), quietLogger())
	require.Error(t, err)
}
