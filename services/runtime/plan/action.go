// Copyright (C) 2025 Kestrel Edge Systems (engineering@kestreledge.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package plan

// ActionType identifies the kind of a context-switch configuration action.
type ActionType int

const (
	// ActionTypeNone is the zero value for an unclassified action.
	ActionTypeNone ActionType = iota

	// ActionTypeActivateConfigChannel opens a configuration DMA channel.
	ActionTypeActivateConfigChannel

	// ActionTypeDeactivateConfigChannel closes a configuration DMA channel.
	ActionTypeDeactivateConfigChannel

	// ActionTypeWriteDataBurst streams a configuration descriptor burst.
	ActionTypeWriteDataBurst

	// ActionTypeEnableLCU enables a layer control unit.
	ActionTypeEnableLCU

	// ActionTypeDisableLCU disables a layer control unit.
	ActionTypeDisableLCU

	// ActionTypeTriggerSequencer kicks a cluster's config sequencer.
	ActionTypeTriggerSequencer

	// ActionTypeWaitForSequencer blocks until a cluster's sequencer is done.
	ActionTypeWaitForSequencer

	// ActionTypeFetchInterContext fetches an inter-context edge buffer.
	ActionTypeFetchInterContext
)

// String returns the string representation of the ActionType.
func (t ActionType) String() string {
	switch t {
	case ActionTypeActivateConfigChannel:
		return "activate_config_channel"
	case ActionTypeDeactivateConfigChannel:
		return "deactivate_config_channel"
	case ActionTypeWriteDataBurst:
		return "write_data_burst"
	case ActionTypeEnableLCU:
		return "enable_lcu"
	case ActionTypeDisableLCU:
		return "disable_lcu"
	case ActionTypeTriggerSequencer:
		return "trigger_sequencer"
	case ActionTypeWaitForSequencer:
		return "wait_for_sequencer"
	case ActionTypeFetchInterContext:
		return "fetch_inter_context"
	default:
		return "none"
	}
}

// Action is one executable configuration step of a context. The payload is
// opaque at this layer; the context-switch programming stage interprets it.
type Action struct {
	Type    ActionType
	Payload []byte
}

// ConfigBufferSizes maps a config stream index to the burst sizes written
// through it, in write order.
type ConfigBufferSizes map[uint8][]uint32

// ConfigChannelInfo identifies the engine a config channel is served by.
type ConfigChannelInfo struct {
	EngineIndex uint8
}

// SupportedFeatures flags the optional capabilities a compiled core-op relies
// on. The flags are declared by the compiler and fixed at ingestion.
type SupportedFeatures struct {
	MultiContext       bool
	MultiNetwork       bool
	PreliminaryRunAsap bool

	// NetFlow marks core-ops whose output vstreams are precomputed by a
	// higher-level flow abstraction rather than derived from layers.
	NetFlow bool

	NMSBurstMode bool
}
