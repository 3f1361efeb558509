// Copyright (C) 2025 Kestrel Edge Systems (engineering@kestreledge.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package plan

import (
	"fmt"
	"math"
)

// LayoutIgnore is the reserved cluster-layout bitmap meaning "any stored
// variant will do".
const LayoutIgnore uint32 = math.MaxUint32

// CoreOpMetadataPerArch holds one CoreOpMetadata instance per physical
// cluster-layout variant of the same compiled core-op and resolves the right
// variant at configure/activate time.
//
// Populated once at ingestion, read-only afterwards; concurrent reads after
// population need no lock.
type CoreOpMetadataPerArch struct {
	variants map[uint32]*CoreOpMetadata
}

// NewCoreOpMetadataPerArch creates an empty variant selector.
func NewCoreOpMetadataPerArch() *CoreOpMetadataPerArch {
	return &CoreOpMetadataPerArch{variants: make(map[uint32]*CoreOpMetadata)}
}

// Add stores the metadata variant for a cluster-layout bitmap, overwriting
// any previous entry for that bitmap.
func (p *CoreOpMetadataPerArch) Add(metadata *CoreOpMetadata, layoutBitmap uint32) {
	p.variants[layoutBitmap] = metadata
}

// Layouts returns the number of stored variants.
func (p *CoreOpMetadataPerArch) Layouts() int {
	return len(p.variants)
}

// Metadata resolves the variant for a cluster-layout bitmap. LayoutIgnore
// returns the variant with the lowest stored bitmap so concurrent callers
// agree on the pick; it fails only when nothing was stored at all.
func (p *CoreOpMetadataPerArch) Metadata(layoutBitmap uint32) (*CoreOpMetadata, error) {
	if layoutBitmap == LayoutIgnore {
		if len(p.variants) == 0 {
			return nil, ErrNoVariant
		}
		lowest := LayoutIgnore
		for bitmap := range p.variants {
			if bitmap <= lowest {
				lowest = bitmap
			}
		}
		return p.variants[lowest], nil
	}
	metadata, ok := p.variants[layoutBitmap]
	if !ok {
		return nil, fmt.Errorf("cluster layout bitmap 0x%x: %w", layoutBitmap, ErrUnknownLayout)
	}
	return metadata, nil
}
