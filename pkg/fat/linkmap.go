// This file is part of FATMount
// Copyright (c) 2025 The FATMount Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package fat

import (
	"k8s.io/klog/v2"

	"github.com/openembed/fatmount/pkg/engine"
	"github.com/openembed/fatmount/pkg/vfs"
)

// wantsLinkMap reports whether the handle qualifies for a fast-seek link
// map: a file opened read-only whose size exceeds one allocation cluster.
func (h *fileHandle) wantsLinkMap() bool {
	if h.file == nil || h.mapTried || h.linkMap != nil {
		return false
	}
	if h.flags&vfs.AccessMode != vfs.ReadOnly {
		return false
	}
	clusterBytes := int64(h.rec.clusterSectors) * int64(h.rec.sectorSize)
	return h.file.Size() > clusterBytes
}

// buildLinkMap installs a fast-seek link map on the handle's file. The
// inline table is offered first; if the engine reports it insufficient, the
// reported capacity is allocated once and the call retried. A second
// shortage leaves the file without a map.
func (h *fileHandle) buildLinkMap() engine.Result {
	h.mapTried = true

	tbl := h.inline
	tbl[0] = uint32(len(tbl))
	res := h.file.SetLinkMap(tbl)
	if res == engine.ResNotEnoughCore {
		grown := make([]uint32, tbl[0])
		grown[0] = uint32(len(grown))
		res = h.file.SetLinkMap(grown)
		if res == engine.ResOK {
			h.linkMap = grown
			h.heapMap = true
			return engine.ResOK
		}
		return res
	}
	if res == engine.ResOK {
		h.linkMap = tbl
	}
	return res
}

// maybeBuildLinkMap triggers map construction from the read path. Failure
// only costs seek performance; the read proceeds regardless.
func (h *fileHandle) maybeBuildLinkMap() {
	if !h.wantsLinkMap() {
		return
	}
	if res := h.buildLinkMap(); res != engine.ResOK && res != engine.ResNotEnoughCore {
		klog.V(3).InfoS("fast-seek link map construction failed; reads fall back to chain walking",
			"path", h.rec.path, "result", res)
	}
}
