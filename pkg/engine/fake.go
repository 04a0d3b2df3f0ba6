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

package engine

import (
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// FakeEngine is a memory-backed Engine for testing the mount layer. It honors
// the DiskIO contract for boot sector reads and sync and supports scripted
// failure injection. It is not a FAT implementation.
type FakeEngine struct {
	// Clock supplies entry timestamps. Defaults to time.Now.
	Clock Clock

	// ClusterSectors is the allocation cluster size in sectors.
	// Defaults to 8.
	ClusterSectors int

	// MountResult, when not ResOK, is returned by every MountVolume call.
	MountResult Result

	// OpenResult, when not ResOK, is returned by every OpenFile call.
	OpenResult Result

	// LinkMapEntries is the link map capacity SetLinkMap demands,
	// including the header slot. Defaults to 4.
	LinkMapEntries int

	// LinkMapResult, when not ResOK, is returned by SetLinkMap even when
	// the supplied table capacity suffices.
	LinkMapResult Result

	mu        sync.Mutex
	stores    map[int]map[string]*fakeNode
	nextClust uint32
}

type fakeNode struct {
	data  []byte
	dir   bool
	mtime time.Time
	clust uint32
}

func (e *FakeEngine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

func (e *FakeEngine) clusterSectors() int {
	if e.ClusterSectors > 0 {
		return e.ClusterSectors
	}
	return 8
}

func normalize(name string) string {
	return path.Clean("/" + name)
}

// MountVolume implements Engine. The fake initializes the drive through dio
// and reads the boot sector to exercise the disk shim, then serves a
// memory-backed volume. Backing store persists across unmount/mount cycles
// of the same drive number.
func (e *FakeEngine) MountVolume(drive, partition int, dio DiskIO) (Volume, Result) {
	if e.MountResult != ResOK {
		return nil, e.MountResult
	}
	if status := dio.Initialize(drive); status&StatusNoInit != 0 {
		return nil, ResNotReady
	}
	var boot [512]byte
	if dr := dio.Read(drive, boot[:], 0, 1); dr != DiskOK {
		return nil, ResDiskErr
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stores == nil {
		e.stores = map[int]map[string]*fakeNode{}
	}
	if e.stores[drive] == nil {
		e.stores[drive] = map[string]*fakeNode{}
	}
	return &fakeVolume{eng: e, drive: drive, dio: dio, nodes: e.stores[drive]}, ResOK
}

type fakeVolume struct {
	eng       *FakeEngine
	drive     int
	dio       DiskIO
	nodes     map[string]*fakeNode
	unmounted bool
}

func (v *fakeVolume) Unmount() Result {
	if v.unmounted {
		return ResInvalidObject
	}
	v.unmounted = true
	return ResOK
}

func (v *fakeVolume) newCluster() uint32 {
	v.eng.mu.Lock()
	defer v.eng.mu.Unlock()
	v.eng.nextClust++
	return v.eng.nextClust + 2
}

func (v *fakeVolume) OpenFile(name string, mode AccessMode) (File, Result) {
	if v.unmounted {
		return nil, ResInvalidObject
	}
	if v.eng.OpenResult != ResOK {
		return nil, v.eng.OpenResult
	}
	p := normalize(name)
	node, found := v.nodes[p]
	if found && node.dir {
		return nil, ResDenied
	}
	switch {
	case mode&AccessCreateNew != 0:
		if found {
			return nil, ResExist
		}
		node = &fakeNode{mtime: v.eng.now(), clust: v.newCluster()}
		v.nodes[p] = node
	case mode&AccessCreateAlways != 0:
		if !found {
			node = &fakeNode{clust: v.newCluster()}
			v.nodes[p] = node
		}
		node.data = nil
		node.mtime = v.eng.now()
	default:
		if !found {
			return nil, ResNoFile
		}
	}
	return &fakeFile{vol: v, node: node, mode: mode}, ResOK
}

func (v *fakeVolume) OpenDir(name string) (Dir, Result) {
	if v.unmounted {
		return nil, ResInvalidObject
	}
	p := normalize(name)
	if p != "/" {
		node, found := v.nodes[p]
		if !found || !node.dir {
			return nil, ResNoPath
		}
	}
	return &fakeDir{vol: v, path: p, entries: v.list(p)}, ResOK
}

func (v *fakeVolume) list(dir string) []string {
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}
	var names []string
	for p := range v.nodes {
		if !strings.HasPrefix(p, prefix) || p == dir {
			continue
		}
		rest := p[len(prefix):]
		if !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names
}

func (v *fakeVolume) Rename(oldpath, newpath string) Result {
	oldp, newp := normalize(oldpath), normalize(newpath)
	node, found := v.nodes[oldp]
	if !found {
		return ResNoFile
	}
	if _, found := v.nodes[newp]; found {
		return ResExist
	}
	delete(v.nodes, oldp)
	v.nodes[newp] = node
	if node.dir {
		for p, child := range v.nodes {
			if strings.HasPrefix(p, oldp+"/") {
				delete(v.nodes, p)
				v.nodes[newp+p[len(oldp):]] = child
			}
		}
	}
	return ResOK
}

func (v *fakeVolume) Remove(name string) Result {
	p := normalize(name)
	node, found := v.nodes[p]
	if !found {
		return ResNoFile
	}
	if node.dir && len(v.list(p)) > 0 {
		return ResDenied
	}
	delete(v.nodes, p)
	return ResOK
}

func (v *fakeVolume) Mkdir(name string) Result {
	p := normalize(name)
	if _, found := v.nodes[p]; found {
		return ResExist
	}
	if parent := path.Dir(p); parent != "/" {
		node, found := v.nodes[parent]
		if !found || !node.dir {
			return ResNoPath
		}
	}
	v.nodes[p] = &fakeNode{dir: true, mtime: v.eng.now()}
	return ResOK
}

func (v *fakeVolume) Stat(name string) (FileInfo, Result) {
	p := normalize(name)
	node, found := v.nodes[p]
	if !found {
		return FileInfo{}, ResNoFile
	}
	return v.info(path.Base(p), node), ResOK
}

func (v *fakeVolume) info(name string, node *fakeNode) FileInfo {
	packed := PackTime(node.mtime)
	fi := FileInfo{
		Name: name,
		Size: int64(len(node.data)),
		Date: uint16(packed >> 16),
		Time: uint16(packed),
	}
	if node.dir {
		fi.Attr = AttrDirectory
	}
	return fi
}

func (v *fakeVolume) FreeClusters() (uint32, Result) {
	const totalClusters = 1024
	clusterBytes := v.eng.clusterSectors() * 512
	var used uint32
	for _, node := range v.nodes {
		used += uint32((len(node.data) + clusterBytes - 1) / clusterBytes)
	}
	if used > totalClusters {
		return 0, ResOK
	}
	return totalClusters - used, ResOK
}

func (v *fakeVolume) ClusterSize() int {
	return v.eng.clusterSectors()
}

func (v *fakeVolume) SectorOfCluster(clust uint32) int64 {
	const dataBase = 64
	if clust < 2 {
		return 0
	}
	return dataBase + int64(clust-2)*int64(v.eng.clusterSectors())
}

type fakeFile struct {
	vol     *fakeVolume
	node    *fakeNode
	mode    AccessMode
	pos     int64
	closed  bool
	linkmap []uint32
}

func (f *fakeFile) Read(p []byte) (int, Result) {
	if f.closed {
		return 0, ResInvalidObject
	}
	if f.mode&AccessRead == 0 {
		return 0, ResDenied
	}
	if f.pos >= int64(len(f.node.data)) {
		return 0, ResOK
	}
	n := copy(p, f.node.data[f.pos:])
	f.pos += int64(n)
	return n, ResOK
}

func (f *fakeFile) Write(p []byte) (int, Result) {
	if f.closed {
		return 0, ResInvalidObject
	}
	if f.mode&AccessWrite == 0 {
		return 0, ResDenied
	}
	end := f.pos + int64(len(p))
	if end > int64(len(f.node.data)) {
		grown := make([]byte, end)
		copy(grown, f.node.data)
		f.node.data = grown
	}
	copy(f.node.data[f.pos:], p)
	f.pos = end
	f.node.mtime = f.vol.eng.now()
	return len(p), ResOK
}

func (f *fakeFile) Seek(offset int64) Result {
	if f.closed {
		return ResInvalidObject
	}
	if offset < 0 {
		return ResInvalidParameter
	}
	size := int64(len(f.node.data))
	if offset > size {
		if f.mode&AccessWrite == 0 {
			f.pos = size
			return ResOK
		}
		grown := make([]byte, offset)
		copy(grown, f.node.data)
		f.node.data = grown
	}
	f.pos = offset
	return ResOK
}

func (f *fakeFile) Tell() int64 { return f.pos }

func (f *fakeFile) Size() int64 { return int64(len(f.node.data)) }

func (f *fakeFile) Sync() Result {
	if f.closed {
		return ResInvalidObject
	}
	if dr := f.vol.dio.Ioctl(f.vol.drive, CtrlSync, nil); dr != DiskOK {
		return ResDiskErr
	}
	return ResOK
}

func (f *fakeFile) Close() Result {
	if f.closed {
		return ResInvalidObject
	}
	f.closed = true
	return ResOK
}

func (f *fakeFile) FirstCluster() uint32 { return f.node.clust }

func (f *fakeFile) SetLinkMap(tbl []uint32) Result {
	if len(tbl) == 0 {
		return ResInvalidParameter
	}
	need := f.vol.eng.LinkMapEntries
	if need == 0 {
		need = 4
	}
	if tbl[0] < uint32(need) {
		tbl[0] = uint32(need)
		return ResNotEnoughCore
	}
	if r := f.vol.eng.LinkMapResult; r != ResOK {
		return r
	}
	tbl[0] = uint32(need)
	for i := 1; i < need; i++ {
		tbl[i] = f.node.clust + uint32(i-1)
	}
	f.linkmap = tbl
	return ResOK
}

func (f *fakeFile) LinkMap() []uint32 { return f.linkmap }

type fakeDir struct {
	vol     *fakeVolume
	path    string
	entries []string
	next    int
	closed  bool
}

func (d *fakeDir) Read(info *FileInfo) Result {
	if d.closed {
		return ResInvalidObject
	}
	*info = FileInfo{}
	if d.next >= len(d.entries) {
		return ResOK // end of directory
	}
	name := d.entries[d.next]
	d.next++
	p := d.path
	if p != "/" {
		p += "/"
	}
	node, found := d.vol.nodes[p+name]
	if !found {
		return ResIntErr
	}
	*info = d.vol.info(name, node)
	return ResOK
}

func (d *fakeDir) Rewind() Result {
	if d.closed {
		return ResInvalidObject
	}
	d.next = 0
	d.entries = d.vol.list(d.path)
	return ResOK
}

func (d *fakeDir) Close() Result {
	if d.closed {
		return ResInvalidObject
	}
	d.closed = true
	return ResOK
}
