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

package vfs

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrExist denotes a handler already registered at the path.
	ErrExist = errors.New("handler already registered at path")
	// ErrNotExist denotes a lookup or removal with no registered handler.
	ErrNotExist = errors.New("no handler registered at path")
)

// Registry maps mount paths to their handlers. Lookups resolve by longest
// registered prefix so that nested mounts shadow their parents. The zero
// value is ready to use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

func clean(path string) string {
	path = "/" + strings.Trim(path, "/")
	return path
}

// Add registers handler at path.
func (r *Registry) Add(path string, handler Handler) error {
	path = clean(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = map[string]Handler{}
	}
	if _, found := r.handlers[path]; found {
		return ErrExist
	}
	r.handlers[path] = handler
	return nil
}

// Remove unregisters the handler at path. The caller must remove the
// handler before releasing any state it serves.
func (r *Registry) Remove(path string) error {
	path = clean(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.handlers[path]; !found {
		return ErrNotExist
	}
	delete(r.handlers, path)
	return nil
}

// Lookup resolves path to its handler by longest registered prefix and
// returns the handler together with the path remainder relative to the
// mount (always beginning with "/").
func (r *Registry) Lookup(path string) (Handler, string, error) {
	path = clean(path)
	r.mu.RLock()
	defer r.mu.RUnlock()

	for prefix := path; ; {
		if handler, found := r.handlers[prefix]; found {
			rest := strings.TrimPrefix(path, prefix)
			if rest == "" {
				rest = "/"
			}
			return handler, rest, nil
		}
		if prefix == "/" {
			return nil, "", ErrNotExist
		}
		if i := strings.LastIndexByte(prefix, '/'); i > 0 {
			prefix = prefix[:i]
		} else {
			prefix = "/"
		}
	}
}

// Paths returns the registered mount paths in sorted order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.handlers))
	for path := range r.handlers {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
