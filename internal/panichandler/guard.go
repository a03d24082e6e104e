// Copyright 2025 VexFS Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package panichandler

import "fmt"

// Guard wraps a named scope (typically one FUSE operation) with panic
// protection: a panic inside Execute's function is recovered, recorded in
// the owning Registry, and turned into an error instead of crashing the
// calling goroutine.
type Guard struct {
	name     string
	registry *Registry
}

// NewGuard returns a Guard that reports panics it catches to registry
// under the given scope name.
func NewGuard(name string, registry *Registry) *Guard {
	return &Guard{name: name, registry: registry}
}

// Execute runs f, recovering and recording any panic it raises. On
// success it returns f's result and a nil error; on a recovered panic it
// returns the zero value of R and a non-nil error describing the panic.
func Execute[R any](g *Guard, f func() R) (result R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			g.registry.handle(rec)
			err = fmt.Errorf("panic recovered in %s: %v", g.name, rec)
		}
	}()
	result = f()
	return result, nil
}
