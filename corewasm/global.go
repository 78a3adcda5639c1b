// Copyright 2025 Google LLC
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

package corewasm

// Global is one runtime global variable cell. An imported mutable global
// is an alias: the instance shares the same *Global as whichever module
// (or host) defined it, so writes through either side are observed by
// both; a non-imported global gets its own freshly allocated cell.
type Global struct {
	Type  GlobalType
	value TypedValue
}

func NewGlobal(t GlobalType, init TypedValue) *Global {
	return &Global{Type: t, value: init}
}

func (g *Global) Get() TypedValue { return g.value }

func (g *Global) Set(v TypedValue) { g.value = v }
