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

package spectest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corewasm/corewasm/wabt"
)

// TestCoreSpec replays every .wast file under spec/test/core against the
// interpreter. The suite itself isn't vendored into this repo; point
// CORE_WASM_SPEC_TEST_DIR at a checkout of
// github.com/WebAssembly/testsuite to run it, otherwise the test skips.
func TestCoreSpec(t *testing.T) {
	dir := os.Getenv("CORE_WASM_SPEC_TEST_DIR")
	if dir == "" {
		dir = "spec/test/core"
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Skipf("no spec test suite checked out at %s: %v", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".wast") {
			continue
		}
		wastFile := filepath.Join(dir, entry.Name())
		t.Run(entry.Name(), func(t *testing.T) {
			jsonData, wasmDict, err := wabt.Wast2json(wastFile)
			if err != nil {
				t.Skipf("wast2json unavailable or failed: %v", err)
			}
			newRunner(t, wasmDict).run(jsonData.Commands)
		})
	}
}
