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

// Diagnostic is passed to Config.OnDiagnostic for non-fatal, informative
// events the interpreter surfaces during decode or execution (e.g. a
// custom section it skipped).
type Diagnostic struct {
	Phase   string
	Message string
}

// Config controls resource limits and feature gates shared by every
// RuntimeInstance built from an Environment. The defaults favor a
// conservative call-stack bound; the diagnostic hook is optional.
type Config struct {
	// MaxCallStackDepth bounds nested calls; exceeding
	// it traps TrapCallStackExhausted.
	MaxCallStackDepth int

	// CallStackPreallocationSize sizes the call stack's backing array up
	// front, avoiding reallocation churn in the hot call path.
	CallStackPreallocationSize int

	// MaxValueStackDepth sizes the operand stack's initial capacity (a
	// quarter of it); the operand stack grows past it and no trap is
	// raised for its depth.
	MaxValueStackDepth int

	// EnableFuel and Fuel are carried on the Config; the interpreter does
	// not read them, meters no instructions and raises no fuel trap.
	EnableFuel bool
	Fuel       uint64

	// Features records which optional extensions the embedder enables.
	// Neither the decoder nor the interpreter consults it: every
	// extension opcode is accepted and executed whatever bits are set.
	Features Feature

	// OnDiagnostic, if set, receives non-fatal diagnostics during decode
	// and execution. Nil is a valid no-op default.
	OnDiagnostic func(Diagnostic)
}

// DefaultConfig returns the interpreter's default resource limits: no
// optional features, a call stack of 8192 frames, an operand stack sized
// for 65536 values, no fuel metering.
func DefaultConfig() *Config {
	return &Config{
		MaxCallStackDepth:          8192,
		CallStackPreallocationSize: 256,
		MaxValueStackDepth:         65536,
	}
}

func (c *Config) diagnostic(phase, message string) {
	if c.OnDiagnostic != nil {
		c.OnDiagnostic(Diagnostic{Phase: phase, Message: message})
	}
}

func (c *Config) hasFeature(f Feature) bool { return c.Features&f != 0 }
