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

// Package repl implements an interactive line-oriented shell for loading,
// instantiating and poking at WASM modules through the corewasm embedding
// API.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/corewasm/corewasm/corewasm"
)

const prompt = ">> "
const defaultModuleName = "default"

var (
	errNoModuleInstantiated = errors.New("no module loaded; use LOAD first")
	errModuleNotFound       = errors.New("module not found")
)

type UsageError struct{}

func (e *UsageError) Error() string { return "wrong command usage" }

func NewUsageError() error { return &UsageError{} }

type Command struct {
	Usage   string
	Handler func(r *Repl, args []string) error
}

// Repl holds one Environment shared by every LOADed module instance, so
// modules can import each other's exports.
type Repl struct {
	env             *corewasm.Environment
	moduleInstances map[string]*corewasm.Instance
	activeModule    string
	scanner         *bufio.Scanner
	commands        map[string]Command
}

func NewRepl() *Repl {
	r := &Repl{
		env:             corewasm.NewEnvironment(nil),
		moduleInstances: make(map[string]*corewasm.Instance),
		activeModule:    defaultModuleName,
		scanner:         bufio.NewScanner(os.Stdin),
	}
	r.commands = map[string]Command{
		"LOAD": {
			Usage:   "LOAD [<module-name>] <path-to-file | url>",
			Handler: (*Repl).handleInstantiate,
		},
		"POOL": {
			Usage:   "POOL <host-module-name>",
			Handler: (*Repl).handlePool,
		},
		"MATH": {
			Usage:   "MATH <host-module-name>",
			Handler: (*Repl).handleMath,
		},
		"CSTD": {
			Usage:   "CSTD <host-module-name>",
			Handler: (*Repl).handleCStd,
		},
		"USE": {
			Usage:   "USE <module-name>",
			Handler: (*Repl).handleUse,
		},
		"INVOKE": {
			Usage:   "INVOKE <function-name> [args...]",
			Handler: (*Repl).handleInvoke,
		},
		"GET": {
			Usage:   "GET <global-name>",
			Handler: (*Repl).handleGet,
		},
		"MEM": {
			Usage:   "MEM <offset> <length>",
			Handler: (*Repl).handleMem,
		},
		"/list": {
			Usage:   "/list",
			Handler: (*Repl).handleList,
		},
		"/help": {
			Usage:   "/help",
			Handler: (*Repl).handleHelp,
		},
		"/clear": {
			Usage:   "/clear",
			Handler: (*Repl).handleClear,
		},
		"/quit": {
			Usage:   "/quit",
			Handler: (*Repl).handleQuit,
		},
	}
	return r
}

func Start() {
	// Handle CTRL-C
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\nBye!")
		os.Exit(0)
	}()

	NewRepl().run()
}

func (r *Repl) run() {
	fmt.Print(prompt)

	for r.scanner.Scan() {
		line := r.scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			fmt.Print(prompt)
			continue
		}

		cmdName := parts[0]
		args := parts[1:]

		if cmd, ok := r.commands[cmdName]; ok {
			if err := cmd.Handler(r, args); err != nil {
				var usageErr *UsageError
				if errors.As(err, &usageErr) {
					fmt.Fprintln(os.Stderr, Red(fmt.Sprintf("Usage: %s", cmd.Usage)))
				} else {
					fmt.Fprintln(os.Stderr, Red(fmt.Sprintf("Error: %s", err)))
				}
			}
		} else {
			fmt.Fprintln(
				os.Stderr, Red(fmt.Sprintf("Error: unknown command: %s", cmdName)),
			)
		}
		fmt.Print(prompt)
	}
}

func (r *Repl) handleInstantiate(args []string) error {
	var instanceName, source string
	switch len(args) {
	case 1:
		instanceName = defaultModuleName
		source = args[0]
	case 2:
		instanceName = args[0]
		source = args[1]
	default:
		return NewUsageError()
	}

	if _, ok := r.moduleInstances[instanceName]; ok {
		return fmt.Errorf("module instance '%s' already exists", instanceName)
	}

	moduleReader, err := ResolveModule(source)
	if err != nil {
		return err
	}
	defer moduleReader.Close()

	mod, err := corewasm.Decode(moduleReader, nil)
	if err != nil {
		return err
	}

	instance, err := r.env.Instantiate(instanceName, mod)
	if err != nil {
		return err
	}
	r.moduleInstances[instanceName] = instance
	r.activeModule = instanceName
	fmt.Println(Green(fmt.Sprintf("'%s' instantiated.", instanceName)))
	return nil
}

// handlePool registers the script allocator's mem_pool_* host functions
// under the given import module name, so a module LOADed afterwards can
// import from it to manage its own arena pools.
func (r *Repl) handlePool(args []string) error {
	if len(args) != 1 {
		return NewUsageError()
	}
	r.env.RegisterScriptAllocator(args[0], corewasm.DefaultScriptArenaBase)
	fmt.Println(Green(fmt.Sprintf("script allocator registered as '%s'.", args[0])))
	return nil
}

// handleMath registers the libm-style _ws_<name>d/_ws_<name>f host
// functions under the given import module name.
func (r *Repl) handleMath(args []string) error {
	if len(args) != 1 {
		return NewUsageError()
	}
	r.env.RegisterHostMath(args[0])
	fmt.Println(Green(fmt.Sprintf("host math registered as '%s'.", args[0])))
	return nil
}

// handleCStd registers the memcpy/memmove/memcmp/memset/strlen/strcmp/
// strncmp/ws_print/ws_printn host functions under the given import
// module name. Printed output goes to stdout.
func (r *Repl) handleCStd(args []string) error {
	if len(args) != 1 {
		return NewUsageError()
	}
	r.env.RegisterCStdlib(args[0], func(s string) { fmt.Print(s) })
	fmt.Println(Green(fmt.Sprintf("C stdlib registered as '%s'.", args[0])))
	return nil
}

func (r *Repl) handleUse(args []string) error {
	if len(args) != 1 {
		return NewUsageError()
	}
	selectedModule := args[0]
	_, ok := r.moduleInstances[selectedModule]
	if !ok {
		return errModuleNotFound
	}

	r.activeModule = selectedModule
	return nil
}

func (r *Repl) handleInvoke(args []string) error {
	module, err := r.getActiveModule()
	if err != nil {
		return err
	}

	if len(args) < 1 {
		return NewUsageError()
	}

	funcName := args[0]
	strArgs := args[1:]

	fn, err := module.Export(funcName, corewasm.FuncKind)
	if err != nil {
		return err
	}
	sig := corewasm.Signature(fn.(corewasm.FunctionInstance))

	if len(strArgs) != len(sig.Params) {
		return fmt.Errorf(
			"invalid number of arguments for %s; expected %d, got %d",
			funcName, len(sig.Params), len(strArgs),
		)
	}

	parsedArgs := make([]any, len(strArgs))
	for i, paramType := range sig.Params {
		arg, err := parseArg(strArgs[i], paramType)
		if err != nil {
			return err
		}
		parsedArgs[i] = arg
	}

	th := r.env.NewThread()
	result, err := module.Invoke(th, funcName, parsedArgs...)
	if err != nil {
		return err
	}

	for _, v := range result {
		fmt.Println(Green(fmt.Sprintf("%v", v)))
	}
	return nil
}

func (r *Repl) handleGet(args []string) error {
	module, err := r.getActiveModule()
	if err != nil {
		return err
	}

	if len(args) != 1 {
		return NewUsageError()
	}
	globalName := args[0]

	obj, err := module.Export(globalName, corewasm.GlobalKind)
	if err != nil {
		return err
	}
	val := obj.(*corewasm.Global).Get()
	fmt.Println(Green(fmt.Sprintf("%v", val.Any())))
	return nil
}

func (r *Repl) handleClear(args []string) error {
	fmt.Print("\033[H\033[2J")
	r.env = corewasm.NewEnvironment(nil)
	r.moduleInstances = make(map[string]*corewasm.Instance)
	r.activeModule = defaultModuleName
	return nil
}

func (r *Repl) handleQuit(args []string) error {
	os.Exit(0)
	return nil
}

func (r *Repl) handleMem(args []string) error {
	module, err := r.getActiveModule()
	if err != nil {
		return err
	}

	if len(args) != 2 {
		return NewUsageError()
	}

	offset, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid offset: %s", args[0])
	}
	length, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid length: %s", args[1])
	}

	obj, err := module.Export("memory", corewasm.MemoryKind)
	if err != nil {
		return err
	}
	memory := obj.(*corewasm.Memory)
	memoryData, err := memory.Read(corewasm.Address(offset), 0, uint32(length))
	if err != nil {
		return err
	}
	fmt.Println(memoryData)
	return nil
}

func (r *Repl) handleList(args []string) error {
	for name, module := range r.moduleInstances {
		fmt.Println(name)
		for _, exportName := range module.ExportNames() {
			fmt.Printf("  %s\n", exportName)
		}
	}
	return nil
}

func (r *Repl) handleHelp(args []string) error {
	for _, cmd := range r.commands {
		fmt.Println(cmd.Usage)
	}
	return nil
}

func (r *Repl) getActiveModule() (*corewasm.Instance, error) {
	if len(r.moduleInstances) == 0 {
		return nil, errNoModuleInstantiated
	}

	instance, ok := r.moduleInstances[r.activeModule]
	if !ok {
		return nil, fmt.Errorf("active module '%s' not found", r.activeModule)
	}
	return instance, nil
}

func parseArg(argStr string, paramType corewasm.ValueType) (any, error) {
	switch paramType {
	case corewasm.I32:
		val, err := strconv.ParseInt(argStr, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("failed to parse arg %s as i32: %v", argStr, err)
		}
		return int32(val), nil
	case corewasm.I64:
		val, err := strconv.ParseInt(argStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse arg %s as i64: %v", argStr, err)
		}
		return val, nil
	case corewasm.F32:
		val, err := strconv.ParseFloat(argStr, 32)
		if err != nil {
			return nil, fmt.Errorf("failed to parse arg %s as f32: %v", argStr, err)
		}
		return float32(val), nil
	case corewasm.F64:
		val, err := strconv.ParseFloat(argStr, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse arg %s as f64: %v", argStr, err)
		}
		return val, nil
	default:
		return nil, fmt.Errorf("unsupported arg type: %v", paramType)
	}
}
