// Package luaruntime embeds a Lua state as the remote side of a bridge.
//
// Scripts injected by the host run on a single goroutine that owns the Lua
// state. Lua code talks back to the host through the global bridgekit table:
//
//	bridgekit.on("bridgekit", function(detail) ... end)
//	bridgekit.post({ topic = "myTopic", data = { receivedText = "hi" } })
package luaruntime

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/Shopify/go-lua"
)

const logPrefix = "luaruntime:runtime"

// ErrClosed completes evaluations queued on, or after, a closed Runtime.
var ErrClosed = errors.New("lua runtime closed")

const prelude = `
local listeners = {}

function bridgekit.on(name, fn)
  assert(type(fn) == "function", "listener must be a function")
  local list = listeners[name]
  if list == nil then
    list = {}
    listeners[name] = list
  end
  list[#list + 1] = fn
end

function bridgekit.off(name)
  listeners[name] = nil
end

function bridgekit.dispatch_event(name, detail_json)
  local detail = bridgekit.decode(detail_json)
  local list = listeners[name]
  if list == nil then
    return 0
  end
  for _, fn in ipairs(list) do
    local ok, err = pcall(fn, detail)
    if not ok then
      bridgekit.log_error(name, tostring(err))
    end
  end
  return #list
end
`

type job struct {
	run  func(state *lua.State)
	fail func(err error)
}

// Runtime is a Lua remote context. It implements bridge.Evaluator.
type Runtime struct {
	state *lua.State

	mu      sync.Mutex
	queue   []job
	closed  bool
	intake  func(message any)
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

// New creates a Runtime with the standard libraries and the bridgekit API
// loaded. Messages posted from Lua are dropped with an error until SetIntake is called.
func New() (*Runtime, error) {
	r := &Runtime{
		state:   lua.NewState(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	lua.OpenLibraries(r.state)
	r.registerAPI()
	if err := lua.DoString(r.state, prelude); err != nil {
		return nil, fmt.Errorf("%s - failed to load prelude: %w", logPrefix, err)
	}

	go r.loop()
	return r, nil
}

// SetIntake sets the function that receives every message posted from Lua,
// typically (*bridge.Bridge).HandleReceived.
func (r *Runtime) SetIntake(intake func(message any)) {
	r.mu.Lock()
	r.intake = intake
	r.mu.Unlock()
}

// EvaluateScript queues script for execution and never blocks. completion is
// invoked exactly once on the runtime goroutine with the first value the
// chunk returns, or with the Lua error.
func (r *Runtime) EvaluateScript(script string, completion func(result any, err error)) {
	if completion == nil {
		completion = func(any, error) {}
	}
	r.enqueue(job{
		run: func(state *lua.State) {
			result, err := run(state, script)
			completion(result, err)
		},
		fail: func(err error) {
			completion(nil, err)
		},
	})
}

// Eval runs script and waits for its result. It must not be called from Lua
// callbacks or bridge handlers running on the runtime goroutine.
func (r *Runtime) Eval(script string) (any, error) {
	type outcome struct {
		result any
		err    error
	}
	ch := make(chan outcome, 1)
	r.EvaluateScript(script, func(result any, err error) {
		ch <- outcome{result: result, err: err}
	})
	o := <-ch
	return o.result, o.err
}

// LoadFile runs the Lua file at path, e.g. a page script that installs listeners.
func (r *Runtime) LoadFile(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s - failed to read %s: %w", logPrefix, path, err)
	}
	if _, err := r.Eval(string(source)); err != nil {
		return fmt.Errorf("%s - failed to run %s: %w", logPrefix, path, err)
	}
	slog.Info(fmt.Sprintf("%s - Loaded script %s", logPrefix, path))
	return nil
}

// Close stops the runtime. Queued evaluations complete with ErrClosed.
func (r *Runtime) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.stopped
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.done)
	<-r.stopped
}

func (r *Runtime) enqueue(j job) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		j.fail(ErrClosed)
		return
	}
	r.queue = append(r.queue, j)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runtime) next() (job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return job{}, false
	}
	j := r.queue[0]
	r.queue[0] = job{}
	r.queue = r.queue[1:]
	return j, true
}

func (r *Runtime) loop() {
	defer close(r.stopped)
	for {
		select {
		case <-r.wake:
			for j, ok := r.next(); ok; j, ok = r.next() {
				j.run(r.state)
			}
		case <-r.done:
			for j, ok := r.next(); ok; j, ok = r.next() {
				j.fail(ErrClosed)
			}
			return
		}
	}
}

// run executes script and returns its first result.
func run(state *lua.State, script string) (any, error) {
	base := state.Top()
	defer state.SetTop(base)

	if err := lua.LoadString(state, script); err != nil {
		return nil, fmt.Errorf("%s - load: %w", logPrefix, err)
	}
	if err := state.ProtectedCall(0, lua.MultipleReturns, 0); err != nil {
		return nil, fmt.Errorf("%s - run: %w", logPrefix, err)
	}
	if state.Top() == base {
		return nil, nil
	}
	return toGo(state, base+1), nil
}

func (r *Runtime) registerAPI() {
	r.state.NewTable()
	lua.SetFunctions(r.state, []lua.RegistryFunction{
		{Name: "post", Function: r.luaPost},
		{Name: "decode", Function: luaDecode},
		{Name: "log_error", Function: luaLogError},
	}, 0)
	r.state.SetGlobal("bridgekit")
}

// luaPost implements bridgekit.post(message).
func (r *Runtime) luaPost(state *lua.State) int {
	message := toGo(state, 1)

	r.mu.Lock()
	intake := r.intake
	r.mu.Unlock()
	if intake == nil {
		lua.Errorf(state, "bridgekit.post: no intake attached")
		return 0
	}

	intake(message)
	return 0
}

// luaDecode implements bridgekit.decode(json).
func luaDecode(state *lua.State) int {
	text := lua.CheckString(state, 1)
	value, err := decodeJSON(text)
	if err != nil {
		lua.Errorf(state, "bridgekit.decode: %s", err.Error())
		return 0
	}
	push(state, value)
	return 1
}

func luaLogError(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	message := lua.OptString(state, 2, "")
	slog.Warn(fmt.Sprintf("%s - listener for %q failed: %s", logPrefix, name, message))
	return 0
}

// Script is a bridge.ScriptBuilder for a Runtime: it raises eventName with the
// envelope as detail and returns the number of listeners notified.
func Script(eventName, envelopeJSON string) string {
	return fmt.Sprintf("return bridgekit.dispatch_event(%s, %s)", Quote(eventName), Quote(envelopeJSON))
}

// Quote renders s as a Lua long bracket literal whose level does not
// occur in s. The leading newline is skipped by Lua, so s is kept verbatim.
func Quote(s string) string {
	eq := ""
	for strings.Contains(s+"]", "]"+eq+"]") {
		eq += "="
	}
	return "[" + eq + "[\n" + s + "]" + eq + "]"
}
