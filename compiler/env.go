package compiler

// Env is the binding environment: a stack of name -> Value frames scoped
// identically to source-level scoping.
type Env struct {
	frames []map[string]Value
}

func NewEnv() *Env {
	return &Env{frames: []map[string]Value{{}}}
}

func (e *Env) Push() {
	e.frames = append(e.frames, map[string]Value{})
}

func (e *Env) Pop() {
	if len(e.frames) == 1 {
		panic("cannot pop global scope")
	}
	e.frames = e.frames[:len(e.frames)-1]
}

// Get searches from the innermost frame outward.
func (e *Env) Get(name string) (Value, bool) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if v, ok := e.frames[i][name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

// Put registers name in the innermost frame.
func (e *Env) Put(name string, v Value) {
	e.frames[len(e.frames)-1][name] = v
}
