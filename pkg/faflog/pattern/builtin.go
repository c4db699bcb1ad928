package pattern

import (
	_ "embed"
	"sync"
)

//go:embed builtin.yaml
var builtinYAML []byte

var (
	builtinOnce sync.Once
	builtinLib  *Library
	builtinErr  error
)

// Builtin returns the compiled built-in rule set for FAF game and client logs.
// The library is compiled once and shared.
func Builtin() (*Library, error) {
	builtinOnce.Do(func() {
		pf, err := LoadBytes(builtinYAML)
		if err != nil {
			builtinErr = err
			return
		}
		builtinLib, builtinErr = Compile(pf)
	})
	return builtinLib, builtinErr
}

// BuiltinSource returns the raw YAML of the built-in rule set, useful as a
// starting point for a custom pattern file.
func BuiltinSource() []byte {
	out := make([]byte, len(builtinYAML))
	copy(out, builtinYAML)
	return out
}
