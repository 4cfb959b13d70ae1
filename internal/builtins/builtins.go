// Package builtins registers every built-in function with the runtime
// registry as a side effect of being imported. Importers only need the
// blank import; individual builtins are otherwise unreferenced by name.
package builtins

import (
	_ "github.com/xirelogy/tela/internal/builtins/assert"
	_ "github.com/xirelogy/tela/internal/builtins/clock"
	_ "github.com/xirelogy/tela/internal/builtins/len"
	_ "github.com/xirelogy/tela/internal/builtins/range"
	_ "github.com/xirelogy/tela/internal/builtins/tonumber"
	_ "github.com/xirelogy/tela/internal/builtins/tostring"
)
