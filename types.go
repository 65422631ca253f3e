package arbor

import "github.com/jward/arbor/internal/symbol"

// Public aliases for the internal symbol types that appear in the Index
// API. Being aliases (=) rather than defined types, no conversion is
// needed on either side of the package boundary.

type Entity = symbol.Entity
type File = symbol.File
type Kind = symbol.Kind
type FileSnapshot = symbol.FileSnapshot
type EntitySnapshot = symbol.EntitySnapshot

// Entity kinds, re-exported for consumers.
const (
	KindInvalid   = symbol.KindInvalid
	KindFile      = symbol.KindFile
	KindNamespace = symbol.KindNamespace
	KindClass     = symbol.KindClass
	KindInterface = symbol.KindInterface
	KindTrait     = symbol.KindTrait
	KindFunction  = symbol.KindFunction
	KindVariable  = symbol.KindVariable
	KindBlock     = symbol.KindBlock
	KindExternal  = symbol.KindExternal
	KindDefine    = symbol.KindDefine
)

// KindFromString parses a kind name as produced by Kind.String.
func KindFromString(s string) Kind { return symbol.KindFromString(s) }
