package symbol

// Kind enumerates the closed set of entity variants in the symbol graph.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindFile
	KindNamespace
	KindClass
	KindInterface
	KindTrait
	KindFunction
	KindVariable
	KindBlock
	KindExternal
	KindDefine
)

var kindNames = map[Kind]string{
	KindFile:      "file",
	KindNamespace: "namespace",
	KindClass:     "class",
	KindInterface: "interface",
	KindTrait:     "trait",
	KindFunction:  "function",
	KindVariable:  "variable",
	KindBlock:     "block",
	KindExternal:  "external",
	KindDefine:    "define",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "invalid"
}

// KindFromString parses a kind name as produced by Kind.String.
// Unknown names map to KindInvalid.
func KindFromString(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindInvalid
}

// IsScope reports whether entities of this kind own nested declarations.
func (k Kind) IsScope() bool {
	switch k {
	case KindFile, KindNamespace, KindClass, KindFunction, KindBlock:
		return true
	}
	return false
}
