package result

// Kind identifies which variant of Result a task produces
type Kind string

// Result variants
const (
	KindSetup       Kind = "setup"
	KindCheck       Kind = "check"
	KindBuild       Kind = "build"
	KindCorrectness Kind = "correctness"
	KindComplexity  Kind = "complexity"
	KindMemory      Kind = "memory"
	KindCleanup     Kind = "cleanup"
)

var kinds = map[Kind]bool{
	KindSetup:       true,
	KindCheck:       true,
	KindBuild:       true,
	KindCorrectness: true,
	KindComplexity:  true,
	KindMemory:      true,
	KindCleanup:     true,
}

// Valid reports whether k is one of the known result variants
func (k Kind) Valid() bool {
	return kinds[k]
}

// ParseKind converts s to Kind
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", &InvalidKindError{Kind: s}
	}
	return k, nil
}

// InvalidKindError is returned when a result kind is not recognized
type InvalidKindError struct {
	Kind string
}

func (e *InvalidKindError) Error() string {
	return "invalid result kind: " + e.Kind
}

func (e *InvalidKindError) Unwrap() error {
	return ErrConfiguration
}
