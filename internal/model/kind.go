package model

import "fmt"

// Kind is what occupies a path on one side: nothing, a file or a directory.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindFile
	KindDir
)

// Kinds lists every kind in matrix order.
var Kinds = [...]Kind{KindEmpty, KindFile, KindDir}

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	default:
		return "empty"
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "empty":
		return KindEmpty, nil
	case "file":
		return KindFile, nil
	case "dir":
		return KindDir, nil
	default:
		return KindEmpty, fmt.Errorf("unknown kind %q", s)
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}

	*k = parsed
	return nil
}
