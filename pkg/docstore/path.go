package docstore

import (
	"fmt"
	"strings"
)

// Path addresses a collection or a document. Segments alternate between
// collection names and document ids, so a collection path has an odd number
// of segments ("users/u1/expenses") and a document path an even number
// ("users/u1/expenses/e1").
type Path string

// ParsePath validates s and returns it as a Path. Leading and trailing slashes are dropped.
func ParsePath(s string) (Path, error) {
	s = strings.Trim(s, "/")
	if s == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for _, seg := range strings.Split(s, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: bad segment in %q", ErrInvalidPath, s)
		}
	}
	return Path(s), nil
}

// MustPath is ParsePath for literals known to be valid.
func MustPath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// UserCollection returns users/{uid}/{name}.
func UserCollection(uid, name string) Path {
	return Path("users/" + uid + "/" + name)
}

func (p Path) String() string {
	return string(p)
}

func (p Path) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), "/")
}

func (p Path) IsCollection() bool {
	return p != "" && len(p.Segments())%2 == 1
}

func (p Path) IsDocument() bool {
	return p != "" && len(p.Segments())%2 == 0
}

// Child appends a segment.
func (p Path) Child(segment string) Path {
	if p == "" {
		return Path(segment)
	}
	return Path(string(p) + "/" + segment)
}

// Parent drops the last segment. The parent of a document is its collection.
func (p Path) Parent() Path {
	i := strings.LastIndexByte(string(p), '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// ID is the last segment.
func (p Path) ID() string {
	i := strings.LastIndexByte(string(p), '/')
	return string(p[i+1:])
}

func (p Path) validate(wantDocument bool) error {
	q, err := ParsePath(string(p))
	if err != nil {
		return err
	}
	if q != p {
		return fmt.Errorf("%w: %q has leading or trailing slashes", ErrInvalidPath, p)
	}
	if wantDocument && !p.IsDocument() {
		return fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, p)
	}
	if !wantDocument && !p.IsCollection() {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, p)
	}
	return nil
}

// ValidateDocument reports whether p is a well formed document path.
func (p Path) ValidateDocument() error {
	return p.validate(true)
}

// ValidateCollection reports whether p is a well formed collection path.
func (p Path) ValidateCollection() error {
	return p.validate(false)
}
