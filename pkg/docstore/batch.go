package docstore

import (
	"fmt"
	"strings"
	"time"
)

type WriteKind string

const (
	WriteCreate WriteKind = "create"
	WriteSet    WriteKind = "set"
	WriteUpdate WriteKind = "update"
	WriteDelete WriteKind = "delete"
)

// Write is a single mutation, either standalone or as part of a Batch.
type Write struct {
	Kind  WriteKind      `json:"kind"`
	Path  Path           `json:"path"`
	Data  map[string]any `json:"data,omitempty"`
	Merge bool           `json:"merge,omitempty"`
}

// Operation is the access kind rules see for this write.
func (w Write) Operation() Operation {
	switch w.Kind {
	case WriteCreate:
		return OpCreate
	case WriteUpdate:
		return OpUpdate
	case WriteDelete:
		return OpDelete
	}
	return OpWrite
}

func (w Write) Validate() error {
	if err := w.Path.ValidateDocument(); err != nil {
		return err
	}
	switch w.Kind {
	case WriteCreate, WriteSet, WriteUpdate:
		if w.Data == nil {
			return fmt.Errorf("%w: %s of %s without data", ErrInvalidArgument, w.Kind, w.Path)
		}
	case WriteDelete:
	default:
		return fmt.Errorf("%w: unknown write kind %q", ErrInvalidArgument, w.Kind)
	}
	for k := range w.Data {
		if k == "" || strings.HasPrefix(k, ".") || strings.HasSuffix(k, ".") {
			return fmt.Errorf("%w: bad field name %q", ErrInvalidArgument, k)
		}
	}
	return nil
}

// Batch collects writes that a store commits atomically.
type Batch struct {
	writes []Write
}

func NewBatch() *Batch {
	return &Batch{}
}

// BatchOf wraps already built writes.
func BatchOf(writes []Write) *Batch {
	return &Batch{writes: writes}
}

func (b *Batch) Create(doc Path, data map[string]any) *Batch {
	b.writes = append(b.writes, Write{Kind: WriteCreate, Path: doc, Data: data})
	return b
}

func (b *Batch) Set(doc Path, data map[string]any, opts ...SetOption) *Batch {
	b.writes = append(b.writes, Write{Kind: WriteSet, Path: doc, Data: data, Merge: ApplySetOptions(opts)})
	return b
}

func (b *Batch) Update(doc Path, data map[string]any) *Batch {
	b.writes = append(b.writes, Write{Kind: WriteUpdate, Path: doc, Data: data})
	return b
}

func (b *Batch) Delete(doc Path) *Batch {
	b.writes = append(b.writes, Write{Kind: WriteDelete, Path: doc})
	return b
}

func (b *Batch) Writes() []Write {
	return append([]Write(nil), b.writes...)
}

func (b *Batch) Len() int {
	return len(b.writes)
}

// Validate checks every write and rejects an empty batch.
func (b *Batch) Validate() error {
	if b == nil || len(b.writes) == 0 {
		return fmt.Errorf("%w: empty batch", ErrInvalidArgument)
	}
	for _, w := range b.writes {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Collections lists the distinct collections touched by b, in write order.
func (b *Batch) Collections() []Path {
	seen := map[Path]bool{}
	var out []Path
	for _, w := range b.writes {
		c := w.Path.Parent()
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

const transformKey = "$transform"

const (
	transformServerTimestamp = "serverTimestamp"
	transformIncrement       = "increment"
	transformDelete          = "delete"
)

// ServerTimestamp is replaced by the store's commit time, formatted with TimestampLayout.
func ServerTimestamp() map[string]any {
	return map[string]any{transformKey: transformServerTimestamp}
}

// Increment adds n to the current numeric value of a field, treating a
// missing or non-numeric value as zero.
func Increment(n float64) map[string]any {
	return map[string]any{transformKey: transformIncrement, "operand": n}
}

// DeleteField removes a field in Update or a merging Set.
func DeleteField() map[string]any {
	return map[string]any{transformKey: transformDelete}
}

func transformOf(v any) (kind string, operand any, ok bool) {
	m, isMap := asMap(v)
	if !isMap {
		return "", nil, false
	}
	k, isStr := m[transformKey].(string)
	if !isStr {
		return "", nil, false
	}
	return k, m["operand"], true
}

// Apply computes the document data that results from applying w to a
// document whose current data is current (exists reports whether the
// document exists). keep is false when the document should be removed.
func Apply(current map[string]any, exists bool, w Write, now time.Time) (next map[string]any, keep bool, err error) {
	switch w.Kind {
	case WriteDelete:
		return nil, false, nil
	case WriteCreate:
		if exists {
			return nil, false, fmt.Errorf("%w: %s", ErrAlreadyExists, w.Path)
		}
		next = map[string]any{}
		mergeInto(next, w.Data, now)
	case WriteSet:
		next = map[string]any{}
		if w.Merge && exists {
			next = CloneData(current)
		}
		mergeInto(next, w.Data, now)
	case WriteUpdate:
		if !exists {
			return nil, false, fmt.Errorf("%w: %s", ErrNotFound, w.Path)
		}
		next = CloneData(current)
		for field, v := range w.Data {
			old, _ := Field(next, field)
			resolved, remove := resolve(old, v, now)
			if remove {
				deleteField(next, field)
				continue
			}
			setField(next, field, resolved)
		}
	default:
		return nil, false, fmt.Errorf("%w: unknown write kind %q", ErrInvalidArgument, w.Kind)
	}
	return next, true, nil
}

func mergeInto(dst map[string]any, src map[string]any, now time.Time) {
	for k, v := range src {
		if _, _, isTransform := transformOf(v); !isTransform {
			if srcMap, ok := asMap(v); ok {
				if dstMap, ok := asMap(dst[k]); ok {
					mergeInto(dstMap, srcMap, now)
					dst[k] = dstMap
					continue
				}
				nested := map[string]any{}
				mergeInto(nested, srcMap, now)
				dst[k] = nested
				continue
			}
		}
		resolved, remove := resolve(dst[k], v, now)
		if remove {
			delete(dst, k)
			continue
		}
		dst[k] = resolved
	}
}

func resolve(old, v any, now time.Time) (resolved any, remove bool) {
	kind, operand, ok := transformOf(v)
	if !ok {
		return cloneValue(v), false
	}
	switch kind {
	case transformServerTimestamp:
		return FormatTimestamp(now), false
	case transformIncrement:
		base, _ := toFloat(old)
		n, _ := toFloat(operand)
		return base + n, false
	case transformDelete:
		return nil, true
	}
	return cloneValue(v), false
}
