package live

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/fintrack/fintrack/pkg/docstore"
)

// WithID is a decoded document together with its store id.
type WithID[T any] struct {
	ID  string
	Doc T
}

// Validator is implemented by document types that check their own shape
// after decoding.
type Validator interface {
	Validate() error
}

// DecodeError reports a document that does not fit the expected type.
type DecodeError struct {
	Path docstore.Path
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoder turns a store document into a T.
type Decoder[T any] func(docstore.Document) (WithID[T], error)

// Decode converts the document's data into T through its json form, then
// runs Validate when T implements Validator.
func Decode[T any](doc docstore.Document) (WithID[T], error) {
	out := WithID[T]{ID: doc.ID}
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return out, &DecodeError{Path: doc.Path, Err: err}
	}
	if err := json.Unmarshal(raw, &out.Doc); err != nil {
		return out, &DecodeError{Path: doc.Path, Err: err}
	}
	if v, ok := any(&out.Doc).(Validator); ok {
		if err := v.Validate(); err != nil {
			return out, &DecodeError{Path: doc.Path, Err: err}
		}
	}
	return out, nil
}

func decodeAll[T any](decode Decoder[T], docs []docstore.Document) ([]WithID[T], error) {
	out := make([]WithID[T], 0, len(docs))
	for _, d := range docs {
		item, err := decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
