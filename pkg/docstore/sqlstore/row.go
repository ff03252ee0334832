package sqlstore

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/fintrack/fintrack/pkg/docstore"
)

// JSONMap stores document data in a jsonb column.
type JSONMap map[string]any

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}

func (j *JSONMap) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = JSONMap{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("sqlstore: cannot scan %T into JSONMap", value)
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*j = m
	return nil
}

// row is one document. Timestamps are set by the store's clock.
type row struct {
	Collection string    `gorm:"primaryKey;size:512"`
	ID         string    `gorm:"primaryKey;size:256"`
	Data       JSONMap   `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false;not null"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false;not null;index"`
}

func (row) TableName() string {
	return "documents"
}

func (r row) document() docstore.Document {
	p := docstore.Path(r.Collection).Child(r.ID)
	return docstore.Document{
		ID:         r.ID,
		Path:       p,
		Data:       map[string]any(r.Data),
		CreateTime: r.CreatedAt.UTC(),
		UpdateTime: r.UpdatedAt.UTC(),
	}
}

func rowOf(d docstore.Document) row {
	return row{
		Collection: d.Path.Parent().String(),
		ID:         d.ID,
		Data:       JSONMap(d.Data),
		CreatedAt:  d.CreateTime,
		UpdatedAt:  d.UpdateTime,
	}
}
