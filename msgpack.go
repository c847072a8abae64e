package tabula

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// snapshot is the msgpack form of an Entity. Collections and related
// entities are not part of it.
type snapshot struct {
	Table    string         `msgpack:"table"`
	State    State          `msgpack:"state"`
	Fields   map[string]any `msgpack:"fields"`
	Modified map[string]any `msgpack:"modified,omitempty"`
	Derived  map[string]any `msgpack:"derived,omitempty"`
}

// MarshalMsgpack encodes the entity with its state and modification
// journal, so that it can be decoded with DecodeEntity elsewhere.
func (e *Entity) MarshalMsgpack() ([]byte, error) {
	return msgpack.Marshal(&snapshot{
		Table:    e.table.Name,
		State:    e.state,
		Fields:   e.fields,
		Modified: e.modified,
		Derived:  e.derived,
	})
}

// DecodeEntity decodes an entity encoded by MarshalMsgpack. Its table is
// looked up in the schema. Integers decode as int64, and Raw values as
// plain strings.
func DecodeEntity(data []byte, schema *Schema) (*Entity, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	var s snapshot
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("tabula: decode entity: %w", err)
	}
	table := schema.Table(s.Table)
	if table == nil {
		return nil, fmt.Errorf("tabula: decode entity: unknown table %q", s.Table)
	}
	e := New(table)
	e.state = s.State
	for name, v := range s.Fields {
		if !table.HasColumn(name) {
			return nil, &FieldNotDefinedError{Table: table.Name, Field: name}
		}
		e.fields[name] = v
	}
	for name, v := range s.Modified {
		if !table.HasColumn(name) {
			return nil, &FieldNotDefinedError{Table: table.Name, Field: name}
		}
		e.modified[name] = v
	}
	for name, v := range s.Derived {
		e.derived[name] = v
	}
	return e, nil
}
