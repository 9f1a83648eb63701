package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/querydeck/internal/ir"
)

//go:embed catalog.cue
var defaultCatalogSource []byte

// FieldDef describes one mapped column of an entity.
type FieldDef struct {
	Name     string
	Column   string
	Kind     ir.Kind
	Sortable bool
	Nullable bool
	Key      bool
}

// AssociationDef describes a to-one association. Column is the foreign key
// on the owning entity, References the referenced column on Target.
type AssociationDef struct {
	Name       string
	Target     string
	Column     string
	References string
}

// EntityDef describes an entity and its table.
type EntityDef struct {
	Name         string
	Table        string
	Fields       map[string]FieldDef
	Associations map[string]AssociationDef
}

// KeyField returns the entity's primary key field.
func (e *EntityDef) KeyField() (FieldDef, bool) {
	for _, name := range e.FieldNames() {
		if f := e.Fields[name]; f.Key {
			return f, true
		}
	}
	return FieldDef{}, false
}

// FieldNames returns field names in sorted order.
func (e *EntityDef) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldByColumn finds the field mapped to column.
func (e *EntityDef) FieldByColumn(column string) (FieldDef, bool) {
	for _, f := range e.Fields {
		if f.Column == column {
			return f, true
		}
	}
	return FieldDef{}, false
}

// Catalog is the set of entities queries may reference.
// A Catalog is immutable after Load and safe for concurrent use.
type Catalog struct {
	entities map[string]*EntityDef
}

// Entity looks up an entity by name.
func (c *Catalog) Entity(name string) (*EntityDef, bool) {
	e, ok := c.entities[name]
	return e, ok
}

// Field looks up a field of an entity.
func (c *Catalog) Field(entity, field string) (FieldDef, bool) {
	e, ok := c.entities[entity]
	if !ok {
		return FieldDef{}, false
	}
	f, ok := e.Fields[field]
	return f, ok
}

// Association looks up an association of an entity.
func (c *Catalog) Association(entity, name string) (AssociationDef, bool) {
	e, ok := c.entities[entity]
	if !ok {
		return AssociationDef{}, false
	}
	a, ok := e.Associations[name]
	return a, ok
}

// EntityNames returns entity names in sorted order.
func (c *Catalog) EntityNames() []string {
	names := make([]string, 0, len(c.entities))
	for name := range c.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in member/team catalog.
// Panics if the embedded catalog does not compile.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(defaultCatalogSource, "catalog.cue")
		if err != nil {
			panic(fmt.Sprintf("schema: embedded catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// LoadFile compiles a CUE catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Load(src, path)
}

// Load compiles CUE source into a Catalog.
//
// The source must define `entities: [Name]: {table, fields, associations}`.
// Associations must reference declared entities and fields.
func Load(src []byte, filename string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entitiesVal := v.LookupPath(cue.ParsePath("entities"))
	if !entitiesVal.Exists() {
		return nil, &CatalogError{Field: "entities", Message: "entities are required", Pos: v.Pos()}
	}

	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	cat := &Catalog{entities: make(map[string]*EntityDef)}
	for iter.Next() {
		entity, err := parseEntity(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		cat.entities[entity.Name] = entity
	}

	if len(cat.entities) == 0 {
		return nil, &CatalogError{Field: "entities", Message: "at least one entity is required", Pos: entitiesVal.Pos()}
	}
	if err := cat.checkAssociations(); err != nil {
		return nil, err
	}
	return cat, nil
}

func parseEntity(name string, v cue.Value) (*EntityDef, error) {
	table, err := v.LookupPath(cue.ParsePath("table")).String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	entity := &EntityDef{
		Name:         name,
		Table:        table,
		Fields:       make(map[string]FieldDef),
		Associations: make(map[string]AssociationDef),
	}

	fieldsIter, err := v.LookupPath(cue.ParsePath("fields")).Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for fieldsIter.Next() {
		f, err := parseField(fieldsIter.Label(), fieldsIter.Value())
		if err != nil {
			return nil, err
		}
		entity.Fields[f.Name] = f
	}
	if len(entity.Fields) == 0 {
		return nil, &CatalogError{
			Field:   fmt.Sprintf("entities.%s.fields", name),
			Message: "at least one field is required",
			Pos:     v.Pos(),
		}
	}

	assocVal := v.LookupPath(cue.ParsePath("associations"))
	if assocVal.Exists() {
		assocIter, err := assocVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for assocIter.Next() {
			a, err := parseAssociation(assocIter.Label(), assocIter.Value())
			if err != nil {
				return nil, err
			}
			entity.Associations[a.Name] = a
		}
	}

	return entity, nil
}

func parseField(name string, v cue.Value) (FieldDef, error) {
	f := FieldDef{Name: name}

	column, err := v.LookupPath(cue.ParsePath("column")).String()
	if err != nil {
		return f, formatCUEError(err)
	}
	kind, err := v.LookupPath(cue.ParsePath("kind")).String()
	if err != nil {
		return f, formatCUEError(err)
	}
	f.Column = column
	f.Kind = ir.Kind(kind)

	for path, dst := range map[string]*bool{
		"sortable": &f.Sortable,
		"nullable": &f.Nullable,
		"key":      &f.Key,
	} {
		flagVal := v.LookupPath(cue.ParsePath(path))
		if !flagVal.Exists() {
			continue
		}
		flag, err := flagVal.Bool()
		if err != nil {
			return f, formatCUEError(err)
		}
		*dst = flag
	}

	return f, nil
}

func parseAssociation(name string, v cue.Value) (AssociationDef, error) {
	a := AssociationDef{Name: name}
	var err error
	if a.Target, err = v.LookupPath(cue.ParsePath("target")).String(); err != nil {
		return a, formatCUEError(err)
	}
	if a.Column, err = v.LookupPath(cue.ParsePath("column")).String(); err != nil {
		return a, formatCUEError(err)
	}
	a.References = "id"
	if refVal := v.LookupPath(cue.ParsePath("references")); refVal.Exists() {
		if a.References, err = refVal.String(); err != nil {
			return a, formatCUEError(err)
		}
	}
	return a, nil
}

// checkAssociations verifies every association joins declared columns.
func (c *Catalog) checkAssociations() error {
	for _, name := range c.EntityNames() {
		e := c.entities[name]
		for _, a := range e.Associations {
			target, ok := c.entities[a.Target]
			if !ok {
				return &CatalogError{
					Field:   fmt.Sprintf("entities.%s.associations.%s", name, a.Name),
					Message: fmt.Sprintf("unknown target entity %q", a.Target),
				}
			}
			if _, ok := e.FieldByColumn(a.Column); !ok {
				return &CatalogError{
					Field:   fmt.Sprintf("entities.%s.associations.%s", name, a.Name),
					Message: fmt.Sprintf("column %q is not mapped on %s", a.Column, name),
				}
			}
			if _, ok := target.FieldByColumn(a.References); !ok {
				return &CatalogError{
					Field:   fmt.Sprintf("entities.%s.associations.%s", name, a.Name),
					Message: fmt.Sprintf("column %q is not mapped on %s", a.References, a.Target),
				}
			}
		}
	}
	return nil
}

// CatalogError represents a catalog error with source position.
type CatalogError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CatalogError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CatalogError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
