package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Type is the storage class of an element payload.
type Type string

const (
	TypeMaster Type = "master"
	TypeUint   Type = "uint"
	TypeInt    Type = "int"
	TypeFloat  Type = "float"
	TypeString Type = "string"
	TypeUTF8   Type = "utf8"
	TypeBinary Type = "binary"
	TypeDate   Type = "date"
	TypeBlock  Type = "block"
)

func (t Type) valid() bool {
	switch t {
	case TypeMaster, TypeUint, TypeInt, TypeFloat, TypeString, TypeUTF8, TypeBinary, TypeDate, TypeBlock:
		return true
	}
	return false
}

// Class describes one element kind.
type Class struct {
	ID         uint32
	Name       string
	Type       Type
	HasDefault bool
	Default    string

	Children []Semantic
	childIdx map[uint32]int
}

// Semantic is the rule set for one child kind inside a parent.
type Semantic struct {
	Class     *Class
	Mandatory bool
	Unique    bool
	Disabled  Profile
}

// DisabledFor reports whether the child is forbidden under profile p.
// The unknown profile disables nothing.
func (s Semantic) DisabledFor(p Profile) bool {
	return s.Disabled&p != 0
}

func (c *Class) IsMaster() bool {
	return c != nil && c.Type == TypeMaster
}

// Semantic returns the entry governing child id inside c.
func (c *Class) Semantic(id uint32) (Semantic, bool) {
	if c == nil || c.childIdx == nil {
		return Semantic{}, false
	}
	i, ok := c.childIdx[id]
	if !ok {
		return Semantic{}, false
	}
	return c.Children[i], true
}

// Accepts reports whether id is a legal child of c, including globals.
func (c *Class) Accepts(id uint32) bool {
	if IsGlobal(id) {
		return true
	}
	_, ok := c.Semantic(id)
	return ok
}

// DefaultUint parses the default value of an unsigned integer class.
func (c *Class) DefaultUint() uint64 {
	if c == nil || !c.HasDefault {
		return 0
	}
	v, _ := strconv.ParseUint(c.Default, 0, 64)
	return v
}

// DefaultFloat parses the default value of a float class.
func (c *Class) DefaultFloat() float64 {
	if c == nil || !c.HasDefault {
		return 0
	}
	v, _ := strconv.ParseFloat(c.Default, 64)
	return v
}

// Registry holds the compiled schema. It is read-only once loaded and may be
// shared between goroutines.
type Registry struct {
	DocTypes []string
	classes  map[uint32]*Class
	byName   map[string]*Class
	roots    []*Class
}

// Lookup returns the class for id, or nil when the ID is unknown.
func (r *Registry) Lookup(id uint32) *Class {
	if r == nil {
		return nil
	}
	return r.classes[id]
}

// ByName returns the class with the given element name.
func (r *Registry) ByName(name string) *Class {
	if r == nil {
		return nil
	}
	return r.byName[name]
}

// Roots lists the top-level classes of a stream (EBML header, Segment).
func (r *Registry) Roots() []*Class {
	return r.roots
}

// Name returns a printable name for id, falling back to the hex ID.
func (r *Registry) Name(id uint32) string {
	if c := r.Lookup(id); c != nil {
		return c.Name
	}
	return fmt.Sprintf("[%X]", id)
}

// Len returns the number of known classes.
func (r *Registry) Len() int {
	return len(r.classes)
}

type document struct {
	DocTypes []string   `yaml:"doctypes"`
	Roots    []string   `yaml:"roots"`
	Classes  []docClass `yaml:"classes"`
}

type docClass struct {
	Name     string     `yaml:"name"`
	ID       string     `yaml:"id"`
	Type     Type       `yaml:"type"`
	Default  *string    `yaml:"default"`
	Children []docChild `yaml:"children"`
}

type docChild struct {
	Name      string   `yaml:"name"`
	Mandatory bool     `yaml:"mandatory"`
	Unique    bool     `yaml:"unique"`
	Disabled  []string `yaml:"disabled"`
}

//go:embed matroska.yaml
var matroskaDoc []byte

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the built-in Matroska/WebM/DivX registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = Load(matroskaDoc)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("schema: embedded matroska schema: %v", defaultErr))
	}
	return defaultRegistry
}

// Load compiles a YAML schema document.
func Load(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if len(doc.Classes) == 0 {
		return nil, errors.New("schema has no classes")
	}
	reg := &Registry{
		DocTypes: doc.DocTypes,
		classes:  make(map[uint32]*Class, len(doc.Classes)),
		byName:   make(map[string]*Class, len(doc.Classes)),
	}
	for _, dc := range doc.Classes {
		id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(dc.ID), "0x"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("class %s: invalid id %q", dc.Name, dc.ID)
		}
		if !dc.Type.valid() {
			return nil, fmt.Errorf("class %s: invalid type %q", dc.Name, dc.Type)
		}
		if _, dup := reg.classes[uint32(id)]; dup {
			return nil, fmt.Errorf("class %s: duplicate id %X", dc.Name, id)
		}
		if _, dup := reg.byName[dc.Name]; dup {
			return nil, fmt.Errorf("duplicate class name %s", dc.Name)
		}
		c := &Class{ID: uint32(id), Name: dc.Name, Type: dc.Type}
		if dc.Default != nil {
			c.HasDefault = true
			c.Default = *dc.Default
		}
		reg.classes[c.ID] = c
		reg.byName[c.Name] = c
	}
	for _, dc := range doc.Classes {
		parent := reg.byName[dc.Name]
		if len(dc.Children) > 0 && parent.Type != TypeMaster {
			return nil, fmt.Errorf("class %s: children on non-master", dc.Name)
		}
		parent.childIdx = make(map[uint32]int, len(dc.Children))
		for _, ch := range dc.Children {
			child := reg.byName[ch.Name]
			if child == nil {
				return nil, fmt.Errorf("class %s: unknown child %s", dc.Name, ch.Name)
			}
			mask, ok := ParseProfileMask(ch.Disabled)
			if !ok {
				return nil, fmt.Errorf("class %s: child %s: invalid profile list %v", dc.Name, ch.Name, ch.Disabled)
			}
			if _, dup := parent.childIdx[child.ID]; dup {
				return nil, fmt.Errorf("class %s: child %s listed twice", dc.Name, ch.Name)
			}
			parent.childIdx[child.ID] = len(parent.Children)
			parent.Children = append(parent.Children, Semantic{
				Class:     child,
				Mandatory: ch.Mandatory,
				Unique:    ch.Unique,
				Disabled:  mask,
			})
		}
	}
	for _, name := range doc.Roots {
		c := reg.byName[name]
		if c == nil {
			return nil, fmt.Errorf("unknown root %s", name)
		}
		reg.roots = append(reg.roots, c)
	}
	return reg, nil
}
