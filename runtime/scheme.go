package runtime

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sync"

	"sigs.k8s.io/yaml"
)

// Raw holds an undecoded document together with its type.
type Raw struct {
	Type `json:"type"`
	Data []byte `json:"-"`
}

var _ interface {
	json.Marshaler
	json.Unmarshaler
	Typed
} = &Raw{}

func (u *Raw) GetType() Type {
	return u.Type
}

func (u *Raw) MarshalJSON() ([]byte, error) {
	return u.Data, nil
}

func (u *Raw) UnmarshalJSON(data []byte) error {
	t := &struct {
		Type Type `json:"type"`
	}{}
	if err := json.Unmarshal(data, t); err != nil {
		return fmt.Errorf("could not unmarshal data into raw: %w", err)
	}
	u.Type = t.Type
	u.Data = data
	return nil
}

// Scheme is a registry of document prototypes by type.
type Scheme struct {
	mu    sync.RWMutex
	types map[Type]Typed
}

func NewScheme() *Scheme {
	return &Scheme{types: make(map[Type]Typed)}
}

func (r *Scheme) RegisterWithAlias(prototype Typed, types ...Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t := reflect.TypeOf(prototype); t == nil || t.Kind() != reflect.Pointer {
		return fmt.Errorf("prototype %T must be a pointer to a struct", prototype)
	}
	for _, typ := range types {
		if _, exists := r.types[typ]; exists {
			return fmt.Errorf("type %q is already registered", typ)
		}
		r.types[typ] = prototype
	}
	return nil
}

func (r *Scheme) MustRegisterWithAlias(prototype Typed, types ...Type) {
	if err := r.RegisterWithAlias(prototype, types...); err != nil {
		panic(err)
	}
}

func (r *Scheme) IsRegistered(typ Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.types[typ]
	return exists
}

// NewObject creates a new, empty instance of the prototype registered for typ.
func (r *Scheme) NewObject(typ Type) (Typed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	proto, exists := r.types[typ]
	if !exists {
		return nil, fmt.Errorf("unsupported type: %q", typ)
	}
	t := reflect.TypeOf(proto)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return reflect.New(t).Interface().(Typed), nil //nolint:forcetypeassert // prototypes are Typed
}

// Decode reads a YAML or JSON document and decodes it into the prototype
// registered for its type field.
func (r *Scheme) Decode(data io.Reader) (Typed, error) {
	bytes, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("could not read data: %w", err)
	}
	raw := &Raw{}
	if err := yaml.Unmarshal(bytes, raw); err != nil {
		return nil, fmt.Errorf("could not determine document type: %w", err)
	}
	if raw.Type.IsEmpty() {
		return nil, fmt.Errorf("document has no type")
	}
	obj, err := r.NewObject(raw.Type)
	if err != nil {
		return nil, err
	}
	if err := yaml.UnmarshalStrict(bytes, obj); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", raw.Type, err)
	}
	return obj, nil
}
