package agent

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// Type represents a specific type of an agent Config.
// Config's with this type can create Agents of the corresponding type.
type Type string

const (
	GaussianPPOMLP Type = "GaussianPPO-MLP"
)

// Registered types with the package. Once a Type has been registered
// with this map, a TypedConfig with that type can be decoded.
//
// No Type's are registered with this package upon initialization.
// Each separate package is in charge of registering its Type with
// the package separately to avoid circular imports.
var (
	registeredTypes   = make(map[Type]reflect.Type)
	registeredTypesMu sync.RWMutex
)

// Register registers an agent's Type with a concrete Config type
// so that upon deserialization of a TypedConfig, configs of type
// agentType are deserialized into the concrete type of config.
func Register(agentType Type, config Config) {
	registeredTypesMu.Lock()
	defer registeredTypesMu.Unlock()

	ty := reflect.TypeOf(config)
	if ty.Kind() == reflect.Ptr {
		ty = ty.Elem()
	}
	registeredTypes[agentType] = ty
}

// TypedConfig stores a Config together with its Type so that it can be
// deserialized into its concrete type without declaring a variable of
// that type beforehand.
type TypedConfig struct {
	Type
	Config
}

// NewTypedConfig types the argument Config
func NewTypedConfig(c Config) TypedConfig {
	return TypedConfig{Type: c.Type(), Config: c}
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (t *TypedConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type   Type
		Config json.RawMessage
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshaljson: %w", err)
	}

	registeredTypesMu.RLock()
	ty, ok := registeredTypes[raw.Type]
	registeredTypesMu.RUnlock()
	if !ok {
		return fmt.Errorf("unmarshaljson: unregistered agent type %q",
			raw.Type)
	}

	value := reflect.New(ty)
	if err := json.Unmarshal(raw.Config, value.Interface()); err != nil {
		return fmt.Errorf("unmarshaljson: %w", err)
	}

	config, ok := value.Interface().(Config)
	if !ok {
		config, ok = value.Elem().Interface().(Config)
	}
	if !ok {
		return fmt.Errorf("unmarshaljson: type %v is not a Config", ty)
	}

	t.Type = raw.Type
	t.Config = config
	return nil
}
