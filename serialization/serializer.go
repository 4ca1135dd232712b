package serialization

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
)

var (
	jsonMarshalerType   = reflect.TypeFor[json.Marshaler]()
	jsonUnmarshalerType = reflect.TypeFor[json.Unmarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// Option defines a functional option for configuring a Serializer.
type Option func(*Serializer) error

// WithUnserializableFieldsAllowed skips the round-trip check of event fields.
// Fields JSON cannot carry are then silently lost, so use it only for types that rebuild them in Apply.
func WithUnserializableFieldsAllowed() Option {
	return func(s *Serializer) error {
		s.allowUnserializable = true
		return nil
	}
}

type registration struct {
	name       string
	eventType  reflect.Type
	structType reflect.Type
	isPointer  bool
}

// Serializer is the event type registry plus the JSON codec for registered events.
// It is immutable after construction and safe for concurrent use.
type Serializer struct {
	byName              map[string]registration
	byType              map[reflect.Type]registration
	aliases             map[string]string
	allowUnserializable bool
	json                jsoniter.API
}

// NewSerializer builds the registry from one sample value per event type.
// Events are registered with the exact type of the sample, so register values if you raise values.
func NewSerializer(samples domain.DomainEvents, options ...Option) (*Serializer, error) {
	s := &Serializer{
		byName:  make(map[string]registration),
		byType:  make(map[reflect.Type]registration),
		aliases: make(map[string]string),
		json:    jsoniter.ConfigCompatibleWithStandardLibrary,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	if len(samples) == 0 {
		return nil, ErrEmptyRegistry
	}

	var offenders []string

	for _, sample := range samples {
		reg, err := newRegistration(sample)
		if err != nil {
			return nil, err
		}

		if existing, taken := s.byName[reg.name]; taken {
			if existing.eventType == reg.eventType {
				continue
			}

			return nil, fmt.Errorf("%w: %q is used by %s and %s", ErrDuplicateEventType, reg.name, existing.eventType, reg.eventType)
		}

		if !s.allowUnserializable {
			offenders = append(offenders, unserializableFields(reg.structType, reg.structType.Name(), map[reflect.Type]bool{})...)
		}

		s.byName[reg.name] = reg
		s.byType[reg.eventType] = reg
	}

	if len(offenders) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnserializableEventShape, strings.Join(offenders, ", "))
	}

	s.buildAliases()

	return s, nil
}

// Serialize encodes a registered event losslessly as JSON.
func (s *Serializer) Serialize(event domain.DomainEvent) (string, error) {
	if event == nil {
		return "", fmt.Errorf("%w: nil event", domain.ErrInvalidArgument)
	}

	if _, ok := s.byType[reflect.TypeOf(event)]; !ok {
		return "", fmt.Errorf("%w: %T is not registered", ErrUnknownEventType, event)
	}

	payload, err := s.json.MarshalToString(event)
	if err != nil {
		return "", errors.Join(ErrSerializationFailure, fmt.Errorf("serialize %T: %w", event, err))
	}

	return payload, nil
}

// Deserialize decodes a payload into a fresh value of the type registered under typeName.
// The result is either a complete event or an error, never a partially filled event.
func (s *Serializer) Deserialize(payload string, typeName string) (domain.DomainEvent, error) {
	reg, ok := s.resolve(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, typeName)
	}

	target := reflect.New(reg.structType)

	decoder := s.json.NewDecoder(strings.NewReader(payload))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target.Interface()); err != nil {
		return nil, errors.Join(ErrDeserializationFailure, fmt.Errorf("decode %q: %w", reg.name, err))
	}

	if decoder.More() {
		return nil, errors.Join(ErrDeserializationFailure, fmt.Errorf("decode %q: trailing data after payload", reg.name))
	}

	value := target.Elem()
	if reg.isPointer {
		value = target
	}

	event, ok := value.Interface().(domain.DomainEvent)
	if !ok {
		return nil, errors.Join(ErrDeserializationFailure, fmt.Errorf("%s is not a domain event", reg.eventType))
	}

	header := event.Header()
	if header.AggregateID == "" || header.AggregateVersion < 1 {
		return nil, errors.Join(
			ErrDeserializationFailure,
			fmt.Errorf("decode %q: payload lacks aggregate id or version", reg.name),
		)
	}

	return event, nil
}

// TypeName returns the registered name of an event's type.
func (s *Serializer) TypeName(event domain.DomainEvent) (string, error) {
	if event == nil {
		return "", fmt.Errorf("%w: nil event", domain.ErrInvalidArgument)
	}

	return s.TypeNameFor(reflect.TypeOf(event))
}

// TypeNameFor returns the registered name of a Go type.
func (s *Serializer) TypeNameFor(eventType reflect.Type) (string, error) {
	reg, ok := s.byType[eventType]
	if !ok {
		return "", fmt.Errorf("%w: %s is not registered", ErrUnknownEventType, eventType)
	}

	return reg.name, nil
}

// TypeNames returns all registered type names, sorted.
func (s *Serializer) TypeNames() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (s *Serializer) resolve(typeName string) (registration, bool) {
	if reg, ok := s.byName[typeName]; ok {
		return reg, true
	}

	if name, ok := s.aliases[typeName]; ok && name != "" {
		return s.byName[name], true
	}

	return registration{}, false
}

// buildAliases maps the short and package-qualified Go names to registered names.
// Ambiguous aliases map to "" and never resolve.
func (s *Serializer) buildAliases() {
	for name, reg := range s.byName {
		for _, alias := range []string{reg.structType.Name(), reg.structType.String()} {
			if _, isName := s.byName[alias]; isName {
				continue
			}

			if existing, seen := s.aliases[alias]; seen && existing != name {
				s.aliases[alias] = ""
				continue
			}

			s.aliases[alias] = name
		}
	}
}

func newRegistration(sample domain.DomainEvent) (registration, error) {
	if sample == nil {
		return registration{}, fmt.Errorf("%w: nil sample", ErrInvalidEventShape)
	}

	eventType := reflect.TypeOf(sample)
	structType := eventType
	isPointer := false

	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
		isPointer = true
	}

	if structType.Kind() != reflect.Struct || structType.Name() == "" {
		return registration{}, fmt.Errorf("%w: got %s", ErrInvalidEventShape, eventType)
	}

	name := structType.PkgPath() + "." + structType.Name()
	if typed, ok := sample.(domain.TypedEvent); ok {
		name = typed.EventType()
	}

	if name == "" {
		return registration{}, fmt.Errorf("%w: %s has an empty type name", ErrInvalidEventShape, eventType)
	}

	return registration{
		name:       name,
		eventType:  eventType,
		structType: structType,
		isPointer:  isPointer,
	}, nil
}

// unserializableFields lists the fields of a struct type that JSON cannot round-trip.
func unserializableFields(structType reflect.Type, path string, visited map[reflect.Type]bool) []string {
	if visited[structType] {
		return nil
	}

	visited[structType] = true

	var offenders []string

	for i := range structType.NumField() {
		field := structType.Field(i)
		fieldPath := path + "." + field.Name

		if field.Tag.Get("json") == "-" {
			offenders = append(offenders, fieldPath+` (tagged json:"-")`)
			continue
		}

		fieldType := field.Type
		for fieldType.Kind() == reflect.Pointer {
			fieldType = fieldType.Elem()
		}

		if !field.IsExported() {
			if field.Anonymous && fieldType.Kind() == reflect.Struct {
				offenders = append(offenders, unserializableFields(fieldType, path, visited)...)
				continue
			}

			offenders = append(offenders, fieldPath+" (unexported)")
			continue
		}

		if reason := unsupportedKind(field.Type); reason != "" {
			offenders = append(offenders, fieldPath+" ("+reason+")")
			continue
		}

		if fieldType.Kind() == reflect.Struct && !hasCustomCodec(fieldType) {
			nestedPath := fieldPath
			if field.Anonymous {
				nestedPath = path
			}

			offenders = append(offenders, unserializableFields(fieldType, nestedPath, visited)...)
		}
	}

	return offenders
}

// unsupportedKind walks pointers and containers and names the first kind JSON cannot round-trip.
func unsupportedKind(t reflect.Type) string {
	for {
		if hasCustomCodec(t) {
			return ""
		}

		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array:
			t = t.Elem()
		case reflect.Map:
			t = t.Elem()
		case reflect.Func, reflect.Chan, reflect.UnsafePointer:
			return t.Kind().String() + " cannot be encoded"
		case reflect.Complex64, reflect.Complex128:
			return t.Kind().String() + " cannot be encoded"
		case reflect.Interface:
			return "interface cannot be decoded into its concrete type"
		default:
			return ""
		}
	}
}

func hasCustomCodec(t reflect.Type) bool {
	pointerType := reflect.PointerTo(t)

	return t.Implements(jsonMarshalerType) && pointerType.Implements(jsonUnmarshalerType) ||
		pointerType.Implements(textUnmarshalerType)
}
