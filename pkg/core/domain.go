// Package core holds the domain model shared by the GlobalSearch client and the
// local workspace: fields, live field settings, config mappings and events.
package core

import (
	"encoding/json"
	"sort"
)

// Field is a GlobalSearch database field as returned by the admin API.
// Members the client does not know about are kept and written back verbatim.
type Field struct {
	ID             int            `json:"ID,omitempty"`
	Name           string         `json:"Name"`
	Type           string         `json:"Type"`
	Format         string         `json:"Format"`
	Regex          string         `json:"Regex"`
	Length         int            `json:"Length"`
	Required       bool           `json:"Required"`
	MultiValue     bool           `json:"MultiValue"`
	SystemField    string         `json:"SystemField"`
	List           FieldList      `json:"List"`
	ExtendedConfig ExtendedConfig `json:"ExtendedConfig"`

	extra map[string]json.RawMessage
}

// FieldList describes the list binding of a field.
type FieldList struct {
	Type      *string `json:"Type"`
	ListID    int     `json:"ListId"`
	Primary   int     `json:"Primary"`
	Secondary int     `json:"Secondary"`
	Mapping   []any   `json:"Mapping"`

	extra map[string]json.RawMessage
}

// ExtendedConfig carries optional field extensions. Only LiveField is modelled.
type ExtendedConfig struct {
	LiveField *LiveField `json:"LiveField"`

	extra map[string]json.RawMessage
}

// LiveField is the script and request configuration of a live field.
type LiveField struct {
	Method   string            `json:"Method"`
	URL      string            `json:"Url"`
	Headers  map[string]string `json:"Headers"`
	JSONPath string            `json:"JsonPath"`
	Script   string            `json:"Script"`
	Body     any               `json:"Body"`

	extra map[string]json.RawMessage
}

// IsLive reports whether the field carries a live field configuration.
func (f Field) IsLive() bool {
	return f.ExtendedConfig.LiveField != nil
}

// NewLiveFieldTemplate returns the field the server expects when creating a
// live field: a 50 character field with a GET live field and no request.
func NewLiveFieldTemplate(name, script string) Field {
	return Field{
		Name:   name,
		Type:   "CHARACTER",
		Length: 50,
		List: FieldList{
			Mapping: []any{},
		},
		ExtendedConfig: ExtendedConfig{
			LiveField: &LiveField{
				Method:  "GET",
				Headers: map[string]string{},
				Script:  script,
			},
		},
	}
}

var (
	fieldMembers = []string{
		"ID", "Name", "Type", "Format", "Regex", "Length", "Required",
		"MultiValue", "SystemField", "List", "ExtendedConfig",
	}
	extendedConfigMembers = []string{"LiveField"}
	fieldListMembers      = []string{"Type", "ListId", "Primary", "Secondary", "Mapping"}
	liveFieldMembers      = []string{"Method", "Url", "Headers", "JsonPath", "Script", "Body"}
)

type fieldAlias Field

// UnmarshalJSON decodes the known members and stashes the rest.
func (f *Field) UnmarshalJSON(data []byte) error {
	var a fieldAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := unknownMembers(data, fieldMembers)
	if err != nil {
		return err
	}
	*f = Field(a)
	f.extra = extra
	return nil
}

// MarshalJSON encodes the known members merged with the stashed ones.
func (f Field) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(fieldAlias(f), f.extra)
}

type extendedConfigAlias ExtendedConfig

func (c *ExtendedConfig) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = ExtendedConfig{}
		return nil
	}
	var a extendedConfigAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := unknownMembers(data, extendedConfigMembers)
	if err != nil {
		return err
	}
	*c = ExtendedConfig(a)
	c.extra = extra
	return nil
}

func (c ExtendedConfig) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(extendedConfigAlias(c), c.extra)
}

type fieldListAlias FieldList

func (l *FieldList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = FieldList{}
		return nil
	}
	var a fieldListAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := unknownMembers(data, fieldListMembers)
	if err != nil {
		return err
	}
	*l = FieldList(a)
	l.extra = extra
	return nil
}

func (l FieldList) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(fieldListAlias(l), l.extra)
}

type liveFieldAlias LiveField

func (lf *LiveField) UnmarshalJSON(data []byte) error {
	var a liveFieldAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := unknownMembers(data, liveFieldMembers)
	if err != nil {
		return err
	}
	*lf = LiveField(a)
	lf.extra = extra
	return nil
}

func (lf LiveField) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(liveFieldAlias(lf), lf.extra)
}

func unknownMembers(data []byte, known []string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := merged[k]; !ok {
			merged[k] = extra[k]
		}
	}
	return json.Marshal(merged)
}

// Mapping binds a server field to a local script file. It is persisted in the
// workspace config and supplies the request settings pushed with the script.
type Mapping struct {
	ID       int               `json:"id" yaml:"id"`
	Name     string            `json:"name" yaml:"name"`
	Filename string            `json:"filename" yaml:"filename"`
	Method   string            `json:"method" yaml:"method"`
	URL      string            `json:"url" yaml:"url"`
	Headers  map[string]string `json:"headers" yaml:"headers"`
	JSONPath string            `json:"jsonPath" yaml:"jsonPath"`
	Body     any               `json:"body" yaml:"body"`
}

// MappingFor builds the mapping of a live field stored at filename.
func MappingFor(f Field, filename string) Mapping {
	m := Mapping{
		ID:       f.ID,
		Name:     f.Name,
		Filename: filename,
	}
	if lf := f.ExtendedConfig.LiveField; lf != nil {
		m.Method = lf.Method
		m.URL = lf.URL
		m.Headers = lf.Headers
		m.JSONPath = lf.JSONPath
		m.Body = lf.Body
	}
	return m
}

// Apply copies the request settings of the mapping onto a live field.
func (m Mapping) Apply(lf *LiveField) {
	lf.Method = m.Method
	lf.URL = m.URL
	lf.Headers = m.Headers
	if lf.Headers == nil {
		lf.Headers = map[string]string{}
	}
	lf.JSONPath = m.JSONPath
	lf.Body = m.Body
}

// EventType represents the type of change seen by the workspace watcher.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event represents a change of a watched workspace file.
type Event struct {
	Type      EventType
	Path      string // absolute, cleaned
	Timestamp int64  // Unix timestamp
}

// String implements fmt.Stringer.
func (e Event) String() string {
	return string(e.Type) + " " + e.Path
}
