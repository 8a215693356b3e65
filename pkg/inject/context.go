// Package inject models the `$$inject` object a GlobalSearch host places in
// the global scope of a running live field script.
//
// The host owns and populates every member. This package names the shape,
// renders it as the ambient TypeScript declaration script authors compile
// against, checks that a context is complete and offers a development
// stand-in for previewing what a script would see.
package inject

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrIncomplete is returned by Validate when the host left members unset.
var ErrIncomplete = errors.New("injected context is incomplete")

// Context is the `$$inject` object.
type Context struct {
	Log               any
	Notify            Notify
	Result            any
	Properties        Properties
	Utility           Utility
	TableFields       any
	Fields            any
	SetPendingChanges func()
	Save              func()
}

// Notify holds the notification actions. Each is triggered without arguments.
type Notify struct {
	Info    func()
	Warn    func()
	Error   func()
	Success func()
	Toast   func()
}

// Properties carries the data the host hands to a script.
type Properties struct {
	AuthToken string    `json:"authToken"`
	Config    any       `json:"config"`
	Document  *Document `json:"document"`
}

// Document identifies a document in the GlobalSearch store.
type Document struct {
	ID         int    `json:"id"`
	Hash       string `json:"hash"`
	DatabaseID int    `json:"databaseId"`
	ArchiveID  int    `json:"archiveId"`
	FileID     string `json:"fileId"`
}

// Utility holds host helpers.
type Utility struct {
	NewGuid func() string
}

// Validate reports every member a host must supply but did not. Opaque
// members (log, result, config, fields, tableFields) may legitimately be nil.
func (c *Context) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: context is nil", ErrIncomplete)
	}

	var missing []string
	check := func(name string, ok bool) {
		if !ok {
			missing = append(missing, name)
		}
	}

	check("notify.info", c.Notify.Info != nil)
	check("notify.warn", c.Notify.Warn != nil)
	check("notify.error", c.Notify.Error != nil)
	check("notify.success", c.Notify.Success != nil)
	check("notify.toast", c.Notify.Toast != nil)
	check("properties.document", c.Properties.Document != nil)
	check("utility.newGuid", c.Utility.NewGuid != nil)
	check("setPendingChanges", c.SetPendingChanges != nil)
	check("save", c.Save != nil)

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	return nil
}

// snapshot is the serialisable part of a context.
type snapshot struct {
	Result      any        `json:"result"`
	Properties  Properties `json:"properties"`
	TableFields any        `json:"tableFields"`
	Fields      any        `json:"fields"`
}

// MarshalJSON encodes the data members. Actions and the log sink are skipped.
func (c *Context) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	return json.Marshal(snapshot{
		Result:      c.Result,
		Properties:  c.Properties,
		TableFields: c.TableFields,
		Fields:      c.Fields,
	})
}
