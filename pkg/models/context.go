package models

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

const (
	ContextTriggerKey = "trigger"
	ContextEventKey   = "event"
)

// Context is the per-run data bag built from the triggering event payload.
type Context map[string]any

// EntityRef identifies a CRM record targeted by an action.
type EntityRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (e EntityRef) String() string {
	return e.Kind + ":" + e.ID
}

var defaultEntityKinds = []string{"lead", "customer", "conversation", "ticket", "deal"}

// NewContext builds a run context from an event payload. The payload is deep
// copied so runs fanned out from one event never share state, and trigger
// metadata is stored under "trigger".
func NewContext(triggerEvent string, payload map[string]any) Context {
	rc := make(Context, len(payload)+1)
	for k, v := range payload {
		rc[k] = deepCopy(v)
	}

	rc[ContextTriggerKey] = map[string]any{"type": triggerEvent}

	return rc
}

func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		copied := make(map[string]any, len(v))
		for k, item := range v {
			copied[k] = deepCopy(item)
		}

		return copied
	case []any:
		copied := make([]any, len(v))
		for i, item := range v {
			copied[i] = deepCopy(item)
		}

		return copied
	default:
		return v
	}
}

// Lookup resolves a dot-separated path such as "lead.score". Numeric segments
// index into slices. The second return value is false when any segment is
// missing.
func (c Context) Lookup(path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}

	var current any = map[string]any(c)

	for _, segment := range strings.Split(path, ".") {
		next, ok := child(current, segment)
		if !ok {
			return nil, false
		}

		current = next
	}

	return current, current != nil
}

func child(value any, segment string) (any, bool) {
	switch v := value.(type) {
	case map[string]any:
		next, ok := v[segment]

		return next, ok
	case Context:
		next, ok := v[segment]

		return next, ok
	case []any:
		index, err := strconv.Atoi(segment)
		if err != nil || index < 0 || index >= len(v) {
			return nil, false
		}

		return v[index], true
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		next := rv.MapIndex(reflect.ValueOf(segment).Convert(rv.Type().Key()))
		if !next.IsValid() {
			return nil, false
		}

		return next.Interface(), true
	}

	return nil, false
}

// String resolves a path and formats it as a string. Missing values yield "".
func (c Context) String(path string) string {
	value, ok := c.Lookup(path)
	if !ok {
		return ""
	}

	if s, isString := value.(string); isString {
		return s
	}

	return fmt.Sprint(value)
}

// ResolveEntity returns the record an action should target. An explicit kind
// is used as-is; otherwise the first record present among lead, customer,
// conversation, ticket and deal is chosen.
func (c Context) ResolveEntity(kind string) (EntityRef, bool) {
	kinds := defaultEntityKinds
	if kind != "" {
		kinds = []string{kind}
	}

	for _, k := range kinds {
		id := c.String(k + ".id")
		if id != "" {
			return EntityRef{Kind: k, ID: id}, true
		}
	}

	return EntityRef{}, false
}

// Tags returns the tags currently recorded on the entity in the context.
func (c Context) Tags(entity EntityRef) []string {
	value, ok := c.Lookup(entity.Kind + ".tags")
	if !ok {
		return nil
	}

	switch v := value.(type) {
	case []string:
		return v
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			tags = append(tags, fmt.Sprint(item))
		}

		return tags
	case string:
		return strings.Split(v, ",")
	default:
		return nil
	}
}

// AddTag records tag on the entity in the context so later steps of the same
// run see it. Entities whose record is not a map are left untouched.
func (c Context) AddTag(entity EntityRef, tag string) {
	tags := c.Tags(entity)

	switch record := c[entity.Kind].(type) {
	case map[string]any:
		next := make([]any, 0, len(tags)+1)
		for _, existing := range tags {
			next = append(next, existing)
		}

		record["tags"] = append(next, tag)
	case Context:
		next := make([]any, 0, len(tags)+1)
		for _, existing := range tags {
			next = append(next, existing)
		}

		record["tags"] = append(next, tag)
	case map[string]string:
		record["tags"] = strings.Join(append(tags, tag), ",")
	}
}

// ContactEmail returns the address of the first record carrying an email.
func (c Context) ContactEmail() string {
	for _, path := range []string{"lead.email", "customer.email", "contact.email", "conversation.email"} {
		if email := c.String(path); email != "" {
			return email
		}
	}

	return ""
}
