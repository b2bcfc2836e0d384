// Copyright 2024 LazyQuery Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package item

import (
	"errors"
	"reflect"

	"lazyquery/internal/common"
)

// Property is a typed value cell of an Item.
type Property interface {
	// Value returns the current value (may be nil).
	Value() any
	// SetValue replaces the value. Returns common.ErrReadOnly when read-only.
	SetValue(v any) error
	// Type returns the declared value type, or nil for untyped properties.
	Type() reflect.Type
	ReadOnly() bool
	SetReadOnly(readOnly bool)
}

// ValueChangeEvent is delivered to listeners after a property value was replaced.
type ValueChangeEvent struct {
	Property Property
}

// ValueChangeListener receives value change events from notifying properties.
// A returned error is handed back to the caller of SetValue.
type ValueChangeListener interface {
	ValueChange(ev ValueChangeEvent) error
}

// ValueChangeNotifier is implemented by properties that emit value change events.
type ValueChangeNotifier interface {
	AddListener(l ValueChangeListener)
	RemoveListener(l ValueChangeListener)
}

// ObjectProperty is the default notifying Property implementation.
//
// Not thread-safe: listeners run synchronously on the caller's goroutine
// before SetValue returns.
type ObjectProperty struct {
	value     any
	typ       reflect.Type
	readOnly  bool
	listeners []ValueChangeListener
}

var (
	_ Property            = (*ObjectProperty)(nil)
	_ ValueChangeNotifier = (*ObjectProperty)(nil)
)

// NewProperty creates a property holding value. The value is coerced to typ
// when typ is non-nil; a value that cannot be coerced is replaced by nil.
func NewProperty(value any, typ reflect.Type, readOnly bool) *ObjectProperty {
	v, err := Coerce(value, typ)
	if err != nil {
		v = nil
	}
	return &ObjectProperty{value: v, typ: typ, readOnly: readOnly}
}

func (p *ObjectProperty) Value() any {
	return p.value
}

func (p *ObjectProperty) Type() reflect.Type {
	return p.typ
}

func (p *ObjectProperty) ReadOnly() bool {
	return p.readOnly
}

func (p *ObjectProperty) SetReadOnly(readOnly bool) {
	p.readOnly = readOnly
}

// SetValue stores v and notifies listeners. The value stays set even when
// a listener fails; listener errors are joined and returned.
func (p *ObjectProperty) SetValue(v any) error {
	if p.readOnly {
		return common.ErrReadOnly
	}
	cv, err := Coerce(v, p.typ)
	if err != nil {
		return err
	}
	p.value = cv
	return p.fireValueChange()
}

func (p *ObjectProperty) fireValueChange() error {
	if len(p.listeners) == 0 {
		return nil
	}
	// Listeners may deregister themselves while handling the event.
	listeners := append([]ValueChangeListener(nil), p.listeners...)
	var errs []error
	for _, l := range listeners {
		if err := l.ValueChange(ValueChangeEvent{Property: p}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AddListener registers l. Registering the same listener twice is a no-op.
func (p *ObjectProperty) AddListener(l ValueChangeListener) {
	for _, existing := range p.listeners {
		if existing == l {
			return
		}
	}
	p.listeners = append(p.listeners, l)
}

func (p *ObjectProperty) RemoveListener(l ValueChangeListener) {
	for i, existing := range p.listeners {
		if existing == l {
			p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
			return
		}
	}
}

// ListenerCount returns the number of registered listeners.
func (p *ObjectProperty) ListenerCount() int {
	return len(p.listeners)
}

// SetPrivileged writes v to p regardless of its read-only flag and leaves
// p read-only afterwards. Used for status and debug properties.
func SetPrivileged(p Property, v any) error {
	p.SetReadOnly(false)
	err := p.SetValue(v)
	p.SetReadOnly(true)
	return err
}
