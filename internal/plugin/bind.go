// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"maps"
	"slices"

	"github.com/spf13/cast"
)

// Binder assigns config values to typed fields. Each method consumes its
// key when present; Result reports what was left over or failed. A failed
// conversion leaves the destination untouched.
//
//	func (p *Plugin) ApplyConfig(cfg map[string]any) plugin.BindResult {
//		return plugin.Bind(cfg).
//			String("command", &p.command).
//			Bool("return_output", &p.returnOutput).
//			Result()
//	}
type Binder struct {
	config map[string]any
	used   map[string]bool
	failed map[string]error
}

// Bind starts binding config.
func Bind(config map[string]any) *Binder {
	return &Binder{config: config, used: make(map[string]bool), failed: make(map[string]error)}
}

func (b *Binder) take(key string) (any, bool) {
	v, ok := b.config[key]
	if ok {
		b.used[key] = true
	}
	return v, ok
}

func assign[T any](b *Binder, key string, dst *T, conv func(any) (T, error)) *Binder {
	v, ok := b.take(key)
	if !ok {
		return b
	}
	out, err := conv(v)
	if err != nil {
		b.failed[key] = err
		return b
	}
	*dst = out
	return b
}

// String binds a string option.
func (b *Binder) String(key string, dst *string) *Binder {
	return assign(b, key, dst, cast.ToStringE)
}

// Bool binds a boolean option. Strings such as "true" and "0" are accepted.
func (b *Binder) Bool(key string, dst *bool) *Binder {
	return assign(b, key, dst, cast.ToBoolE)
}

// Int binds an integer option.
func (b *Binder) Int(key string, dst *int) *Binder {
	return assign(b, key, dst, cast.ToIntE)
}

// StringSlice binds a list option. A single string becomes a one-element
// list split on whitespace, as cast does.
func (b *Binder) StringSlice(key string, dst *[]string) *Binder {
	return assign(b, key, dst, cast.ToStringSliceE)
}

// StringMap binds a mapping option with string values.
func (b *Binder) StringMap(key string, dst *map[string]string) *Binder {
	return assign(b, key, dst, cast.ToStringMapStringE)
}

// Func binds an option through fn. An error from fn marks the key failed.
func (b *Binder) Func(key string, fn func(v any) error) *Binder {
	v, ok := b.take(key)
	if !ok {
		return b
	}
	if err := fn(v); err != nil {
		b.failed[key] = err
	}
	return b
}

// Result returns the keys that were not consumed and those that failed.
func (b *Binder) Result() BindResult {
	var res BindResult
	for _, key := range slices.Sorted(maps.Keys(b.config)) {
		if !b.used[key] {
			res.Unknown = append(res.Unknown, key)
		}
	}
	if len(b.failed) > 0 {
		res.Failed = maps.Clone(b.failed)
	}
	return res
}
