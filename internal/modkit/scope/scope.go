// Package scope carries request attributes such as subject and tenant
// across package boundaries without widening every signature
package scope

import (
	"context"
	"maps"
)

type key struct{}

// With returns a child ctx carrying kv on top of what ctx already has
// the parent's attributes are copied, never modified
func With(ctx context.Context, kv map[string]string) context.Context {
	parent, _ := ctx.Value(key{}).(map[string]string)
	merged := make(map[string]string, len(parent)+len(kv))
	maps.Copy(merged, parent)
	maps.Copy(merged, kv)
	return context.WithValue(ctx, key{}, merged)
}

// Get looks up one attribute
func Get(ctx context.Context, k string) (string, bool) {
	m, _ := ctx.Value(key{}).(map[string]string)
	v, ok := m[k]
	return v, ok
}

// All returns a copy of every attribute on ctx, nil when there are none
func All(ctx context.Context) map[string]string {
	m, _ := ctx.Value(key{}).(map[string]string)
	return maps.Clone(m)
}
