// Package store implements the path-addressed real-time document store
// gateway. It is the only package allowed to talk to the storage
// backend; everything above it consumes documents through Read, Write
// and Subscribe and never sees a backend error escape as a panic.
package store

import (
	"context"
	"strings"
)

// Well-known top-level paths.
const (
	PathAdminSettings = "adminSettings"
	PathChatMessages  = "chatMessages"
	PathUserData      = "userData"
	PathSiteImages    = "siteImages"
)

// ChildPath joins a collection path with a child key.
func ChildPath(parent, key string) string {
	return parent + "/" + key
}

// Subscription is a live listener registration. Every acquire must be
// paired with an Unsubscribe on all exit paths; a leaked subscription
// stays live for the rest of the process.
type Subscription interface {
	Unsubscribe()
}

// ChangeFunc receives the current value at the subscribed path. It is
// invoked once immediately on subscribe and again after every change at
// or beneath the path, including the subscriber's own writes. A nil
// value means the document is absent.
type ChangeFunc func(value any)

// Gateway is the remote store contract. Values are JSON-shaped: nil,
// bool, float64, string, []any or map[string]any. Writes replace the
// whole document at the path; there is no partial patch.
type Gateway interface {
	// Write overwrites the document at path with value.
	Write(ctx context.Context, path string, value any) error
	// Remove is the null-sentinel write: it deletes the document at
	// path along with any children.
	Remove(ctx context.Context, path string) error
	// Read returns the current value at path, with ok=false when the
	// document is absent. Reading an interior path assembles children
	// into a map keyed by path segment.
	Read(ctx context.Context, path string) (any, bool, error)
	// Subscribe registers a continuous listener rooted at path.
	Subscribe(ctx context.Context, path string, onChange ChangeFunc) (Subscription, error)
}

// pathPrefixes returns the path and every ancestor prefix, e.g.
// "a/b/c" -> ["a", "a/b", "a/b/c"]. Change notifications travel along
// these prefixes in both directions: a write wakes every subscriber
// whose path is an ancestor or descendant of the written path.
func pathPrefixes(path string) []string {
	segments := strings.Split(path, "/")
	prefixes := make([]string, 0, len(segments))
	for i := range segments {
		prefixes = append(prefixes, strings.Join(segments[:i+1], "/"))
	}
	return prefixes
}
