// Package store persists page images as <base>/<rootId>/<section>/page_<n>.jpg
// and reads them back by directory traversal. The directory tree is the only
// index.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/dgallion1/tocpages/internal/apperr"
	"github.com/dgallion1/tocpages/internal/doctree"
	"github.com/dgallion1/tocpages/internal/partition"
)

const (
	dirMode  = 0o750
	fileMode = 0o640
)

// RootPolicy decides how upload filenames map to document roots.
type RootPolicy string

const (
	// UniqueRoots prefixes every root with a fresh UUID; uploads never collide.
	UniqueRoots RootPolicy = "unique"
	// StemRoots uses the filename stem alone; re-uploads of the same name
	// share one root, which is cleaned and rewritten under a file lock.
	StemRoots RootPolicy = "stem"
)

// Registry allocates document roots under a base directory.
type Registry struct {
	base   string
	policy RootPolicy
	newID  func() string
}

// NewRegistry creates the base directory if needed.
func NewRegistry(base string, policy RootPolicy) (*Registry, error) {
	switch policy {
	case UniqueRoots, StemRoots:
	default:
		return nil, fmt.Errorf("unknown root policy %q", policy)
	}
	if err := os.MkdirAll(base, dirMode); err != nil {
		return nil, fmt.Errorf("create base dir %s: %w", base, err)
	}
	return &Registry{
		base:   base,
		policy: policy,
		newID:  func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}, nil
}

// Base is the directory all roots live under.
func (r *Registry) Base() string { return r.base }

// Policy reports how roots are named.
func (r *Registry) Policy() RootPolicy { return r.policy }

// Allocate returns the root for an uploaded filename and creates its
// directory.
func (r *Registry) Allocate(filename string) (doctree.Document, error) {
	id := Stem(filename)
	if r.policy == UniqueRoots {
		id = r.newID() + "_" + id
	}
	path := filepath.Join(r.base, id)
	if err := os.MkdirAll(path, dirMode); err != nil {
		return doctree.Document{}, apperr.Processing(err, "create document root %s", id)
	}
	return doctree.Document{RootID: id, RootPath: path}, nil
}

// Resolve validates a caller-supplied root id and returns its path. It does
// not check that the root exists.
func (r *Registry) Resolve(rootID string) (string, error) {
	return rootPath(r.base, rootID)
}

// Acquire serializes writers of one root. Only StemRoots can share a root
// between uploads, so UniqueRoots returns a no-op release.
func (r *Registry) Acquire(ctx context.Context, doc doctree.Document) (func(), error) {
	if r.policy != StemRoots {
		return func() {}, nil
	}
	lock := flock.New(filepath.Join(r.base, "."+doc.RootID+".lock"))
	ok, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, apperr.Processing(err, "lock document root %s", doc.RootID)
	}
	if !ok {
		return nil, apperr.Processing(ctx.Err(), "lock document root %s", doc.RootID)
	}
	return func() { _ = lock.Unlock() }, nil
}

// Stem is the sanitized filename without directory or extension.
func Stem(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if s := partition.Sanitize(stem); s != "" {
		return s
	}
	return "document"
}

func rootPath(base, rootID string) (string, error) {
	if rootID == "" || rootID == "." || rootID == ".." ||
		strings.HasPrefix(rootID, ".") ||
		strings.ContainsAny(rootID, `/\`) {
		return "", apperr.InvalidInput("invalid document id %q", rootID)
	}
	return filepath.Join(base, rootID), nil
}
