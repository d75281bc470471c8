package state

import (
	"context"

	"github.com/gravitational/trace"
	"github.com/peterbourgon/diskv/v3"
)

// cacheSizeMaxBytes max memory cache
const cacheSizeMaxBytes = 1024

// DiskStore persists credentials as files in a directory, surviving restarts.
type DiskStore struct {
	dv *diskv.Diskv
}

// NewDiskStore creates a store rooted at dir.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, trace.BadParameter("missing storage directory")
	}

	// Simplest transform function: put all the data files into the base dir.
	flatTransform := func(s string) []string { return []string{} }

	dv := diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    flatTransform,
		CacheSizeMax: cacheSizeMaxBytes,
		FilePerm:     0600,
		PathPerm:     0700,
	})

	return &DiskStore{dv: dv}, nil
}

// Get implements Store.
func (d *DiskStore) Get(_ context.Context, name string) (string, error) {
	if !d.dv.Has(name) {
		return "", nil
	}

	b, err := d.dv.Read(name)
	if err != nil {
		return "", trace.Wrap(err)
	}

	return string(b), nil
}

// Set implements Store.
func (d *DiskStore) Set(_ context.Context, name, value string) error {
	return trace.Wrap(d.dv.Write(name, []byte(value)))
}

// Remove implements Store.
func (d *DiskStore) Remove(_ context.Context, name string) error {
	if !d.dv.Has(name) {
		return nil
	}
	return trace.Wrap(d.dv.Erase(name))
}
