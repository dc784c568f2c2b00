/*
Copyright (C) 2025-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package prof

import "io"
import "github.com/pierrec/lz4/v4"

/*

snapshot persistence

Profiles outlive the process through snapshot stores:
 - file system: in data/snapshots/
 - all other: remote object stores (S3, Ceph)

A store must implement the following operations:
 - list stored snapshot names
 - read a snapshot by name
 - write a snapshot under a name
 - remove a snapshot

All stores hold lz4-compressed JSON objects; compression happens here so
backends only move opaque bytes.

*/

type SnapshotStore interface {
	ListSnapshots() []string
	ReadSnapshot(name string) io.ReadCloser
	WriteSnapshot(name string) io.WriteCloser
	RemoveSnapshot(name string)
}

// BackendConfig describes the configuration for a snapshot store backend.
// Stored inside settings.json under "Backend".
type BackendConfig struct {
	Backend string `json:"backend"` // "files", "s3", "ceph"

	// files-specific
	Path string `json:"path,omitempty"` // base directory, default data/snapshots

	// Ceph-specific fields
	UserName    string `json:"username,omitempty"`  // Ceph: e.g. "client.admin"
	ClusterName string `json:"cluster,omitempty"`   // Ceph: often "ceph"
	ConfFile    string `json:"conf_file,omitempty"` // Ceph: optional config path
	Pool        string `json:"pool,omitempty"`      // Ceph: e.g. "hotpath"
	Prefix      string `json:"prefix,omitempty"`    // Object prefix (Ceph and S3)

	// S3-specific fields
	AccessKeyID     string `json:"access_key_id,omitempty"`     // S3: AWS or S3-compatible access key
	SecretAccessKey string `json:"secret_access_key,omitempty"` // S3: AWS or S3-compatible secret key
	Region          string `json:"region,omitempty"`            // S3: AWS region (e.g., "us-east-1")
	Endpoint        string `json:"endpoint,omitempty"`          // S3: Custom endpoint (MinIO, etc.)
	Bucket          string `json:"bucket,omitempty"`            // S3: Bucket name
	ForcePathStyle  bool   `json:"force_path_style,omitempty"`  // S3: Use path-style URLs (for MinIO)
}

// BackendRegistry maps backend names to store constructors. The ceph
// entry is only functional when built with -tags=ceph.
var BackendRegistry = map[string]func(cfg BackendConfig) SnapshotStore{}

// OpenStore creates the snapshot store described by cfg.
func OpenStore(cfg BackendConfig) SnapshotStore {
	name := cfg.Backend
	if name == "" {
		name = "files"
	}
	factory, ok := BackendRegistry[name]
	if !ok {
		panic("unknown snapshot backend: " + name)
	}
	return factory(cfg)
}

// ErrorReader implements io.ReadCloser
type ErrorReader struct {
	e error
}

func (e ErrorReader) Read([]byte) (int, error) {
	// reflects the error (e.g. file not found)
	return 0, e.e
}
func (e ErrorReader) Close() error {
	// closes without problem
	return nil
}

// lz4ReadCloser decompresses from the underlying object stream.
type lz4ReadCloser struct {
	*lz4.Reader
	inner io.ReadCloser
}

func (r lz4ReadCloser) Close() error {
	return r.inner.Close()
}

// lz4WriteCloser compresses into the underlying object stream.
type lz4WriteCloser struct {
	*lz4.Writer
	inner io.WriteCloser
}

func (w lz4WriteCloser) Close() error {
	if err := w.Writer.Close(); err != nil {
		w.inner.Close()
		return err
	}
	return w.inner.Close()
}

func compressInto(w io.WriteCloser) io.WriteCloser {
	return lz4WriteCloser{lz4.NewWriter(w), w}
}

func decompressFrom(r io.ReadCloser) io.ReadCloser {
	if _, isErr := r.(ErrorReader); isErr {
		return r
	}
	return lz4ReadCloser{lz4.NewReader(r), r}
}

// SaveSnapshot serializes s into the store under name.
func SaveSnapshot(store SnapshotStore, name string, s *Snapshot) error {
	w := store.WriteSnapshot(name)
	if err := s.WriteTo(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// LoadSnapshot reads the snapshot stored under name.
func LoadSnapshot(store SnapshotStore, name string) (*Snapshot, error) {
	r := store.ReadSnapshot(name)
	defer r.Close()
	return ReadSnapshotFrom(r)
}
