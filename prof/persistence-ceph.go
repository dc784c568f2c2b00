//go:build ceph

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

import "bytes"
import "io"
import "sort"
import "strings"
import "sync"
import "github.com/ceph/go-ceph/rados"

// CephStore keeps snapshots as RADOS objects in a Ceph pool.
// Snapshot names are tracked in a manifest object so listing does not
// have to scan the whole pool.
type CephStore struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Prefix      string

	mu    sync.Mutex
	conn  *rados.Conn
	ioctx *rados.IOContext
}

func NewCephStore(cfg BackendConfig) *CephStore {
	user := cfg.UserName
	if user == "" {
		user = "client.admin"
	}
	cluster := cfg.ClusterName
	if cluster == "" {
		cluster = "ceph"
	}
	pool := cfg.Pool
	if pool == "" {
		pool = "hotpath"
	}
	return &CephStore{
		UserName:    user,
		ClusterName: cluster,
		ConfFile:    cfg.ConfFile,
		Pool:        pool,
		Prefix:      cfg.Prefix,
	}
}

func (c *CephStore) ensureOpen() *rados.IOContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ioctx != nil {
		return c.ioctx
	}

	conn, err := rados.NewConnWithClusterAndUser(c.ClusterName, c.UserName)
	if err != nil {
		panic(err)
	}
	if c.ConfFile != "" {
		err = conn.ReadConfigFile(c.ConfFile)
	} else {
		err = conn.ReadDefaultConfigFile()
	}
	if err != nil {
		panic(err)
	}
	if err = conn.Connect(); err != nil {
		panic(err)
	}
	ioctx, err := conn.OpenIOContext(c.Pool)
	if err != nil {
		conn.Shutdown()
		panic(err)
	}
	c.conn = conn
	c.ioctx = ioctx
	return c.ioctx
}

func (c *CephStore) object(name string) string {
	return c.Prefix + name + snapshotSuffix
}

func (c *CephStore) manifest() string {
	return c.Prefix + "index"
}

func (c *CephStore) readObject(obj string) ([]byte, error) {
	ioctx := c.ensureOpen()
	stat, err := ioctx.Stat(obj)
	if err != nil {
		return nil, err
	}
	data := make([]byte, stat.Size)
	n, err := ioctx.Read(obj, data, 0)
	if err != nil {
		return nil, err
	}
	return data[:n], nil
}

func (c *CephStore) readManifest() []string {
	data, err := c.readObject(c.manifest())
	if err != nil {
		return nil
	}
	var result []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			result = append(result, line)
		}
	}
	return result
}

func (c *CephStore) writeManifest(names []string) {
	sort.Strings(names)
	ioctx := c.ensureOpen()
	ioctx.WriteFull(c.manifest(), []byte(strings.Join(names, "\n")))
}

func (c *CephStore) ListSnapshots() []string {
	return c.readManifest()
}

func (c *CephStore) ReadSnapshot(name string) io.ReadCloser {
	data, err := c.readObject(c.object(name))
	if err != nil {
		return ErrorReader{err}
	}
	return decompressFrom(io.NopCloser(bytes.NewReader(data)))
}

// cephWriteCloser buffers locally and writes the full object on Close.
type cephWriteCloser struct {
	store  *CephStore
	name   string
	buf    bytes.Buffer
	closed bool
}

func (w *cephWriteCloser) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *cephWriteCloser) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	ioctx := w.store.ensureOpen()
	err := ioctx.WriteFull(w.store.object(w.name), w.buf.Bytes())
	if err != nil {
		return err
	}
	names := w.store.readManifest()
	for _, n := range names {
		if n == w.name {
			return nil
		}
	}
	w.store.writeManifest(append(names, w.name))
	return nil
}

func (c *CephStore) WriteSnapshot(name string) io.WriteCloser {
	return compressInto(&cephWriteCloser{store: c, name: name})
}

func (c *CephStore) RemoveSnapshot(name string) {
	ioctx := c.ensureOpen()
	ioctx.Delete(c.object(name))
	names := c.readManifest()
	kept := names[:0]
	for _, n := range names {
		if n != name {
			kept = append(kept, n)
		}
	}
	c.writeManifest(kept)
}

func init() {
	BackendRegistry["ceph"] = func(cfg BackendConfig) SnapshotStore {
		return NewCephStore(cfg)
	}
}
