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

import "os"
import "io"
import "sort"
import "strings"

const snapshotSuffix = ".json.lz4"

// FileStore keeps snapshots as lz4-compressed JSON files in a directory.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	if path == "" {
		path = "data/snapshots"
	}
	err := os.MkdirAll(path, 0750)
	if err != nil {
		panic(err)
	}
	return &FileStore{path}
}

func (f *FileStore) ListSnapshots() []string {
	entries, err := os.ReadDir(f.path)
	if err != nil {
		return nil
	}
	var result []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, snapshotSuffix) {
			result = append(result, strings.TrimSuffix(name, snapshotSuffix))
		}
	}
	sort.Strings(result)
	return result
}

func (f *FileStore) ReadSnapshot(name string) io.ReadCloser {
	fd, err := os.Open(f.path + "/" + name + snapshotSuffix)
	if err != nil {
		return ErrorReader{err}
	}
	return decompressFrom(fd)
}

func (f *FileStore) WriteSnapshot(name string) io.WriteCloser {
	fd, err := os.Create(f.path + "/" + name + snapshotSuffix)
	if err != nil {
		panic(err)
	}
	return compressInto(fd)
}

func (f *FileStore) RemoveSnapshot(name string) {
	os.Remove(f.path + "/" + name + snapshotSuffix)
}

func init() {
	BackendRegistry["files"] = func(cfg BackendConfig) SnapshotStore {
		return NewFileStore(cfg.Path)
	}
}
