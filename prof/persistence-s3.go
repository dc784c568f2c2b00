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
import "context"
import "io"
import "sort"
import "strings"
import "sync"
import "github.com/aws/aws-sdk-go-v2/aws"
import "github.com/aws/aws-sdk-go-v2/config"
import "github.com/aws/aws-sdk-go-v2/credentials"
import "github.com/aws/aws-sdk-go-v2/service/s3"

// S3Store keeps snapshots in an S3 or S3-compatible bucket (MinIO etc.).
type S3Store struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string
	Bucket          string
	Prefix          string
	ForcePathStyle  bool

	mu     sync.Mutex
	client *s3.Client
}

func NewS3Store(cfg BackendConfig) *S3Store {
	return &S3Store{
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		Bucket:          cfg.Bucket,
		Prefix:          cfg.Prefix,
		ForcePathStyle:  cfg.ForcePathStyle,
	}
}

// ensureOpen connects lazily so a configured but unused store costs nothing.
func (s *S3Store) ensureOpen() *s3.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client
	}

	opts := []func(*config.LoadOptions) error{}
	if s.Region != "" {
		opts = append(opts, config.WithRegion(s.Region))
	}
	if s.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(context.TODO(), opts...)
	if err != nil {
		panic(err)
	}

	s3Opts := []func(*s3.Options){}
	if s.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(s.Endpoint)
		})
	}
	if s.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	s.client = s3.NewFromConfig(cfg, s3Opts...)
	return s.client
}

func (s *S3Store) key(name string) string {
	return s.Prefix + name + snapshotSuffix
}

func (s *S3Store) ListSnapshots() []string {
	client := s.ensureOpen()
	var result []string
	p := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(s.Prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(context.TODO())
		if err != nil {
			break
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(*obj.Key, s.Prefix)
			if strings.HasSuffix(name, snapshotSuffix) {
				result = append(result, strings.TrimSuffix(name, snapshotSuffix))
			}
		}
	}
	sort.Strings(result)
	return result
}

func (s *S3Store) ReadSnapshot(name string) io.ReadCloser {
	client := s.ensureOpen()
	out, err := client.GetObject(context.TODO(), &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return ErrorReader{err}
	}
	return decompressFrom(out.Body)
}

// s3WriteCloser buffers locally and uploads on Close since S3 objects
// cannot be streamed without a known length.
type s3WriteCloser struct {
	store  *S3Store
	key    string
	buf    bytes.Buffer
	closed bool
}

func (w *s3WriteCloser) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *s3WriteCloser) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	client := w.store.ensureOpen()
	_, err := client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket: aws.String(w.store.Bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	return err
}

func (s *S3Store) WriteSnapshot(name string) io.WriteCloser {
	return compressInto(&s3WriteCloser{store: s, key: s.key(name)})
}

func (s *S3Store) RemoveSnapshot(name string) {
	client := s.ensureOpen()
	client.DeleteObject(context.TODO(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(name)),
	})
}

func init() {
	BackendRegistry["s3"] = func(cfg BackendConfig) SnapshotStore {
		return NewS3Store(cfg)
	}
}
