// Package contextstore loads the optional JSON knowledge snippet that chat
// sessions inject into prompts. Loads never fail hard: every problem yields
// an empty Data plus a warning error that callers log and otherwise ignore.
package contextstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

var (
	ErrContextUnavailable = errors.New("context data unavailable")
	ErrContextInvalid     = errors.New("context data is not a valid JSON object")
	ErrContextLoadFailed  = errors.New("context data could not be loaded")
)

// Data is an opaque mapping injected verbatim into prompts. It must be
// treated as read-only once loaded because it is shared between sessions.
type Data map[string]any

func (d Data) IsEmpty() bool {
	return len(d) == 0
}

// JSON returns the compact serialization used in prompts. Keys are sorted,
// numbers keep their source text and no HTML escaping is applied.
func (d Data) JSON() (string, error) {
	if d.IsEmpty() {
		return "{}", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any(d)); err != nil {
		return "", fmt.Errorf("error serializing context data: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// ObjectGetter fetches objects for s3:// paths.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

type loadResult struct {
	data Data
	err  error
}

// Store memoizes loads by path. One Store is created at startup and shared;
// a path is read at most once for the Store's lifetime.
type Store struct {
	mu      sync.RWMutex
	results map[string]loadResult
	group   singleflight.Group
	objects ObjectGetter
}

type Option func(*Store)

func WithObjectGetter(objects ObjectGetter) Option {
	return func(s *Store) {
		s.objects = objects
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{results: make(map[string]loadResult)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the mapping stored at path. The returned Data is never nil.
// A non-nil error is a warning (ErrContextUnavailable, ErrContextInvalid or
// ErrContextLoadFailed); the Data is then empty.
func (s *Store) Load(ctx context.Context, path string) (Data, error) {
	s.mu.RLock()
	res, ok := s.results[path]
	s.mu.RUnlock()
	if ok {
		return res.data, res.err
	}

	v, _, _ := s.group.Do(path, func() (any, error) {
		s.mu.RLock()
		res, ok := s.results[path]
		s.mu.RUnlock()
		if ok {
			return res, nil
		}

		// The result is cached for every later caller, so it must not depend
		// on the first caller's cancellation.
		data, err := s.read(context.WithoutCancel(ctx), path)
		res = loadResult{data: data, err: err}
		if err != nil {
			slog.Warn("context data not loaded, continuing without augmentation", "path", path, "error", err)
		} else {
			slog.Info("loaded context data", "path", path, "keys", len(data))
		}

		s.mu.Lock()
		s.results[path] = res
		s.mu.Unlock()
		return res, nil
	})

	res = v.(loadResult)
	return res.data, res.err
}

func (s *Store) read(ctx context.Context, path string) (Data, error) {
	if strings.TrimSpace(path) == "" {
		return Data{}, fmt.Errorf("%w: no path configured", ErrContextUnavailable)
	}

	var raw []byte
	var err error
	if strings.HasPrefix(path, s3Scheme) {
		bucket, key, ok := parseS3Path(path)
		if !ok {
			return Data{}, fmt.Errorf("%w: malformed object path %q", ErrContextLoadFailed, path)
		}
		raw, err = s.readObject(ctx, bucket, key)
	} else {
		raw, err = readFile(path)
	}
	if err != nil {
		return Data{}, err
	}

	return parse(raw)
}

func readFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		return raw, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", ErrContextUnavailable, path)
	}
	return nil, fmt.Errorf("%w: %w", ErrContextLoadFailed, err)
}

func (s *Store) readObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if s.objects == nil {
		return nil, fmt.Errorf("%w: no object store configured for s3://%s/%s", ErrContextLoadFailed, bucket, key)
	}
	raw, err := s.objects.GetObject(ctx, bucket, key)
	if err == nil {
		return raw, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: s3://%s/%s: %w", ErrContextUnavailable, bucket, key, err)
	}
	return nil, fmt.Errorf("%w: %w", ErrContextLoadFailed, err)
}

// parse decodes a single top level JSON object. Numbers are kept as
// json.Number.
func parse(raw []byte) (Data, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return Data{}, fmt.Errorf("%w: %w", ErrContextInvalid, err)
	}
	if err := dec.Decode(new(any)); !errors.Is(err, io.EOF) {
		return Data{}, fmt.Errorf("%w: unexpected data after top level value", ErrContextInvalid)
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return Data{}, fmt.Errorf("%w: top level value is %T", ErrContextInvalid, decoded)
	}
	return Data(obj), nil
}

const s3Scheme = "s3://"

// parseS3Path splits s3://bucket/key.
func parseS3Path(path string) (string, string, bool) {
	rest, ok := strings.CutPrefix(path, s3Scheme)
	if !ok {
		return "", "", false
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
