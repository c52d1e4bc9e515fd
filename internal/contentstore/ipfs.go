package contentstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	shell "github.com/ipfs/go-ipfs-api"
	"go.uber.org/zap"

	"carbon-credit-exchange/internal/observability"
)

// ipfsAPI is the subset of *shell.Shell the store uses.
type ipfsAPI interface {
	Add(r io.Reader, options ...shell.AddOpts) (string, error)
	Cat(path string) (io.ReadCloser, error)
}

// IPFS stores content on an IPFS node through its HTTP API. Uploads are
// pinned.
type IPFS struct {
	sh     ipfsAPI
	logger *zap.Logger
}

var _ Store = (*IPFS)(nil)

// NewIPFS connects to the node API at addr ("localhost:5001" or a URL).
func NewIPFS(addr string, logger *zap.Logger) *IPFS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IPFS{sh: shell.NewShell(addr), logger: logger}
}

// Upload adds data and returns its locator.
func (s *IPFS) Upload(ctx context.Context, data []byte, name string) (string, error) {
	cid, err := run(ctx, func() (string, error) {
		return s.sh.Add(bytes.NewReader(data), shell.Pin(true))
	})
	observability.RecordContentUpload(len(data), err)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}

	s.logger.Debug("content uploaded",
		zap.String("name", name),
		zap.String("cid", cid),
		zap.Int("bytes", len(data)))
	return Scheme + cid, nil
}

// Fetch reads the content behind locator.
func (s *IPFS) Fetch(ctx context.Context, locator string) ([]byte, error) {
	cid := CID(locator)
	if cid == "" {
		return nil, ErrNotFound
	}
	data, err := run(ctx, func() ([]byte, error) {
		rc, err := s.sh.Cat(cid)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", cid, err)
	}
	return data, nil
}

// run executes fn, giving up when ctx ends. The shell API has no context
// parameter, so an abandoned call finishes in the background.
func run[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
