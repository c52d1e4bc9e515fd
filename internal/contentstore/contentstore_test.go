package contentstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayURL(t *testing.T) {
	g := NewGateway("https://gateway.example/ipfs/")

	tests := []struct {
		name    string
		locator string
		want    string
	}{
		{"ipfs scheme", "ipfs://abc", "https://gateway.example/ipfs/abc"},
		{"bare hash", "QmHash", "https://gateway.example/ipfs/QmHash"},
		{"https passes", "https://cdn.example/img.png", "https://cdn.example/img.png"},
		{"http passes", "http://cdn.example/img.png", "http://cdn.example/img.png"},
		{"arweave passes", "ar://txid123", "ar://txid123"},
		{"data uri passes", "data:image/png;base64,iVBORw0K", "data:image/png;base64,iVBORw0K"},
		{"bare hash with path", "QmHash/image.png", "https://gateway.example/ipfs/QmHash/image.png"},
		{"empty", "", ""},
		{"whitespace", "  ipfs://abc ", "https://gateway.example/ipfs/abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.URL(tt.locator))
		})
	}
}

func TestGatewayDefault(t *testing.T) {
	assert.Equal(t, DefaultGateway+"/abc", NewGateway("").URL("ipfs://abc"))
}

func TestCID(t *testing.T) {
	assert.Equal(t, "abc", CID("ipfs://abc"))
	assert.Equal(t, "abc", CID("https://ipfs.io/ipfs/abc/meta.json"))
	assert.Equal(t, "abc", CID("https://gateway.example/ipfs/abc?filename=x"))
	assert.Equal(t, "abc", CID("abc"))
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	loc, err := m.Upload(ctx, []byte("hello"), "hello.txt")
	require.NoError(t, err)
	assert.Regexp(t, `^ipfs://Qm[1-9A-HJ-NP-Za-km-z]{44}$`, loc)

	again, err := m.Upload(ctx, []byte("hello"), "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, loc, again, "content addressed")
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, "hello.txt", m.Name(loc))

	data, err := m.Fetch(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = m.Fetch(ctx, "ipfs://missing")
	assert.ErrorIs(t, err, ErrNotFound)

	boom := errors.New("pinning service down")
	m.FailUploads(boom)
	_, err = m.Upload(ctx, []byte("x"), "x")
	assert.ErrorIs(t, err, boom)
}
