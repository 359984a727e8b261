package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	key, ok := NewKey("Gallery", "IMG_01.JPG")
	require.True(t, ok)
	require.True(t, strings.HasPrefix(key, "gallery/"))
	require.True(t, strings.HasSuffix(key, ".jpg"))

	key, ok = NewKey("../../etc", "a.png")
	require.True(t, ok)
	require.True(t, strings.HasPrefix(key, "misc/"))

	_, ok = NewKey("article", "script.sh")
	require.False(t, ok)
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	url, err := s.Put(ctx, "video/a.png", strings.NewReader("png-bytes"), 9, "image/png")
	require.NoError(t, err)
	require.Equal(t, FileRoute+"video/a.png", url)

	rc, ct, err := s.Open(ctx, "video/a.png")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "png-bytes", string(b))
	require.Equal(t, "image/png", ct)

	_, _, err = s.Open(ctx, "missing.png")
	require.ErrorIs(t, err, ErrNotFound)
}
