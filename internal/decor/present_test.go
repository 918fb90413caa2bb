package decor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresent(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "result.png")
	require.NoError(t, os.WriteFile(local, []byte("\x89PNG\r\n\x1a\nrest"), 0600))

	t.Run("http url", func(t *testing.T) {
		v := Present(&Result{Recognized: true, ImageRef: "https://cdn/x.png"}, "cozy room")
		assert.Equal(t, ViewURL, v.Kind)
		assert.Equal(t, "https://cdn/x.png", v.Src)
		assert.Equal(t, "cozy room", v.Caption)
	})

	t.Run("data uri", func(t *testing.T) {
		v := Present(&Result{Recognized: true, ImageRef: "data:image/png;base64,AAAA"}, "")
		assert.Equal(t, ViewURL, v.Kind)
	})

	t.Run("existing local file", func(t *testing.T) {
		v := Present(&Result{Recognized: true, ImageRef: local}, "c")
		assert.Equal(t, ViewLocal, v.Kind)
		assert.True(t, strings.HasPrefix(v.Src, "data:image/png;base64,"), v.Src)
		assert.Equal(t, local, v.Path)
	})

	t.Run("missing local path", func(t *testing.T) {
		missing := filepath.Join(dir, "nope.png")
		v := Present(&Result{Recognized: true, ImageRef: missing}, "c")
		assert.Equal(t, ViewMissing, v.Kind)
		assert.Equal(t, missing, v.Path)
		assert.Empty(t, v.Src)
	})

	t.Run("local non-image file is not inlined", func(t *testing.T) {
		secrets := filepath.Join(dir, ".env")
		require.NoError(t, os.WriteFile(secrets, []byte("HF_TOKEN=hf_secret\nOSS_SECRET_KEY=xyz\n"), 0600))

		v := Present(&Result{Recognized: true, ImageRef: secrets}, "c")
		assert.Equal(t, ViewNotImage, v.Kind)
		assert.Equal(t, secrets, v.Path)
		assert.Empty(t, v.Src)
	})

	t.Run("image extension does not make text an image", func(t *testing.T) {
		fake := filepath.Join(dir, "fake.png")
		require.NoError(t, os.WriteFile(fake, []byte("not really a png"), 0600))

		v := Present(&Result{Recognized: true, ImageRef: fake}, "c")
		assert.Equal(t, ViewNotImage, v.Kind)
		assert.Empty(t, v.Src)
	})

	t.Run("directory is not an image", func(t *testing.T) {
		v := Present(&Result{Recognized: true, ImageRef: dir}, "c")
		assert.Equal(t, ViewMissing, v.Kind)
	})

	t.Run("unrecognised keeps raw value", func(t *testing.T) {
		v := Present(&Result{Raw: []any{}}, "c")
		assert.Equal(t, ViewUnrecognized, v.Kind)
		assert.Equal(t, "[]", v.Raw)

		v = Present(&Result{Raw: map[string]any{"status": "queued"}}, "c")
		assert.Contains(t, v.Raw, `"status": "queued"`)
	})

	t.Run("unencodable raw falls back to fmt", func(t *testing.T) {
		v := Present(&Result{Raw: func() {}}, "c")
		assert.Equal(t, ViewUnrecognized, v.Kind)
		assert.NotEmpty(t, v.Raw)
	})
}
