package sources_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marcelsud/webhook-inspector/signature"
	"github.com/marcelsud/webhook-inspector/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSources(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader_Load(t *testing.T) {
	t.Run("success - valid sources file", func(t *testing.T) {
		secret, err := signature.GenerateSecret(32)
		require.NoError(t, err)

		path := writeSources(t, `
sources:
  - source_id: "stripe"
    description: "Stripe test mode"
    signing_secret: "`+secret.String()+`"
  - source_id: "github"
    status_code: 202
`)

		loader := sources.NewLoader(200)
		require.NoError(t, loader.Load(path))

		all := loader.List()
		require.Len(t, all, 2)
		assert.Equal(t, "github", all[0].SourceID)
		assert.Equal(t, "stripe", all[1].SourceID)

		stripe, err := loader.Resolve("/stripe")
		require.NoError(t, err)
		assert.Equal(t, 200, stripe.StatusCode)
		assert.Equal(t, "Stripe test mode", stripe.Description)
		got, ok := stripe.Secret()
		require.True(t, ok)
		assert.Equal(t, secret.Bytes(), got.Bytes())

		github, err := loader.Resolve("/github/push")
		require.NoError(t, err)
		assert.Equal(t, 202, github.StatusCode)
		_, ok = github.Secret()
		assert.False(t, ok)
	})

	t.Run("error - file not found", func(t *testing.T) {
		err := sources.NewLoader(200).Load("nonexistent.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading sources file")
	})

	t.Run("error - invalid YAML", func(t *testing.T) {
		err := sources.NewLoader(200).Load(writeSources(t, `invalid yaml content: [[[`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing sources YAML")
	})

	validationCases := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"empty id", "sources:\n  - description: x\n", "source_id cannot be empty"},
		{"id with slash", "sources:\n  - source_id: a/b\n", "source_id must match"},
		{"bad status", "sources:\n  - source_id: a\n    status_code: 42\n", "status_code must be between"},
		{"bad secret", "sources:\n  - source_id: a\n    signing_secret: nope\n", "invalid signing_secret"},
		{"duplicate", "sources:\n  - source_id: a\n  - source_id: a\n", "duplicate source_id"},
	}
	for _, tc := range validationCases {
		t.Run("error - "+tc.name, func(t *testing.T) {
			err := sources.NewLoader(200).Load(writeSources(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestLoader_Resolve(t *testing.T) {
	t.Run("open registry accepts every source", func(t *testing.T) {
		loader := sources.NewLoader(204)

		source, err := loader.Resolve("/anything/goes/here")
		require.NoError(t, err)
		assert.Equal(t, "anything", source.SourceID)
		assert.Equal(t, 204, source.StatusCode)

		bare, err := loader.Resolve("")
		require.NoError(t, err)
		assert.Equal(t, "", bare.SourceID)
	})

	t.Run("loaded registry rejects unknown sources", func(t *testing.T) {
		loader := sources.NewLoader(200)
		require.NoError(t, loader.Load(writeSources(t, "sources:\n  - source_id: stripe\n    status_code: 201\n")))

		source, err := loader.Resolve("/stripe/webhook")
		require.NoError(t, err)
		assert.Equal(t, 201, source.StatusCode)

		_, err = loader.Resolve("/paypal/ipn")
		assert.ErrorIs(t, err, sources.ErrUnknownSource)
	})
}

func TestSourceID(t *testing.T) {
	assert.Equal(t, "stripe", sources.SourceID("/stripe/webhook"))
	assert.Equal(t, "stripe", sources.SourceID("stripe"))
	assert.Equal(t, "", sources.SourceID("/"))
	assert.Equal(t, "", sources.SourceID(""))
}
