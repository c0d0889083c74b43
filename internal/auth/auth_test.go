package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header  string
		want    string
		wantErr string
	}{
		{header: "Bearer test-key", want: "test-key"},
		{header: "Bearer   padded  ", want: "padded"},
		{header: "", wantErr: "missing Authorization"},
		{header: "Basic abc", wantErr: "invalid Authorization"},
		{header: "Bearer   ", wantErr: "missing API key"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "http://grid.test", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		got, err := BearerToken(req)
		if tc.wantErr != "" {
			assert.ErrorContains(t, err, tc.wantErr, "header %q", tc.header)
			continue
		}
		require.NoError(t, err, "header %q", tc.header)
		assert.Equal(t, tc.want, got)
	}
}

func TestKeyringAuthenticate(t *testing.T) {
	t.Parallel()

	keys := NewKeyring("root-key", []TokenConfig{
		{Token: "writer", Scopes: []string{ScopeGridWrite, " "}},
		{Token: ""},
		{Token: "watcher", Scopes: []string{ScopeEvents}},
	})
	assert.Equal(t, 3, keys.Len())

	admin, ok := keys.Authenticate("root-key")
	require.True(t, ok)
	assert.Equal(t, "admin", admin.Name)
	assert.True(t, admin.Allows(ScopeJournal))

	writer, ok := keys.Authenticate("writer")
	require.True(t, ok)
	assert.Equal(t, "token[0]", writer.Name)
	assert.True(t, writer.Allows(ScopeGridRead), "grid:rw implies grid:ro")
	assert.False(t, writer.Allows(ScopeEvents, ScopeJournal))
	assert.False(t, writer.Allows(""), "blank scopes are dropped")

	watcher, ok := keys.Authenticate("watcher")
	require.True(t, ok)
	assert.Equal(t, "token[2]", watcher.Name)

	_, ok = keys.Authenticate("nobody")
	assert.False(t, ok)
	_, ok = keys.Authenticate("")
	assert.False(t, ok)
}

func TestEmptyKeyringRejectsEverything(t *testing.T) {
	t.Parallel()
	keys := NewKeyring("", nil)
	assert.Zero(t, keys.Len())
	_, ok := keys.Authenticate("")
	assert.False(t, ok)
}

func TestPrincipalContext(t *testing.T) {
	t.Parallel()

	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{Name: "x"})
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "x", p.Name)
	assert.True(t, p.Allows(), "no requirement always passes")
	assert.False(t, p.Allows(ScopeGridRead))
}

func TestValidScope(t *testing.T) {
	t.Parallel()
	for _, c := range Catalog {
		assert.True(t, ValidScope(c.Scope), c.Scope)
	}
	assert.False(t, ValidScope("grid:admin"))
	assert.False(t, ValidScope(""))
}
