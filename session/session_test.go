package session

import (
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospital-app/hospital-client/models"
)

func testToken(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	header, err := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "."
}

func TestDecode(t *testing.T) {
	tok := testToken(t, map[string]interface{}{
		"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier": "user-17",
		"http://schemas.microsoft.com/ws/2008/06/identity/claims/role":         "doctor",
	})

	s, err := Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-17", s.SubjectID)
	assert.Equal(t, models.RoleDoctor, s.Role)
	assert.Equal(t, tok, s.Credential)
}

func TestDecodeMissingRole(t *testing.T) {
	tok := testToken(t, map[string]interface{}{
		"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier": "user-17",
	})

	_, err := Decode(tok)
	assert.Error(t, err)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode("not-a-token")
	assert.Error(t, err)
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nested", "credential"))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Save("abc.def.ghi"))
	got, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", got)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear()) // idempotent

	got, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestContextLifecycle(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "credential"))
	ctx := New(store)

	assert.Nil(t, ctx.Current())
	assert.Nil(t, ctx.Restore())

	tok := testToken(t, map[string]interface{}{
		"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier": "p1",
		"http://schemas.microsoft.com/ws/2008/06/identity/claims/role":         "member",
	})

	s, err := ctx.Establish(tok)
	require.NoError(t, err)
	assert.Equal(t, models.RolePatient, s.Role)
	assert.Equal(t, s, ctx.Current())

	// a fresh context restores the same session from disk
	restored := New(store).Restore()
	require.NotNil(t, restored)
	assert.Equal(t, "p1", restored.SubjectID)

	require.NoError(t, ctx.Clear())
	assert.Nil(t, ctx.Current())
	assert.Nil(t, New(store).Restore())
}

func TestContextConcurrentAccess(t *testing.T) {
	// background jobs read Current while the command loop logs in and out;
	// run under -race
	store := NewStore(filepath.Join(t.TempDir(), "credential"))
	ctx := New(store)

	tok := testToken(t, map[string]interface{}{
		"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier": "p1",
		"http://schemas.microsoft.com/ws/2008/06/identity/claims/role":         "member",
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if s := ctx.Current(); s != nil {
					_ = s.SubjectID
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		_, err := ctx.Establish(tok)
		require.NoError(t, err)
		require.NoError(t, ctx.Clear())
	}
	wg.Wait()
}

func TestRestoreDiscardsBadCredential(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "credential"))
	require.NoError(t, store.Save("corrupted"))

	ctx := New(store)
	assert.Nil(t, ctx.Restore())

	// the bad credential is cleaned up
	got, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}
