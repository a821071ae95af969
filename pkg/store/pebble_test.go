package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeshare/pkg/models"
)

func openTemp(t *testing.T) {
	t.Helper()
	require.NoError(t, Open(t.TempDir()))
	t.Cleanup(func() { _ = Close() })
}

func TestSaltRoundTrip(t *testing.T) {
	openTemp(t)

	require.NoError(t, SetSalt("u1", "0123456789abcdef"))
	salt, err := GetSalt("u1")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", salt)

	_, err = GetSalt("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileRoundTrip(t *testing.T) {
	openTemp(t)

	p := &models.Profile{
		ID:       "abcd123",
		Username: "bob",
		Nickname: "Bob",
		Password: "hash",
		Tokens:   models.TokenList{{IssuedAt: 42, Blob: "blob"}},
		Projects: []string{"p1"},
	}
	require.NoError(t, SaveProfile(p))

	got, err := GetProfile("abcd123")
	require.NoError(t, err)
	assert.Equal(t, p.Username, got.Username)
	assert.Equal(t, p.Tokens, got.Tokens)

	all, err := ListProfiles()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProgramRoundTripStripsTransients(t *testing.T) {
	openTemp(t)

	prog := &models.Program{
		ID:    "prog1",
		Title: "demo",
		Type:  "pjs",
		Likes: []string{},
		Files: map[string]string{"index.js": "// code"},
		Img:   "data:image/jpeg;base64,zzz",
	}
	require.NoError(t, SaveProgram(prog))

	got, err := GetProgram("prog1")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Title)
	assert.Nil(t, got.Files, "file contents live under their own key")
	assert.Empty(t, got.Img)

	exists, err := ProgramExists("prog1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = ProgramExists("nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestProgramFilesAndThumb(t *testing.T) {
	openTemp(t)

	require.NoError(t, SaveProgramFiles("p1", map[string]string{"main.py": "# hi"}))
	files, err := GetProgramFiles("p1")
	require.NoError(t, err)
	assert.Equal(t, "# hi", files["main.py"])

	require.NoError(t, SaveProgramThumb("p1", []byte{0xff, 0xd8}))
	img, err := GetProgramThumb("p1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, img)
}

func TestListProgramsSkipsFilesAndThumbs(t *testing.T) {
	openTemp(t)

	require.NoError(t, SaveProgram(&models.Program{ID: "a1", Title: "one"}))
	require.NoError(t, SaveProgram(&models.Program{ID: "b2", Title: "two"}))
	require.NoError(t, SaveProgramFiles("a1", map[string]string{"f": "x"}))
	require.NoError(t, SaveProgramThumb("a1", []byte("jpg")))

	progs, err := ListPrograms()
	require.NoError(t, err)
	assert.Len(t, progs, 2)
}

func TestDeleteProgramRemovesAllKeys(t *testing.T) {
	openTemp(t)

	require.NoError(t, SaveProgram(&models.Program{ID: "gone", Title: "bye"}))
	require.NoError(t, SaveProgramFiles("gone", map[string]string{"f": "x"}))
	require.NoError(t, DeleteProgram("gone"))

	_, err := GetProgram("gone")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = GetProgramFiles("gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIPRecords(t *testing.T) {
	openTemp(t)

	require.NoError(t, SaveIPRecord("hash1", &models.IPRecord{Requests: 9, Accounts: []string{"u1"}}))
	recs, err := ListIPRecords()
	require.NoError(t, err)
	require.Contains(t, recs, "hash1")
	assert.Equal(t, []string{"u1"}, recs["hash1"].Accounts)
}

func TestEnqueueRunsInlineWithoutWorker(t *testing.T) {
	openTemp(t)

	ran := false
	Enqueue("test_op", func() error {
		ran = true
		return nil
	})
	assert.True(t, ran)
}
