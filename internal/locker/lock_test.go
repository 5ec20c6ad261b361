package locker

import (
	"bytes"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtiwari1/gopherlock/internal/pdftest"
	"github.com/mtiwari1/gopherlock/internal/permission"
)

// openWith parses an encrypted document with the given passwords.
func openWith(data []byte, userPW, ownerPW string) error {
	initCodec()
	conf := model.NewDefaultConfiguration()
	conf.UserPW = userPW
	conf.OwnerPW = ownerPW
	_, err := api.ReadContext(bytes.NewReader(data), conf)
	return err
}

func TestLock_RoundTripPerMethod(t *testing.T) {
	src := pdftest.Document(2)
	mask := permission.ComputeMask(permission.All()...)

	for _, m := range Methods() {
		t.Run(string(m), func(t *testing.T) {
			out, err := Lock(src, "open-secret", "owner-secret", mask, m)
			require.NoError(t, err)
			require.NotEmpty(t, out)
			assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
			assert.NotEqual(t, src, out)

			assert.NoError(t, openWith(out, "open-secret", ""))
			assert.NoError(t, openWith(out, "", "owner-secret"))
			assert.Error(t, openWith(out, "wrong", "wrong"))
		})
	}
}

func TestLock_OpenPasswordOnlyDoublesAsOwner(t *testing.T) {
	out, err := Lock(pdftest.Document(1), "only-open", "", permission.ComputeMask(permission.Printing), AES256)
	require.NoError(t, err)

	assert.NoError(t, openWith(out, "only-open", ""))
	assert.NoError(t, openWith(out, "", "only-open"))
	assert.Error(t, openWith(out, "nope", "nope"))
}

func TestLock_PermissionPasswordOnlyOpensFreely(t *testing.T) {
	out, err := Lock(pdftest.Document(1), "", "owner-only", permission.ComputeMask(permission.Editing), AES128)
	require.NoError(t, err)

	assert.NoError(t, openWith(out, "", ""))
}

func TestLock_NoPassword(t *testing.T) {
	out, err := Lock(pdftest.Document(1), "", "", permission.AllAllowed, AES256)
	assert.ErrorIs(t, err, ErrNoPasswordProvided)
	assert.Nil(t, out)
}

func TestLock_NoPasswordCheckedBeforeParsing(t *testing.T) {
	_, err := Lock([]byte("garbage"), "", "", permission.AllAllowed, AES256)
	assert.ErrorIs(t, err, ErrNoPasswordProvided)
}

func TestLock_InvalidDocument(t *testing.T) {
	out, err := Lock([]byte("this is not a pdf document at all"), "pw", "", permission.AllAllowed, AES256)
	assert.ErrorIs(t, err, ErrInvalidDocument)
	assert.Nil(t, out)
}

func TestLock_UnknownMethod(t *testing.T) {
	_, err := Lock(pdftest.Document(1), "pw", "", permission.AllAllowed, Method("des"))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

// readEncryption reopens a locked document with its owner password and
// returns the parsed encryption dictionary.
func readEncryption(t *testing.T, data []byte, ownerPW string) (*model.Enc, bool) {
	t.Helper()
	initCodec()
	conf := model.NewDefaultConfiguration()
	conf.OwnerPW = ownerPW
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	require.NoError(t, err)
	require.NotNil(t, ctx.E)
	return ctx.E, ctx.AES4Strings
}

func TestLock_WritesPermissionMask(t *testing.T) {
	tests := []struct {
		name         string
		restrictions []permission.Restriction
		want         int
	}{
		{name: "nothing restricted", want: -1},
		{name: "everything restricted", restrictions: permission.All(), want: -3901},
		{name: "printing", restrictions: []permission.Restriction{permission.Printing}, want: -2053},
		{name: "page extraction", restrictions: []permission.Restriction{permission.PageExtraction}, want: -1025},
		{name: "document assembly", restrictions: []permission.Restriction{permission.DocumentAssembly}, want: -1025},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask := permission.ComputeMask(tt.restrictions...)
			require.Equal(t, tt.want, int(mask))

			out, err := Lock(pdftest.Document(1), "open", "owner", mask, AES256)
			require.NoError(t, err)

			enc, _ := readEncryption(t, out, "owner")
			assert.Equal(t, tt.want, enc.P)
		})
	}
}

func TestLock_MethodSelectsCipher(t *testing.T) {
	tests := []struct {
		method  Method
		v, r, l int
		aes     bool
	}{
		{method: AES256, v: 5, r: 5, l: 256, aes: true},
		{method: AES128, v: 4, r: 4, l: 128, aes: true},
		{method: RC4128, v: 4, r: 4, l: 128, aes: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			out, err := Lock(pdftest.Document(1), "open", "owner", permission.ComputeMask(permission.All()...), tt.method)
			require.NoError(t, err)

			enc, aes := readEncryption(t, out, "owner")
			assert.Equal(t, tt.v, enc.V)
			assert.Equal(t, tt.r, enc.R)
			assert.Equal(t, tt.l, enc.L)
			assert.Equal(t, tt.aes, aes)
		})
	}
}

func TestLock_AlreadyEncrypted(t *testing.T) {
	// Locked without an open password, the document still parses, so the
	// failure comes from the encrypt step itself.
	locked, err := Lock(pdftest.Document(1), "", "owner", permission.ComputeMask(permission.Editing), AES256)
	require.NoError(t, err)

	out, err := Lock(locked, "", "again", permission.AllAllowed, AES256)
	assert.ErrorIs(t, err, ErrEncryptionFailed)
	assert.Nil(t, out)
}

func TestOwnerPassword(t *testing.T) {
	assert.Equal(t, "perm", OwnerPassword("open", "perm"))
	assert.Equal(t, "open", OwnerPassword("open", ""))
	assert.Equal(t, "perm", OwnerPassword("", "perm"))
	assert.Equal(t, "", OwnerPassword("", ""))
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, AES256, m)

	m, err = ParseMethod(" RC4-128 ")
	require.NoError(t, err)
	assert.Equal(t, RC4128, m)

	_, err = ParseMethod("aes-512")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
