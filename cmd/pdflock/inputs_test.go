package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtiwari1/gopherlock/internal/permission"
	"github.com/mtiwari1/gopherlock/internal/pdftest"
)

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	reports := filepath.Join(dir, "reports")
	require.NoError(t, os.MkdirAll(filepath.Join(reports, "q1"), 0o755))

	single := filepath.Join(dir, "single.pdf")
	for _, p := range []string{single, filepath.Join(reports, "a.pdf"), filepath.Join(reports, "q1", "b.PDF")} {
		require.NoError(t, os.WriteFile(p, pdftest.Document(1), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(reports, "notes.txt"), []byte("skip"), 0o644))

	got, err := collectInputs([]string{single, reports})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, input{Path: single, Name: "single.pdf", RelativePath: "single.pdf"}, got[0])
	assert.Equal(t, "reports/a.pdf", got[1].RelativePath)
	assert.Equal(t, "b.PDF", got[2].Name)
	assert.Equal(t, "reports/q1/b.PDF", got[2].RelativePath)
}

func TestCollectInputsMissing(t *testing.T) {
	_, err := collectInputs([]string{filepath.Join(t.TempDir(), "nope.pdf")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRestrictionSet(t *testing.T) {
	tests := []struct {
		name     string
		restrict []string
		allow    []string
		want     []permission.Restriction
		wantErr  bool
	}{
		{name: "default is everything", want: permission.All()},
		{
			name:  "allow removes",
			allow: []string{"printing", "copying"},
			want: []permission.Restriction{
				permission.Editing, permission.PageExtraction, permission.Commenting,
				permission.FormFilling, permission.DocumentAssembly,
			},
		},
		{
			name:     "explicit restrict",
			restrict: []string{"editing", "page-extraction"},
			want:     []permission.Restriction{permission.Editing, permission.PageExtraction},
		},
		{
			name:     "allow everything restricted",
			restrict: []string{"printing"},
			allow:    []string{"printing"},
			want:     []permission.Restriction{},
		},
		{name: "unknown", restrict: []string{"teleport"}, wantErr: true},
		{name: "unknown allow", allow: []string{"teleport"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := restrictionSet(tt.restrict, tt.allow)
			if tt.wantErr {
				assert.ErrorIs(t, err, permission.ErrUnknownRestriction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
