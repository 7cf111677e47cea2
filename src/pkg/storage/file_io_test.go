package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfoliotree/app/src/pkg/model"
)

func sampleDocument() *PortfolioDocument {
	portfolio := &model.Portfolio{Name: "cv", Description: "my work", IsPublic: true}
	nodes := []*model.Node{
		{ID: "r", Type: "category", Title: "Projects", IsVisible: true},
		{ID: "c", ParentID: "r", Type: "project", Title: "Tree & Co", Tags: []string{"go"}, Order: 2, IsVisible: false,
			Content: map[string]string{"year": "2024", "role": "lead"}},
	}
	return NewPortfolioDocument(portfolio, nodes)
}

func TestFileExportImport_AllFormats(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"cv.json", "cv.xml", "cv.yaml", "cv.yml.zst", "cv.json.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "out", name)
			format, err := FormatFromPath(path)
			require.NoError(t, err)

			require.NoError(t, FileExport(sampleDocument(), path, format))
			doc, err := FileImport(path, format)
			require.NoError(t, err)

			assert.Equal(t, "cv", doc.Name)
			assert.True(t, doc.IsPublic)
			nodes := doc.ModelNodes()
			require.Len(t, nodes, 2)
			assert.Equal(t, "r", nodes[1].ParentID)
			assert.Equal(t, "Tree & Co", nodes[1].Title)
			assert.Equal(t, 2, nodes[1].Order)
			assert.False(t, nodes[1].IsVisible)
			assert.Equal(t, []string{"go"}, nodes[1].Tags)
			assert.Equal(t, map[string]string{"year": "2024", "role": "lead"}, nodes[1].Content)
		})
	}
}

func TestNewPortfolioDocument_SortsContentKeys(t *testing.T) {
	doc := sampleDocument()
	require.Len(t, doc.Nodes[1].Content, 2)
	assert.Equal(t, "role", doc.Nodes[1].Content[0].Key)
}

func TestDocumentDecode_Errors(t *testing.T) {
	_, err := DocumentDecode(strings.NewReader(`{"nodes":[]}`), FormatJSON)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = DocumentDecode(strings.NewReader(`not json`), FormatJSON)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = DocumentDecode(strings.NewReader(`x`), "csv")
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = FormatFromPath("cv.txt")
	assert.Error(t, err)
	_, err = FormatFromPath("cv.zst")
	assert.Error(t, err)
}

func TestFileExport_Compressed(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "cv.json")
	packed := filepath.Join(dir, "cv.json.zst")
	require.NoError(t, FileExport(sampleDocument(), plain, FormatJSON))
	require.NoError(t, FileExport(sampleDocument(), packed, FormatJSON))

	raw, err := os.ReadFile(packed)
	require.NoError(t, err)
	require.Greater(t, len(raw), 4)
	assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, raw[:4])

	// A plain file with a .zst name is not a zstd stream.
	misnamed := filepath.Join(dir, "plain.json.zst")
	data, err := os.ReadFile(plain)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(misnamed, data, 0o644))
	_, err = FileImport(misnamed, FormatJSON)
	assert.Error(t, err)
}
