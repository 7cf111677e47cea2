package storage

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"portfoliotree/app/src/pkg/model"
)

// Supported export formats
const (
	FormatJSON = "json"
	FormatXML  = "xml"
	FormatYAML = "yaml"
)

// PortfolioDocument is the portable form of a portfolio: its settings and a flat node list.
type PortfolioDocument struct {
	XMLName     xml.Name       `json:"-" yaml:"-" xml:"portfolio"`
	Name        string         `json:"name" yaml:"name" xml:"name,attr"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty" xml:"description,omitempty"`
	IsPublic    bool           `json:"is_public" yaml:"is_public" xml:"public,attr"`
	Nodes       []NodeDocument `json:"nodes" yaml:"nodes" xml:"node"`
}

// NodeDocument is a node inside a PortfolioDocument
type NodeDocument struct {
	ID          string         `json:"id" yaml:"id" xml:"id,attr"`
	ParentID    string         `json:"parent_id,omitempty" yaml:"parent_id,omitempty" xml:"parent,attr,omitempty"`
	Type        string         `json:"type" yaml:"type" xml:"type,attr"`
	Title       string         `json:"title" yaml:"title" xml:"title"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty" xml:"description,omitempty"`
	URL         string         `json:"url,omitempty" yaml:"url,omitempty" xml:"url,omitempty"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty" xml:"tag"`
	Order       int            `json:"order" yaml:"order" xml:"order,attr"`
	IsVisible   bool           `json:"is_visible" yaml:"is_visible" xml:"visible,attr"`
	Content     []ContentField `json:"content,omitempty" yaml:"content,omitempty" xml:"content"`
}

// ContentField is one key/value pair of node content. Maps have no XML encoding, so content travels as a list.
type ContentField struct {
	Key   string `json:"key" yaml:"key" xml:"key,attr"`
	Value string `json:"value" yaml:"value" xml:",chardata"`
}

// NewPortfolioDocument builds the document of a portfolio and all of its nodes.
func NewPortfolioDocument(portfolio *model.Portfolio, nodes []*model.Node) *PortfolioDocument {
	doc := &PortfolioDocument{
		Name:        portfolio.Name,
		Description: portfolio.Description,
		IsPublic:    portfolio.IsPublic,
		Nodes:       make([]NodeDocument, 0, len(nodes)),
	}
	for _, n := range nodes {
		nd := NodeDocument{
			ID:          n.ID,
			ParentID:    n.ParentID,
			Type:        n.Type,
			Title:       n.Title,
			Description: n.Description,
			URL:         n.URL,
			Tags:        n.Tags,
			Order:       n.Order,
			IsVisible:   n.IsVisible,
		}
		keys := make([]string, 0, len(n.Content))
		for k := range n.Content {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			nd.Content = append(nd.Content, ContentField{Key: k, Value: n.Content[k]})
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	return doc
}

// ModelNodes converts the document nodes back into model nodes, keeping their ids.
func (d *PortfolioDocument) ModelNodes() []*model.Node {
	nodes := make([]*model.Node, 0, len(d.Nodes))
	for _, nd := range d.Nodes {
		n := &model.Node{
			ID:          nd.ID,
			ParentID:    nd.ParentID,
			Type:        nd.Type,
			Title:       nd.Title,
			Description: nd.Description,
			URL:         nd.URL,
			Tags:        nd.Tags,
			Order:       nd.Order,
			IsVisible:   nd.IsVisible,
			Content:     make(map[string]string, len(nd.Content)),
		}
		for _, c := range nd.Content {
			n.Content[c.Key] = c.Value
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// compressedExt marks zstd compressed documents, e.g. "cv.json.zst".
const compressedExt = ".zst"

func compressed(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), compressedExt)
}

// FormatFromPath derives the document format from a file extension. A trailing
// .zst is skipped.
func FormatFromPath(filename string) (string, error) {
	if compressed(filename) {
		filename = filename[:len(filename)-len(compressedExt)]
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return FormatJSON, nil
	case ".xml":
		return FormatXML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: cannot infer format of %s", model.ErrInvalidInput, filename)
	}
}

// DocumentEncode writes doc to w in the given format.
func DocumentEncode(w io.Writer, doc *PortfolioDocument, format string) error {
	var data []byte
	var err error
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(doc, "", "  ")
	case FormatXML:
		data, err = xml.MarshalIndent(doc, "", "  ")
		if err == nil {
			data = append([]byte(xml.Header), data...)
		}
	case FormatYAML:
		data, err = yaml.Marshal(doc)
	default:
		return fmt.Errorf("%w: unsupported format: %s", model.ErrInvalidInput, format)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal portfolio: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write portfolio: %w", err)
	}
	return nil
}

// DocumentDecode reads a document in the given format from r.
func DocumentDecode(r io.Reader, format string) (*PortfolioDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read portfolio: %w", err)
	}

	var doc PortfolioDocument
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatXML:
		err = xml.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%w: unsupported format: %s", model.ErrInvalidInput, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal data: %v", model.ErrInvalidInput, err)
	}
	if strings.TrimSpace(doc.Name) == "" {
		return nil, fmt.Errorf("%w: portfolio name is missing", model.ErrInvalidInput)
	}
	return &doc, nil
}

// FileExport exports a portfolio document to a file in the specified format.
// Files ending in .zst are zstd compressed.
func FileExport(doc *PortfolioDocument, filename string, format string) error {
	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	var w io.Writer = f
	var zw *zstd.Encoder
	if compressed(filename) {
		if zw, err = zstd.NewWriter(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to create compressor: %w", err)
		}
		w = zw
	}

	if err := DocumentEncode(w, doc, format); err != nil {
		if zw != nil {
			zw.Close()
		}
		f.Close()
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			f.Close()
			return fmt.Errorf("failed to compress file: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// FileImport imports a portfolio document from a file in the specified format.
// Files ending in .zst are decompressed first.
func FileImport(filename string, format string) (*PortfolioDocument, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	if !compressed(filename) {
		return DocumentDecode(f, format)
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid zstd stream: %v", model.ErrInvalidInput, err)
	}
	defer zr.Close()
	return DocumentDecode(zr, format)
}
