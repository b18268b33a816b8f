package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/itish2003/therapybot/models"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 20
)

// Page is the extracted text of one PDF page, numbered from 1.
type Page struct {
	Number int
	Text   string
}

// PDFExtractor returns the text of every page of a PDF.
type PDFExtractor interface {
	ExtractPages(path string) ([]Page, error)
}

// NewPDFExtractor uses UniPDF when a license key is configured and the
// license-free ledongthuc reader otherwise.
func NewPDFExtractor(unidocLicenseKey string) (PDFExtractor, error) {
	if unidocLicenseKey == "" {
		return PlainPDFExtractor{}, nil
	}
	if err := license.SetMeteredKey(unidocLicenseKey); err != nil {
		return nil, fmt.Errorf("failed to set Unidoc license key: %w", err)
	}
	return UniPDFExtractor{}, nil
}

// PlainPDFExtractor reads PDFs with github.com/ledongthuc/pdf.
type PlainPDFExtractor struct{}

func (PlainPDFExtractor) ExtractPages(path string) ([]Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

// UniPDFExtractor reads PDFs with UniPDF, which needs a metered license key.
type UniPDFExtractor struct{}

func (UniPDFExtractor) ExtractPages(path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return nil, err
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return nil, err
		}

		ex, err := extractor.New(page)
		if err != nil {
			return nil, err
		}

		text, err := ex.ExtractText()
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

// DocumentLoader turns a directory of PDFs into chunks.
type DocumentLoader struct {
	extractor PDFExtractor
	splitter  textsplitter.TextSplitter
}

// NewDocumentLoader splits with a recursive character splitter, which tries
// paragraph breaks, then line breaks, then spaces before cutting characters.
func NewDocumentLoader(extractor PDFExtractor, chunkSize, chunkOverlap int) *DocumentLoader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	return &DocumentLoader{
		extractor: extractor,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// LoadDirectory chunks every PDF directly inside dir. Files that cannot be
// read are logged and skipped; a directory without PDFs yields no chunks.
func (l *DocumentLoader) LoadDirectory(dir string) ([]models.Chunk, error) {
	paths, err := ListPDFs(dir)
	if err != nil {
		return nil, err
	}

	chunks := []models.Chunk{}
	for _, path := range paths {
		fileChunks, err := l.LoadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("component", "loader").Str("file", path).Msg("skipping unreadable file")
			continue
		}
		chunks = append(chunks, fileChunks...)
	}
	return chunks, nil
}

// LoadFile extracts and splits a single PDF.
func (l *DocumentLoader) LoadFile(path string) ([]models.Chunk, error) {
	pages, err := l.extractor.ExtractPages(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", path, err)
	}
	return l.SplitPages(path, pages)
}

// SplitPages splits page text into chunks. Output depends only on the input
// and the splitter settings.
func (l *DocumentLoader) SplitPages(source string, pages []Page) ([]models.Chunk, error) {
	docs := make([]schema.Document, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		docs = append(docs, schema.Document{
			PageContent: p.Text,
			Metadata: map[string]any{
				metaSource: source,
				metaPage:   p.Number,
			},
		})
	}

	split, err := textsplitter.SplitDocuments(l.splitter, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", source, err)
	}

	prefix := sourceKey(source)
	chunks := make([]models.Chunk, 0, len(split))
	for i, doc := range split {
		page := metaInt(doc.Metadata[metaPage])
		chunks = append(chunks, models.Chunk{
			ID:     fmt.Sprintf("%s-p%d-c%d", prefix, page, i),
			Text:   doc.PageContent,
			Source: source,
			Page:   page,
			Index:  i,
		})
	}
	return chunks, nil
}

// ListPDFs returns the .pdf files directly inside dir, sorted by name.
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read document directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !isSupportedFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func isSupportedFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// sourceKey gives chunk ids a stable prefix per source path, so re-indexing a
// file overwrites its previous entries.
func sourceKey(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:8])
}
