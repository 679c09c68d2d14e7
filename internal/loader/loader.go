package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"trading-rag/internal/chunker"
	"trading-rag/internal/models"
)

const (
	defaultChunkSize    = 300
	defaultChunkOverlap = 30
	defaultPageGroup    = 5
	defaultCSVBatchRows = 50
)

// Loader turns a file on disk into a sequence of chunks, dispatching on
// the file extension.
type Loader struct {
	ChunkSize    int
	ChunkOverlap int
	PageGroup    int // PDF pages accumulated per chunking window
	CSVBatchRows int // data rows rendered into one chunk
}

func New(chunkSize, chunkOverlap, pageGroup, csvBatchRows int) *Loader {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = defaultChunkOverlap
	}
	if pageGroup <= 0 {
		pageGroup = defaultPageGroup
	}
	if csvBatchRows <= 0 {
		csvBatchRows = defaultCSVBatchRows
	}
	return &Loader{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		PageGroup:    pageGroup,
		CSVBatchRows: csvBatchRows,
	}
}

// Load parses and chunks the file at path.
func (l *Loader) Load(path string) ([]models.Chunk, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	log.Info().Str("path", path).Str("ext", ext).Msg("Loading document")

	switch ext {
	case ".pdf":
		return l.loadPDF(path)
	case ".csv":
		return l.loadCSV(path)
	case ".txt", ".md":
		return l.loadText(path)
	case ".docx":
		return l.loadDOCX(path)
	case ".xlsx":
		return l.loadXLSX(path)
	case ".ods":
		return l.loadODS(path)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

// loadPDF extracts text page by page, accumulating PageGroup pages per
// window before chunking. A page that fails to extract is skipped, not
// fatal.
func (l *Loader) loadPDF(path string) ([]models.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %v", err)
	}

	source := filepath.Base(path)
	var chunks []models.Chunk
	var group strings.Builder
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			log.Warn().Int("page", i).Msg("Skipping empty page")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn().Err(err).Int("page", i).Msg("Skipping unreadable page")
			continue
		}
		group.WriteString(pageText)
		group.WriteString("\n\n")

		if i%l.PageGroup == 0 || i == numPages {
			chunks = append(chunks, l.chunkText(group.String(), source, len(chunks))...)
			group.Reset()
		}
	}

	log.Info().Int("pages", numPages).Int("chunks", len(chunks)).Msg("Parsed PDF")
	return chunks, nil
}

// loadCSV groups data rows into batches and renders each batch as one
// tab-separated text block. A row that fails to parse is skipped.
func (l *Loader) loadCSV(path string) ([]models.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %v", err)
	}

	source := filepath.Base(path)
	var chunks []models.Chunk
	var batch []string

	flush := func() {
		if len(batch) == 0 {
			return
		}
		text := strings.Join(header, "\t") + "\n" + strings.Join(batch, "\n")
		chunks = append(chunks, models.Chunk{
			Content: text,
			Source:  source,
			Index:   len(chunks),
		})
		batch = batch[:0]
	}

	for {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// a malformed row must not lose the rest of the file
			log.Warn().Err(err).Msg("Skipping unreadable CSV row")
			continue
		}
		batch = append(batch, strings.Join(record, "\t"))
		if len(batch) >= l.CSVBatchRows {
			flush()
		}
	}
	flush()

	log.Info().Int("chunks", len(chunks)).Msg("Parsed CSV")
	return chunks, nil
}

func (l *Loader) loadText(path string) ([]models.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return l.chunkText(string(data), filepath.Base(path), 0), nil
}

func (l *Loader) loadDOCX(path string) ([]models.Chunk, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	return l.chunkText(content, filepath.Base(path), 0), nil
}

func (l *Loader) loadXLSX(path string) ([]models.Chunk, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, err
	}

	source := filepath.Base(path)
	var chunks []models.Chunk
	for _, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		chunks = append(chunks, l.chunkText(text.String(), source, len(chunks))...)
	}
	return chunks, nil
}

func (l *Loader) loadODS(path string) ([]models.Chunk, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	source := filepath.Base(path)
	var chunks []models.Chunk
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			log.Warn().Err(err).Str("sheet", sheetName).Msg("Skipping unreadable sheet")
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		chunks = append(chunks, l.chunkText(text.String(), source, len(chunks))...)
	}
	return chunks, nil
}

// chunkText windows content and assigns sequential indexes starting at
// base.
func (l *Loader) chunkText(content, source string, base int) []models.Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	c := chunker.New(l.ChunkSize, l.ChunkOverlap)
	var chunks []models.Chunk
	for i, text := range c.Split(content) {
		chunks = append(chunks, models.Chunk{
			Content: text,
			Source:  source,
			Index:   base + i,
		})
	}
	return chunks
}
