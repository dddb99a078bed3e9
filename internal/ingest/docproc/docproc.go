// Package docproc turns raw training material (PDF, URL, FAQ pairs, plain
// text) into overlapping text chunks ready for embedding. PDF extraction is
// grounded on teradata-labs-loom's parsePDF/parsePageSelection; the shared
// chunker is new, since nothing in the example pack chunks text for
// retrieval.
package docproc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/salesagentco/platform/internal/domain"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
	maxPDFPages         = 500
	urlFetchTimeout     = 10 * time.Second
)

// ChunkMetadata carries source attribution for one Chunk.
type ChunkMetadata struct {
	SourceType domain.TrainingType
	PageNumber int // PDF only; 0 elsewhere
}

// Chunk is one unit of text ready for embedding.
type Chunk struct {
	Text     string
	Metadata ChunkMetadata
}

// ProcessPDF extracts text page by page and chunks it. Unreadable pages are
// skipped rather than failing the whole document, mirroring the teacher's
// "continue with other pages if one fails" behavior.
func ProcessPDF(r io.ReaderAt, size int64) ([]Chunk, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	totalPages := reader.NumPage()
	if totalPages > maxPDFPages {
		totalPages = maxPDFPages
	}

	var chunks []Chunk
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		for _, t := range chunkText(text, defaultChunkSize, defaultChunkOverlap) {
			chunks = append(chunks, Chunk{
				Text:     t,
				Metadata: ChunkMetadata{SourceType: domain.TrainingPDF, PageNumber: pageNum},
			})
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no extractable text in pdf")
	}
	return chunks, nil
}

// ProcessURL fetches the page at url and chunks its visible body text,
// stripping script/style/nav content via an html.Parse tree walk.
func ProcessURL(ctx context.Context, url string) ([]Chunk, error) {
	ctx, cancel := context.WithTimeout(ctx, urlFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "salesagent-ingest/1.0")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch url: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	text, err := extractVisibleText(body)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no extractable text at %s", url)
	}

	var chunks []Chunk
	for _, t := range chunkText(text, defaultChunkSize, defaultChunkOverlap) {
		chunks = append(chunks, Chunk{Text: t, Metadata: ChunkMetadata{SourceType: domain.TrainingURL}})
	}
	return chunks, nil
}

var skippedTags = map[string]bool{
	"script": true, "style": true, "nav": true, "header": true, "footer": true, "noscript": true,
}

func extractVisibleText(body []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node, skip bool)
	walk = func(n *html.Node, skip bool) {
		if n.Type == html.ElementNode && skippedTags[strings.ToLower(n.Data)] {
			skip = true
		}
		if n.Type == html.TextNode && !skip {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skip)
		}
	}
	walk(doc, false)
	return sb.String(), nil
}

// ProcessFAQ renders each question/answer pair as one chunk — FAQ entries
// are short enough that splitting would destroy the question/answer pairing.
func ProcessFAQ(pairs []domain.FAQPair) []Chunk {
	chunks := make([]Chunk, 0, len(pairs))
	for _, p := range pairs {
		text := fmt.Sprintf("Q: %s\nA: %s", p.Question, p.Answer)
		chunks = append(chunks, Chunk{Text: text, Metadata: ChunkMetadata{SourceType: domain.TrainingFAQ}})
	}
	return chunks
}

// ProcessText chunks freeform text submitted directly as training material.
func ProcessText(text string) []Chunk {
	var chunks []Chunk
	for _, t := range chunkText(text, defaultChunkSize, defaultChunkOverlap) {
		chunks = append(chunks, Chunk{Text: t, Metadata: ChunkMetadata{SourceType: domain.TrainingText}})
	}
	return chunks
}

// chunkText splits text into overlapping windows of size runes, advancing
// by (size - overlap) each step. Deterministic: the same input always
// produces the same chunk boundaries.
func chunkText(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
