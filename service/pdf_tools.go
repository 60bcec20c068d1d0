package service

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// PageSource reads pages out of a paginated document file: page count,
// the embedded text layer, and rasterized page images for OCR.
type PageSource interface {
	NumPages(path string) (int, error)
	PageText(path string, page int) (string, error)
	RasterizePage(path string, page int, destDir string) (string, error)
}

// OCREngine recognizes text in a page image, reporting a confidence
// score in [0,1].
type OCREngine interface {
	Recognize(ctx context.Context, imagePath string) (string, float64, error)
}

// PopplerSource implements PageSource with the poppler utilities
// (pdfinfo, pdftotext, pdftoppm).
type PopplerSource struct{}

func NewPopplerSource() *PopplerSource { return &PopplerSource{} }

var pagesRe = regexp.MustCompile(`Pages:\s+(\d+)`)

// NumPages uses pdfinfo to get the total number of pages in a PDF file.
func (p *PopplerSource) NumPages(path string) (int, error) {
	cmd := exec.Command("pdfinfo", path)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("error running pdfinfo: %v", err)
	}

	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		if matches := pagesRe.FindStringSubmatch(scanner.Text()); len(matches) == 2 {
			return strconv.Atoi(matches[1])
		}
	}

	return 0, fmt.Errorf("unable to determine page count from pdfinfo")
}

// PageText extracts the embedded text layer of one page using pdftotext.
func (p *PopplerSource) PageText(path string, page int) (string, error) {
	cmd := exec.Command("pdftotext",
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-enc", "UTF-8", "-nopgbrk",
		path, "-")
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed for page %d: %v", page, err)
	}
	return out.String(), nil
}

// RasterizePage renders one page to a PNG in destDir and returns its path.
func (p *PopplerSource) RasterizePage(path string, page int, destDir string) (string, error) {
	cmd := exec.Command("pdftoppm",
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-r", "300",
		"-png", path, filepath.Join(destDir, "page"))
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftoppm failed for page %d: %v", page, err)
	}
	files, err := filepath.Glob(filepath.Join(destDir, "page-*.png"))
	if err != nil || len(files) == 0 {
		return "", fmt.Errorf("no rasterized image produced for page %d", page)
	}
	return files[0], nil
}

// TesseractOCR implements OCREngine over the tesseract binary. TSV output
// carries per-word confidences, which are averaged into the page score.
type TesseractOCR struct {
	languages string
}

func NewTesseractOCR(languages string) *TesseractOCR {
	if languages == "" {
		languages = "eng"
	}
	return &TesseractOCR{languages: languages}
}

func (t *TesseractOCR) Recognize(ctx context.Context, imagePath string) (string, float64, error) {
	cmd := exec.CommandContext(ctx, "tesseract",
		imagePath,
		"stdout",
		"-l", t.languages,
		"--oem", "3",
		"--psm", "3",
		"tsv",
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", 0, fmt.Errorf("failed to run tesseract: %w", err)
	}
	return parseTesseractTSV(out.String())
}

// parseTesseractTSV turns tesseract's tsv output into text plus an overall
// confidence in [0,1]. Word rows are level 5; line and block numbers drive
// the re-assembled layout.
func parseTesseractTSV(tsv string) (string, float64, error) {
	var sb strings.Builder
	var totalConf float64
	wordCount := 0
	lastBlock, lastLine := -1, -1

	scanner := bufio.NewScanner(strings.NewReader(tsv))
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			// header row
			first = false
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 12 {
			continue
		}
		level, _ := strconv.Atoi(fields[0])
		if level != 5 {
			continue
		}
		word := strings.TrimSpace(fields[11])
		if word == "" {
			continue
		}
		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		block, _ := strconv.Atoi(fields[2])
		lineNum, _ := strconv.Atoi(fields[4])

		switch {
		case lastBlock == -1:
		case block != lastBlock:
			sb.WriteString("\n\n")
		case lineNum != lastLine:
			sb.WriteString("\n")
		default:
			sb.WriteString(" ")
		}
		sb.WriteString(word)
		lastBlock, lastLine = block, lineNum

		totalConf += conf
		wordCount++
	}
	if err := scanner.Err(); err != nil {
		return "", 0, err
	}
	if wordCount == 0 {
		return "", 0, nil
	}
	return sb.String(), totalConf / float64(wordCount) / 100.0, nil
}
