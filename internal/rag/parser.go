package rag

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/unidoc/unioffice/document"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	apperrors "github.com/docuchat/backend-go/internal/errors"
)

// FileParser 文件解析器接口
type FileParser interface {
	Parse(reader io.Reader, filename string) (string, error)
	Supports(filename string) bool
}

// TextParser 文本文件解析器
type TextParser struct{}

func (p *TextParser) Supports(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".txt" || ext == ".md" || ext == ".markdown"
}

func (p *TextParser) Parse(reader io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", apperrors.NewExternalError(apperrors.ErrCodeParseFailed,
			"读取文件失败", err)
	}
	return string(content), nil
}

// PDFParser PDF文件解析器
type PDFParser struct{}

func (p *PDFParser) Supports(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".pdf"
}

func (p *PDFParser) Parse(reader io.Reader, filename string) (string, error) {
	pdfBytes, err := io.ReadAll(reader)
	if err != nil {
		return "", apperrors.NewExternalError(apperrors.ErrCodeParseFailed,
			"读取PDF文件失败", err)
	}

	pdfReader, err := model.NewPdfReader(bytes.NewReader(pdfBytes))
	if err != nil {
		return "", apperrors.NewExternalError(apperrors.ErrCodeParseFailed,
			"解析PDF失败", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", apperrors.NewExternalError(apperrors.ErrCodeParseFailed,
			"获取PDF页数失败", err)
	}

	// 每页前加页码标记，检索结果能回溯到具体页
	var textBuilder strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			continue
		}

		ex, err := extractor.New(page)
		if err != nil {
			continue
		}

		text, err := ex.ExtractText()
		if err != nil {
			continue
		}

		fmt.Fprintf(&textBuilder, "\n--- Page %d ---\n", i)
		textBuilder.WriteString(text)
	}

	return textBuilder.String(), nil
}

// WordParser Word文档解析器，仅支持.docx格式
type WordParser struct{}

func (p *WordParser) Supports(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".docx" || ext == ".doc"
}

func (p *WordParser) Parse(reader io.Reader, filename string) (string, error) {
	if strings.ToLower(filepath.Ext(filename)) == ".doc" {
		return "", apperrors.NewValidationError(apperrors.ErrCodeInvalidFileFormat,
			"暂不支持.doc格式，请使用.docx格式")
	}

	docBytes, err := io.ReadAll(reader)
	if err != nil {
		return "", apperrors.NewExternalError(apperrors.ErrCodeParseFailed,
			"读取Word文件失败", err)
	}

	// bytes.Reader实现ReaderAt接口
	readerAt := bytes.NewReader(docBytes)
	doc, err := document.Read(readerAt, int64(len(docBytes)))
	if err != nil {
		return "", apperrors.NewExternalError(apperrors.ErrCodeParseFailed,
			"解析Word文档失败", err)
	}
	defer doc.Close()

	var textBuilder strings.Builder
	for _, para := range doc.Paragraphs() {
		for _, run := range para.Runs() {
			textBuilder.WriteString(run.Text())
		}
		textBuilder.WriteString("\n")
	}

	return textBuilder.String(), nil
}

// FileParserManager 文件解析器管理器
type FileParserManager struct {
	parsers []FileParser
}

// NewFileParserManager 创建文件解析器管理器
func NewFileParserManager() *FileParserManager {
	return &FileParserManager{
		parsers: []FileParser{
			&PDFParser{},
			&WordParser{},
			&TextParser{},
		},
	}
}

// ParseFile 根据文件名选择解析器并提取文本
func (m *FileParserManager) ParseFile(reader io.Reader, filename string) (string, error) {
	for _, parser := range m.parsers {
		if parser.Supports(filename) {
			return parser.Parse(reader, filename)
		}
	}
	return "", apperrors.NewValidationError(apperrors.ErrCodeInvalidFileFormat,
		fmt.Sprintf("不支持的文件格式: %s", filename))
}

// SupportedFormats 返回支持的扩展名
func (m *FileParserManager) SupportedFormats() []string {
	return []string{".pdf", ".docx", ".txt", ".md", ".markdown"}
}
