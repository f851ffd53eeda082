package util

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// DocumentExtractor 从上传的简历/岗位描述文件中提取纯文本
type DocumentExtractor struct{}

func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{}
}

// ExtractText 按扩展名提取文本内容
func (e *DocumentExtractor) ExtractText(file multipart.File, header *multipart.FileHeader) (string, error) {
	return e.ExtractFromReader(file, header.Filename)
}

// ExtractFromReader 从任意reader提取文本，供存储层回读时使用
func (e *DocumentExtractor) ExtractFromReader(r io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	content := buf.Bytes()

	switch ext {
	case ".txt", ".md":
		return string(content), nil
	case ".pdf":
		return e.extractPDFBasic(content)
	default:
		return string(content), nil
	}
}

// extractPDFBasic 简化的PDF文本提取，只保留可读ASCII内容
func (e *DocumentExtractor) extractPDFBasic(content []byte) (string, error) {
	text := string(content)

	if strings.Contains(text, "%PDF") {
		var cleanText strings.Builder
		for _, r := range text {
			if r >= 32 && r <= 126 || r == '\n' || r == '\r' || r == '\t' {
				cleanText.WriteRune(r)
			}
		}

		extracted := cleanText.String()

		if len(extracted) < 100 {
			return "", fmt.Errorf("unable to extract text from PDF, please upload a text version")
		}

		return extracted, nil
	}

	return text, nil
}

// IsSupportedFormat 判断文件格式是否支持
func (e *DocumentExtractor) IsSupportedFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, format := range []string{".txt", ".md", ".pdf"} {
		if ext == format {
			return true
		}
	}
	return false
}
