package util

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// AllowedExtension reports whether filename ends in one of the allowed
// extensions. An empty list allows everything.
func AllowedExtension(filename string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if !strings.HasPrefix(a, ".") {
			a = "." + a
		}
		if ext == a {
			return true
		}
	}
	return false
}

// SniffMimeType 读取前 512 字节检测 MIME 类型
func SniffMimeType(reader io.Reader) (string, []byte, error) {
	buffer := make([]byte, 512)
	n, err := io.ReadFull(reader, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	return http.DetectContentType(buffer[:n]), buffer[:n], nil
}
