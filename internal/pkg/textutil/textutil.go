// Package textutil 提供文档问答流水线使用的文本处理工具。
package textutil

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// CosineSimilarity 计算两个向量的余弦相似度，返回值范围 [-1, 1]。
// 维度不一致或向量为空时返回 0。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HashString 计算字符串的 MD5 哈希，用于生成稳定的短标识。
func HashString(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashBytes 计算字节内容的 SHA-256 哈希，用于内容级去重。
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// TruncateString 按 Unicode 字符数截断字符串。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// SplitIntoChunks 将文本切分为重叠的窗口。
// 调用方必须保证 0 <= overlap < chunkSize；相邻块共享恰好 overlap 个
// Unicode 字符，去掉重叠后拼接可还原原文。
func SplitIntoChunks(text string, chunkSize, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	step := chunkSize - overlap

	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}

var listMarkerRegex = regexp.MustCompile(`^[\d\.\-\*\)]+\s*`)

// SplitByLines 按行拆分模型输出，去除列表标记、引号和空行。
// 除空行外不做过滤，短变体与多字节文本原样保留。
func SplitByLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = listMarkerRegex.ReplaceAllString(line, "")
		line = strings.Trim(line, `"'`)
		if line != "" {
			result = append(result, line)
		}
	}
	return result
}

// CollapseWhitespace 将连续空白压缩为单个空格并去除首尾空白。
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
