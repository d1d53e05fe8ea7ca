package biz

import (
	"fmt"

	"github.com/kart-io/anaya/internal/docqa/store"
	"github.com/kart-io/anaya/internal/pkg/extract"
	"github.com/kart-io/anaya/internal/pkg/textutil"
)

// SplitSegments 将提取出的文本段切分为带出处的重叠文档块。
// 切分是确定性的：相同输入与参数总是得到相同的块边界。
// 约束 0 <= overlap < maxSize，违反时返回错误。
// Offset 为块在整个文档内的连续序号，与 DocumentID 一起构成块的唯一标识。
func SplitSegments(segments []extract.Segment, docID, docName string, maxSize, overlap int) ([]*store.Chunk, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("chunk max size must be positive, got %d", maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("chunk overlap must satisfy 0 <= overlap < max size, got overlap=%d max=%d", overlap, maxSize)
	}

	var chunks []*store.Chunk
	offset := 0
	for _, seg := range segments {
		for _, content := range textutil.SplitIntoChunks(seg.Text, maxSize, overlap) {
			chunks = append(chunks, &store.Chunk{
				DocumentID:   docID,
				DocumentName: docName,
				Page:         seg.Page,
				Offset:       offset,
				Content:      content,
			})
			offset++
		}
	}

	return chunks, nil
}
