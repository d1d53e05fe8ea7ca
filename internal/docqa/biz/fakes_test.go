package biz

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"testing"

	"github.com/kart-io/anaya/internal/pkg/extract"
	"github.com/kart-io/anaya/pkg/llm"
)

// fakeEmbedder 测试用嵌入供应商，按文本确定性生成向量。
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	fn    func(text string) ([]float32, error)
}

func newWordEmbedder() *fakeEmbedder {
	return &fakeEmbedder{fn: func(text string) ([]float32, error) {
		return wordVector(text), nil
	}}
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := f.EmbedSingle(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(text)
}

func (f *fakeEmbedder) Name() string { return "fake-embedder" }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// wordVector 将文本映射为 16 维词袋向量，共享词越多相似度越高。
func wordVector(text string) []float32 {
	vec := make([]float32, 16)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, `.,?!:;"'`)
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%16]++
	}
	return vec
}

// fakeChat 测试用推理供应商。
type fakeChat struct {
	mu         sync.Mutex
	calls      int
	lastPrompt string
	generateFn func(prompt, systemPrompt string) (string, error)
}

func (f *fakeChat) Chat(_ context.Context, _ []llm.Message) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (f *fakeChat) Generate(_ context.Context, prompt, systemPrompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastPrompt = prompt
	f.mu.Unlock()
	return f.generateFn(prompt, systemPrompt)
}

func (f *fakeChat) Name() string { return "fake-chat" }

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeChat) prompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPrompt
}

// failingChat 总是返回错误，用于验证扩展失败的回退路径。
func failingChat() *fakeChat {
	return &fakeChat{generateFn: func(_, _ string) (string, error) {
		return "", fmt.Errorf("inference backend unavailable")
	}}
}

var (
	_ llm.EmbeddingProvider = (*fakeEmbedder)(nil)
	_ llm.ChatProvider      = (*fakeChat)(nil)
)

// swapExtract 在测试期间替换 PDF 提取函数。
func swapExtract(t *testing.T, fn func(data []byte) ([]extract.Segment, error)) {
	t.Helper()
	orig := extractPDF
	extractPDF = fn
	t.Cleanup(func() { extractPDF = orig })
}

// extractUploadText 把上传字节原样当作单页文本返回。
func extractUploadText(data []byte) ([]extract.Segment, error) {
	return []extract.Segment{{Page: 1, Text: string(data)}}, nil
}
