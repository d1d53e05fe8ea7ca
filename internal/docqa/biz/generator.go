package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/anaya/internal/docqa/store"
	"github.com/kart-io/anaya/pkg/llm"
)

// DefaultSystemPrompt 默认答案生成提示词模板。
// 要求模型仅依据提供的上下文作答，不知道时明确说明而非编造，
// 并引用所依据上下文的简短原文片段。
const DefaultSystemPrompt = `You are a document question-answering assistant. Answer the question using ONLY the context provided below.

Rules:
- If the context does not contain the information needed, reply exactly: "I don't know based on the provided documents."
- Do not use any knowledge outside the context.
- Include short verbatim snippets from the context that support your answer.

Context:
{{context}}

Question: {{question}}

Answer:`

// NoDocumentsAnswer 无已索引文档时返回的固定答案。
const NoDocumentsAnswer = "No documents have been uploaded yet. Please upload a document first."

// NoContextAnswer 检索不到相关内容时返回的固定答案。
const NoContextAnswer = "I couldn't find any relevant information in the uploaded documents."

// GeneratorConfig 生成器配置。
type GeneratorConfig struct {
	// SystemPrompt 提示词模板，包含 {{context}} 与 {{question}} 占位符。
	SystemPrompt string
}

// Generator 负责基于检索上下文的答案生成。
type Generator struct {
	chatProvider llm.ChatProvider
	config       *GeneratorConfig
}

// NewGenerator 创建生成器实例。
func NewGenerator(chatProvider llm.ChatProvider, config *GeneratorConfig) *Generator {
	if config == nil || config.SystemPrompt == "" {
		config = &GeneratorConfig{SystemPrompt: DefaultSystemPrompt}
	}
	return &Generator{
		chatProvider: chatProvider,
		config:       config,
	}
}

// GenerateAnswer 根据检索结果生成答案。
// 上下文为空时返回固定回退答案而不调用模型；模型返回空文本时
// 返回 *SynthesisError。
func (g *Generator) GenerateAnswer(ctx context.Context, question string, results []*store.SearchResult) (string, error) {
	if len(results) == 0 {
		return NoContextAnswer, nil
	}

	if ctx.Err() != nil {
		return "", fmt.Errorf("context cancelled before generation: %w", ctx.Err())
	}

	var contextBuilder strings.Builder
	for i, result := range results {
		contextBuilder.WriteString(fmt.Sprintf("[%d] From %s (page %d):\n%s\n\n",
			i+1, result.DocumentName, result.Page, result.Content))
	}

	prompt := strings.ReplaceAll(g.config.SystemPrompt, "{{context}}", contextBuilder.String())
	prompt = strings.ReplaceAll(prompt, "{{question}}", question)

	logger.Info("Calling LLM to generate answer...")
	answer, err := g.chatProvider.Generate(ctx, prompt, "")
	if err != nil {
		logger.Errorf("LLM generation failed: %v", err)
		return "", &SynthesisError{Reason: "inference call failed", Err: err}
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", &SynthesisError{Reason: "empty model response"}
	}

	logger.Infof("LLM answer generated (length: %d)", len(answer))
	return answer, nil
}
