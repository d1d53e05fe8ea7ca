package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/anaya/internal/pkg/textutil"
	"github.com/kart-io/anaya/pkg/llm"
)

// expandPromptTemplate 查询扩展提示词模板。
const expandPromptTemplate = `You are a helpful assistant that generates multiple search queries based on a single input query.

Generate %d alternative phrasings of the following question. Each phrasing must ask for the same underlying information. Output one phrasing per line, with no numbering and no additional commentary.

Question: %s`

// ExpanderConfig 查询扩展器配置。
type ExpanderConfig struct {
	// Expansions 每个问题生成的变体数量。
	Expansions int
}

// Expander 将一个用户问题扩展为若干同义变体以提升检索召回率。
type Expander struct {
	chatProvider llm.ChatProvider
	config       *ExpanderConfig
}

// NewExpander 创建查询扩展器实例。
func NewExpander(chatProvider llm.ChatProvider, config *ExpanderConfig) *Expander {
	if config == nil {
		config = &ExpanderConfig{Expansions: 3}
	}
	if config.Expansions <= 0 {
		config.Expansions = 3
	}
	return &Expander{
		chatProvider: chatProvider,
		config:       config,
	}
}

// Expand 生成至多 n 个问题变体。模型返回的行数不足时直接使用已有的行，
// 不补齐也不报错；扩展彻底失败时返回空切片，调用方退回原始问题。
func (e *Expander) Expand(ctx context.Context, question string) []string {
	prompt := fmt.Sprintf(expandPromptTemplate, e.config.Expansions, question)

	raw, err := e.chatProvider.Generate(ctx, prompt, "")
	if err != nil {
		logger.Warnw("查询扩展失败，仅使用原始问题", "error", err.Error())
		return nil
	}

	variants := textutil.SplitByLines(raw)

	// 去掉与原问题相同的变体
	filtered := variants[:0]
	for _, v := range variants {
		if !strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(question)) {
			filtered = append(filtered, v)
		}
	}

	if len(filtered) > e.config.Expansions {
		filtered = filtered[:e.config.Expansions]
	}

	logger.Infow("query expanded", "question", textutil.TruncateString(question, 80), "variants", len(filtered))
	return filtered
}
