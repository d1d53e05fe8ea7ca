package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpanderParsesLines(t *testing.T) {
	chat := &fakeChat{generateFn: func(_, _ string) (string, error) {
		return "1. What color is the sky?\n2. Which color does the sky have?\n3. What hue is the sky?", nil
	}}
	expander := NewExpander(chat, &ExpanderConfig{Expansions: 3})

	variants := expander.Expand(context.Background(), "What is the color of the sky?")
	require.Len(t, variants, 3)
	assert.Equal(t, "What color is the sky?", variants[0])
	assert.Equal(t, "Which color does the sky have?", variants[1])
	assert.Equal(t, "What hue is the sky?", variants[2])
}

func TestExpanderFiltersOriginalQuestion(t *testing.T) {
	question := "What color is the sky?"
	chat := &fakeChat{generateFn: func(_, _ string) (string, error) {
		return "what color is the sky?\nWhich color does the sky have?", nil
	}}
	expander := NewExpander(chat, &ExpanderConfig{Expansions: 3})

	variants := expander.Expand(context.Background(), question)
	require.Len(t, variants, 1)
	assert.Equal(t, "Which color does the sky have?", variants[0])
}

func TestExpanderCapsVariants(t *testing.T) {
	chat := &fakeChat{generateFn: func(_, _ string) (string, error) {
		return "variant number one\nvariant number two\nvariant number three\nvariant number four\nvariant number five", nil
	}}
	expander := NewExpander(chat, &ExpanderConfig{Expansions: 2})

	variants := expander.Expand(context.Background(), "original question")
	assert.Len(t, variants, 2)
}

func TestExpanderToleratesShortOutput(t *testing.T) {
	chat := &fakeChat{generateFn: func(_, _ string) (string, error) {
		return "the only usable variant", nil
	}}
	expander := NewExpander(chat, &ExpanderConfig{Expansions: 3})

	variants := expander.Expand(context.Background(), "original question")
	assert.Len(t, variants, 1)
}

func TestExpanderKeepsShortVariants(t *testing.T) {
	chat := &fakeChat{generateFn: func(_, _ string) (string, error) {
		return "Why?\nSky color?\n天空是什么颜色？", nil
	}}
	expander := NewExpander(chat, &ExpanderConfig{Expansions: 3})

	variants := expander.Expand(context.Background(), "What color is the sky?")
	require.Len(t, variants, 3)
	assert.Equal(t, "Why?", variants[0])
	assert.Equal(t, "Sky color?", variants[1])
	assert.Equal(t, "天空是什么颜色？", variants[2])
}

func TestExpanderFailureReturnsNothing(t *testing.T) {
	expander := NewExpander(failingChat(), &ExpanderConfig{Expansions: 3})

	variants := expander.Expand(context.Background(), "original question")
	assert.Empty(t, variants)
}
