package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/backend/internal/store"
)

func TestEstimateTokens(t *testing.T) {
	assert.Zero(t, EstimateTokens(""))
	assert.GreaterOrEqual(t, EstimateTokens("a"), 1)

	short := EstimateTokens("hello world")
	long := EstimateTokens(strings.Repeat("hello world ", 50))
	assert.Greater(t, long, short)
}

func TestCountMessageTokensIncludesOverhead(t *testing.T) {
	msgs := []store.Message{
		{Role: store.RoleUser, Content: "hello"},
		{Role: store.RoleAssistant, Content: "hi"},
	}
	perContent := EstimateTokens("hello") + EstimateTokens("hi")
	assert.Equal(t, perContent+3*tokensPerMessage, CountMessageTokens(msgs))
}

func TestTruncateKeepsSystemAndNewest(t *testing.T) {
	messages := []store.Message{
		{Role: store.RoleSystem, Content: "instructions"},
		{Role: store.RoleUser, Content: "oldest question that should be dropped first"},
		{Role: store.RoleAssistant, Content: "an old answer"},
		{Role: store.RoleUser, Content: "newest question"},
	}

	budget := CountMessageTokens([]store.Message{messages[0], messages[3]})
	result := TruncateMessagesToFit(messages, budget)

	require.Len(t, result, 2)
	assert.Equal(t, store.RoleSystem, result[0].Role)
	assert.Equal(t, "newest question", result[1].Content)
}

func TestTruncateKeepsEverythingWithinBudget(t *testing.T) {
	messages := []store.Message{
		{Role: store.RoleSystem, Content: "instructions"},
		{Role: store.RoleUser, Content: "question"},
		{Role: store.RoleAssistant, Content: "answer"},
	}
	result := TruncateMessagesToFit(messages, 100000)
	assert.Equal(t, messages, result)
}

func TestTruncatePreservesOrder(t *testing.T) {
	messages := []store.Message{
		{Role: store.RoleUser, Content: "one"},
		{Role: store.RoleAssistant, Content: "two"},
		{Role: store.RoleUser, Content: "three"},
	}
	result := TruncateMessagesToFit(messages, 100000)
	require.Len(t, result, 3)
	assert.Equal(t, "one", result[0].Content)
	assert.Equal(t, "two", result[1].Content)
	assert.Equal(t, "three", result[2].Content)
}
