package ai

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/transforms"
)

func TestMockProviderScripted(t *testing.T) {
	p := NewMockProvider()
	p.Script("describe: go", "a compiled language")

	got, err := p.Generate(context.Background(), "describe: go")
	require.NoError(t, err)
	assert.Equal(t, "a compiled language", got)

	got, err = p.Generate(context.Background(), "describe: rust")
	require.NoError(t, err)
	assert.Equal(t, "mock response for: describe: rust", got)

	assert.Equal(t, []string{"describe: go", "describe: rust"}, p.Calls())
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(context.Background(), "cohere", Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestGenerateFnEmitsKV(t *testing.T) {
	provider := NewMockProvider()
	provider.Script("describe: otter", "a riverine mammal")
	fn := NewGenerateFn(provider, "describe: %s")

	require.NoError(t, fn.StartBundle(context.Background()))

	var got []interface{}
	emit := func(v interface{}) { got = append(got, v) }
	require.NoError(t, fn.ProcessElement(context.Background(), "otter", emit))
	require.NoError(t, fn.FinishBundle(context.Background(), emit))

	require.Len(t, got, 1)
	kv, ok := got[0].(coders.KV)
	require.True(t, ok)
	assert.Equal(t, "otter", kv.Key)
	assert.Equal(t, "a dataflow model", kv.Value)
}

func TestGenerateFnRejectsNonString(t *testing.T) {
	fn := NewGenerateFn(NewMockProvider(), "%s")
	require.NoError(t, fn.StartBundle(context.Background()))

	err := fn.ProcessElement(context.Background(), 42, func(interface{}) {})
	require.Error(t, err)
}

func TestGenerateFnConfigure(t *testing.T) {
	dofn, err := transforms.NewDoFn(GenerateFnName)
	require.NoError(t, err)

	configurable, ok := dofn.(transforms.Configurable)
	require.True(t, ok)

	config, err := json.Marshal(GenerateConfig{Provider: "mock", PromptTemplate: "summarize: %s"})
	require.NoError(t, err)
	require.NoError(t, configurable.Configure(config))

	require.NoError(t, dofn.StartBundle(context.Background()))
	var got []interface{}
	require.NoError(t, dofn.ProcessElement(context.Background(), "joist", func(v interface{}) { got = append(got, v) }))
	require.Len(t, got, 1)
	assert.Equal(t, "joist", got[0].(coders.KV).Key)
}

func TestGenerateFnConfigureMissingTemplate(t *testing.T) {
	fn := &GenerateFn{}
	err := fn.Configure(json.RawMessage(`{"provider":"mock"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt_template")
}
