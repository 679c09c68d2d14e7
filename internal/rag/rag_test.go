package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetriever struct {
	docs map[string][]string
	err  error
}

func (f *fakeRetriever) Query(_ context.Context, collection, _ string, n int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	docs := f.docs[collection]
	if len(docs) > n {
		docs = docs[:n]
	}
	return docs, nil
}

type fakeGenerator struct {
	answer string
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.answer, f.err
}

var twoSources = []Source{
	{Collection: "trading_rules", Label: "Trading Rules:"},
	{Collection: "analysis_data", Label: "Analysis Data:"},
}

func TestAssembleLabeledSections(t *testing.T) {
	r := &fakeRetriever{docs: map[string][]string{
		"trading_rules": {"never average down", "cut losses early"},
		"analysis_data": {"volume spiked on friday"},
	}}
	a := NewAssembler(r, twoSources, 2, 3000)

	out, err := a.Assemble(context.Background(), "what about volume?")
	require.NoError(t, err)
	assert.Contains(t, out, "Trading Rules:\nnever average down\n\ncut losses early")
	assert.Contains(t, out, "Analysis Data:\nvolume spiked on friday")
}

func TestAssembleTruncation(t *testing.T) {
	long := strings.Repeat("x", 500)
	r := &fakeRetriever{docs: map[string][]string{"trading_rules": {long, long}}}
	a := NewAssembler(r, twoSources[:1], 2, 200)

	out, err := a.Assemble(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, out, 200+len(TruncationMarker))
	assert.True(t, strings.HasSuffix(out, TruncationMarker))
}

func TestAssembleTruncationKeepsValidUTF8(t *testing.T) {
	long := strings.Repeat("é", 300) // 2 bytes per rune
	r := &fakeRetriever{docs: map[string][]string{"trading_rules": {long}}}
	a := NewAssembler(r, twoSources[:1], 2, 200)

	out, err := a.Assemble(context.Background(), "q")
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, TruncationMarker))
	assert.LessOrEqual(t, len(out), 200+len(TruncationMarker))
}

func TestAssembleShortContextUnmodified(t *testing.T) {
	r := &fakeRetriever{docs: map[string][]string{"trading_rules": {"short doc"}}}
	a := NewAssembler(r, twoSources[:1], 2, 200)

	out, err := a.Assemble(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "Trading Rules:\nshort doc", out)
}

func TestAssembleNoMatchesReturnsSentinel(t *testing.T) {
	a := NewAssembler(&fakeRetriever{docs: map[string][]string{}}, twoSources, 2, 3000)

	out, err := a.Assemble(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, NoContextMessage, out)
}

func TestAnswerShortCircuitsWithoutContext(t *testing.T) {
	gen := &fakeGenerator{answer: "should not be used"}
	a := NewAssembler(&fakeRetriever{docs: map[string][]string{}}, twoSources, 2, 3000)
	o := NewOrchestrator(a, gen)

	answer := o.Answer(context.Background(), "anything")
	assert.Equal(t, NoContextMessage, answer)
	assert.Zero(t, gen.calls)
}

func TestAnswerUsesGenerator(t *testing.T) {
	gen := &fakeGenerator{answer: "buy low, sell high"}
	r := &fakeRetriever{docs: map[string][]string{"trading_rules": {"rule one"}}}
	o := NewOrchestrator(NewAssembler(r, twoSources, 2, 3000), gen)

	answer := o.Answer(context.Background(), "how to trade?")
	assert.Equal(t, "buy low, sell high", answer)
	assert.Equal(t, 1, gen.calls)
}

func TestAnswerConvertsGeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("rate limited")}
	r := &fakeRetriever{docs: map[string][]string{"trading_rules": {"rule one"}}}
	o := NewOrchestrator(NewAssembler(r, twoSources, 2, 3000), gen)

	answer := o.Answer(context.Background(), "q")
	assert.Contains(t, answer, "error while processing your query")
	assert.Contains(t, answer, "rate limited")
}

func TestAnswerConvertsRetrieverError(t *testing.T) {
	gen := &fakeGenerator{}
	o := NewOrchestrator(NewAssembler(&fakeRetriever{err: errors.New("store down")}, twoSources, 2, 3000), gen)

	answer := o.Answer(context.Background(), "q")
	assert.Contains(t, answer, "Error retrieving context")
	assert.Zero(t, gen.calls)
}
