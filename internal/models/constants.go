package models

// Collection names, fixed at first use. "trading_docs" is the primary
// textbook, "trading_rules" and "analysis_data" feed the combined query
// path.
const (
	DocsCollection  = "trading_docs"
	RulesCollection = "trading_rules"
	DataCollection  = "analysis_data"
)

const (
	DocsLabel  = "Trading Book:"
	RulesLabel = "Trading Rules:"
	DataLabel  = "Analysis Data:"
)

var (
	SystemPrompt = "You are a helpful assistant analyzing trading data. Use the provided context to answer questions accurately and concisely."

	AnswerPromptTemplate = `Answer the question based only on the following context:
%s

Question: %s
`
)
