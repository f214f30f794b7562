package models

const (
	ContextSeparator = "\n---\n"
	SnippetLength    = 300
)

var (
	SystemPromptTemplate = `You are the assistant of Emprenix, a company that helps startups grow.
Use the following pieces of context from the Emprenix document to answer the user's question.
Answer in the language the question was asked in.
If the context does not contain the answer, say that you don't know instead of making one up.

<context>
%s
</context>`

	CondensePromptTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
%s
Follow Up Input: %s
Standalone question:`
)
