package advisor

import "fmt"

// EmptyContext is the context text used when retrieval finds nothing.
const EmptyContext = "EMPTY"

const expansionPromptTemplate = `Expand the search query by adding relevant terms.

Rules:
- Keep all original words
- Add up to 5 specific terms
- Output ONLY the expanded query, nothing else
- No explanations, no formatting, no quotes, no bullet points

Examples:
Question: what is spring
Query: what is spring framework Java dependency injection

Question: how to configure security
Query: how to configure security Spring Security authentication authorization filter chain

Question: %s
Query:`

const contextPromptTemplate = "CONTEXT: %s\nQuestion: %s\n"

const onlyContextSystemPrompt = `The question may be about a CONSEQUENCE of a fact from Context.
ALWAYS connect: Context fact → question.
No connection, even indirect = answer ONLY: "The request is not related to the uploaded context."
Connection exists = answer using ONLY the context.
Do NOT use any knowledge outside the provided context.`

const generalKnowledgeSystemPrompt = `The question may be about a CONSEQUENCE of a fact from Context.
ALWAYS connect: Context fact → question.
If context contains relevant information, use it in your answer.
If context does not contain relevant information, answer using your general knowledge.`

// ExpansionPrompt renders the query expansion instruction for question.
func ExpansionPrompt(question string) string {
	return fmt.Sprintf(expansionPromptTemplate, question)
}

// ContextPrompt renders the user message the model sees: retrieved context and the original question.
func ContextPrompt(context, question string) string {
	return fmt.Sprintf(contextPromptTemplate, context, question)
}

// SystemPrompt returns the answering instructions. With onlyContext the model must
// refuse questions the context cannot answer.
func SystemPrompt(onlyContext bool) string {
	if onlyContext {
		return onlyContextSystemPrompt
	}
	return generalKnowledgeSystemPrompt
}
