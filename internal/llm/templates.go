package llm

import (
	"fmt"
	"strings"
	"text/template"
)

// Template IDs understood by Completer.Complete.
const (
	TemplateCondense = "condense"
	TemplateAnswer   = "answer"
)

const condenseTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question. Keep any file names, identifiers or code it mentions. If there is no conversation yet, return the question unchanged.

Chat History:
{{.chat_history}}
Follow Up Input: {{.question}}
Standalone question:`

const answerTemplate = `You are an assistant answering questions about a source code repository. Use only the code fragments below to answer. Each fragment ends with a SOURCE line naming the file it came from; cite those files when they support your answer. If the fragments do not contain the answer, say that you don't know instead of guessing.

{{.context}}
Question: {{.question}}
Answer in Markdown:`

// missingkey=error turns a forgotten variable into an invalid request
// instead of "<no value>" in the prompt.
var prompts = map[string]*template.Template{
	TemplateCondense: template.Must(template.New(TemplateCondense).Option("missingkey=error").Parse(condenseTemplate)),
	TemplateAnswer:   template.Must(template.New(TemplateAnswer).Option("missingkey=error").Parse(answerTemplate)),
}

// Render executes the named template with vars.
func Render(templateID string, vars map[string]string) (string, error) {
	t, ok := prompts[templateID]
	if !ok {
		return "", fmt.Errorf("%w: unknown prompt template %q", ErrInvalidRequest, templateID)
	}
	var b strings.Builder
	if err := t.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("%w: render %s: %v", ErrInvalidRequest, templateID, err)
	}
	return b.String(), nil
}
