package conversation

import (
	"context"
	"fmt"
	"strings"

	_ "embed"

	"stagetalk/app/client/provider"
	"stagetalk/app/service/memory"
)

//go:embed summary_prompt_template.txt
var summaryPromptTemplate string

// summaryInputSize is how many trailing messages feed the summary call.
const summaryInputSize = 10

// summarize compresses the tail of the conversation into one paragraph
// using the given client. The summary call itself carries no history.
func summarize(ctx context.Context, client provider.Client, d provider.Descriptor, tail []memory.Message) (string, error) {
	var conversation strings.Builder
	for _, msg := range tail {
		conversation.WriteString(fmt.Sprintf("%s: %s\n", msg.Role, msg.Content))
	}

	prompt := strings.ReplaceAll(summaryPromptTemplate, "{conversation}", conversation.String())

	text, err := client.Complete(ctx, nil, prompt, d)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSummarization, err)
	}

	return text, nil
}
