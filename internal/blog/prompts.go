package blog

import "fmt"

// systemPromptWeekly and systemPromptThematic are the fixed templates,
// grounded on original_source/src/blog/prompts.py's get_blog_prompt.
const systemPromptWeekly = "You are writing a weekly recap blog post synthesizing a developer's work " +
	"across several days into a coherent narrative with a clear arc. Include a Mermaid diagram only if " +
	"the week's work has a clear sequential or structural shape worth diagramming. Target roughly %d words."

const systemPromptThematic = "You are writing a thematic deep-dive blog post exploring the pattern: %q. " +
	"Draw on the provided evidence from multiple days to build an argument, not just a timeline. Include a " +
	"Mermaid diagram only if the argument has a clear sequential or structural shape worth diagramming. " +
	"Target roughly %d words."

const systemPromptReadingList = "You are writing a curated weekly reading list post introducing and " +
	"contextualizing a set of articles read this week. Target roughly %d words."

func systemPromptForWeekly(targetWordCount int) string {
	return fmt.Sprintf(systemPromptWeekly, targetWordCount)
}

func systemPromptForThematic(themeTitle string, targetWordCount int) string {
	return fmt.Sprintf(systemPromptThematic, themeTitle, targetWordCount)
}

func systemPromptForReadingList(targetWordCount int) string {
	return fmt.Sprintf(systemPromptReadingList, targetWordCount)
}

func reGenerationPrompt(overlapping []string) string {
	if len(overlapping) == 0 {
		return ""
	}
	s := "The following points overlap too heavily with previously published posts and must be " +
		"replaced with different material:\n"
	for _, o := range overlapping {
		s += "- " + o + "\n"
	}
	return s
}
