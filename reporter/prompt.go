package reporter

import "strings"

// NoInputMessage is recorded as the report when neither a transcription nor
// an image description is available. No model call is made in that case.
const NoInputMessage = "No input provided to generate a report."

const notAvailable = "Not available."

func composePrompt(transcript, description string) string {
	parts := []string{
		"You are an expert news reporter. Your task is to write a clear, concise, and factual news report based on the source information provided below.",
		"Synthesize all available information into a single, coherent story. Provide only the news report itself, without any preamble or commentary.",
	}
	if transcript != "" {
		parts = append(parts, "--- Transcribed Audio ---\n\""+transcript+"\"")
	}
	if description != "" {
		parts = append(parts, "--- Image Description ---\n\""+description+"\"")
	}
	return strings.Join(parts, "\n\n")
}

func revisePrompt(transcript, description, draft, feedback string) string {
	if transcript == "" {
		transcript = notAvailable
	}
	if description == "" {
		description = notAvailable
	}

	var sb strings.Builder
	sb.WriteString("You are a professional news editor. Revise the news report to address the feedback while staying faithful to the original source information.\n\n")
	sb.WriteString("**Original Source Information:**\n")
	sb.WriteString("--- Transcribed Audio ---\n\"" + transcript + "\"\n")
	sb.WriteString("--- Image Description ---\n\"" + description + "\"\n\n")
	sb.WriteString("**Current Draft of News Report:**\n\"" + draft + "\"\n\n")
	sb.WriteString("**Latest Human Feedback:**\n\"" + feedback + "\"\n\n")
	sb.WriteString("Provide only the full, revised news report.")
	return sb.String()
}
