package agent

import "strings"

// Profile captures the static agent configuration passed unchanged on every turn.
type Profile struct {
	Name          string   `toml:"name" json:"name"`
	Title         string   `toml:"title" json:"title"`
	Instructions  string   `toml:"instructions" json:"-"`
	Greeting      string   `toml:"greeting" json:"greeting"`
	Cleared       string   `toml:"cleared" json:"cleared"`
	Placeholder   string   `toml:"placeholder" json:"placeholder"`
	ResetKeywords []string `toml:"reset_keywords" json:"resetKeywords"`
}

// IsResetCommand reports whether input asks to forget the conversation.
// The whole input must equal a keyword, ignoring case only; " reset " is an
// ordinary message.
func (p Profile) IsResetCommand(input string) bool {
	normalized := strings.ToLower(input)
	if normalized == "" {
		return false
	}
	for _, keyword := range p.ResetKeywords {
		if normalized == strings.ToLower(strings.TrimSpace(keyword)) {
			return true
		}
	}
	return false
}

// withDefaults fills blank fields from the built-in profile.
func (p Profile) withDefaults() Profile {
	def := Default()
	if strings.TrimSpace(p.Name) == "" {
		p.Name = def.Name
	}
	if strings.TrimSpace(p.Title) == "" {
		p.Title = def.Title
	}
	if strings.TrimSpace(p.Instructions) == "" {
		p.Instructions = def.Instructions
	}
	if strings.TrimSpace(p.Greeting) == "" {
		p.Greeting = def.Greeting
	}
	if strings.TrimSpace(p.Cleared) == "" {
		p.Cleared = def.Cleared
	}
	if strings.TrimSpace(p.Placeholder) == "" {
		p.Placeholder = def.Placeholder
	}
	if len(p.ResetKeywords) == 0 {
		p.ResetKeywords = def.ResetKeywords
	}
	return p
}

// Default provides the built-in general purpose chat agent.
func Default() Profile {
	return Profile{
		Name:  "Chat Agent",
		Title: "Chat with Zeus Agent",
		Instructions: strings.TrimSpace(`
You are a highly capable chat assistant designed to assist users with a wide variety of tasks and questions.
Your goal is to provide accurate, detailed, and helpful responses to any query the user might have.
You can assist with answering factual questions, explaining concepts, solving problems, writing and debugging code, generating creative content, and more.
You will be provided with the conversation history and the user's current message.
Use the history to maintain context and provide relevant responses.
If you need to ask for clarification, do so politely.
If the user says 'forget' or 'reset', acknowledge that you will clear the conversation history and start fresh, but do not include any previous messages in your response after clearing.
Always strive to be as helpful as possible, maintaining a friendly and engaging tone.`),
		Greeting:      "Hello! I'm your chat assistant. Ask me anything, and I'll do my best to help! Type 'forget' or 'reset' to clear our conversation history.",
		Cleared:       "Conversation history cleared. How can I assist you now?",
		Placeholder:   "Ask me anything!",
		ResetKeywords: []string{"forget", "reset"},
	}
}
