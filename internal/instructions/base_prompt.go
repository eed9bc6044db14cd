package instructions

import "fmt"

// defaultChatInstructions is the system prompt used when auto mode is off.
const defaultChatInstructions = `You are a capable assistant running on the user's own machine.
Answer concisely and politely. Reply in %s.`

// DefaultChatInstructions returns the system prompt for plain chat turns.
func DefaultChatInstructions(language string) string {
	return fmt.Sprintf(defaultChatInstructions, LanguageName(language))
}

// LanguageName maps a configured language code to the name used in prompts.
// Unknown codes pass through unchanged.
func LanguageName(code string) string {
	switch code {
	case "", "en":
		return "English"
	case "ja":
		return "Japanese"
	default:
		return code
	}
}
