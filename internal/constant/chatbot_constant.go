package constant

const (
	ChatSenderUser = "user"
	ChatSenderBot  = "bot"

	// ChatErrorText replaces the bot reply when a chat turn fails.
	ChatErrorText = "Error querying"

	// ProvenanceSeparator joins the "space - filename - " prefix the server
	// stores in front of history text.
	ProvenanceSeparator = " - "
)

// Backend model identifiers accepted by the chat endpoint.
const (
	ModelLlama3  = "llama3"
	ModelMistral = "mistral"
	ModelGemma2  = "gemma2"
	ModelPhi3    = "phi3"
)

var SupportedModels = []string{ModelLlama3, ModelMistral, ModelGemma2, ModelPhi3}

func IsSupportedModel(model string) bool {
	for _, m := range SupportedModels {
		if m == model {
			return true
		}
	}
	return false
}
