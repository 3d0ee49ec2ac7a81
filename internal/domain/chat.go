package domain

import "time"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultImagePrompt is sent in place of an empty caption when the user only
// attaches an image.
const DefaultImagePrompt = "Please analyze this medical image. Identify any diseases or health conditions visible in the image and provide detailed information about the condition, its symptoms, possible causes, and comprehensive treatment options including medical treatments, home remedies, and cure recommendations."

// Message is a single transcript entry. ImageURL is set only on user
// messages that carried an attachment.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ChatMessage is the provider-agnostic wire shape sent to the chat gateway
// and the upstream model. Content is either a string or a []ContentPart.
type ChatMessage struct {
	Role    Role `json:"role"`
	Content any  `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

// ToChatMessage encodes a transcript entry for the wire. A user message with
// an image becomes a text part followed by an image reference part.
func ToChatMessage(m Message) ChatMessage {
	if m.Role != RoleUser || m.ImageURL == "" {
		return ChatMessage{Role: m.Role, Content: m.Content}
	}
	text := m.Content
	if text == "" {
		text = DefaultImagePrompt
	}
	return ChatMessage{
		Role: m.Role,
		Content: []ContentPart{
			{Type: PartTypeText, Text: text},
			{Type: PartTypeImageURL, ImageURL: &ImageURL{URL: m.ImageURL}},
		},
	}
}

func ToChatMessages(msgs []Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ToChatMessage(m))
	}
	return out
}

// ChatRequest is the body posted to the chat gateway.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	Language Language      `json:"language,omitempty"`
}
