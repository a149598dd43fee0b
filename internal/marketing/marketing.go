// Package marketing generates campaign copy with the language model.
package marketing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/chatbot"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/llm"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
)

// ErrEmptyOutput is returned when the model produced no usable copy
var ErrEmptyOutput = errors.New("marketing: model returned no content")

// Request describes the copy to write
type Request struct {
	Type     string `json:"type"`
	Topic    string `json:"topic"`
	Tone     string `json:"tone"`
	Audience string `json:"audience"`
	Save     bool   `json:"save"`
}

// Copy is generated campaign text
type Copy struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

var typeGuidance = map[string]string{
	"email":  "an email newsletter. Keep it under 250 words with a clear call to action",
	"social": "a social media post. Keep it under 80 words and add up to three hashtags",
	"blog":   "a short blog article of 300 to 500 words with a headline",
	"ad":     "a search or display ad. The subject is the headline and the content is at most 2 sentences",
}

// BuildPrompt grounds the request in the business profile and its offerings
func BuildPrompt(b model.Business, offerings []model.Offering, req Request) []llm.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You write marketing copy for %s", b.Name)
	if b.Category != "" {
		fmt.Fprintf(&sb, ", a %s business", b.Category)
	}
	if b.Location != "" {
		fmt.Fprintf(&sb, " in %s", b.Location)
	}
	sb.WriteString(".\n")
	if b.Description != "" {
		fmt.Fprintf(&sb, "About the business: %s\n", b.Description)
	}
	if len(offerings) > 0 {
		sb.WriteString("\nOfferings:\n")
		for _, o := range offerings {
			fmt.Fprintf(&sb, "- %s (%s)", o.Name, chatbot.FormatPrice(o.PriceCents, o.Currency))
			if o.Description != "" {
				fmt.Fprintf(&sb, ": %s", o.Description)
			}
			sb.WriteString("\n")
		}
	}
	if b.Website != "" {
		fmt.Fprintf(&sb, "\nWebsite: %s\n", b.Website)
	}
	sb.WriteString("\nOnly mention offerings and facts listed above. Never invent prices or discounts.\n")
	sb.WriteString("Answer in exactly this format:\nSUBJECT: <one line>\nCONTENT:\n<the copy>\n")

	guidance, ok := typeGuidance[req.Type]
	if !ok {
		guidance = typeGuidance["email"]
	}
	var user strings.Builder
	fmt.Fprintf(&user, "Write %s.\n", guidance)
	if req.Topic != "" {
		fmt.Fprintf(&user, "Topic: %s\n", req.Topic)
	}
	tone := req.Tone
	if tone == "" {
		tone = b.ChatbotTone
	}
	if tone != "" {
		fmt.Fprintf(&user, "Tone: %s\n", tone)
	}
	if req.Audience != "" {
		fmt.Fprintf(&user, "Audience: %s\n", req.Audience)
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: sb.String()},
		{Role: llm.RoleUser, Content: user.String()},
	}
}

// ParseCopy splits model output on the SUBJECT: and CONTENT: markers.
// Output without markers is taken as content.
func ParseCopy(output string) Copy {
	output = strings.TrimSpace(output)
	var c Copy
	lines := strings.Split(output, "\n")
	contentStart := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		switch {
		case c.Subject == "" && contentStart < 0 && strings.HasPrefix(upper, "SUBJECT:"):
			c.Subject = strings.Trim(strings.TrimSpace(trimmed[len("SUBJECT:"):]), `"*`)
		case contentStart < 0 && strings.HasPrefix(upper, "CONTENT:"):
			rest := strings.TrimSpace(trimmed[len("CONTENT:"):])
			body := strings.Join(lines[i+1:], "\n")
			if rest != "" {
				body = rest + "\n" + body
			}
			c.Content = strings.TrimSpace(body)
			contentStart = i
		}
	}
	if contentStart < 0 {
		// no CONTENT marker: everything but the subject line is the body
		var body []string
		for _, line := range lines {
			if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(line)), "SUBJECT:") {
				continue
			}
			body = append(body, line)
		}
		c.Content = strings.TrimSpace(strings.Join(body, "\n"))
	}
	return c
}

// Generate asks the model for copy
func Generate(ctx context.Context, completer llm.Completer, b model.Business, offerings []model.Offering, req Request) (*Copy, error) {
	done := prometheus.TrackLLMCall("marketing")
	output, err := completer.Complete(ctx, BuildPrompt(b, offerings, req), llm.Options{MaxTokens: 1200})
	done(err)
	if err != nil {
		return nil, err
	}
	c := ParseCopy(output)
	if c.Content == "" {
		return nil, ErrEmptyOutput
	}
	return &c, nil
}
