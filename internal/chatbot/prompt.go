package chatbot

import (
	"fmt"
	"strings"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
)

const defaultTone = "friendly, warm and professional"

var currencySymbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"aud": "A$",
	"cad": "C$",
	"nzd": "NZ$",
}

// FormatPrice renders an amount in minor units for humans
func FormatPrice(cents int64, currency string) string {
	if cents == 0 {
		return "Free"
	}
	currency = strings.ToLower(currency)
	amount := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	if sym, ok := currencySymbols[currency]; ok {
		return sym + amount
	}
	if currency == "" {
		return amount
	}
	return amount + " " + strings.ToUpper(currency)
}

func formatDuration(minutes int) string {
	switch {
	case minutes <= 0:
		return ""
	case minutes < 60:
		return fmt.Sprintf("%d min", minutes)
	case minutes%60 == 0:
		h := minutes / 60
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	default:
		return fmt.Sprintf("%dh %02dmin", minutes/60, minutes%60)
	}
}

// BuildSystemPrompt assembles the single system prompt for a reply
func BuildSystemPrompt(bc *BusinessContext, knowledge []model.KnowledgeBase) string {
	biz := bc.Business
	var b strings.Builder

	fmt.Fprintf(&b, "You are the virtual assistant for %s", biz.Name)
	if biz.Category != "" {
		fmt.Fprintf(&b, ", a %s business", biz.Category)
	}
	if biz.Location != "" {
		fmt.Fprintf(&b, " located in %s", biz.Location)
	}
	b.WriteString(".\n")
	if biz.Description != "" {
		b.WriteString(biz.Description)
		b.WriteString("\n")
	}

	tone := biz.ChatbotTone
	if tone == "" {
		tone = defaultTone
	}
	fmt.Fprintf(&b, "Tone: %s.\n", tone)

	var contact []string
	if biz.Phone != "" {
		contact = append(contact, "phone "+biz.Phone)
	}
	if biz.Email != "" {
		contact = append(contact, "email "+biz.Email)
	}
	if biz.Website != "" {
		contact = append(contact, "website "+biz.Website)
	}
	if len(contact) > 0 {
		fmt.Fprintf(&b, "Contact: %s.\n", strings.Join(contact, ", "))
	}

	b.WriteString("\nOfferings:\n")
	if len(bc.Offerings) == 0 {
		b.WriteString("No offerings are listed yet.\n")
	}
	for _, o := range bc.Offerings {
		currency := o.Currency
		if currency == "" {
			currency = biz.Currency
		}
		fmt.Fprintf(&b, "- %s (%s): %s per person", o.Name, o.Type, FormatPrice(o.PriceCents, currency))
		if d := formatDuration(o.DurationMinutes); d != "" {
			fmt.Fprintf(&b, ", %s", d)
		}
		if o.Capacity > 0 {
			fmt.Fprintf(&b, ", up to %d guests", o.Capacity)
		}
		if o.Location != "" {
			fmt.Fprintf(&b, ", at %s", o.Location)
		}
		if o.Description != "" {
			fmt.Fprintf(&b, ". %s", oneLine(o.Description))
		}
		b.WriteString("\n")
	}

	if len(knowledge) > 0 {
		b.WriteString("\nKnowledge base:\n")
		for _, k := range knowledge {
			fmt.Fprintf(&b, "### %s\n%s\n", k.Title, strings.TrimSpace(k.Content))
		}
	}

	b.WriteString("\nRules:\n")
	b.WriteString("- Answer only from the information above. If something is not covered, say so and suggest contacting the business.\n")
	b.WriteString("- Never invent prices, availability, or policies.\n")
	b.WriteString("- Keep answers short and helpful.\n")
	b.WriteString("- When a customer wants to book, summarise the offering and ask for their preferred date and party size.\n")

	return b.String()
}
