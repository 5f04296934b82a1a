package notify

import (
	"fmt"
	"sort"
	"strings"
)

// ListingCreated builds the message for a confirmed create.
func ListingCreated(name, price, symbol, seller, txHash string) Message {
	return Message{
		Event: EventListingCreated,
		Title: "New listing",
		Body:  fmt.Sprintf("%s listed for %s %s", name, price, symbol),
		Fields: map[string]string{
			"seller": seller,
			"tx":     txHash,
		},
	}
}

// ListingSold builds the message for a confirmed buy.
func ListingSold(itemID, price, symbol, buyer, txHash string) Message {
	return Message{
		Event: EventListingSold,
		Title: "Listing sold",
		Body:  fmt.Sprintf("Item %s sold for %s %s", itemID, price, symbol),
		Fields: map[string]string{
			"buyer": buyer,
			"tx":    txHash,
		},
	}
}

// Failure builds the message for a failed operation.
func Failure(op, kind, detail string) Message {
	return Message{
		Event: EventError,
		Title: op + " failed",
		Body:  detail,
		Fields: map[string]string{
			"kind": kind,
		},
	}
}

// plainText renders title, body and sorted non-empty fields as lines.
func plainText(msg Message, bold func(string) string) string {
	var b strings.Builder
	b.WriteString(bold(msg.Title))
	if msg.Body != "" {
		b.WriteString("\n")
		b.WriteString(msg.Body)
	}
	for _, k := range sortedKeys(msg.Fields) {
		fmt.Fprintf(&b, "\n%s: %s", k, msg.Fields[k])
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
