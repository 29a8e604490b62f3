package chef

import (
	"regexp"
	"strings"

	"github.com/mohammad-safakhou/chefbot/provider"
)

// EmailToolName is the catalog name of the mail-sending capability.
const EmailToolName = "send_email"

var (
	emailAddrPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	sendKeywords     = []string{"send", "email", "mail"}
)

// DispatchTools returns the subset of the tool catalog eligible for this
// turn, plus the recipient address the email tool is restricted to.
//
// The email capability is exposed only when the current user text contains a
// plausible address AND a send/email/mail keyword. Past conversation memory
// never satisfies this check: mail is an irreversible side effect and needs
// explicit intent in the message at hand. Everything else is always eligible.
func DispatchTools(userText string, catalog []provider.ToolDef) ([]provider.ToolDef, string) {
	recipient := turnRecipient(userText)

	out := make([]provider.ToolDef, 0, len(catalog))
	for _, def := range catalog {
		if def.Name == EmailToolName && recipient == "" {
			continue
		}
		out = append(out, def)
	}
	return out, recipient
}

// turnRecipient extracts the allowed recipient from the current user text, or
// "" when the turn does not carry verified mail intent.
func turnRecipient(userText string) string {
	addr := emailAddrPattern.FindString(userText)
	if addr == "" {
		return ""
	}
	lower := strings.ToLower(userText)
	for _, kw := range sendKeywords {
		if strings.Contains(lower, kw) {
			return addr
		}
	}
	return ""
}
