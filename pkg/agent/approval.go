package agent

import "strings"

var approvalTokens = map[string]bool{
	"approve": true, "approved": true, "yes": true, "send": true,
	"proceed": true, "sure": true, "ok": true, "okay": true,
	"confirm": true, "right": true, "go": true, "do": true, "please": true,
}

var rejectionPhrases = []string{"reject", "rejected", "no", "cancel", "don't send"}

// IsApproval reports whether the utterance reads as confirmation of a
// pending draft: any approval token among its words, or the literal phrases
// "go ahead" / "send it".
func IsApproval(query string) bool {
	cleaned := cleanQuery(query)
	for _, token := range strings.Fields(cleaned) {
		if approvalTokens[token] {
			return true
		}
	}
	return strings.Contains(cleaned, "go ahead") || strings.Contains(cleaned, "send it")
}

// IsRejection reports whether the utterance is an explicit cancellation.
func IsRejection(query string) bool {
	lowered := strings.ToLower(strings.TrimSpace(query))
	for _, phrase := range rejectionPhrases {
		if lowered == phrase {
			return true
		}
	}
	return false
}

// impliesRejection catches softer negations ("please don't"). These only
// count when a draft actually exists; otherwise a question like "why don't
// shipments arrive on time" would be swallowed here.
func impliesRejection(query string) bool {
	return strings.Contains(strings.ToLower(query), "don't")
}

// cleanQuery lowercases and strips everything except letters, digits and
// spaces, so punctuation never blocks token matching ("yes, send it!").
func cleanQuery(query string) string {
	lowered := strings.ToLower(strings.TrimSpace(query))
	var sb strings.Builder
	for _, r := range lowered {
		if r == ' ' || 'a' <= r && r <= 'z' || '0' <= r && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

const (
	draftSentReply      = "✅ Email has been sent successfully!"
	draftCancelledReply = "❌ Email draft has been cancelled."
	noDraftReply        = "❌ No email draft found to approve."
)

// Intercept handles approval/rejection of a pending draft before the agent
// loop runs. When it returns handled=true the reply is final and the
// generative backend is never consulted. An approval with no pending draft
// is not handled here; the utterance may still be a tool-call confirmation
// the model should see.
func (r *Runner) Intercept(sessionID, query string) (string, bool) {
	// Rejection is checked before approval: "don't send" contains the
	// approval token "send" and must not trigger a send.
	switch {
	case IsRejection(query):
		if _, ok := r.drafts.Take(sessionID); ok {
			r.logger.Printf("[INFO] Draft rejected for session %s", sessionID)
			return draftCancelledReply, true
		}
		return noDraftReply, true

	case impliesRejection(query):
		if _, ok := r.drafts.Take(sessionID); ok {
			r.logger.Printf("[INFO] Draft rejected for session %s", sessionID)
			return draftCancelledReply, true
		}

	case IsApproval(query):
		draft, ok := r.drafts.Take(sessionID)
		if !ok {
			return "", false
		}
		r.logger.Printf("[INFO] Draft approved for session %s, sending", sessionID)
		result := r.toolbox.Mail.Send(draft.Recipients, draft.Subject, draft.Body, draft.Attachments)
		if strings.Contains(result, "[OK]") || strings.Contains(strings.ToLower(result), "successfully") {
			return draftSentReply, true
		}
		return "❌ Error sending email: " + result, true
	}

	return "", false
}
