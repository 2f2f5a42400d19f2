package service

import (
	"regexp"
	"strings"

	"cubie-assistant-be/internal/dto"
	"cubie-assistant-be/pkg/retrieval"
)

const greetingReply = "Hello! I'm Cubie, your personal supply chain assistant. How can I assist you today?"

var greetings = map[string]bool{
	"hi": true, "hello": true, "hey": true,
	"good morning": true, "good afternoon": true, "good evening": true,
}

const emailClarificationReply = "I'd be happy to send you an email! Could you please specify what information you'd like me to include? " +
	"For example:\n" +
	"- 'Email me the shipment summary from last month'\n" +
	"- 'Send me the top 5 carriers data'\n" +
	"- 'Email the chart we just created'\n\n" +
	"Or if you want me to send the last response, just say 'email me this' or 'send me the above'."

const helpSystemPrompt = "You are Cubie, a helpful and upbeat customer service assistant for Tcube.\n" +
	"Your goal is to provide detailed, relevant answers using the help documentation provided below.\n\n" +
	"Instructions:\n" +
	"- UNDERSTAND what the user wants: analyze their question to identify the specific task, feature, or issue they're asking about.\n" +
	"- CURATE your response: select and present the most relevant help content that directly addresses their need.\n" +
	"- Include step-by-step instructions, screenshots references, menu paths, and specific details from the help docs when relevant.\n" +
	"- Do NOT just summarize - provide actionable, detailed guidance from the help content.\n" +
	"- Always use a polite, friendly, and conversational tone.\n" +
	"- If the user asks for humor (e.g., jokes), respond playfully.\n" +
	"- When giving instructions, always use bullet points (-) or numbered lists (1., 2., ...) with spacing.\n" +
	"- When referencing links:\n" +
	"   • Use [descriptive link text](URL) instead of raw URLs.\n" +
	"- Do not repeat greetings in each response.\n" +
	"- If you don't know the answer, say so politely.\n" +
	"- Responses must always be formatted using valid Markdown syntax.\n\n" +
	"Help Context:"

const analyticsCorePrompt = "You are Cubie, a professional Supply Chain Assistant for TCube.\n" +
	"Your goal is to help users analyze their supply chain data, visualize trends, and manage disputes.\n\n" +
	"CORE BEHAVIOR:\n" +
	"- **SWEET SPOT ANSWERS**: specific, direct, and concise. Do not lecture.\n" +
	"- **ACT PROFESSIONALLY**: You are a domain expert. Do NOT mention being an 'AI', 'bot', 'backend' or 'code'.\n" +
	"- **HIDE MACHINERY**: Never explain *how* you query data. Just do it.\n" +
	"- **DIRECT ACTION**: If asked for a chart, generate it. If asked to email, send it.\n" +
	"- **CONVERSATIONAL LOOP**: Always end with a relevant follow-up question/suggestion (e.g., 'Should I email this?', 'Want to break this down by carrier?').\n" +
	"- **EMAIL CAPABILITIES**: You CAN send emails with attachments. If a user asks to email a chart:\n" +
	"  1. ATTACH IT: Pass the chart's file path to the 'attachments' parameter.\n" +
	"  2. **ALWAYS include a markdown table summary of the data in the email body.**\n" +
	"  3. NEVER say 'I cannot save images'. You can.\n\n"

const analyticsRulesPrompt = "\n\n=== DATA FORMATTING RULES (CRITICAL) ===\n" +
	"1. **DYNAMIC PRESENTATION**:\n" +
	"   - **Tables**: Use Markdown tables for lists, comparisons, or multi-row data. (e.g., Top 5 Carriers).\n" +
	"     CRITICAL SYNTAX: You MUST include the separator row |---|---| between headers and data rows.\n" +
	"     DO NOT indent the table. Start at the beginning of the line.\n" +
	"   - **Plain Text**: Use natural language for single values or simple facts. (e.g., 'Total spend is $5,000').\n" +
	"2. **FORMATTING**:\n" +
	"   - Rename DB columns to human-readable headers in tables.\n" +
	"   - Format numbers with commas (e.g., 1,234) and currency with $ (e.g., $1,234.50).\n" +
	"   - Dates should be YYYY-MM-DD or 'Mon YYYY'.\n" +
	"\n=== CORE RULES ===\n" +
	"• If the JSON you receive is [{\"notice\":\"no_rows\"}], reply: 'No data available for that query.'\n" +
	"• Never display raw SQL in your answer.\n" +
	"• When the user asks for 'top' items default to the top 3 unless specified otherwise.\n" +
	"• DYNAMIC FLOW: Do NOT dump all information at once. Give the answer, then ask if the user wants more details.\n" +
	"\n=== EMAIL HANDLING & CONFIRMATION ===\n" +
	"• When user says 'send me email', 'email this', or similar:\n" +
	"  1. YOU MUST ASK FOR CONFIRMATION FIRST. Do NOT send immediately.\n" +
	"  2. Ask: 'I can send that to you. To be sure, what exactly would you like me to include?'\n" +
	"  3. If the user provides an email address, YOU MUST USE THAT EMAIL ADDRESS EXACTLY.\n" +
	"  4. ONLY call `draft_email_tool` after the user explicitly confirms WHAT to send.\n" +
	"• When calling `draft_email_tool`:\n" +
	"  - Use a professional, specific Subject line (e.g., 'Shipment Summary Report - Oct 2025').\n" +
	"  - Ensure `body_markdown` is well-formatted.\n" +
	"  - IF user wants a chart, you MUST pass its filepath in `attachments`.\n" +
	"\n=== VISUALIZATION ===\n" +
	"• Choose the RIGHT chart type based on data:\n" +
	"  - 'pie' or 'donut': Distribution/percentage breakdown (e.g., shipments by carrier)\n" +
	"  - 'bar': Comparing categories (e.g., top carriers by volume)\n" +
	"  - 'line': Trends over time (e.g., monthly shipment count)\n" +
	"  - 'area': Cumulative trends over time\n" +
	"  - 'scatter': Correlation between two metrics\n" +
	"  - 'heatmap': Two-dimensional comparison\n" +
	"  - 'histogram': Distribution of a single metric\n" +
	"• For pie/donut: x=category column (names), y=numeric column (values)\n" +
	"• When chart_tool returns an HTML iframe, include it directly in your response\n" +
	"\n=== NAVIGATION ===\n" +
	"• When user wants to go to a page (e.g., 'take me to rate calculator'), use navigate_tool\n" +
	"• navigate_tool returns a URL that the frontend will use to redirect\n" +
	"• Include the navigation message in your response so the user knows what's happening\n"

func analyticsSystemPrompt(dbSchema string) string {
	return analyticsCorePrompt + dbSchema + analyticsRulesPrompt
}

// applyPrefs appends the user's personalization preferences to a system
// prompt.
func applyPrefs(prompt string, prefs *dto.UserPrefs) string {
	if prefs == nil {
		return prompt
	}
	if prefs.Name != "" {
		prompt += "\n\nThe user's preferred name is: " + prefs.Name + ". Greet them by this name in your first message only."
	}
	if prefs.Length != "" {
		prompt += "\n\nRespond with " + prefs.Length + " length answers."
	}
	for _, trait := range prefs.Traits {
		switch trait {
		case "cheerful":
			prompt += "\n\nBe cheerful, use exclamation points, and maintain an optimistic tone."
		case "playful":
			prompt += "\n\nBe playful: use emojis and add a joke or light humor when appropriate."
		case "neutral":
			prompt += "\n\nMaintain a neutral, balanced tone."
		case "professional":
			prompt += "\n\nBe professional and businesslike."
		}
	}
	return prompt
}

var emailTargetPhrases = []string{
	"this", "these results", "the above", "the chart", "the data",
	"the report", "the summary", "what we discussed",
}

// shouldAskEmailContext reports whether an email request is too ambiguous to
// act on: no clear target phrase and nothing substantial in the recent
// conversation to send.
func shouldAskEmailContext(query, lastResponse string) bool {
	q := strings.ToLower(query)
	for _, phrase := range emailTargetPhrases {
		if strings.Contains(q, phrase) {
			return false
		}
	}
	if len(lastResponse) > 50 {
		return false
	}
	return lastResponse == ""
}

var (
	linkTokenPattern = regexp.MustCompile(`[^a-z0-9]+`)

	linkStopwords = map[string]bool{
		"the": true, "and": true, "for": true, "with": true, "from": true,
		"that": true, "this": true, "into": true, "how": true, "what": true,
		"where": true, "when": true, "rate": true, "cube": true, "help": true,
		"guide": true, "page": true, "see": true, "link": true,
	}
)

// relatedGuideLink picks the best help-page URL to append to a help answer.
// Only URLs from the retrieved documents qualify, they must be on the known
// pages whitelist, and the document has to actually match the query keywords.
// An empty string means no link is confident enough.
func relatedGuideLink(query string, docs []retrieval.ScoredDocument, whitelist map[string]bool) string {
	var keywords []string
	for _, token := range linkTokenPattern.Split(strings.ToLower(query), -1) {
		if len(token) >= 3 && !linkStopwords[token] {
			keywords = append(keywords, token)
		}
	}

	bestURL, bestScore := "", 0
	for _, scored := range docs {
		doc := scored.Document
		if doc.SourceURL == "" {
			continue
		}
		hay := strings.ToLower(doc.SectionTitle + " " + doc.Content)
		score := 0
		for _, kw := range keywords {
			if strings.Contains(hay, kw) {
				score++
			}
		}
		if isSpecificHelpURL(doc.SourceURL) {
			score++
		}
		if score > bestScore {
			bestScore = score
			bestURL = doc.SourceURL
		}
	}

	if bestURL == "" || bestScore < 1 || !whitelist[bestURL] {
		return ""
	}
	return bestURL
}

// isSpecificHelpURL filters out landing pages; linking the help home is noise.
func isSpecificHelpURL(url string) bool {
	trimmed := strings.TrimRight(url, "/")
	if trimmed == "" {
		return false
	}
	return !strings.HasSuffix(trimmed, "/help") && !strings.HasSuffix(trimmed, "/help/home.html")
}
