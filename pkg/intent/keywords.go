package intent

// Keyword inventories for the deterministic classification stages. These are
// matched as substrings of the lower-cased query.

var analyticsKeywords = []string{
	"how many", "count", "total", "sum", "average", "avg", "percentage", "%",
	"shipments", "shipment", "disputes", "dispute", "carriers", "carrier",
	"this month", "last month", "this year", "last year", "year to date", "ytd",
	"top", "bottom", "ranking", "compare", "comparison", "trend", "trends",
	"data", "statistics", "stats", "metrics", "kpi", "kpis",
	"delivery time", "on time", "late", "delayed", "overdue",
	"invoice", "invoices", "cost", "costs", "spend", "spending", "volume",
	"users", "user count", "active users", "how much", "what is the",
	"analysis", "analyze", "report", "summary", "breakdown",
	"which carrier", "which carriers", "performance", "weight", "packages",
}

var visualizationKeywords = []string{
	"chart", "graph", "plot", "visualization", "visualize", "visualise",
	"bar chart", "line chart", "pie chart", "pie graph", "heatmap", "heat map",
	"scatter", "scatter plot", "area chart", "histogram", "donut", "treemap",
	"show me a graph", "show me a chart", "create a chart", "draw a", "plot a",
	"visual representation", "graphical", "diagram",
}

// Explicit send/email phrasing always wins over other signals.
var emailPhrases = []string{
	"send me", "email this", "email me", "mail me",
}

var helpPatterns = []string{
	"how to", "how do i", "steps to", "steps for", "guide", "tutorial",
	"explain", "what is", "where is", "help with",
}

// Fallback navigation requires BOTH a target phrase and an action verb; a
// target alone ("rate calculator pricing rules") is a help question.
var navTargets = []string{
	"rate calculator", "rate dashboard", "rate maintenance", "audit dashboard",
	"shipment tracking", "dispute management", "reports", "admin", "settings",
	"check rates", "track package", "file a claim",
}

var navVerbs = []string{
	"go", "open", "show", "take", "navigate", "launch",
}
