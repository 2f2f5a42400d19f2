package navigation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Route is one navigable screen in the TCube application, loaded from the
// static route table.
type Route struct {
	Id          string   `json:"id"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

type routeConfig struct {
	Routes []Route `json:"routes"`
}

// Result is the outcome of resolving a destination phrase. When Matched is
// false, Available carries the route names so the assistant can list them.
type Result struct {
	Matched     bool
	URL         string
	Name        string
	Description string
	Message     string
	Available   []string
}

// Resolver matches free-text destination phrases against the route table.
type Resolver struct {
	routes []Route
}

func NewResolver(routes []Route) *Resolver {
	return &Resolver{routes: routes}
}

// Load reads the route table from a JSON config file.
func Load(path string) (*Resolver, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read navigation config: %w", err)
	}
	var config routeConfig
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("parse navigation config: %w", err)
	}
	return NewResolver(config.Routes), nil
}

// Resolve finds the first route whose keywords, name or id match the
// destination phrase. Matching is case-insensitive and bidirectional: either
// string may contain the other, so "rate calc" hits "rate calculator" and
// "open the rate calculator screen" hits the "rate calculator" keyword.
func (r *Resolver) Resolve(destination string) Result {
	dest := strings.ToLower(strings.TrimSpace(destination))

	for _, route := range r.routes {
		if dest == "" {
			break
		}
		if r.matches(route, dest) {
			return Result{
				Matched:     true,
				URL:         route.URL,
				Name:        route.Name,
				Description: route.Description,
				Message:     fmt.Sprintf("Opening %s...", route.Name),
			}
		}
	}

	available := make([]string, 0, len(r.routes))
	for _, route := range r.routes {
		available = append(available, route.Name)
	}
	return Result{
		Matched: false,
		Message: fmt.Sprintf(
			"I couldn't find a page matching '%s'. Available screens: %s",
			destination, strings.Join(available, ", "),
		),
		Available: available,
	}
}

func (r *Resolver) matches(route Route, dest string) bool {
	for _, kw := range route.Keywords {
		kw = strings.ToLower(kw)
		if strings.Contains(dest, kw) || strings.Contains(kw, dest) {
			return true
		}
	}
	name := strings.ToLower(route.Name)
	if name != "" && (strings.Contains(dest, name) || strings.Contains(name, dest)) {
		return true
	}
	id := strings.ToLower(route.Id)
	if id != "" && (strings.Contains(dest, id) || strings.Contains(id, dest)) {
		return true
	}
	return false
}
