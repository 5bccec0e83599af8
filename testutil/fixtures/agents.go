// Package fixtures provides canned agent descriptors shared across tests.
package fixtures

import (
	"github.com/aichestra/aichestra/a2a"
	"github.com/aichestra/aichestra/orchestrator"
)

// MathAgent returns a descriptor for an arithmetic agent scoring on
// calculation keywords and operator tags.
func MathAgent() orchestrator.CapabilityDescriptor {
	return orchestrator.CapabilityDescriptor{
		ID:          "math_agent",
		DisplayName: "Math Agent",
		Endpoint:    "http://localhost:10001",
		Skills: []orchestrator.Skill{
			{Name: "arithmetic", Tags: []string{"calculate", "+", "-"}, ConfidenceWeight: 1.0},
		},
		Keywords: []string{"math", "calculate"},
		Metadata: map[string]string{"description": "Solves arithmetic problems"},
	}
}

// CurrencyAgent returns a descriptor for a currency conversion agent.
func CurrencyAgent() orchestrator.CapabilityDescriptor {
	return orchestrator.CapabilityDescriptor{
		ID:          "currency_agent",
		DisplayName: "Currency Agent",
		Endpoint:    "http://localhost:10000",
		Skills: []orchestrator.Skill{
			{Name: "exchange_rates", Tags: []string{"currency", "usd", "exchange"}, ConfidenceWeight: 1.0},
		},
		Keywords: []string{"currency", "convert"},
		Metadata: map[string]string{"description": "Converts between currencies"},
	}
}

// WeatherAgent returns a descriptor for a weather agent, useful as a
// non-matching third agent.
func WeatherAgent() orchestrator.CapabilityDescriptor {
	return orchestrator.CapabilityDescriptor{
		ID:          "weather_agent",
		DisplayName: "Weather Agent",
		Endpoint:    "http://localhost:10002",
		Skills: []orchestrator.Skill{
			{Name: "forecast", Tags: []string{"weather", "forecast", "temperature"}, ConfidenceWeight: 1.0},
		},
		Keywords: []string{"weather"},
		Metadata: map[string]string{"description": "Reports weather conditions"},
	}
}

// MathDocument returns the discovery document the math agent would publish.
func MathDocument(url string) *a2a.AgentDescriptor {
	return &a2a.AgentDescriptor{
		Name:        "Math Agent",
		Description: "Solves arithmetic problems",
		URL:         url,
		Version:     "1.0.0",
		Skills: []a2a.AgentSkill{
			{Name: "arithmetic", Description: "Basic arithmetic", Tags: []string{"calculate", "+", "-"}},
		},
	}
}
