// Package e2e runs the Gherkin acceptance features against the survey
// service wired over the in-memory store.
package e2e

import (
	"github.com/cucumber/godog"

	"welfare/e2e/steps/survey"
)

// RegisterSteps registers all step definitions from modular packages.
func RegisterSteps(ctx *godog.ScenarioContext) {
	survey.RegisterSteps(ctx)
}
