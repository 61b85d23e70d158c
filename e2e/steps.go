package e2e

import (
	"github.com/cucumber/godog"

	"truckgate/e2e/steps/checkpoint"
	"truckgate/e2e/steps/common"
)

// RegisterSteps registers all step definitions from modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	checkpoint.RegisterSteps(ctx, tc)
}
