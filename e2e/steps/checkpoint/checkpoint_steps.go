package checkpoint

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context.
type TestContext interface {
	PostForm(path string, form url.Values) error
	GET(path string) error
	Body() string
	GetResponseField(field string) (any, error)
	Save(key, value string)
	Saved(key string) (string, error)
}

// RegisterSteps registers checkpoint step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &checkpointSteps{tc: tc}

	ctx.Step(`^I issue a code for driver "([^"]*)"$`, steps.issueCode)
	ctx.Step(`^I save the issued code as "([^"]*)"$`, steps.saveIssuedCode)
	ctx.Step(`^I present the code saved as "([^"]*)"$`, steps.presentSavedCode)
	ctx.Step(`^I present the payload "([^"]*)"$`, steps.presentPayload)
	ctx.Step(`^I submit a validation without qr_data$`, steps.validateWithoutField)
	ctx.Step(`^the log stats should grow by total (\d+), valid (\d+), invalid (\d+)$`, steps.statsShouldGrow)
	ctx.Step(`^I note the current log stats$`, steps.noteStats)
	ctx.Step(`^the export should contain the code saved as "([^"]*)"$`, steps.exportContains)
}

type checkpointSteps struct {
	tc     TestContext
	before map[string]int
}

func (s *checkpointSteps) issueCode(ctx context.Context, name string) error {
	return s.tc.PostForm("/api/generate-qr", url.Values{"driver_name": {name}})
}

func (s *checkpointSteps) saveIssuedCode(ctx context.Context, key string) error {
	code, err := s.tc.GetResponseField("qr_code")
	if err != nil {
		return err
	}
	s.tc.Save(key, fmt.Sprint(code))
	return nil
}

func (s *checkpointSteps) presentSavedCode(ctx context.Context, key string) error {
	code, err := s.tc.Saved(key)
	if err != nil {
		return err
	}
	return s.presentPayload(ctx, code)
}

func (s *checkpointSteps) presentPayload(ctx context.Context, payload string) error {
	return s.tc.PostForm("/api/validate-qr", url.Values{"qr_data": {payload}})
}

func (s *checkpointSteps) validateWithoutField(ctx context.Context) error {
	return s.tc.PostForm("/api/validate-qr", url.Values{})
}

func (s *checkpointSteps) currentStats() (map[string]int, error) {
	if err := s.tc.GET("/logs"); err != nil {
		return nil, err
	}
	stats := map[string]int{}
	for _, field := range []string{"total", "valid", "invalid"} {
		v, err := s.tc.GetResponseField(field)
		if err != nil {
			return nil, err
		}
		n, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("%s is not a number: %v", field, v)
		}
		stats[field] = int(n)
	}
	return stats, nil
}

func (s *checkpointSteps) noteStats(ctx context.Context) error {
	stats, err := s.currentStats()
	if err != nil {
		return err
	}
	s.before = stats
	return nil
}

func (s *checkpointSteps) statsShouldGrow(ctx context.Context, total, valid, invalid int) error {
	if s.before == nil {
		return fmt.Errorf("log stats were not noted before the scenario")
	}
	after, err := s.currentStats()
	if err != nil {
		return err
	}
	want := map[string]int{"total": total, "valid": valid, "invalid": invalid}
	for field, delta := range want {
		if got := after[field] - s.before[field]; got != delta {
			return fmt.Errorf("expected %s to grow by %d, grew by %d", field, delta, got)
		}
	}
	return nil
}

func (s *checkpointSteps) exportContains(ctx context.Context, key string) error {
	code, err := s.tc.Saved(key)
	if err != nil {
		return err
	}
	if err := s.tc.GET("/api/logs/export"); err != nil {
		return err
	}
	if !strings.Contains(s.tc.Body(), code) {
		return fmt.Errorf("export does not mention %s", code)
	}
	return nil
}
