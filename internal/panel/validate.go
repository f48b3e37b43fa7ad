package panel

import (
	"context"
	"fmt"
	"strings"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/observability"
)

// ProbeResult is what the operator sees after a validation run: a single
// verdict plus one human-readable line per problem found.
type ProbeResult struct {
	Success  bool     `json:"success"`
	Problems []string `json:"problems"`
}

// LiveChecks reach out to the real dependencies during validation. Each
// check is optional; a nil check is skipped.
type LiveChecks struct {
	Database func(ctx context.Context) error
	Model    func(ctx context.Context) error
	Telegram func(ctx context.Context) error
}

// Validator combines static configuration checks with live connectivity
// probes. Live probes only run for capabilities whose static configuration
// is present, so the operator is not shown a connection failure for a field
// they have not filled in yet.
type Validator struct {
	config func() config.Config
	live   LiveChecks
}

func NewValidator(configFn func() config.Config, live LiveChecks) *Validator {
	return &Validator{config: configFn, live: live}
}

func (v *Validator) Probe(ctx context.Context) ProbeResult {
	cfg := v.config()
	problems := cfg.Problems()

	if strings.TrimSpace(cfg.Database.DSN) != "" && v.live.Database != nil {
		if err := v.live.Database(ctx); err != nil {
			problems = append(problems, fmt.Sprintf("database: connection failed: %s", observability.Mask(err.Error())))
		}
	}
	if strings.TrimSpace(cfg.Model.APIKey) != "" && v.live.Model != nil {
		if err := v.live.Model(ctx); err != nil {
			problems = append(problems, fmt.Sprintf("model: not reachable: %s", observability.Mask(err.Error())))
		}
	}
	if strings.TrimSpace(cfg.Telegram.BotToken) != "" && v.live.Telegram != nil {
		if err := v.live.Telegram(ctx); err != nil {
			problems = append(problems, fmt.Sprintf("telegram: token check failed: %s", observability.Mask(err.Error())))
		}
	}

	if problems == nil {
		problems = []string{}
	}
	return ProbeResult{Success: len(problems) == 0, Problems: problems}
}
