package config

import "strings"

// Problems enumerates which required fields are missing for which capability.
// An empty slice means every capability of the assistant can be brought up
// with the current configuration. The strings are shown verbatim to the
// operator in the control panel.
func (c Config) Problems() []string {
	var problems []string

	if strings.TrimSpace(c.Database.DSN) == "" {
		problems = append(problems, "database: connection string is not configured")
	}
	if strings.TrimSpace(c.Model.APIKey) == "" {
		problems = append(problems, "model: API key is not configured")
	}
	if strings.TrimSpace(c.Model.BaseURL) == "" {
		problems = append(problems, "model: base URL is not configured")
	}
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		problems = append(problems, "telegram: bot token is not configured")
	}
	if !c.Pipeline.OpenAccess && strings.TrimSpace(c.Pipeline.AllowedSenders) == "" {
		problems = append(problems, "authorization: no allowed senders configured and open access is disabled")
	}
	if c.Backup.Upload {
		if strings.TrimSpace(c.Backup.Endpoint) == "" {
			problems = append(problems, "backup: upload enabled but object store endpoint is not configured")
		}
		if strings.TrimSpace(c.Backup.Bucket) == "" {
			problems = append(problems, "backup: upload enabled but bucket is not configured")
		}
	}

	return problems
}
