package notify

import (
	"encoding/json"
	"fmt"

	"github.com/ppiankov/consentwatch/internal/model"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return json.Marshal(event)
	}
}

func formatSlack(event Event) ([]byte, error) {
	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("consentwatch: %s", event.Category),
				},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Severity:* %s", event.Severity)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Message:* %s", event.Message)},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event Event) ([]byte, error) {
	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("consentwatch %s: %s", event.Category, event.Message),
			"severity": pagerDutySeverity(event.Severity),
			"source":   event.Source,
			"custom_details": map[string]any{
				"category":  event.Category,
				"message":   event.Message,
				"timestamp": event.Timestamp,
			},
		},
	}
	return json.Marshal(payload)
}

func pagerDutySeverity(sev model.Severity) string {
	switch sev {
	case model.SevHigh:
		return "critical"
	case model.SevMedium:
		return "error"
	case model.SevLow:
		return "warning"
	default:
		return "info"
	}
}
