package bandit

import "fmt"

// RewardForEvent maps a feedback event type to its reward signal.
func RewardForEvent(eventType string) (float64, error) {
	switch eventType {
	case "impression":
		return 0.0, nil
	case "view":
		return 0.1, nil
	case "like":
		return 0.5, nil
	case "save":
		return 0.7, nil
	case "start":
		return 0.8, nil
	case "complete":
		return 1.0, nil
	case "hide":
		return -0.3, nil
	case "skip":
		return -0.1, nil
	default:
		return 0, fmt.Errorf("unknown event type: %s", eventType)
	}
}
