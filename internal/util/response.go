package util

// Envelope is the body shape of every API response: {"data": ...} on
// success, {"error": "..."} on failure.
type Envelope map[string]any

func Error(message string) Envelope {
	return Envelope{"error": message}
}

func OK(payload any) Envelope {
	return Envelope{"data": payload}
}
