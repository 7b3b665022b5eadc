package response

import "wedsync/lib/clock"

type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Success       bool        `json:"success" validate:"required"`
	StatusMessage string      `json:"status_message"`
	Timestamp     string      `json:"timestamp"`
}

func Ok(data interface{}) Response {
	return Response{
		Data:          data,
		Success:       true,
		StatusMessage: "Success",
		Timestamp:     clock.Now(),
	}
}

func Error(message string) Response {
	return Response{
		Success:       false,
		StatusMessage: message,
		Timestamp:     clock.Now(),
	}
}

// Fail is an error response that still carries a payload, used when the
// client needs the resulting state to render a message
func Fail(message string, data interface{}) Response {
	return Response{
		Data:          data,
		Success:       false,
		StatusMessage: message,
		Timestamp:     clock.Now(),
	}
}
