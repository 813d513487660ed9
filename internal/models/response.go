package models

import (
	"net/http"

	"buswisely.org/internal/clock"
)

// ResponseModel is the envelope shared by every JSON endpoint.
type ResponseModel struct {
	Code        int    `json:"code"`
	CurrentTime int64  `json:"currentTime"`
	Data        any    `json:"data,omitempty"`
	Text        string `json:"text"`
	Version     int    `json:"version"`
}

// ResponseVersion is the envelope version.
const ResponseVersion = 2

// ResponseCurrentTime is the envelope timestamp in epoch milliseconds.
func ResponseCurrentTime(c clock.Clock) int64 {
	if c == nil {
		c = clock.RealClock{}
	}
	return c.NowUnixMilli()
}

func NewResponse(code int, data any, text string, c clock.Clock) ResponseModel {
	return ResponseModel{
		Code:        code,
		CurrentTime: ResponseCurrentTime(c),
		Data:        data,
		Text:        text,
		Version:     ResponseVersion,
	}
}

func NewOKResponse(data any, c clock.Clock) ResponseModel {
	return NewResponse(http.StatusOK, data, "OK", c)
}
