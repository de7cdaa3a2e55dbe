package models

import "voice-analyze/speakers"

// EnrollRequest is the body of POST /enroll. WavFile is base64 in JSON.
type EnrollRequest struct {
	Speaker string `json:"speaker"`
	WavFile []byte `json:"wav_file"`
}

// AnalyzeRequest is the body of POST /analyze. Everything except WavFile is
// echoed back in the response.
type AnalyzeRequest struct {
	WavFile   []byte   `json:"wav_file"`
	SegmentID any      `json:"segment_id,omitempty"`
	Text      string   `json:"text,omitempty"`
	Language  string   `json:"language,omitempty"`
	Start     *float64 `json:"start,omitempty"`
	End       *float64 `json:"end,omitempty"`
}

// StatusResponse reports the outcome of an enrollment.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse is returned for failed requests.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// SpeakersResponse lists enrolled speakers.
type SpeakersResponse struct {
	Count    int                    `json:"count"`
	Speakers []speakers.SpeakerStat `json:"speakers"`
}
