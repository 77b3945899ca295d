package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")

	ErrASRFailure          = errors.New("asr failure")
	ErrEmptyTranscript     = errors.New("empty transcript")
	ErrDecodeFailure       = errors.New("decode failure")
	ErrEncodeFailure       = errors.New("encode failure")
	ErrAudioCaptureFailure = errors.New("audio capture failure")
)

// ErrorKind classifies a failure for callers that branch on outcome rather
// than on the concrete cause.
type ErrorKind string

const (
	ErrorKindASR           ErrorKind = "asr_failure"
	ErrorKindEmpty         ErrorKind = "empty_transcript"
	ErrorKindDecode        ErrorKind = "decode_failure"
	ErrorKindEncode        ErrorKind = "encode_failure"
	ErrorKindAudioCapture  ErrorKind = "audio_capture_failure"
	ErrorKindTimeout       ErrorKind = "timeout"
	ErrorKindValidation    ErrorKind = "validation"
	ErrorKindConfiguration ErrorKind = "configuration"
	ErrorKindExternal      ErrorKind = "external_tool"
	ErrorKindTransient     ErrorKind = "transient"
)

var markerKinds = map[error]ErrorKind{
	ErrASRFailure:          ErrorKindASR,
	ErrEmptyTranscript:     ErrorKindEmpty,
	ErrDecodeFailure:       ErrorKindDecode,
	ErrEncodeFailure:       ErrorKindEncode,
	ErrAudioCaptureFailure: ErrorKindAudioCapture,
	ErrTimeout:             ErrorKindTimeout,
	ErrValidation:          ErrorKindValidation,
	ErrConfiguration:       ErrorKindConfiguration,
	ErrNotFound:            ErrorKindValidation,
	ErrExternalTool:        ErrorKindExternal,
	ErrTransient:           ErrorKindTransient,
}

// ServiceError is the typed failure surfaced by pipeline stages. Marker is one
// of the sentinel errors above so errors.Is keeps working through wrapping.
type ServiceError struct {
	Marker     error
	Kind       ErrorKind
	Stage      string
	Operation  string
	Message    string
	DetailPath string
	Cause      error
}

func (e *ServiceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	marker := "service failure"
	if e.Marker != nil {
		marker = e.Marker.Error()
	}
	msg := marker + ": " + detail
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.DetailPath != "" {
		msg += " (details: " + e.DetailPath + ")"
	}
	return msg
}

// Unwrap exposes both the marker and the cause to errors.Is / errors.As.
func (e *ServiceError) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Wrap builds a ServiceError that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	kind, ok := markerKinds[marker]
	if !ok {
		kind = ErrorKindTransient
	}
	return &ServiceError{
		Marker:    marker,
		Kind:      kind,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// KindOf reports the failure classification of err, or "" when err carries no
// known marker.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Kind != "" {
		return svcErr.Kind
	}
	for marker, kind := range markerKinds {
		if errors.Is(err, marker) {
			return kind
		}
	}
	return ""
}

// IsFatalForExport reports whether err must abort an export rather than
// degrade it.
func IsFatalForExport(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case ErrorKindAudioCapture, ErrorKindTimeout:
		return false
	default:
		return true
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// Describe renders err as a short single-line summary for user-facing output.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		if svcErr.Message != "" {
			return fmt.Sprintf("%s (%s)", svcErr.Message, svcErr.Kind)
		}
		return string(svcErr.Kind)
	}
	return err.Error()
}
