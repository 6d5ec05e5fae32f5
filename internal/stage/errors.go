package stage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInput         = errors.New("input error")
	ErrProcessing    = errors.New("processing error")
	ErrStorage       = errors.New("storage error")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, stageName, operation, message string, err error) error {
	detail := buildDetail(stageName, operation, message)
	if marker == nil {
		marker = ErrProcessing
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureDetail flattens a stage error into the string persisted as the
// job's error detail. Sentinel markers are kept in the message so operators
// can see the failure class without source access.
func FailureDetail(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}

func buildDetail(stageName, operation, message string) string {
	parts := make([]string, 0, 3)
	if stageName = strings.TrimSpace(stageName); stageName != "" {
		parts = append(parts, stageName)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "stage failure"
	}
	return strings.Join(parts, ": ")
}
