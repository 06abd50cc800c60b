package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

// Callback data is "unique[:part[:part...]]" and Telegram caps it at 64 bytes.
const (
	CallbackDataSeparator  = ":"
	CallbackDataLimitBytes = 64
)

var errEmptyCallback = errors.New("callback data is empty")

// EncodeCallback builds the callback data for a button. The router matches unique exactly,
// so it must not contain the separator.
func EncodeCallback(unique, data string) (string, error) {
	if unique == "" || strings.Contains(unique, CallbackDataSeparator) {
		return "", fmt.Errorf("invalid callback identifier %q", unique)
	}

	payload := unique
	if data != "" {
		payload += CallbackDataSeparator + data
	}
	if len(payload) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(payload))
	}

	return payload, nil
}

// DecodeCallback splits callback data into the identifier and everything after the first separator.
func DecodeCallback(callbackData string) (unique, data string, err error) {
	if callbackData == "" {
		return "", "", errEmptyCallback
	}

	unique, data, _ = strings.Cut(callbackData, CallbackDataSeparator)
	return unique, data, nil
}

// JoinData packs several values into one callback payload, e.g. "17:approve".
func JoinData(parts ...string) string {
	return strings.Join(parts, CallbackDataSeparator)
}

// SplitData is the inverse of JoinData for a payload of exactly two values.
func SplitData(data string) (first, second string, ok bool) {
	return strings.Cut(data, CallbackDataSeparator)
}
