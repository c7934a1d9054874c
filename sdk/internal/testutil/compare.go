package testutil

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// AssertJSONEqual fails the test when want and got encode to different JSON documents.
// got may be raw bytes captured from a request body.
func AssertJSONEqual(t *testing.T, want any, got any) {
	t.Helper()
	assert.JSONEq(t, mustMarshal(want), mustMarshal(got))
}

func mustMarshal(v any) string {
	switch typed := v.(type) {
	case []byte:
		return string(typed)
	case json.RawMessage:
		return string(typed)
	case string:
		return typed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
