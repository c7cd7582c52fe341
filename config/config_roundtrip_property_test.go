package config

import (
	"encoding/json"
	"math/rand"
	"testing"
	"testing/quick"
	"time"
)

// generateRandomPath generates a random unix-like path string.
func generateRandomPath(r *rand.Rand) string {
	const chars = "abcdefghijklmnopqrstuvwxyz0123456789_-"
	segments := r.Intn(4) + 1
	path := ""
	for i := 0; i < segments; i++ {
		segLen := r.Intn(10) + 1
		seg := make([]byte, segLen)
		for j := range seg {
			seg[j] = chars[r.Intn(len(chars))]
		}
		path += "/" + string(seg)
	}
	return path
}

// TestPropertyConfigJSONRoundTrip verifies that any populated Config
// survives JSON serialization unchanged.
func TestPropertyConfigJSONRoundTrip(t *testing.T) {
	cfg := &quick.Config{
		MaxCount: 100,
		Rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	f := func(seed int64) bool {
		r := rand.New(rand.NewSource(seed))
		original := Config{
			LLMProvider:        "OpenAI",
			APIKey:             generateRandomPath(r),
			BaseURL:            "https://api.example.com" + generateRandomPath(r),
			ModelName:          "gpt-4o",
			MaxTokens:          r.Intn(32768) + 1,
			DatasetPath:        generateRandomPath(r) + ".sqlite",
			PythonPath:         generateRandomPath(r),
			LogDir:             generateRandomPath(r),
			DetailedLog:        r.Intn(2) == 1,
			ExecTimeoutSeconds: r.Intn(600) + 1,
		}

		data, err := json.Marshal(original)
		if err != nil {
			t.Logf("seed=%d: marshal failed: %v", seed, err)
			return false
		}
		var decoded Config
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Logf("seed=%d: unmarshal failed: %v", seed, err)
			return false
		}
		return decoded == original
	}
	if err := quick.Check(f, cfg); err != nil {
		t.Error(err)
	}
}
