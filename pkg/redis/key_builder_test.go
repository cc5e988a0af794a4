package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewKeyBuilder(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		expected    string
	}{
		{"production uses prod prefix", "production", "prod"},
		{"development uses staging prefix", "development", "staging"},
		{"staging uses staging prefix", "staging", "staging"},
		{"test uses staging prefix", "test", "staging"},
		{"unknown defaults to prod", "something", "prod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb := NewKeyBuilder(tt.environment)
			assert.Equal(t, tt.expected, kb.GetPrefix())
		})
	}
}

func TestBuildKey(t *testing.T) {
	kb := NewKeyBuilder("production")
	assert.Equal(t, "prod:some:key", kb.BuildKey("some:key"))
}

func TestKeyCollection(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		collection  string
		expected    string
	}{
		{"prod photos", "production", "photos", "prod:photo_contest:photos"},
		{"staging challenges", "development", "challenges", "staging:photo_contest:challenges"},
		{"prod votes", "production", "votes", "prod:photo_contest:votes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb := NewKeyBuilder(tt.environment)
			assert.Equal(t, tt.expected, kb.KeyCollection(tt.collection))
		})
	}
}
