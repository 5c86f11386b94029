package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"careerprep/internal/domain"

	"github.com/supabase-community/supabase-go"
)

// clientFor returns a client scoped to the caller's access token when the
// context carries one, and the service client otherwise.
func clientFor(ctx context.Context, supabaseClient domain.SupabaseClient) (*supabase.Client, error) {
	if token, ok := domain.AccessTokenFromContext(ctx); ok {
		client, err := supabaseClient.GetClientWithToken(token)
		if err != nil {
			return nil, fmt.Errorf("failed to get client with token: %w", err)
		}
		return client, nil
	}
	client := supabaseClient.DB()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}
	return client, nil
}

type executeResult struct {
	data []byte
	err  error
}

// execute runs a PostgREST request and stops waiting for it once ctx is done.
func execute(ctx context.Context, request func() ([]byte, int64, error)) ([]byte, error) {
	done := make(chan executeResult, 1)
	go func() {
		data, _, err := request()
		done <- executeResult{data: data, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.data, r.err
	}
}

func decodeRows(data []byte) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return rows, nil
}

// isUniqueViolation reports whether err is PostgreSQL's unique_violation (23505).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}

// Helper functions for type conversion
func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok && val != nil {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getInt(data map[string]interface{}, key string) int {
	if val, ok := data[key]; ok && val != nil {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

func getBool(data map[string]interface{}, key string) bool {
	if val, ok := data[key]; ok && val != nil {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}

func getTime(data map[string]interface{}, key string) time.Time {
	s := getString(data, key)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", domain.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func getMap(data map[string]interface{}, key string) map[string]interface{} {
	if val, ok := data[key]; ok && val != nil {
		switch v := val.(type) {
		case map[string]interface{}:
			return v
		case string:
			// jsonb stored as text
			var m map[string]interface{}
			if err := json.Unmarshal([]byte(v), &m); err == nil {
				return m
			}
		}
	}
	return nil
}
