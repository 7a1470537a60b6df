package vector_test

import (
	"context"
	"errors"
	"testing"

	"plenary/internal/config"
	"plenary/internal/services"
	"plenary/internal/vector"
)

func TestOpenRequiresDSN(t *testing.T) {
	cfg := config.Vector{Enabled: true}
	if _, err := vector.Open(context.Background(), cfg, 1536); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestOpenRejectsHostileTableName(t *testing.T) {
	cfg := config.Vector{
		DSN:   "postgres://localhost/plenary",
		Table: "embeddings; DROP TABLE users",
	}
	if _, err := vector.Open(context.Background(), cfg, 1536); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestOpenRequiresPositiveDimensions(t *testing.T) {
	cfg := config.Vector{DSN: "postgres://localhost/plenary"}
	if _, err := vector.Open(context.Background(), cfg, 0); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLiteralFormat(t *testing.T) {
	cases := []struct {
		name   string
		values []float32
		want   string
	}{
		{"empty", nil, "[]"},
		{"single", []float32{1}, "[1]"},
		{"mixed", []float32{0.5, -2, 3.25}, "[0.5,-2,3.25]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := vector.Literal(tc.values); got != tc.want {
				t.Fatalf("Literal(%v) = %q, want %q", tc.values, got, tc.want)
			}
		})
	}
}
