package ai

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantTitle string
		wantErr   bool
	}{
		{
			name:      "plain json",
			raw:       `{"title":"Flight to Tokyo","category":"Travel","summary":"Booking confirmation","tags":["flight"]}`,
			wantTitle: "Flight to Tokyo",
		},
		{
			name:      "fenced json",
			raw:       "```json\n{\"title\":\"Recipe\",\"category\":\"Food\",\"summary\":\"Pasta recipe\",\"tags\":[]}\n```",
			wantTitle: "Recipe",
		},
		{
			name:      "fence without language tag",
			raw:       "```\n{\"title\":\"Note\",\"category\":\"Other\",\"summary\":\"x\",\"tags\":[]}\n```",
			wantTitle: "Note",
		},
		{
			name:      "json surrounded by prose",
			raw:       "Sure! Here is the result:\n{\"title\":\"Sale\",\"category\":\"Shopping\",\"summary\":\"50% off\",\"tags\":[\"sale\"]}\nLet me know if you need anything else.",
			wantTitle: "Sale",
		},
		{
			name:      "braces inside string values",
			raw:       `noise {"title":"Uses {braces} inside","category":"Other","summary":"a } in text","tags":[]} trailing`,
			wantTitle: "Uses {braces} inside",
		},
		{
			name:    "empty response",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			raw:     "   \n\t  ",
			wantErr: true,
		},
		{
			name:    "no json at all",
			raw:     "I could not analyze this content, sorry.",
			wantErr: true,
		},
		{
			name:    "unbalanced braces",
			raw:     `{"title":"broken","category":"Other"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Normalize(%q) expected error, got %+v", tt.raw, got)
				}
				if !errors.Is(err, ErrMalformedResponse) {
					t.Errorf("error = %v, want ErrMalformedResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q) unexpected error: %v", tt.raw, err)
			}
			if got.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", got.Title, tt.wantTitle)
			}
		})
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	raw := "```json\n{\"title\":\"Same\",\"category\":\"Other\",\"summary\":\"s\",\"tags\":[\"a\"]}\n```"

	first, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Title != second.Title || first.Summary != second.Summary {
		t.Errorf("same input produced different results: %+v vs %+v", first, second)
	}
}
