package catalog

import (
	"testing"

	"github.com/AlexandroAurellino/live-shop-bot/types"
)

func testCatalog() *Catalog {
	return New([]types.Product{
		{Name: "Lamp", MediaFile: "lamp.mp4", Description: "lamp, light"},
		{Name: "Mouse", MediaFile: "mouse.mp4", Description: "mouse, gaming"},
		{Name: "Gaming Mouse Pad", MediaFile: "pad.mp4", Description: "pad, desk"},
	})
}

func TestCatalog_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		wantMatch bool
	}{
		{
			name:      "exact name",
			input:     "Lamp",
			want:      "Lamp",
			wantMatch: true,
		},
		{
			name:      "classifier adds article",
			input:     "the lamp",
			want:      "Lamp",
			wantMatch: true,
		},
		{
			// Both Mouse and Gaming Mouse Pad substring-match at the
			// same score; first-seen maximum wins.
			name:      "substring tie keeps catalog order",
			input:     "mouse pad",
			want:      "Mouse",
			wantMatch: true,
		},
		{
			name:      "case insensitive",
			input:     "LAMP",
			want:      "Lamp",
			wantMatch: true,
		},
		{
			name:      "minor typo accepted",
			input:     "Lamps",
			want:      "Lamp",
			wantMatch: true,
		},
		{
			name:      "unrelated name rejected",
			input:     "keyboard",
			wantMatch: false,
		},
		{
			name:      "empty input rejected",
			input:     "",
			wantMatch: false,
		},
		{
			name:      "whitespace only rejected",
			input:     "   ",
			wantMatch: false,
		},
	}

	cat := testCatalog()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cat.Resolve(tt.input)
			if ok != tt.wantMatch {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tt.input, ok, tt.wantMatch)
			}
			if ok && got.Name != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got.Name, tt.want)
			}
		})
	}
}

func TestCatalog_Resolve_EmptyCatalog(t *testing.T) {
	cat := New(nil)
	if _, ok := cat.Resolve("Lamp"); ok {
		t.Error("expected no match against an empty catalog")
	}
}

func TestCatalog_Resolve_TieKeepsFirst(t *testing.T) {
	// Both entries substring-match the input at the same score; catalog
	// order decides.
	cat := New([]types.Product{
		{Name: "Desk Lamp", MediaFile: "a.mp4"},
		{Name: "Lamp Desk", MediaFile: "b.mp4"},
	})
	got, ok := cat.Resolve("desk lamp and lamp desk")
	if !ok {
		t.Fatal("expected a match")
	}
	if got.Name != "Desk Lamp" {
		t.Errorf("tie-break picked %q, want first-seen %q", got.Name, "Desk Lamp")
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "substring forward", a: "lamp", b: "the lamp", want: 0.9},
		{name: "substring backward", a: "the lamp", b: "lamp", want: 0.9},
		{name: "identical treated as substring", a: "Lamp", b: "lamp", want: 0.9},
		{name: "disjoint", a: "abc", b: "xyz", want: 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Similarity(tt.a, tt.b); got != tt.want {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"lamp", "lampe"},
		{"gaming mouse", "mouse"},
		{"keyboard", "kayboard"},
	}
	for _, p := range pairs {
		if ab, ba := Similarity(p[0], p[1]), Similarity(p[1], p[0]); ab != ba {
			t.Errorf("Similarity(%q, %q) = %v but reversed = %v", p[0], p[1], ab, ba)
		}
	}
}

func TestSimilarity_Range(t *testing.T) {
	pairs := [][2]string{
		{"lamp", "light"},
		{"a", "completely different thing"},
		{"", ""},
		{"x", ""},
	}
	for _, p := range pairs {
		got := Similarity(p[0], p[1])
		if got < 0 || got > 1 {
			t.Errorf("Similarity(%q, %q) = %v, outside [0,1]", p[0], p[1], got)
		}
	}
}

func TestCatalog_Keywords(t *testing.T) {
	cat := testCatalog()
	want := []string{"lamp", "light", "mouse", "gaming", "pad", "desk"}
	got := cat.Keywords()
	if len(got) != len(want) {
		t.Fatalf("Keywords() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keywords()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCatalog_MediaFile(t *testing.T) {
	cat := testCatalog()
	f, ok := cat.MediaFile("Lamp")
	if !ok || f != "lamp.mp4" {
		t.Errorf("MediaFile(Lamp) = %q, %v", f, ok)
	}
	if _, ok := cat.MediaFile("Missing"); ok {
		t.Error("expected no media file for unknown product")
	}
}
