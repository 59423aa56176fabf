package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/Epistemic-Technology/invoice-audit/models"
)

const tolerance = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestToDocument_InvoiceExample(t *testing.T) {
	// Native width 1000 displayed at 500px, image drawn at (20,20)
	rect := ScreenRect{X: 120, Y: 70, Width: 200, Height: 60}
	got, err := ToDocument(rect, Point{X: 20, Y: 20}, 0.5)
	if err != nil {
		t.Fatalf("ToDocument failed: %v", err)
	}

	want := DocRect{X0: 200, Top: 100, X1: 600, Bottom: 220}
	if got != want {
		t.Errorf("ToDocument = %+v, want %+v", got, want)
	}

	inside := models.Word{Text: "PADARIA", X0: 300, Top: 150, X1: 340, Bottom: 170}
	outside := models.Word{Text: "45,90", X0: 650, Top: 150, X1: 700, Bottom: 170}

	selected := SelectWords([]models.Word{inside, outside}, got, PolicyCenter)
	if len(selected) != 1 || selected[0].Text != "PADARIA" {
		t.Errorf("Expected only PADARIA to be selected, got %+v", selected)
	}
}

func TestToDocument_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		rect   ScreenRect
		origin Point
		scale  float64
	}{
		{"half scale", ScreenRect{X: 120, Y: 70, Width: 200, Height: 60}, Point{X: 20, Y: 20}, 0.5},
		{"upscaled", ScreenRect{X: 13.25, Y: 980.5, Width: 41, Height: 17.75}, Point{X: 8, Y: 612}, 1.7333},
		{"negative origin", ScreenRect{X: -40, Y: -12, Width: 300, Height: 90}, Point{X: -100, Y: -250}, 0.8},
		{"odd ratio", ScreenRect{X: 1, Y: 2, Width: 3, Height: 4}, Point{X: 0.1, Y: 0.2}, 1.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ToDocument(tt.rect, tt.origin, tt.scale)
			if err != nil {
				t.Fatalf("ToDocument failed: %v", err)
			}
			back, err := ToScreen(doc, tt.origin, tt.scale)
			if err != nil {
				t.Fatalf("ToScreen failed: %v", err)
			}
			if !approxEqual(back.X, tt.rect.X) || !approxEqual(back.Y, tt.rect.Y) ||
				!approxEqual(back.Width, tt.rect.Width) || !approxEqual(back.Height, tt.rect.Height) {
				t.Errorf("Round trip = %+v, want %+v", back, tt.rect)
			}
		})
	}
}

func TestToDocument_RejectsBadScale(t *testing.T) {
	for _, scale := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := ToDocument(ScreenRect{Width: 20, Height: 20}, Point{}, scale)
		if !errors.Is(err, ErrNonPositiveScale) {
			t.Errorf("ToDocument(scale=%v) error = %v, want ErrNonPositiveScale", scale, err)
		}
		_, err = ToScreen(DocRect{X1: 1, Bottom: 1}, Point{}, scale)
		if !errors.Is(err, ErrNonPositiveScale) {
			t.Errorf("ToScreen(scale=%v) error = %v, want ErrNonPositiveScale", scale, err)
		}
	}
}

func TestNormalizeDrag(t *testing.T) {
	want := ScreenRect{X: 10, Y: 20, Width: 90, Height: 40}
	tests := []struct {
		name       string
		start, end Point
	}{
		{"down right", Point{10, 20}, Point{100, 60}},
		{"up left", Point{100, 60}, Point{10, 20}},
		{"down left", Point{100, 20}, Point{10, 60}},
		{"up right", Point{10, 60}, Point{100, 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDrag(tt.start, tt.end); got != want {
				t.Errorf("NormalizeDrag = %+v, want %+v", got, want)
			}
		})
	}
}

func TestDegenerate(t *testing.T) {
	tests := []struct {
		rect     ScreenRect
		expected bool
	}{
		{ScreenRect{Width: 9.99, Height: 200}, true},
		{ScreenRect{Width: 200, Height: 9}, true},
		{ScreenRect{Width: 0, Height: 0}, true},
		{ScreenRect{Width: 10, Height: 10}, false},
		{ScreenRect{Width: 11, Height: 300}, false},
	}

	for _, tt := range tests {
		if got := tt.rect.Degenerate(MinSelectionSize); got != tt.expected {
			t.Errorf("%+v.Degenerate() = %v, want %v", tt.rect, got, tt.expected)
		}
	}
}

func TestSelectWords_CenterPolicy(t *testing.T) {
	rect := DocRect{X0: 100, Top: 100, X1: 200, Bottom: 200}

	tests := []struct {
		name     string
		word     models.Word
		selected bool
	}{
		{"fully inside", models.Word{X0: 120, Top: 120, X1: 140, Bottom: 140}, true},
		{"centroid on left edge", models.Word{X0: 90, Top: 140, X1: 110, Bottom: 160}, true},
		{"centroid on bottom-right corner", models.Word{X0: 190, Top: 190, X1: 210, Bottom: 210}, true},
		{"partial overlap, centroid outside", models.Word{X0: 180, Top: 120, X1: 240, Bottom: 140}, false},
		{"straddles top, centroid above", models.Word{X0: 120, Top: 60, X1: 140, Bottom: 130}, false},
		{"fully outside", models.Word{X0: 300, Top: 300, X1: 320, Bottom: 320}, false},
		{"encloses rectangle", models.Word{X0: 0, Top: 0, X1: 300, Bottom: 300}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectWords([]models.Word{tt.word}, rect, PolicyCenter)
			if (len(got) == 1) != tt.selected {
				t.Errorf("selected = %v, want %v", len(got) == 1, tt.selected)
			}
		})
	}
}

func TestSelectWords_OverlapPolicy(t *testing.T) {
	rect := DocRect{X0: 100, Top: 100, X1: 200, Bottom: 200}
	partial := models.Word{Text: "partial", X0: 180, Top: 120, X1: 240, Bottom: 140}
	outside := models.Word{Text: "outside", X0: 201, Top: 120, X1: 240, Bottom: 140}

	got := SelectWords([]models.Word{partial, outside}, rect, PolicyOverlap)
	if len(got) != 1 || got[0].Text != "partial" {
		t.Errorf("Expected only the overlapping word, got %+v", got)
	}
}

func TestSelectWords_PreservesPageOrder(t *testing.T) {
	rect := DocRect{X0: 0, Top: 0, X1: 1000, Bottom: 1000}
	words := []models.Word{
		{Text: "c", X0: 500, Top: 10, X1: 510, Bottom: 20},
		{Text: "a", X0: 10, Top: 500, X1: 20, Bottom: 510},
		{Text: "b", X0: 10, Top: 10, X1: 20, Bottom: 20},
	}

	got := SelectWords(words, rect, PolicyCenter)
	if len(got) != 3 {
		t.Fatalf("Expected 3 words, got %d", len(got))
	}
	for i, text := range []string{"c", "a", "b"} {
		if got[i].Text != text {
			t.Errorf("word %d = %q, want %q", i, got[i].Text, text)
		}
	}
}

func TestSelectWords_Empty(t *testing.T) {
	got := SelectWords(nil, DocRect{X1: 10, Bottom: 10}, PolicyCenter)
	if len(got) != 0 {
		t.Errorf("Expected no words, got %+v", got)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    Policy
		wantErr bool
	}{
		{"", PolicyCenter, false},
		{"center", PolicyCenter, false},
		{" Overlap ", PolicyOverlap, false},
		{"area", PolicyCenter, true},
	}

	for _, tt := range tests {
		got, err := ParsePolicy(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
