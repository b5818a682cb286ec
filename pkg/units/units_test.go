package units

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNormalizeScenarios(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Quantity
	}{
		{"empty", "", Quantity{1, Count, "item"}},
		{"whitespace only", "   ", Quantity{1, Count, "item"}},
		{"base grams", "100g", Quantity{100, Mass, "g"}},
		{"kilograms with space", "1.5 kg", Quantity{1500, Mass, "g"}},
		{"kilo no space", "1kg", Quantity{1000, Mass, "g"}},
		{"pounds", "2 lbs", Quantity{907.18, Mass, "g"}},
		{"ounces", "10 oz", Quantity{283.5, Mass, "g"}},
		{"upper case unit", "250 ML", Quantity{250, Volume, "ml"}},
		{"liters", "2 liters", Quantity{2000, Volume, "ml"}},
		{"fluid ounces", "12 fl oz", Quantity{12 * 29.57, Volume, "ml"}},
		{"fluid ounce spelled out", "1 Fluid Ounce", Quantity{29.57, Volume, "ml"}},
		{"meters", "3 m", Quantity{300, Length, "cm"}},
		{"inches", "10 inches", Quantity{25.4, Length, "cm"}},
		{"text around the token", "Pack of 500 grams (bulk)", Quantity{500, Mass, "g"}},
		{"second word ignored", "100 g of sugar", Quantity{100, Mass, "g"}},
		{"unknown unit keeps number", "500widgets", Quantity{500, Unrecognized, "widgets"}},
		{"unknown unit lowercased", "3 Packs", Quantity{3, Unrecognized, "packs"}},
		{"number only falls back to literal", "500", Quantity{1, Unrecognized, "500"}},
		{"bare unit word falls back to literal", "each", Quantity{1, Unrecognized, "each"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.input)
			if got.Class != tc.want.Class || got.Unit != tc.want.Unit || !approx(got.Magnitude, tc.want.Magnitude) {
				t.Fatalf("Normalize(%q)\nwant: %#v\ngot:  %#v", tc.input, tc.want, got)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, in := range []string{"", "1kg", "2 lbs", "500", "500widgets", "12 fl oz"} {
		a, b := Normalize(in), Normalize(in)
		if a != b {
			t.Fatalf("Normalize(%q) not stable: %#v vs %#v", in, a, b)
		}
	}
}

func TestNormalizeBaseUnitRoundTrip(t *testing.T) {
	for _, c := range Classes() {
		if c == Count {
			continue
		}
		q := Normalize("100" + BaseUnit(c))
		if q.Magnitude != 100 || q.Class != c || q.Unit != BaseUnit(c) {
			t.Fatalf("round trip for %s failed: %#v", c, q)
		}
	}
}

func TestMatch(t *testing.T) {
	n, unit, raw, ok := Match("Item Weight: 1.2 Pounds")
	if !ok {
		t.Fatal("expected a match")
	}
	if n != 1.2 || unit != "pounds" || raw != "1.2 pounds" {
		t.Fatalf("unexpected match: %v %q %q", n, unit, raw)
	}

	if _, _, _, ok := Match("no numbers here"); ok {
		t.Fatal("expected no match")
	}
}

func TestQuantityString(t *testing.T) {
	if got := Normalize("1.5kg").String(); got != "1500 g" {
		t.Fatalf("unexpected string: %q", got)
	}
	if Normalize("500").Recognized() {
		t.Fatal("literal fallback must not be recognized")
	}
}
