package normalize

import "testing"

/*
TestCanonical_Table verifies the three normalization rules and their order:
trim, collapse internal whitespace runs, title-case each word. Inputs cover
tabs/newlines inside runs, already-canonical values, mixed case, and empty /
all-whitespace strings.
*/
func TestCanonical_Table(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"already canonical", "Trading Holiday", "Trading Holiday"},
		{"edge spaces", "  trading holiday ", "Trading Holiday"},
		{"internal run", "trading   holiday", "Trading Holiday"},
		{"tabs and newlines", "\tsettlement \n holiday\t", "Settlement Holiday"},
		{"upper case", "SPECIAL SESSION", "Special Session"},
		{"mixed case single word", "hOlIdAy", "Holiday"},
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
		{"digits untouched", "session 2024", "Session 2024"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Canonical(tc.in); got != tc.want {
				t.Fatalf("Canonical(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

/*
TestCanonical_Idempotent checks the fixed-point property drift detection
relies on: normalizing an already-normalized value is a no-op, for inputs far
messier than real data.
*/
func TestCanonical_Idempotent(t *testing.T) {
	inputs := []string{
		"Trading Holiday",
		"  trading   HOLIDAY\t",
		"a b c d e",
		"x",
		"",
		" \t ",
		"ärger  im   büro",
		"O'clock closing",
	}
	for _, in := range inputs {
		once := Canonical(in)
		twice := Canonical(once)
		if once != twice {
			t.Errorf("Canonical not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

/*
TestCheck reports Changed only when the input differs from its canonical
form.
*/
func TestCheck(t *testing.T) {
	if r := Check("Trading Holiday"); r.Changed {
		t.Errorf("Check on canonical input reported Changed; result %+v", r)
	}
	r := Check("trading holiday ")
	if !r.Changed || r.Canonical != "Trading Holiday" {
		t.Errorf("Check(%q) = %+v, want Changed with canonical %q", "trading holiday ", r, "Trading Holiday")
	}
}
