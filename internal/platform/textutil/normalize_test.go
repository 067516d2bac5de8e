package textutil

import "testing"

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Oakwood Dining Table", "oakwood-dining-table"},
		{"  Château Lounge Chair  ", "chateau-lounge-chair"},
		{"3-Seater Sofa (Grey)", "3-seater-sofa-grey"},
		{"--weird--input--", "weird-input"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tc := range cases {
		if got := Slug(tc.in); got != tc.want {
			t.Errorf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSearchKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Oakwood   Dining Table", "oakwood dining table"},
		{"CHÂTEAU", "chateau"},
		{"  ", ""},
	}
	for _, tc := range cases {
		if got := SearchKey(tc.in); got != tc.want {
			t.Errorf("SearchKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseLanguageTag(t *testing.T) {
	if got, err := ParseLanguageTag("en-NG"); err != nil || got != "en-NG" {
		t.Errorf("ParseLanguageTag(en-NG) = (%q, %v)", got, err)
	}
	if got, err := ParseLanguageTag(""); err != nil || got != "" {
		t.Errorf("ParseLanguageTag(empty) = (%q, %v)", got, err)
	}
	if _, err := ParseLanguageTag("not a tag!!"); err == nil {
		t.Errorf("ParseLanguageTag(invalid) succeeded")
	}
}

func TestNormalizeStringMap(t *testing.T) {
	got := NormalizeStringMap(map[string]string{
		" size ": " King ",
		"":       "dropped",
		"finish": "walnut",
		"  ":     "also dropped",
	})
	want := map[string]string{"size": "King", "finish": "walnut"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeStringMap = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("NormalizeStringMap[%q] = %q, want %q", k, got[k], v)
		}
	}
	if NormalizeStringMap(nil) != nil {
		t.Errorf("NormalizeStringMap(nil) should be nil")
	}
}
