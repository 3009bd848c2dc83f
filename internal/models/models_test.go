package models

import "testing"

func TestCategoryKind_String(t *testing.T) {
	cases := []struct {
		kind CategoryKind
		want string
	}{
		{CategoryName, "nom"},
		{CategoryLevel, "niveau"},
		{CategoryType, "type"},
		{CategoryKind(99), "nom"},
	}
	for _, c := range cases {
		if got := c.kind.String(); got != c.want {
			t.Errorf("CategoryKind(%d).String() = %q, want %q", c.kind, got, c.want)
		}
	}
}

func TestParseCategoryKind(t *testing.T) {
	cases := []struct {
		in   string
		want CategoryKind
		ok   bool
	}{
		{"nom", CategoryName, true},
		{"name", CategoryName, true},
		{"niveau", CategoryLevel, true},
		{"level", CategoryLevel, true},
		{"type", CategoryType, true},
		{"", CategoryName, false},
		{"formation", CategoryName, false},
	}
	for _, c := range cases {
		got, ok := ParseCategoryKind(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseCategoryKind(%q) = (%v, %v), want (%v, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestParseSuggestKind(t *testing.T) {
	for _, kind := range []SuggestKind{KindLocation, KindEstablishment, KindMetadata} {
		got, ok := ParseSuggestKind(kind.String())
		if !ok || got != kind {
			t.Errorf("ParseSuggestKind(%q) = (%v, %v), want (%v, true)", kind.String(), got, ok, kind)
		}
	}
	if _, ok := ParseSuggestKind("bogus"); ok {
		t.Error("expected ok=false for unknown suggest kind")
	}
}

func TestResultState_String(t *testing.T) {
	cases := map[ResultState]string{
		StateIdle:       "idle",
		StateLoading:    "loading",
		StateLoaded:     "loaded",
		StateEmpty:      "empty",
		StateFailed:     "failed",
		ResultState(42): "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("ResultState(%d).String() = %q, want %q", state, got, want)
		}
	}
}
