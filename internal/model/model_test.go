package model

import "testing"

func TestNormalizePhone(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"+84 (90) 123-4567": "84901234567",
		"0901234567":        "0901234567",
		"abc":               "",
		"":                  "",
		"09.01 23":          "090123",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}
