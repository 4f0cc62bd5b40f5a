package format

import "testing"

func TestInitials(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Ada Lovelace", "AL"},
		{"ada", "A"},
		{"Grace Brewster Hopper", "GB"},
		{"  spaced   out  ", "SO"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Initials(c.name); got != c.want {
			t.Errorf("Initials(%q): got %q want %q", c.name, got, c.want)
		}
	}
}

func TestColorIndexIsStableAndBounded(t *testing.T) {
	const palette = 8

	first := ColorIndex("user-42", palette)
	second := ColorIndex("user-42", palette)
	if first != second {
		t.Fatalf("index not stable: %d vs %d", first, second)
	}
	if first < 0 || first >= palette {
		t.Fatalf("index %d out of palette range", first)
	}
	if ColorIndex("user-42", 0) != 0 {
		t.Fatal("empty palette must map to 0")
	}
}

func TestByteSize(t *testing.T) {
	if got := ByteSize(1 << 30); got != "1.0 GiB" {
		t.Errorf("ByteSize(1<<30): got %q", got)
	}
	if got := ByteSize(0); got != "unknown" {
		t.Errorf("ByteSize(0): got %q", got)
	}
}

func TestParamCount(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{1_100_000_000, "1.1B"},
		{7_000_000_000, "7B"},
		{124_000_000, "124M"},
		{512, "512"},
		{0, "unknown"},
	}
	for _, c := range cases {
		if got := ParamCount(c.n); got != c.want {
			t.Errorf("ParamCount(%d): got %q want %q", c.n, got, c.want)
		}
	}
}
