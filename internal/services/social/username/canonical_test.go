package username

import "testing"

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "lowercases", input: "  Alice_One ", want: "alice_one"},
		{name: "folds fullwidth", input: "Ａlice", want: "alice"},
		{name: "keeps punctuation", input: "bob.smith-2", want: "bob.smith-2"},
		{name: "blank", input: "   ", wantErr: true},
		{name: "too short", input: "ab", wantErr: true},
		{name: "leading digit", input: "1alice", wantErr: true},
		{name: "non ascii", input: "zoë", wantErr: true},
		{name: "space inside", input: "al ice", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Canonicalize(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Canonicalize(%q) = %q, want error", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Canonicalize(%q): %v", tc.input, err)
			}
			if got != tc.want {
				t.Fatalf("Canonicalize(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
