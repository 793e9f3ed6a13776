package querycache

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func joinWithSeparator(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

func TestKey_Determinism(t *testing.T) {
	tests := []struct {
		name   string
		entity string
		params []any
		want   string
	}{
		{
			name:   "entity only",
			entity: "notifications",
			params: []any{},
			want:   "notifications",
		},
		{
			name:   "single string param",
			entity: "course",
			params: []any{"C1"},
			want:   joinWithSeparator("course", "c1"),
		},
		{
			name:   "mixed basic types",
			entity: "threads",
			params: []any{"C1", 2, true},
			want:   joinWithSeparator("threads", "c1", "2", "true"),
		},
		{
			name:   "float param",
			entity: "metrics",
			params: []any{3.5},
			want:   joinWithSeparator("metrics", "3.5"),
		},
		{
			name:   "interior nil kept as placeholder",
			entity: "search",
			params: []any{nil, "rbtree"},
			want:   joinWithSeparator("search", "nil", "rbtree"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := Key(tt.entity, tt.params...)
			second := Key(tt.entity, tt.params...)

			if got := first.String(); got != tt.want {
				t.Errorf("Key().String() = %q, want %q", got, tt.want)
			}
			if !first.Equal(second) {
				t.Errorf("repeated construction not equal: %q vs %q", first, second)
			}
		})
	}
}

func TestKey_TrailingAbsentParamsOmitted(t *testing.T) {
	tests := []struct {
		name string
		a    QueryKey
		b    QueryKey
	}{
		{
			name: "one trailing nil",
			a:    Key("threads", "C1", nil),
			b:    Key("threads", "C1"),
		},
		{
			name: "multiple trailing nils",
			a:    Key("threads", "C1", nil, nil),
			b:    Key("threads", "C1"),
		},
		{
			name: "all params absent",
			a:    Key("threads", nil),
			b:    Key("threads"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.a.Equal(tt.b) {
				t.Errorf("keys differ: %q vs %q", tt.a, tt.b)
			}
		})
	}
}

func TestKey_FreeTextNormalization(t *testing.T) {
	tests := []struct {
		name  string
		left  QueryKey
		right QueryKey
		equal bool
	}{
		{
			name:  "case insensitive",
			left:  Key("search", "C1", "Binary Search"),
			right: Key("search", "C1", "binary search"),
			equal: true,
		},
		{
			name:  "whitespace collapsed",
			left:  Key("search", "C1", "  binary   search "),
			right: Key("search", "C1", "binary search"),
			equal: true,
		},
		{
			name:  "different text stays distinct",
			left:  Key("search", "C1", "binary search"),
			right: Key("search", "C1", "linked list"),
			equal: false,
		},
		{
			name:  "different scope stays distinct",
			left:  Key("search", "C1", "binary search"),
			right: Key("search", "C2", "binary search"),
			equal: false,
		},
		{
			name:  "different entity stays distinct",
			left:  Key("search", "C1"),
			right: Key("threads", "C1"),
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.left.Equal(tt.right); got != tt.equal {
				t.Errorf("Equal(%q, %q) = %v, want %v", tt.left, tt.right, got, tt.equal)
			}
		})
	}
}

func TestKey_EmptyEntityPanics(t *testing.T) {
	for _, entity := range []string{"", "   "} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Key(%q) did not panic", entity)
				}
			}()
			Key(entity)
		}()
	}
}

func TestKeyFromSegments_RoundTrip(t *testing.T) {
	original := Key("instructorDashboard", "I1", 7)
	rebuilt := KeyFromSegments(original.Segments()...)

	if !original.Equal(rebuilt) {
		t.Errorf("round trip mismatch: %q vs %q", original, rebuilt)
	}
	if diff := cmp.Diff(original.Segments(), rebuilt.Segments()); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestPrefixMatch(t *testing.T) {
	tests := []struct {
		name    string
		partial QueryKey
		key     QueryKey
		match   bool
	}{
		{
			name:    "prefix matches longer key",
			partial: Key("instructorDashboard"),
			key:     Key("instructorDashboard", "I1"),
			match:   true,
		},
		{
			name:    "exact key matches itself",
			partial: Key("instructorDashboard", "I1"),
			key:     Key("instructorDashboard", "I1"),
			match:   true,
		},
		{
			name:    "longer partial never matches shorter key",
			partial: Key("instructorDashboard", "I1"),
			key:     Key("instructorDashboard"),
			match:   false,
		},
		{
			name:    "sibling scope does not match",
			partial: Key("instructorDashboard", "I1"),
			key:     Key("instructorDashboard", "I2"),
			match:   false,
		},
		{
			name:    "different entity does not match",
			partial: Key("studentDashboard"),
			key:     Key("instructorDashboard", "I1"),
			match:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred := PrefixMatch(tt.partial)
			if got := pred(tt.key); got != tt.match {
				t.Errorf("PrefixMatch(%q)(%q) = %v, want %v", tt.partial, tt.key, got, tt.match)
			}
		})
	}
}

func TestKeySet(t *testing.T) {
	pred := KeySet(Key("course", "C1"), Key("course", "C2"))

	if !pred(Key("course", "C1")) {
		t.Error("expected C1 to match")
	}
	if !pred(Key("course", "c2")) {
		t.Error("expected normalized c2 to match")
	}
	if pred(Key("course", "C3")) {
		t.Error("did not expect C3 to match")
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Binary Search", "binary search"},
		{"  weird   spacing\there ", "weird spacing here"},
		{"already normal", "already normal"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
