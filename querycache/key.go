package querycache

import (
	"fmt"
	"strconv"
	"strings"
)

// KeySeparator defines the delimiter used between query key segments in the
// canonical string form.
const KeySeparator = "::"

// QueryKey is an ordered, immutable tuple of string segments that uniquely
// identifies one cacheable read. Two logically identical queries always
// produce equal keys and two logically different queries never collide.
//
// Keys are constructed with Key and never mutated afterwards.
type QueryKey struct {
	segments []string
}

// Key deterministically builds a QueryKey from an entity name plus optional
// scope parameters. Identical inputs always yield equal keys.
//
// Parameter handling:
//   - nil parameters represent an absent optional scope; trailing nils are
//     dropped so Key("x", "a", nil) equals Key("x", "a"). Interior nils are
//     kept as an explicit placeholder so positional meaning is preserved.
//   - string parameters are normalized (whitespace trimmed and collapsed,
//     lowercased) so free-text scopes like search queries share one cache
//     slot regardless of casing.
//   - numeric and bool parameters use their canonical decimal/true-false
//     representation.
//
// An empty or blank entity name is a caller bug and panics; keys are built
// from compile-time entity constants, not runtime input.
func Key(entity string, params ...any) QueryKey {
	if strings.TrimSpace(entity) == "" {
		panic("querycache: Key requires a non-empty entity name")
	}

	// Drop trailing absent params so optional scopes do not fragment the cache.
	for len(params) > 0 && isAbsent(params[len(params)-1]) {
		params = params[:len(params)-1]
	}

	segments := make([]string, 0, len(params)+1)
	segments = append(segments, entity)
	for _, p := range params {
		segments = append(segments, serializeParam(p))
	}

	return QueryKey{segments: segments}
}

// KeyFromSegments rebuilds a QueryKey from raw segments, e.g. when a key was
// transported through its canonical string form. Segments are used verbatim.
func KeyFromSegments(segments ...string) QueryKey {
	if len(segments) == 0 || strings.TrimSpace(segments[0]) == "" {
		panic("querycache: KeyFromSegments requires a non-empty entity segment")
	}
	copied := make([]string, len(segments))
	copy(copied, segments)
	return QueryKey{segments: copied}
}

// Entity returns the leading entity segment.
func (k QueryKey) Entity() string {
	if len(k.segments) == 0 {
		return ""
	}
	return k.segments[0]
}

// Segments returns a copy of the key's segments.
func (k QueryKey) Segments() []string {
	out := make([]string, len(k.segments))
	copy(out, k.segments)
	return out
}

// Len returns the number of segments.
func (k QueryKey) Len() int { return len(k.segments) }

// IsZero reports whether the key was never constructed through Key.
func (k QueryKey) IsZero() bool { return len(k.segments) == 0 }

// String returns the canonical string form, segments joined by KeySeparator.
// This form is what the store uses as its map key, so structural equality and
// canonical-string equality are the same relation.
func (k QueryKey) String() string {
	return strings.Join(k.segments, KeySeparator)
}

// Equal reports whether two keys have identical segments.
func (k QueryKey) Equal(other QueryKey) bool {
	if len(k.segments) != len(other.segments) {
		return false
	}
	for i := range k.segments {
		if k.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether the key starts with all segments of prefix.
// A key is a prefix of itself.
func (k QueryKey) HasPrefix(prefix QueryKey) bool {
	if len(prefix.segments) > len(k.segments) {
		return false
	}
	for i := range prefix.segments {
		if k.segments[i] != prefix.segments[i] {
			return false
		}
	}
	return true
}

// Predicate selects query keys, typically for scoped invalidation.
type Predicate func(QueryKey) bool

// PrefixMatch returns a Predicate matching every key that starts with the
// given partial key. PrefixMatch(Key("a")) matches Key("a", "b") but
// PrefixMatch(Key("a", "b")) does not match Key("a").
//
// Prefix matching is the broad-invalidation escape hatch: mutations should
// prefer exact key sets computed from their result payload and reach for a
// prefix only when the affected population genuinely spans every entry under
// that namespace.
func PrefixMatch(partial QueryKey) Predicate {
	return func(k QueryKey) bool {
		return k.HasPrefix(partial)
	}
}

// KeySet returns a Predicate matching exactly the listed keys.
func KeySet(keys ...QueryKey) Predicate {
	canonical := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		canonical[k.String()] = struct{}{}
	}
	return func(k QueryKey) bool {
		_, ok := canonical[k.String()]
		return ok
	}
}

// NormalizeText applies the free-text normalization rule used for string
// parameters: trim surrounding whitespace, collapse internal whitespace runs
// to single spaces, lowercase. "Binary  Search" and "binary search" normalize
// to the same value.
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func isAbsent(p any) bool {
	return p == nil
}

// serializeParam renders one parameter as a key segment. Strings are
// normalized; the remaining supported kinds use canonical textual forms so
// keys are stable across runs.
func serializeParam(p any) string {
	switch v := p.(type) {
	case nil:
		return "nil"
	case string:
		return NormalizeText(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
