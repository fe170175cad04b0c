package jsonflat

import "github.com/tidwall/gjson"

// Lookup follows path through nested objects. It never fails: any missing
// key, non-object step or null along the way yields false. Keys are matched
// literally, so they may contain dots.
func Lookup(v gjson.Result, path ...string) (gjson.Result, bool) {
	cur := v
	for _, key := range path {
		if !cur.IsObject() {
			return gjson.Result{}, false
		}
		next, ok := member(cur, key)
		if !ok {
			return gjson.Result{}, false
		}
		cur = next
	}
	if IsNull(cur) {
		return gjson.Result{}, false
	}
	return cur, true
}

// member returns the value of key in obj; a repeated key yields its last value.
func member(obj gjson.Result, key string) (gjson.Result, bool) {
	var (
		out   gjson.Result
		found bool
	)
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.Str == key {
			out, found = v, true
		}
		return true
	})
	return out, found
}

// LookupString is Lookup rendered as optional cell text.
func LookupString(v gjson.Result, path ...string) *string {
	got, ok := Lookup(v, path...)
	if !ok {
		return nil
	}
	return String(got)
}

// List returns the elements of the array at path, or nil when absent or not
// an array.
func List(v gjson.Result, path ...string) []gjson.Result {
	got, ok := Lookup(v, path...)
	if !ok || !got.IsArray() {
		return nil
	}
	return got.Array()
}
