package extract

import (
	"encoding/json"
	"reflect"
	"testing"
)

func spec(pairs ...string) Spec {
	s := make(Spec, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		s = append(s, Field{Name: pairs[i], Path: ParsePath(pairs[i+1])})
	}
	return s
}

func TestBuild(t *testing.T) {
	tree := decode(t, `{"cid":"123","text":"hi","reply_comment_total":0,"user":{"uid":"u1"}}`)
	s := spec(
		"cid", "cid",
		"text", "text",
		"reply_comment_total", "reply_comment_total",
		"author_id", "user/uid",
		"digg_count", "digg_count",
	)

	rec := Build(s, tree)

	if rec.Len() != len(s) {
		t.Fatalf("record has %d fields, want %d", rec.Len(), len(s))
	}
	if !reflect.DeepEqual(rec.Names(), s.Names()) {
		t.Errorf("names = %v, want %v", rec.Names(), s.Names())
	}
	if v, ok := rec.Get("cid").String(); !ok || v != "123" {
		t.Errorf("cid = %q, %v", v, ok)
	}
	if v, ok := rec.Get("author_id").String(); !ok || v != "u1" {
		t.Errorf("author_id = %q, %v", v, ok)
	}
	if v, ok := rec.Get("reply_comment_total").Int64(); !ok || v != 0 {
		t.Errorf("reply_comment_total = %d, %v", v, ok)
	}
	if rec.Get("digg_count").IsSet() {
		t.Error("digg_count should be unset")
	}
	if got := rec.Unset(); !reflect.DeepEqual(got, []string{"digg_count"}) {
		t.Errorf("Unset() = %v", got)
	}
}

func TestBuildMalformedTree(t *testing.T) {
	s := spec("a", "a/b", "b", "0/x", "c", "c")
	trees := []any{
		nil,
		"just a string",
		decode(t, `[1,2,3]`),
		decode(t, `{"a":[]}`),
	}

	for _, tree := range trees {
		rec := Build(s, tree)
		if rec.Len() != len(s) {
			t.Errorf("Build(%v) has %d fields, want %d", tree, rec.Len(), len(s))
		}
		for _, name := range s.Names() {
			if rec.Get(name).IsSet() {
				t.Errorf("Build(%v) field %q should be unset", tree, name)
			}
		}
	}
}

func TestBuildEmptySpec(t *testing.T) {
	rec := Build(nil, decode(t, `{"a":1}`))
	if rec.Len() != 0 {
		t.Errorf("expected empty record, got %d fields", rec.Len())
	}
}

func TestValueAccessors(t *testing.T) {
	tree := decode(t, `{"n":42,"f":1.5,"s":"17","b":true,"flag":1,"null":null,"list":[1]}`)
	rec := Build(spec("n", "n", "f", "f", "s", "s", "b", "b", "flag", "flag", "null", "null", "list", "list"), tree)

	if n, ok := rec.Get("n").Int64(); !ok || n != 42 {
		t.Errorf("n = %d, %v", n, ok)
	}
	if _, ok := rec.Get("f").Int64(); ok {
		t.Error("f should not convert to int64")
	}
	if f, ok := rec.Get("f").Float64(); !ok || f != 1.5 {
		t.Errorf("f = %v, %v", f, ok)
	}
	if n, ok := rec.Get("s").Int64(); !ok || n != 17 {
		t.Errorf("s = %d, %v", n, ok)
	}
	if b, ok := rec.Get("b").Bool(); !ok || !b {
		t.Errorf("b = %v, %v", b, ok)
	}
	if b, ok := rec.Get("flag").Bool(); !ok || !b {
		t.Errorf("flag = %v, %v", b, ok)
	}
	if !rec.Get("null").IsSet() {
		t.Error("null should be set")
	}
	if _, ok := rec.Get("null").String(); ok {
		t.Error("null should not convert to string")
	}
	if l, ok := rec.Get("list").Slice(); !ok || len(l) != 1 {
		t.Errorf("list = %v, %v", l, ok)
	}
	if rec.Get("unknown").IsSet() {
		t.Error("unknown field should be unset")
	}
}

func TestValueInt64Range(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want int64
		ok   bool
	}{
		{"integral float", 2e3, 2000, true},
		{"integral number", json.Number("2e3"), 2000, true},
		{"float above range", 1e19, 0, false},
		{"float below range", -1e19, 0, false},
		{"number above range", json.Number("1e19"), 0, false},
		{"min int64", float64(-1 << 63), -1 << 63, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Set(tt.raw).Int64()
			if got != tt.want || ok != tt.ok {
				t.Errorf("Int64(%v) = %d, %v, want %d, %v", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}
