package emote

import (
	"slices"
	"testing"

	"golang.org/x/net/html"
)

func anchor(href string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "a", Attr: []html.Attribute{{Key: "href", Val: href}}}
}

func TestBatch_Dedup(t *testing.T) {
	b := NewBatch()
	region := &html.Node{Type: html.ElementNode, Data: "div"}

	var anchors []*html.Node
	for _, href := range []string{"/foo-a", "/bar", "/foo-b", "/foo", "/r/ponies", "/u/x", "nope", "/bar-in"} {
		a := anchor(href)
		anchors = append(anchors, a)
		b.Add(Occurrence{Region: region, Anchor: a, Raw: href})
	}

	if got, want := b.Names(), []Name{"/foo", "/bar"}; !slices.Equal(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}
	if b.Count() != 5 {
		t.Errorf("Count() = %d, want 5", b.Count())
	}

	foo := b.Occurrences("/foo")
	if len(foo) != 3 {
		t.Fatalf("occurrences of /foo = %d, want 3", len(foo))
	}
	for i, idx := range []int{0, 2, 3} {
		if foo[i].Anchor != anchors[idx] {
			t.Errorf("occurrence %d of /foo has wrong anchor", i)
		}
		if foo[i].Region != region {
			t.Errorf("occurrence %d of /foo has wrong region", i)
		}
	}
	bar := b.Occurrences("/bar")
	if len(bar) != 2 || bar[1].Raw != "/bar-in" {
		t.Errorf("occurrences of /bar = %+v", bar)
	}
}

func TestBatch_Rejected(t *testing.T) {
	b := NewBatch()
	for _, href := range []string{"/r/ponies", "/u/someone", "", "relative", "https://x/y"} {
		if name, ok := b.Add(Occurrence{Anchor: anchor(href), Raw: href}); ok {
			t.Errorf("Add(%q) accepted as %q", href, name)
		}
	}
	if b.Len() != 0 || b.Count() != 0 {
		t.Errorf("batch not empty: len %d count %d", b.Len(), b.Count())
	}
	if len(b.Names()) != 0 {
		t.Errorf("Names() = %v, want empty", b.Names())
	}
}

// Request size depends on distinct names only.
func TestBatch_SizeIndependentOfOccurrences(t *testing.T) {
	for _, n := range []int{1, 5, 50} {
		b := NewBatch()
		for i := range n {
			href := "/foo-a"
			if i%2 == 1 {
				href = "/foo-b"
			}
			b.Add(Occurrence{Anchor: anchor(href), Raw: href})
		}
		if b.Len() != 1 {
			t.Errorf("n=%d: Len() = %d, want 1", n, b.Len())
		}
		if b.Count() != n {
			t.Errorf("n=%d: Count() = %d", n, b.Count())
		}
	}
}

func TestBatch_NamesCopy(t *testing.T) {
	b := NewBatch()
	b.Add(Occurrence{Raw: "/a"})
	names := b.Names()
	names[0] = "/changed"
	if b.Names()[0] != "/a" {
		t.Error("Names() exposes internal slice")
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		rec     Record
		wantErr bool
	}{
		{Record{Name: "/a", Class: "bpmotes-a"}, false},
		{Record{Name: "a", Class: "bpmotes-a"}, true},
		{Record{Name: "/a", Class: ""}, true},
		{Record{Name: "/a", Class: "  "}, true},
		{Record{Name: "/a", Class: "x y"}, true},
	}
	for _, tt := range tests {
		if err := tt.rec.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v) error = %v, wantErr %v", tt.rec, err, tt.wantErr)
		}
	}
}

func TestResults(t *testing.T) {
	res := Unresolved([]Name{"/a", "/b"})
	if len(res) != 2 || res.Resolved() != 0 {
		t.Fatalf("Unresolved() = %+v", res)
	}
	res["/a"] = Result{Record: Record{Name: "/a", Class: "c"}, Resolved: true}
	if res.Resolved() != 1 {
		t.Errorf("Resolved() = %d, want 1", res.Resolved())
	}
	if res.Get("/missing").Resolved {
		t.Error("absent name reported as resolved")
	}
}
