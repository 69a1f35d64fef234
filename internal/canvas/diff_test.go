package canvas

import "testing"

func TestReverseAdd(t *testing.T) {
	node := Node{ID: "n1", Kind: "note"}
	d := AddDiff(node)

	rev := d.Reverse()
	if rev.Type != DiffDelete {
		t.Fatalf("expected delete, got %s", rev.Type)
	}
	if rev.ID != "n1" {
		t.Errorf("expected id n1, got %s", rev.ID)
	}
	if rev.From == nil || rev.From.ID != "n1" {
		t.Errorf("expected From to carry the added node")
	}
}

func TestReverseDelete(t *testing.T) {
	node := Node{ID: "n1", Kind: "note"}
	d := DeleteDiff(node)

	rev := d.Reverse()
	if rev.Type != DiffAdd {
		t.Fatalf("expected add, got %s", rev.Type)
	}
	if rev.To == nil || rev.To.Kind != "note" {
		t.Errorf("expected To to carry the prior value")
	}
}

func TestReverseDeleteWithoutFrom(t *testing.T) {
	d := Diff[Node]{Type: DiffDelete, ID: "n1"}

	rev := d.Reverse()
	if rev.Type != DiffAdd {
		t.Fatalf("expected add, got %s", rev.Type)
	}
	if rev.To != nil {
		t.Errorf("expected nil To for a delete without a captured prior value")
	}
}

func TestReverseUpdateSwapsFromTo(t *testing.T) {
	from := Node{ID: "n1", Kind: "note"}
	to := Node{ID: "n1", Kind: "image"}
	d := UpdateDiff(from, to)

	rev := d.Reverse()
	if rev.Type != DiffUpdate {
		t.Fatalf("expected update, got %s", rev.Type)
	}
	if rev.From.Kind != "image" || rev.To.Kind != "note" {
		t.Errorf("expected From/To swapped, got From=%s To=%s", rev.From.Kind, rev.To.Kind)
	}
}

func TestReverseIsInvolution(t *testing.T) {
	d := UpdateDiff(Node{ID: "n1", Kind: "a"}, Node{ID: "n1", Kind: "b"})

	twice := d.Reverse().Reverse()
	if twice.Type != d.Type || twice.From.Kind != d.From.Kind || twice.To.Kind != d.To.Kind {
		t.Errorf("reversing twice should restore the original diff")
	}
}
