package geom

import "testing"

func TestDirections_AreDistinctUnitVectors(t *testing.T) {
	seen := map[Point]bool{}
	for _, d := range Directions {
		if d.X < -1 || d.X > 1 || d.Y < -1 || d.Y > 1 || (d.X == 0 && d.Y == 0) {
			t.Fatalf("not a unit facing: %v", d)
		}
		if seen[d] {
			t.Fatalf("duplicate facing: %v", d)
		}
		seen[d] = true
		if !IsFacing(d.Neg()) {
			t.Fatalf("opposite of %v is not a facing", d)
		}
	}
	if IsFacing(Pt(0, 0)) || IsFacing(Pt(2, 0)) {
		t.Fatalf("IsFacing accepted a non-unit vector")
	}
}

func TestPointArithmetic(t *testing.T) {
	p := Pt(3, -2)
	if got := p.Add(East); got != Pt(4, -2) {
		t.Fatalf("Add: got %v", got)
	}
	if got := p.Sub(Pt(1, 1)); got != Pt(2, -3) {
		t.Fatalf("Sub: got %v", got)
	}
	if got := SouthWest.Mul(3); got != Pt(-3, 3) {
		t.Fatalf("Mul: got %v", got)
	}
	if got := NorthEast.Neg(); got != SouthWest {
		t.Fatalf("Neg: got %v", got)
	}
}

func TestBox_ContainmentAndBoundary(t *testing.T) {
	b := Bx(2, 2, 6, 5)
	cases := []struct {
		p        Point
		contains bool
		boundary bool
	}{
		{Pt(2, 2), true, true},
		{Pt(6, 5), true, true},
		{Pt(4, 3), true, false},
		{Pt(4, 5), true, true},
		{Pt(1, 3), false, false},
		{Pt(7, 5), false, false},
	}
	for _, c := range cases {
		if got := b.Contains(c.p); got != c.contains {
			t.Fatalf("Contains(%v)=%v want %v", c.p, got, c.contains)
		}
		if got := b.OnBoundary(c.p); got != c.boundary {
			t.Fatalf("OnBoundary(%v)=%v want %v", c.p, got, c.boundary)
		}
	}
	if b.Width() != 4 || b.Height() != 3 {
		t.Fatalf("size: %dx%d", b.Width(), b.Height())
	}
	if in := b.Interior(); in != Bx(3, 3, 5, 4) {
		t.Fatalf("Interior: %+v", in)
	}
}

func TestBox_Overlaps(t *testing.T) {
	a := Bx(0, 0, 4, 4)
	if !a.Overlaps(Bx(4, 4, 8, 8)) {
		t.Fatalf("corner-sharing boxes should overlap")
	}
	if a.Overlaps(Bx(5, 0, 8, 4)) {
		t.Fatalf("adjacent boxes should not overlap")
	}
	if !a.ContainsBox(Bx(1, 1, 3, 3)) || a.ContainsBox(Bx(1, 1, 5, 3)) {
		t.Fatalf("ContainsBox mismatch")
	}
}
