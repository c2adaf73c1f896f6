package seats

import (
	"reflect"
	"testing"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		stock int
		want  string
	}{
		{0, StatusSoldOut},
		{-3, StatusSoldOut},
		{1, "1"},
		{20, "20"},
		{21, StatusAvailable},
		{500, StatusAvailable},
	}
	for _, tt := range tests {
		if got := Status(tt.stock); got != tt.want {
			t.Errorf("Status(%d) = %q, want %q", tt.stock, got, tt.want)
		}
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	for _, trainType := range []string{"G", "D", "K", "T", "Z"} {
		for i := 0; i < 50; i++ {
			a := Synthesize(trainType, i)
			b := Synthesize(trainType, i)
			if !reflect.DeepEqual(a, b) {
				t.Fatalf("Synthesize(%s, %d) not deterministic", trainType, i)
			}
		}
	}
}

func TestSynthesize_CategorySets(t *testing.T) {
	fast := categories(Synthesize("G", 0))
	if want := []string{Business, FirstClass, Second, NoSeat}; !reflect.DeepEqual(fast, want) {
		t.Errorf("fast categories = %v, want %v", fast, want)
	}
	if d := categories(Synthesize("D", 4)); !reflect.DeepEqual(d, fast) {
		t.Errorf("D should share the fast seat set, got %v", d)
	}

	slow := categories(Synthesize("K", 0))
	if want := []string{SoftSleep, HardSleep, HardSeat, NoSeat}; !reflect.DeepEqual(slow, want) {
		t.Errorf("slow categories = %v, want %v", slow, want)
	}
}

func TestSynthesize_Cycles(t *testing.T) {
	// Every formula uses moduli that divide 360, so index and index+360 agree.
	for _, trainType := range []string{"G", "K"} {
		for i := 0; i < 20; i++ {
			if !reflect.DeepEqual(Synthesize(trainType, i), Synthesize(trainType, i+360)) {
				t.Errorf("%s index %d does not cycle", trainType, i)
			}
		}
	}
}

func TestOfferings_NoSeatHasNoPrice(t *testing.T) {
	for _, trainType := range []string{"G", "K"} {
		for i := 0; i < 10; i++ {
			for _, o := range Offerings(trainType, i) {
				if o.Type == NoSeat && o.Price != nil {
					t.Errorf("%s/%d: no-seat price = %d, want nil", trainType, i, *o.Price)
				}
				if o.Type != NoSeat && o.Price == nil {
					t.Errorf("%s/%d: %s has nil price", trainType, i, o.Type)
				}
			}
		}
	}
}

func TestMatrix_FixedShapeAndConsistent(t *testing.T) {
	for _, trainType := range []string{"G", "K"} {
		for i := 0; i < 10; i++ {
			m := Matrix(trainType, i)
			if len(m) != len(Canonical()) {
				t.Fatalf("matrix has %d cells, want %d", len(m), len(Canonical()))
			}
			for _, o := range Offerings(trainType, i) {
				cell := m[o.Type]
				if cell.Status != o.Status {
					t.Errorf("%s/%d %s: matrix status %q, offering %q", trainType, i, o.Type, cell.Status, o.Status)
				}
				if !reflect.DeepEqual(cell.Price, o.Price) {
					t.Errorf("%s/%d %s: matrix price differs from offering", trainType, i, o.Type)
				}
			}
		}
	}

	m := Matrix("G", 0)
	if m[HardSeat].Status != StatusAbsent || m[HardSeat].Price != nil {
		t.Errorf("high-speed train should have absent hard seat, got %+v", m[HardSeat])
	}
}

func TestPriceOf(t *testing.T) {
	offers := Offerings("G", 2)
	if p, ok := PriceOf(offers, Second); !ok || p != 560 {
		t.Errorf("PriceOf(second) = %d, %v; want 560, true", p, ok)
	}
	if _, ok := PriceOf(offers, NoSeat); ok {
		t.Error("no-seat should report no price")
	}
	if _, ok := PriceOf(offers, HardSleep); ok {
		t.Error("absent category should report no price")
	}
	if !Has(offers, NoSeat) || Has(offers, HardSleep) {
		t.Error("Has() mismatch")
	}
}

func categories(raw []Raw) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.Category)
	}
	return out
}
