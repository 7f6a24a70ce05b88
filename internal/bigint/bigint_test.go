package bigint

import "testing"

// TestRing_AddSubInverse checks the BigInt ring properties that must hold
// for every pair of BigInts.
func TestRing_AddSubInverse(t *testing.T) {
	cases := [][2]int64{
		{5, 3}, {-5, 3}, {5, -3}, {-5, -3}, {0, 7}, {7, 0}, {123456789, 987654321},
	}
	for _, c := range cases {
		a, b := FromInt64(c[0]), FromInt64(c[1])

		if got := a.Add(b).Sub(b); got.Cmp(a) != 0 {
			t.Errorf("(%d + %d) - %d = %s, want %d", c[0], c[1], c[1], got.ToString(10), c[0])
		}
		if got := a.Add(a.Neg()); !got.IsZero() {
			t.Errorf("%d + (-%d) = %s, want 0", c[0], c[0], got.ToString(10))
		}
		if c[1] != 0 {
			if got := a.Mul(b).DivModMust(b); got.Cmp(a) != 0 {
				t.Errorf("(%d * %d) / %d = %s, want %d", c[0], c[1], c[1], got.ToString(10), c[0])
			}
		}
	}
}

// DivModMust is a test-only convenience that panics on error; division by
// zero is excluded by the cases above.
func (a *Int) DivModMust(b *Int) *Int {
	q, _, err := a.DivMod(b)
	if err != nil {
		panic(err)
	}
	return q
}

func TestAsIntNRoundTrip(t *testing.T) {
	vals := []int64{0, 1, -1, 127, 128, -128, -129, 255, 256, 1000000}
	for _, v := range vals {
		x := FromInt64(v)
		for _, n := range []uint{1, 8, 16, 32, 64} {
			left := AsIntN(n, AsUintN(n, x))
			right := AsIntN(n, x)
			if left.Cmp(right) != 0 {
				t.Errorf("asIntN(%d, asUintN(%d, %d)) = %s, want asIntN(%d,_) = %s",
					n, n, v, left.ToString(10), n, right.ToString(10))
			}
		}
	}
}

func TestExponentiate(t *testing.T) {
	two := FromInt64(2)
	sixtyFour := FromInt64(64)
	result, err := two.Exp(sixtyFour)
	if err != nil {
		t.Fatal(err)
	}
	one := FromInt64(1)
	got := result.Sub(one).ToString(10)
	want := "18446744073709551615"
	if got != want {
		t.Errorf("2**64 - 1 = %s, want %s", got, want)
	}
}

func TestExponentiateNegativeRejected(t *testing.T) {
	two := FromInt64(2)
	if _, err := two.Exp(FromInt64(-1)); err == nil {
		t.Error("expected error for negative exponent")
	}
}

func TestDivideByZero(t *testing.T) {
	if _, _, err := FromInt64(1).DivMod(FromInt64(0)); err == nil {
		t.Error("expected RangeError dividing by zero")
	}
}

func TestShiftLeftRight(t *testing.T) {
	x := FromInt64(-5)
	shifted := x.ShiftLeft(3).ShiftRight(3)
	if shifted.Cmp(x) != 0 {
		t.Errorf("(-5 << 3) >> 3 = %s, want -5", shifted.ToString(10))
	}
}

func TestToStringRadix(t *testing.T) {
	x := FromInt64(255)
	if got := x.ToString(16); got != "ff" {
		t.Errorf("255 in base 16 = %q, want %q", got, "ff")
	}
	neg := FromInt64(-255)
	if got := neg.ToString(16); got != "-ff" {
		t.Errorf("-255 in base 16 = %q, want %q", got, "-ff")
	}
}

func TestParseString(t *testing.T) {
	v, err := ParseString("-ff", 16)
	if err != nil {
		t.Fatal(err)
	}
	if v.Cmp(FromInt64(-255)) != 0 {
		t.Errorf("parsed %s, want -255", v.ToString(10))
	}
	if _, err := ParseString("12g", 16); err == nil {
		t.Error("expected SyntaxError for invalid digit")
	}
}

func TestFromFloat64Roundtrip(t *testing.T) {
	v, err := FromFloat64(12345.0)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.ToFloat64(); got != 12345.0 {
		t.Errorf("roundtrip got %v, want 12345", got)
	}
	if _, err := FromFloat64(1.5); err == nil {
		t.Error("expected RangeError for non-integral float")
	}
}
