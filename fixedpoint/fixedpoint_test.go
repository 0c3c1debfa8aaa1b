package fixedpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromInt(t *testing.T) {
	for _, tc := range []struct {
		n    int
		want FP
	}{
		{0, 0},
		{1, 1 << FracBits},
		{-1, -(1 << FracBits)},
		{60, 60 << FracBits},
	} {
		if got := FromInt(tc.n); got != tc.want {
			t.Errorf("FromInt(%d) = %d, want %d", tc.n, got, tc.want)
		}
	}
}

func TestAddSub(t *testing.T) {
	x := FromInt(5)
	y := FromInt(3)

	require.Equal(t, FromInt(8), x.Add(y))
	require.Equal(t, FromInt(2), x.Sub(y))
	require.Equal(t, FromInt(7), x.AddInt(2))
	require.Equal(t, FromInt(-2), x.SubInt(7))
}

func TestMul(t *testing.T) {
	half := FromInt(1).DivInt(2)

	require.Equal(t, FromInt(1), half.Mul(FromInt(2)))
	require.Equal(t, FromInt(1).DivInt(4), half.Mul(half))
	require.Equal(t, FromInt(-3), FromInt(3).Mul(FromInt(-1)))

	// widened intermediate: 1000 * 1000 would overflow a raw int32
	// product of the representations
	require.Equal(t, FromInt(1000000), FromInt(1000).Mul(FromInt(1000)))
}

func TestMulInt(t *testing.T) {
	require.Equal(t, FromInt(600), FromInt(6).MulInt(100))
	require.Equal(t, FromInt(-600), FromInt(6).MulInt(-100))
}

func TestDiv(t *testing.T) {
	require.Equal(t, FromInt(2), FromInt(10).Div(FromInt(5)))

	// pre-scaled dividend keeps the fractional quotient
	third := FromInt(1).Div(FromInt(3))
	assert.Equal(t, FromInt(1).DivInt(3), third)
	assert.Equal(t, 0, third.Trunc())
}

func TestDivInt(t *testing.T) {
	require.Equal(t, FromInt(5), FromInt(100).DivInt(20))

	// truncation toward zero, both signs
	assert.Equal(t, FP(FromInt(1)/3), FromInt(1).DivInt(3))
	assert.Equal(t, FP(FromInt(-1)/3), FromInt(-1).DivInt(3))
}

func TestTrunc(t *testing.T) {
	for _, tc := range []struct {
		x    FP
		want int
	}{
		{FromInt(3), 3},
		{FromInt(3).AddInt(0).Add(FromInt(9).DivInt(10)), 3}, // 3.9
		{FromInt(-3).Sub(FromInt(9).DivInt(10)), -3},         // -3.9
		{0, 0},
	} {
		if got := tc.x.Trunc(); got != tc.want {
			t.Errorf("Trunc(%d) = %d, want %d", tc.x, got, tc.want)
		}
	}
}

func TestRound_TiesAwayFromZero(t *testing.T) {
	half := FromInt(1).DivInt(2)

	for _, tc := range []struct {
		name string
		x    FP
		want int
	}{
		{"below half", FromInt(2).Add(FromInt(4).DivInt(10)), 2},
		{"above half", FromInt(2).Add(FromInt(6).DivInt(10)), 3},
		{"exactly half", FromInt(2).Add(half), 3},
		{"negative below half", FromInt(-2).Sub(FromInt(4).DivInt(10)), -2},
		{"negative above half", FromInt(-2).Sub(FromInt(6).DivInt(10)), -3},
		{"negative exactly half", FromInt(-2).Sub(half), -3},
		{"zero", 0, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.x.Round())
		})
	}
}

// TestSchedulerCoefficients pins the exact representations the scheduler
// formulas depend on, at 14 fractional bits.
func TestSchedulerCoefficients(t *testing.T) {
	// 59/60 and 1/60, the load average decay coefficients
	require.Equal(t, FP(16110), FromInt(59).DivInt(60))
	require.Equal(t, FP(273), FromInt(1).DivInt(60))

	// (2*la)/(2*la + 1) for la = 1/60
	la := FromInt(1).DivInt(60)
	coef := la.MulInt(2).Div(la.MulInt(2).AddInt(1))
	require.Equal(t, FP(528), coef)

	// decayed recent_cpu for a thread that ran 100 ticks at la = 1/60
	rc := coef.Mul(FromInt(100))
	require.Equal(t, 322, rc.MulInt(100).Round())
}
