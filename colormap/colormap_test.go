package colormap

import (
	"image/color"
	"math"
	"testing"

	"go.viam.com/test"
)

func TestRainbow(t *testing.T) {
	red := color.NRGBA{255, 0, 0, 255}
	cyan := color.NRGBA{0, 255, 255, 255}

	test.That(t, Rainbow.Map(0), test.ShouldResemble, red)
	test.That(t, Rainbow.Map(1), test.ShouldResemble, red)
	test.That(t, Rainbow.Map(-3), test.ShouldResemble, red)
	test.That(t, Rainbow.Map(0.5), test.ShouldResemble, cyan)
	test.That(t, Rainbow.Map(1.5), test.ShouldResemble, cyan)
	test.That(t, Rainbow.Map(-0.5), test.ShouldResemble, cyan)
	test.That(t, InverseRainbow.Map(0.5), test.ShouldResemble, cyan)

	// deterministic
	test.That(t, Rainbow.Map(0.123), test.ShouldResemble, Rainbow.Map(0.123))
}

func TestTotal(t *testing.T) {
	for _, cm := range []ColorMap{Rainbow, InverseRainbow, Grayscale, InverseGrayscale, Ironbow} {
		for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1e300, 1e300} {
			c := cm.Map(v)
			test.That(t, c.A, test.ShouldEqual, 255)
		}
		test.That(t, cm.Map(math.NaN()), test.ShouldResemble, Invalid)
	}
}

func TestGrayscale(t *testing.T) {
	test.That(t, Grayscale.Map(0), test.ShouldResemble, color.NRGBA{0, 0, 0, 255})
	test.That(t, Grayscale.Map(1), test.ShouldResemble, color.NRGBA{255, 255, 255, 255})
	test.That(t, Grayscale.Map(7), test.ShouldResemble, color.NRGBA{255, 255, 255, 255})
	test.That(t, Grayscale.Map(-7), test.ShouldResemble, color.NRGBA{0, 0, 0, 255})
	test.That(t, InverseGrayscale.Map(0), test.ShouldResemble, color.NRGBA{255, 255, 255, 255})
}

func TestIronbow(t *testing.T) {
	test.That(t, Ironbow.Map(0), test.ShouldResemble, color.NRGBA{0, 0, 0, 255})
	test.That(t, Ironbow.Map(0.5), test.ShouldResemble, color.NRGBA{255, 138, 0, 255})
	test.That(t, Ironbow.Map(1), test.ShouldResemble, color.NRGBA{255, 255, 255, 255})
	test.That(t, Ironbow.Map(2), test.ShouldResemble, color.NRGBA{255, 255, 255, 255})
}

func TestRanged(t *testing.T) {
	r := Ranged{Base: Grayscale, Min: 10, Max: 20}
	test.That(t, r.Map(10), test.ShouldResemble, color.NRGBA{0, 0, 0, 255})
	test.That(t, r.Map(20), test.ShouldResemble, color.NRGBA{255, 255, 255, 255})
	test.That(t, r.Map(30), test.ShouldResemble, color.NRGBA{255, 255, 255, 255})

	degenerate := Ranged{Min: 1, Max: 1}
	test.That(t, degenerate.Map(5), test.ShouldResemble, Rainbow.Map(0))
}

func TestByName(t *testing.T) {
	cm, err := ByName("IronBow")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cm.Map(0.5), test.ShouldResemble, Ironbow.Map(0.5))

	cm, err = ByName("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cm.Map(0.5), test.ShouldResemble, Rainbow.Map(0.5))

	_, err = ByName("viridis")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "viridis")
}
