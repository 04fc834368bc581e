// File: internal/geometry/viewport.go
package geometry

// ChromeOffsets describes the device browser chrome that eats into the usable
// page area: status bar on top, address bar below it, optional navigation bar
// at the bottom.
type ChromeOffsets struct {
	StatusBar  int
	AddressBar int
	NavBar     int
}

// Viewport captures the device screen and the portion of it the page actually
// renders into. All scroll predictions are made against the effective height;
// a plan computed against the raw screen height would systematically overshoot.
type Viewport struct {
	ScreenWidth  int
	ScreenHeight int
	Chrome       ChromeOffsets
}

// NewViewport builds the viewport geometry for a device screen.
func NewViewport(screenWidth, screenHeight int, chrome ChromeOffsets) Viewport {
	return Viewport{
		ScreenWidth:  screenWidth,
		ScreenHeight: screenHeight,
		Chrome:       chrome,
	}
}

// EffectiveHeight is the page-visible height in pixels.
func (v Viewport) EffectiveHeight() int {
	return v.ScreenHeight - v.Chrome.StatusBar - v.Chrome.AddressBar - v.Chrome.NavBar
}

// Valid reports whether the geometry can support a prediction. Any plan built
// on an invalid viewport must be abandoned, not actuated.
func (v Viewport) Valid() bool {
	return v.ScreenWidth > 0 && v.ScreenHeight > 0 && v.EffectiveHeight() > 0
}
