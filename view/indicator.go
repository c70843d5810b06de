package view

import "time"

const (
	loadingText = "Loading dataset...\nPlease wait"
	readyText   = "Dataset ready!"
	failedText  = "Dataset failed to load."
)

// Indicator is the loading notice. It shows while the loader works, says
// the dataset is ready once it has finished, then hides after HideDelay.
type Indicator struct {
	HideDelay time.Duration

	text       string
	visible    bool
	wasLoading bool
	hiding     bool
	remaining  time.Duration
}

func NewIndicator(hideDelay time.Duration) *Indicator {
	return &Indicator{HideDelay: hideDelay, text: loadingText, visible: true}
}

// Update moves the indicator forward by dt given the loader's state.
func (in *Indicator) Update(loading, loaded, failed bool, dt time.Duration) {
	switch {
	case failed:
		in.text, in.visible, in.hiding = failedText, true, false
	case loading || !loaded:
		in.text, in.visible, in.hiding = loadingText, true, false
		in.wasLoading = true
	case in.wasLoading:
		in.text = readyText
		in.wasLoading = false
		in.hiding, in.remaining = true, in.HideDelay
	case !in.hiding:
		// Loaded before the indicator ever saw it loading.
		in.visible = false
	}

	if in.hiding {
		if in.remaining <= 0 {
			in.visible, in.hiding = false, false
		}
		in.remaining -= dt
	}
}

func (in *Indicator) Visible() bool { return in.visible }
func (in *Indicator) Text() string  { return in.text }
