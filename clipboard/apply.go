package clipboard

// Outcome reports how far Apply got with a transcript.
type Outcome int

const (
	OutcomeCopied Outcome = iota
	OutcomePasted
)

// Replaceable in tests; the real implementations touch the system clipboard
// and input devices.
var (
	copyFn  = Copy
	pasteFn = Paste
)

// Apply puts text on the clipboard and, when autoPaste is on, simulates the
// platform paste chord into the focused window.
func Apply(text string, autoPaste bool) (Outcome, error) {
	if err := copyFn(text); err != nil {
		return OutcomeCopied, err
	}
	if !autoPaste {
		return OutcomeCopied, nil
	}
	if err := pasteFn(); err != nil {
		return OutcomeCopied, err
	}
	return OutcomePasted, nil
}
