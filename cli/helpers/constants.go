package helpers

// Mode is how a command renders its results.
type Mode string

const (
	ModeJSON Mode = "json"
	ModeText Mode = "text"
)

// Values accepted by --output.
const (
	OutputAuto = "auto"
	OutputJSON = "json"
	OutputText = "text"
)
