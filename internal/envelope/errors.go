package envelope

import "github.com/rotisserie/eris"

// Contract violations. All of them abort the whole call; missing values never
// produce an error.
var (
	ErrInvalidParameter        = eris.New("invalid parameter")
	ErrShapeMismatch           = eris.New("shape mismatch")
	ErrVariableMismatch        = eris.New("variable mismatch")
	ErrVariableOrderConflict   = eris.New("variable order conflict")
	ErrUnsupportedVariableType = eris.New("unsupported variable type")
	ErrInsufficientData        = eris.New("insufficient data")
)
