package plugin

import (
	"fmt"
	"math"
)

const builtinVersion = "0.0.0.1"

// narrow converts a widened result back to int32, failing on overflow.
func narrow(v int64) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d", ErrOverflow, v)
	}
	return int32(v), nil
}

// AddPlugin adds two numbers.
type AddPlugin struct{ meta }

func newAddPlugin() Plugin {
	return &AddPlugin{meta{id: "AddPlugin", version: builtinVersion, text: "Adds two numbers"}}
}

func (p *AddPlugin) Run(a, b int32) (int32, error) {
	return narrow(int64(a) + int64(b))
}

// MultiplyPlugin multiplies two numbers.
type MultiplyPlugin struct{ meta }

func newMultiplyPlugin() Plugin {
	return &MultiplyPlugin{meta{id: "MultiplyPlugin", version: builtinVersion, text: "Multiplies two numbers"}}
}

func (p *MultiplyPlugin) Run(a, b int32) (int32, error) {
	return narrow(int64(a) * int64(b))
}

// DividePlugin divides a by b and refuses to round.
type DividePlugin struct{ meta }

func newDividePlugin() Plugin {
	return &DividePlugin{meta{
		id:      "DividePlugin",
		version: builtinVersion,
		text:    "Divides the first number by the second. Fails if the result would have to be rounded",
	}}
}

func (p *DividePlugin) Run(a, b int32) (int32, error) {
	if b == 0 {
		return 0, fmt.Errorf("%w: %d / 0", ErrDivideByZero, a)
	}
	if a%b != 0 {
		return 0, fmt.Errorf("%w: %d / %d is not exact", ErrPrecisionLoss, a, b)
	}
	return narrow(int64(a) / int64(b))
}

// DivideWithRoundPlugin divides a by b, truncating toward zero.
type DivideWithRoundPlugin struct{ meta }

func newDivideWithRoundPlugin() Plugin {
	return &DivideWithRoundPlugin{meta{
		id:      "DivideWithRoundPlugin",
		version: builtinVersion,
		text:    "Divides the first number by the second and rounds the result if needed",
	}}
}

func (p *DivideWithRoundPlugin) Run(a, b int32) (int32, error) {
	if b == 0 {
		return 0, fmt.Errorf("%w: %d / 0", ErrDivideByZero, a)
	}
	// int64 keeps MinInt32 / -1 from wrapping.
	return narrow(int64(a) / int64(b))
}

// PowPlugin raises a to the power b.
type PowPlugin struct{ meta }

func newPowPlugin() Plugin {
	return &PowPlugin{meta{
		id:      "PowPlugin",
		version: builtinVersion,
		text:    "Raises the first number to the power given by the second",
	}}
}

func (p *PowPlugin) Run(a, b int32) (int32, error) {
	if a == 1 || b == 0 {
		return 1, nil
	}
	if b < 0 {
		return 0, fmt.Errorf("%w: negative exponent %d", ErrInvalidArgument, b)
	}
	// 0 and -1 never overflow; skip the loop so huge exponents stay cheap.
	switch a {
	case 0:
		return 0, nil
	case -1:
		if b%2 == 0 {
			return 1, nil
		}
		return -1, nil
	}

	result := int64(1)
	for i := int32(0); i < b; i++ {
		result *= int64(a)
		if result < math.MinInt32 || result > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %d^%d", ErrOverflow, a, b)
		}
	}
	return int32(result), nil
}

// UltimateAnswerOfLifeAndUniverseAndEverythingPlugin answers the ultimate
// question of life, the universe, and everything.
type UltimateAnswerOfLifeAndUniverseAndEverythingPlugin struct{ meta }

func newUltimateAnswerPlugin() Plugin {
	return &UltimateAnswerOfLifeAndUniverseAndEverythingPlugin{meta{
		id:      "UltimateAnswerOfLifeAndUniverseAndEverythingPlugin",
		name:    "Deep Thought",
		version: "Ended Version",
		text:    "If you happen to be in space looking for the answer to the ultimate question of life, the universe, and everything, use this plugin",
	}}
}

func (p *UltimateAnswerOfLifeAndUniverseAndEverythingPlugin) Run(_, _ int32) (int32, error) {
	return 42, nil
}
