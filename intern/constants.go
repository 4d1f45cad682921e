package intern

// InitialCapacity is the slot count of the first generation. Fixed at
// 65536 so the identifier formula comes out with the first generation's
// id range exactly [1, 65536].
const InitialCapacity = 65536

// growthNumerator/growthDenominator express the exact 3/4 growth
// threshold: a generation grows the instant its claimed-slot count equals
// capacity*3/4, not merely exceeds it.
const (
	growthNumerator   = 3
	growthDenominator = 4
)
