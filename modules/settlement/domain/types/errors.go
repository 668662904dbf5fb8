package types

import "errors"

// Error texts are stable codes; the HTTP layer surfaces them verbatim.
var (
	ErrPayrollNotFound      = errors.New("SETTLEMENT_PAYROLL_NOT_FOUND")
	ErrSettlementNotFound   = errors.New("SETTLEMENT_NOT_FOUND")
	ErrSettlementConflict   = errors.New("SETTLEMENT_ALREADY_EXISTS")
	ErrConfigurationMissing = errors.New("SETTLEMENT_CONFIGURATION_MISSING")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrPayrollNotFound) || errors.Is(err, ErrSettlementNotFound)
}

func IsConflict(err error) bool { return errors.Is(err, ErrSettlementConflict) }

func IsConfigurationMissing(err error) bool { return errors.Is(err, ErrConfigurationMissing) }

// Code returns the stable code of the first taxonomy error in err's chain.
func Code(err error) string {
	for _, sentinel := range []error{ErrPayrollNotFound, ErrSettlementNotFound, ErrSettlementConflict, ErrConfigurationMissing} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return ""
}
