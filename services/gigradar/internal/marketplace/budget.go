package marketplace

import "strconv"

const BudgetNotSpecified = "Not specified"

type BudgetInput struct {
	FixedAmount float64
	HourlyMin   float64
	HourlyMax   float64
	Weekly      float64
}

// FormatBudget picks the display string and numeric value for a posting.
// Fixed price wins, then an hourly range, then an open hourly minimum, then
// a weekly retainer. A zero hourly minimum never produces an hourly label.
func FormatBudget(in BudgetInput) (string, float64) {
	switch {
	case in.FixedAmount > 0:
		return "$" + money(in.FixedAmount), in.FixedAmount
	case in.HourlyMin > 0 && in.HourlyMax > 0:
		return "$" + money(in.HourlyMin) + "-$" + money(in.HourlyMax) + "/hr", in.HourlyMin
	case in.HourlyMin > 0:
		return "$" + money(in.HourlyMin) + "+/hr", in.HourlyMin
	case in.Weekly > 0:
		return "$" + money(in.Weekly) + "/week", in.Weekly
	default:
		return BudgetNotSpecified, 0
	}
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
