package rushtpl

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"INR": "₹",
	"KRW": "₩",
	"BDT": "৳",
}

// maxPlaces bounds the decimals round and percent produce.
const maxPlaces = 20

func roundTo(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

func roundHelper(_ Context, args ...any) (any, error) {
	f, ok := toNumber(arg(args, 0))
	if !ok {
		return nil, fmt.Errorf("round: %v is not a number", arg(args, 0))
	}
	return roundTo(f, min(argInt(args, 1, 0), maxPlaces)), nil
}

// currencyHelper formats with locale digit grouping and the currency's
// standard number of decimals: currency 1234.5 "USD" -> $1,234.50.
func (b *builtins) currencyHelper(ctx Context, args ...any) (any, error) {
	f, ok := toNumber(arg(args, 0))
	if !ok {
		return nil, fmt.Errorf("currency: %v is not a number", arg(args, 0))
	}
	code := strings.ToUpper(argString(args, 1, "USD"))
	locale := argString(args, 2, b.i18n.locale(ctx))

	scale := 2
	if unit, err := currency.ParseISO(code); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}

	p := message.NewPrinter(tag)
	amount := p.Sprint(number.Decimal(math.Abs(f), number.Scale(scale)))
	symbol, ok := currencySymbols[code]
	if !ok {
		symbol = code + " "
	}
	if f < 0 {
		return "-" + symbol + amount, nil
	}
	return symbol + amount, nil
}

// percentHelper renders a ratio as a percentage: percent 0.256 1 -> 25.6%.
func percentHelper(_ Context, args ...any) (any, error) {
	f, ok := toNumber(arg(args, 0))
	if !ok {
		return nil, fmt.Errorf("percent: %v is not a number", arg(args, 0))
	}
	places := max(0, min(argInt(args, 1, 0), maxPlaces))
	return strconv.FormatFloat(roundTo(f*100, places), 'f', places, 64) + "%", nil
}

func arithmetic(op func(a, b float64) float64) HelperFunc {
	return func(_ Context, args ...any) (any, error) {
		if len(args) == 0 {
			return 0, nil
		}
		acc, ok := toNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("%v is not a number", args[0])
		}
		for _, a := range args[1:] {
			f, ok := toNumber(a)
			if !ok {
				return nil, fmt.Errorf("%v is not a number", a)
			}
			acc = op(acc, f)
		}
		return acc, nil
	}
}

var errDivideByZero = errors.New("division by zero")

func divHelper(ctx Context, args ...any) (any, error) {
	for _, a := range args[min(1, len(args)):] {
		if f, ok := toNumber(a); ok && f == 0 {
			return nil, errDivideByZero
		}
	}
	return arithmetic(func(a, b float64) float64 { return a / b })(ctx, args...)
}
