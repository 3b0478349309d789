package rushtpl

import (
	"time"
)

// builtins holds the state shared by the built-in helpers.
type builtins struct {
	now  func() time.Time
	i18n *translator
}

func (b *builtins) register(r *Registry) {
	for name, fn := range b.funcs() {
		r.RegisterHelper(name, fn)
	}
}

func (b *builtins) funcs() map[string]HelperFunc {
	return map[string]HelperFunc{
		// strings
		"upper":      stringHelper(upper),
		"lower":      stringHelper(lower),
		"capitalize": stringHelper(capitalize),
		"title":      stringHelper(title),
		"trim":       stringHelper(fastTrim),
		"slugify":    stringHelper(slugify),
		"truncate":   truncateHelper,
		"replace":    replaceHelper,
		"concat":     concatHelper,

		// dates
		"formatDate": formatDateHelper,
		"timeAgo":    b.timeAgoHelper,
		"now":        b.nowHelper,

		// numbers
		"round":    roundHelper,
		"currency": b.currencyHelper,
		"percent":  percentHelper,
		"add":      arithmetic(func(a, b float64) float64 { return a + b }),
		"sub":      arithmetic(func(a, b float64) float64 { return a - b }),
		"mul":      arithmetic(func(a, b float64) float64 { return a * b }),
		"div":      divHelper,

		// sequences and maps
		"first":   firstHelper,
		"last":    lastHelper,
		"slice":   sliceHelper,
		"sortBy":  sortByHelper,
		"reverse": reverseHelper,
		"join":    joinHelper,
		"unique":  uniqueHelper,
		"filter":  filterHelper,
		"map":     mapHelper,
		"length":  lengthHelper,
		"keys":    keysHelper,
		"values":  valuesHelper,
		"has":     hasHelper,

		// logic
		"eq":  compareHelper(func(c int, eq bool) bool { return eq }),
		"ne":  compareHelper(func(c int, eq bool) bool { return !eq }),
		"gt":  compareHelper(func(c int, eq bool) bool { return c > 0 }),
		"lt":  compareHelper(func(c int, eq bool) bool { return c < 0 }),
		"gte": compareHelper(func(c int, eq bool) bool { return c >= 0 }),
		"lte": compareHelper(func(c int, eq bool) bool { return c <= 0 }),
		"and": andHelper,
		"or":  orHelper,
		"not": notHelper,

		// misc
		"json":     jsonHelper,
		"default":  defaultHelper,
		"uuid":     uuidHelper,
		"jsonpath": jsonpathHelper,
		"t":        b.translateHelper,
		"tn":       b.translatePluralHelper,
	}
}
