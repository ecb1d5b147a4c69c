package normalize

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_BucketAgeTotalAndMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("every age maps to exactly one band", prop.ForAll(
		func(days int) bool {
			switch BucketAge(days) {
			case BandStarter, BandGrower, BandFinisher, BandWithdrawal:
				return true
			default:
				return false
			}
		},
		gen.IntRange(0, 500),
	))

	order := map[AgeBand]int{
		BandStarter:    0,
		BandGrower:     1,
		BandFinisher:   2,
		BandWithdrawal: 3,
	}
	properties.Property("band never moves backward as age grows", prop.ForAll(
		func(days int) bool {
			return order[BucketAge(days)] <= order[BucketAge(days+1)]
		},
		gen.IntRange(0, 500),
	))

	properties.Property("band boundaries hold", prop.ForAll(
		func(days int) bool {
			band := BucketAge(days)
			switch {
			case days <= 10:
				return band == BandStarter
			case days <= 24:
				return band == BandGrower
			case days <= 42:
				return band == BandFinisher
			default:
				return band == BandWithdrawal
			}
		},
		gen.IntRange(0, 500),
	))

	properties.TestingRun(t)
}

func TestProperty_ParseAgeDaysWeeksConversion(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("N weeks parses to N*7 days", prop.ForAll(
		func(weeks int) bool {
			days, ok := ParseAgeDays(fmt.Sprintf("weight at %d weeks", weeks))
			return ok && days == weeks*7
		},
		gen.IntRange(1, 12),
	))

	properties.Property("N days parses to N", prop.ForAll(
		func(n int) bool {
			days, ok := ParseAgeDays(fmt.Sprintf("intake at %d days", n))
			return ok && days == n
		},
		gen.IntRange(1, 120),
	))

	properties.Property("explicit days beat bare numbers", prop.ForAll(
		func(n int) bool {
			got, ok := ParseBareAge(fmt.Sprintf("%d", n))
			if n >= 1 && n <= 120 {
				return ok && got == n
			}
			return !ok
		},
		gen.IntRange(1, 300),
	))

	properties.TestingRun(t)
}

func TestProperty_ParseWeightAlwaysGrams(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("kilograms convert to grams", prop.ForAll(
		func(kg int) bool {
			q, ok := ParseWeight(fmt.Sprintf("target of %d kg", kg))
			return ok && q.Unit == "g" && q.Value == float64(kg)*1000
		},
		gen.IntRange(1, 10),
	))

	properties.Property("grams pass through unchanged", prop.ForAll(
		func(g int) bool {
			q, ok := ParseWeight(fmt.Sprintf("%d grams", g))
			return ok && q.Unit == "g" && q.Value == float64(g)
		},
		gen.IntRange(1, 5000),
	))

	properties.TestingRun(t)
}
