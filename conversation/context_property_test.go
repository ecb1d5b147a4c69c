package conversation

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/flockwise/agrirag/normalize"
)

// Property: updating context twice never loses a previously set entity unless
// the second update supplies a replacement for that specific entity.
func TestProperty_Context_MergeNeverLosesEntities(t *testing.T) {
	breeds := []string{"", "Ross 308", "Cobb 500", "Hubbard Flex"}
	sexes := []normalize.Sex{normalize.SexUnknown, normalize.SexMale, normalize.SexFemale}
	metrics := []normalize.Metric{normalize.MetricUnknown, normalize.MetricBodyWeight, normalize.MetricFCR}

	genEntities := func(rt *rapid.T, label string) EntitySet {
		return EntitySet{
			Breed:   rapid.SampledFrom(breeds).Draw(rt, label+"_breed"),
			AgeDays: rapid.IntRange(0, 60).Draw(rt, label+"_age"),
			Sex:     rapid.SampledFrom(sexes).Draw(rt, label+"_sex"),
			Metric:  rapid.SampledFrom(metrics).Draw(rt, label+"_metric"),
		}
	}

	rapid.Check(t, func(rt *rapid.T) {
		first := genEntities(rt, "first")
		second := genEntities(rt, "second")

		m := NewManager(zap.NewNop())
		m.Update("s", "q1", "", first)
		m.Update("s", "q2", "", second)

		ctx := m.Get("s")
		require.NotNil(rt, ctx)

		// 第二轮未提供的字段必须保留第一轮的值
		if second.Breed == "" {
			require.Equal(rt, first.Breed, ctx.Breed)
		} else {
			require.Equal(rt, second.Breed, ctx.Breed)
		}
		if second.AgeDays == 0 {
			require.Equal(rt, first.AgeDays, ctx.AgeDays)
		} else {
			require.Equal(rt, second.AgeDays, ctx.AgeDays)
		}
		if second.Sex == normalize.SexUnknown {
			require.Equal(rt, first.Sex, ctx.Sex)
		} else {
			require.Equal(rt, second.Sex, ctx.Sex)
		}
		if second.Metric == normalize.MetricUnknown {
			require.Equal(rt, first.Metric, ctx.Metric)
		} else {
			require.Equal(rt, second.Metric, ctx.Metric)
		}
	})
}

// Property: expansion output contains every context entity not overridden by
// the current query.
func TestProperty_Expand_ContextEntitiesSurvive(t *testing.T) {
	r := newTestResolver()

	rapid.Check(t, func(rt *rapid.T) {
		ctx := &Context{
			Breed:   rapid.SampledFrom([]string{"Ross 308", "Cobb 500"}).Draw(rt, "breed"),
			AgeDays: rapid.IntRange(1, 60).Draw(rt, "age"),
			Metric:  normalize.MetricBodyWeight,
		}

		expanded, ok := r.Expand(ctx, "and for females?")
		require.True(rt, ok)
		require.Contains(rt, expanded, ctx.Breed)
		require.Contains(rt, expanded, "female")
		require.Contains(rt, expanded, "body weight")
	})
}
