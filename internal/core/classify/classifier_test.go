package classify

import (
	"testing"
	"time"

	v1 "github.com/aevon-lab/pricewatch/internal/api/v1"
	"github.com/aevon-lab/pricewatch/internal/core/pricestats"
	"github.com/aevon-lab/pricewatch/internal/projection"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var runAt = time.Date(2026, 3, 31, 8, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return runAt.Add(-time.Duration(n) * 24 * time.Hour)
}

func row(id string, at time.Time, price string) v1.Observation {
	p := decimal.RequireFromString(price)
	return v1.Observation{
		ObservedAt:   at,
		Source:       "Kilian",
		Name:         "Item " + id,
		Price:        p,
		Identifier:   id,
		Link:         "https://shop.example.com/" + id,
		PriceUnknown: p.IsZero(),
	}
}

func newClassifier(rows ...v1.Observation) *Classifier {
	return New(projection.Build(rows), Options{})
}

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name      string
		history   []v1.Observation
		obs       v1.Observation
		wantKind  Kind
		wantAlert bool
	}{
		{
			name:     "unknown price is unchanged even for new items",
			history:  []v1.Observation{row("A", daysAgo(1), "100")},
			obs:      row("B", runAt, "0"),
			wantKind: KindUnchanged,
		},
		{
			name:     "unknown price never drops",
			history:  []v1.Observation{row("A", daysAgo(1), "100")},
			obs:      row("A", runAt, "0"),
			wantKind: KindUnchanged,
		},
		{
			name:     "identifier first seen without a price is not new once priced",
			history:  []v1.Observation{row("A", daysAgo(2), "100"), row("B", daysAgo(1), "0")},
			obs:      row("B", runAt, "50"),
			wantKind: KindUnchanged,
		},
		{
			name:     "first run suppresses new",
			obs:      row("A", runAt, "100"),
			wantKind: KindFirstRunSeen,
		},
		{
			name:      "new item after first run",
			history:   []v1.Observation{row("A", daysAgo(1), "100")},
			obs:       row("B", runAt, "50"),
			wantKind:  KindNew,
			wantAlert: true,
		},
		{
			name:      "below all-time min",
			history:   []v1.Observation{row("A", daysAgo(40), "100"), row("A", daysAgo(1), "95")},
			obs:       row("A", runAt, "90"),
			wantKind:  KindAllTimeLow,
			wantAlert: true,
		},
		{
			name:      "equal to all-time min is not an all-time low",
			history:   []v1.Observation{row("A", daysAgo(40), "90"), row("A", daysAgo(1), "95")},
			obs:       row("A", runAt, "90"),
			wantKind:  KindMonthLow,
			wantAlert: true,
		},
		{
			name:      "month low when older history is lower",
			history:   []v1.Observation{row("A", daysAgo(60), "80"), row("A", daysAgo(2), "95")},
			obs:       row("A", runAt, "92"),
			wantKind:  KindMonthLow,
			wantAlert: true,
		},
		{
			name:     "equal to month min is not a low",
			history:  []v1.Observation{row("A", daysAgo(60), "80"), row("A", daysAgo(5), "92"), row("A", daysAgo(1), "92")},
			obs:      row("A", runAt, "92"),
			wantKind: KindUnchanged,
		},
		{
			name:      "plain drop",
			history:   []v1.Observation{row("A", daysAgo(60), "80"), row("A", daysAgo(5), "90"), row("A", daysAgo(1), "99")},
			obs:       row("A", runAt, "95"),
			wantKind:  KindPriceDrop,
			wantAlert: true,
		},
		{
			name:     "rise does not alert by default",
			history:  []v1.Observation{row("A", daysAgo(1), "95")},
			obs:      row("A", runAt, "99"),
			wantKind: KindPriceRise,
		},
		{
			name:     "equal to last price is unchanged",
			history:  []v1.Observation{row("A", daysAgo(1), "95")},
			obs:      row("A", runAt, "95.00"),
			wantKind: KindUnchanged,
		},
		{
			name:      "last known price skips unavailable rows",
			history:   []v1.Observation{row("A", daysAgo(60), "90"), row("A", daysAgo(10), "95"), row("A", daysAgo(2), "99"), row("A", daysAgo(1), "0")},
			obs:       row("A", runAt, "97"),
			wantKind:  KindPriceDrop,
			wantAlert: true,
		},
		{
			name:      "empty month window never triggers month low",
			history:   []v1.Observation{row("A", daysAgo(60), "80"), row("A", daysAgo(45), "100")},
			obs:       row("A", runAt, "90"),
			wantKind:  KindPriceDrop,
			wantAlert: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newClassifier(tc.history...)
			d := c.Classify(tc.obs)
			require.Equal(t, tc.wantKind, d.Kind)
			require.Equal(t, tc.wantAlert, d.Alert)
		})
	}
}

func TestClassifier_AllTimeLowPayload(t *testing.T) {
	c := newClassifier(row("A", daysAgo(3), "100"), row("A", daysAgo(1), "95"))

	d := c.Classify(row("A", runAt, "90"))

	require.Equal(t, KindAllTimeLow, d.Kind)
	require.True(t, d.PreviousPrice.Equal(decimal.NewFromInt(95)))
	require.True(t, d.Observation.Price.Equal(decimal.NewFromInt(90)))
	require.True(t, d.Savings().Equal(decimal.NewFromInt(5)))
	require.True(t, d.AllTimeMin.Equal(decimal.NewFromInt(95)))
}

func TestClassifier_PriorityMonthLowOverDrop(t *testing.T) {
	// all-time 80, month window {95}, new 92: not an all-time low, but a month low.
	c := newClassifier(row("A", daysAgo(45), "80"), row("A", daysAgo(3), "95"))

	d := c.Classify(row("A", runAt, "92"))

	require.Equal(t, KindMonthLow, d.Kind)
	require.True(t, d.MonthMin.Equal(decimal.NewFromInt(95)))
	require.True(t, d.AllTimeMin.Equal(decimal.NewFromInt(80)))
}

func TestClassifier_IdempotentUnderNoChange(t *testing.T) {
	previous := []v1.Observation{
		row("A", daysAgo(1), "100"),
		row("B", daysAgo(1), "50"),
		row("C", daysAgo(1), "0"),
	}
	c := newClassifier(previous...)

	for _, obs := range previous {
		obs.ObservedAt = runAt
		d := c.Classify(obs)
		require.Equal(t, KindUnchanged, d.Kind, obs.Identifier)
		require.False(t, d.Alert)
	}
}

func TestClassifier_FirstRunStaysFirstRun(t *testing.T) {
	c := newClassifier()
	require.True(t, c.FirstRun())

	for _, id := range []string{"A", "B", "C"} {
		d := c.Classify(row(id, runAt, "10"))
		require.Equal(t, KindFirstRunSeen, d.Kind, id)
		require.False(t, d.Alert)
	}
	require.True(t, c.FirstRun())
}

func TestClassifier_NoDuplicateAlertWithinRun(t *testing.T) {
	tests := []struct {
		name    string
		history []v1.Observation
		first   Kind
	}{
		{name: "new", history: []v1.Observation{row("X", daysAgo(1), "1")}, first: KindNew},
		{name: "all-time low", history: []v1.Observation{row("A", daysAgo(1), "100")}, first: KindAllTimeLow},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newClassifier(tc.history...)

			d := c.Classify(row("A", runAt, "90"))
			require.Equal(t, tc.first, d.Kind)
			require.True(t, d.Alert)

			repeat := c.Classify(row("A", runAt, "90"))
			require.Equal(t, KindUnchanged, repeat.Kind)
			require.False(t, repeat.Alert)
		})
	}
}

func TestClassifier_AlertOnRise(t *testing.T) {
	c := New(projection.Build([]v1.Observation{row("A", daysAgo(1), "95")}), Options{
		MonthWindow: pricestats.WindowSpec{Size: 7 * 24 * time.Hour},
		AlertOnRise: true,
	})

	d := c.Classify(row("A", runAt, "99"))
	require.Equal(t, KindPriceRise, d.Kind)
	require.True(t, d.Alert)
	require.True(t, d.Savings().IsZero())
}

func TestKind_Alerts(t *testing.T) {
	want := map[Kind]bool{
		KindFirstRunSeen: false,
		KindNew:          true,
		KindAllTimeLow:   true,
		KindMonthLow:     true,
		KindPriceDrop:    true,
		KindPriceRise:    false,
		KindUnchanged:    false,
	}
	for _, k := range Kinds {
		require.Equal(t, want[k], k.Alerts(), string(k))
	}
}

func TestClassifier_FirstRunRepeatNeverAlerts(t *testing.T) {
	c := newClassifier()

	require.Equal(t, KindFirstRunSeen, c.Classify(row("A", runAt, "90")).Kind)

	repeat := c.Classify(row("A", runAt, "85"))
	require.Equal(t, KindAllTimeLow, repeat.Kind)
	require.False(t, repeat.Alert)
}
