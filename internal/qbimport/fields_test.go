package qbimport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"1,250.75", 1250.75},
		{"$980", 980},
		{"(45.50)", -45.5},
		{"-12", -12},
		{"n/a", 0},
	}
	for _, tc := range cases {
		require.InDelta(t, tc.want, Amount(tc.in), 0.0001, "input %q", tc.in)
	}
}

func TestPercentage(t *testing.T) {
	require.Nil(t, Percentage(""))
	require.Nil(t, Percentage("abc"))

	rate := Percentage("8.25%")
	require.NotNil(t, rate)
	require.InDelta(t, 8.25, *rate, 0.0001)

	fractional := Percentage("0.0825")
	require.NotNil(t, fractional)
	require.InDelta(t, 8.25, *fractional, 0.0001)
}

func TestParseDate(t *testing.T) {
	d := ParseDate("3/14/2024")
	require.NotNil(t, d)
	require.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), *d)

	iso := ParseDate("2024-03-14")
	require.NotNil(t, iso)
	require.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), *iso)

	require.Nil(t, ParseDate(""))
	require.Nil(t, ParseDate("not a date"))
}

func TestParseBool(t *testing.T) {
	for _, truthy := range []string{"X", "yes", "TRUE", "1", "Active"} {
		require.True(t, ParseBool(truthy), "input %q", truthy)
	}
	for _, falsy := range []string{"", "no", "0", "inactive"} {
		require.False(t, ParseBool(falsy), "input %q", falsy)
	}
}

func TestFieldFrom(t *testing.T) {
	row := Row{"bill_to_1": "Harbor Marine", "phone1": "555-0100"}
	require.Equal(t, "Harbor Marine", row.FieldFrom("bill_to_1"))
	require.Equal(t, "555-0100", row.FieldFrom("phone_1"))
	require.Equal(t, "", row.FieldFrom("fax"))
}

func TestBuildAddress(t *testing.T) {
	row := Row{
		"bill_to_1": "Harbor Marine LLC",
		"bill_to_2": "200 Dock St",
		"bill_to_4": "Annapolis, MD 21401",
	}
	require.Equal(t, "Harbor Marine LLC\n200 Dock St\nAnnapolis, MD 21401", BuildAddress(row, "bill_to"))
	require.Equal(t, "", BuildAddress(row, "ship_to"))
}

func TestParseCityStateZip(t *testing.T) {
	city, state, zip := ParseCityStateZip("Annapolis, MD 21401")
	require.Equal(t, "Annapolis", city)
	require.Equal(t, "MD", state)
	require.Equal(t, "21401", zip)

	city, state, zip = ParseCityStateZip("Fort Lauderdale FL 33301-1234")
	require.Equal(t, "Fort Lauderdale", city)
	require.Equal(t, "FL", state)
	require.Equal(t, "33301-1234", zip)

	city, state, zip = ParseCityStateZip("just a street")
	require.Empty(t, city)
	require.Empty(t, state)
	require.Empty(t, zip)
}

func TestExtractCityStateZip(t *testing.T) {
	city, state, zip := ExtractCityStateZip("Harbor Marine LLC\n200 Dock St\nAnnapolis, MD 21401")
	require.Equal(t, "Annapolis", city)
	require.Equal(t, "MD", state)
	require.Equal(t, "21401", zip)
}

func TestEnsureUTF8(t *testing.T) {
	require.Equal(t, "plain", EnsureUTF8("plain"))

	latin1 := string([]byte{'C', 'a', 'f', 0xE9})
	require.Equal(t, "Café", EnsureUTF8(latin1))
}
