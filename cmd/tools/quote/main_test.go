package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunPrintsBreakdown(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"-product", "flyers", "-qty", "1000", "-catalog", "", "-tax", ""}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	require.Contains(t, out.String(), "18.99 EUR")
	require.Contains(t, out.String(), "1899")
}

func TestRunJSONWithExtras(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"-qty", "1000", "-envio", "express", "-extras", "gramaje=1.5, laminado=2", "-json", "-catalog", "", "-tax", ""}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	// 12 + 3.50 + 15.60
	require.Equal(t, float64(3110), body["total_minor_units"])
	require.Equal(t, "express", body["shipping_method"])
}

func TestRunRejectsOrders(t *testing.T) {
	var out, errOut bytes.Buffer
	require.Equal(t, 1, run([]string{"-product", "banners", "-qty", "10", "-catalog", "", "-tax", ""}, &out, &errOut))
	require.Contains(t, errOut.String(), "UNKNOWN_PRODUCT")

	errOut.Reset()
	require.Equal(t, 1, run([]string{"-qty", "0", "-catalog", "", "-tax", ""}, &out, &errOut))
	require.Contains(t, errOut.String(), "UNSUPPORTED_QUANTITY")

	errOut.Reset()
	require.Equal(t, 2, run([]string{"-qty", "10", "-extras", "gramaje", "-catalog", "", "-tax", ""}, &out, &errOut))
	require.Equal(t, 2, run([]string{"-qty", "10", "-tax", "abc", "-catalog", ""}, &out, &errOut))
}
