package bpjs

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func statutoryConfig() Config {
	return Config{
		KesehatanEmployeeRate: d("0.01"),
		KesehatanCompanyRate:  d("0.04"),
		KesehatanSalaryCap:    d("12000000"),
		JHTEmployeeRate:       d("0.02"),
		JHTCompanyRate:        d("0.037"),
		JPEmployeeRate:        d("0.01"),
		JPCompanyRate:         d("0.02"),
		JPSalaryCap:           d("10042300"),
		JKKRates: map[RiskCategory]decimal.Decimal{
			RiskVeryLow:  d("0.0024"),
			RiskLow:      d("0.0054"),
			RiskMedium:   d("0.0089"),
			RiskHigh:     d("0.0127"),
			RiskVeryHigh: d("0.0174"),
		},
		JKMCompanyRate: d("0.003"),
	}
}

func TestCalculate_BelowCaps(t *testing.T) {
	res, err := Calculate(statutoryConfig(), d("8000000"), RiskLow)
	require.NoError(t, err)

	assert.True(t, res.KesehatanBase.Equal(d("8000000")))
	assert.True(t, res.Kesehatan.Employee.Equal(d("80000")))
	assert.True(t, res.Kesehatan.Company.Equal(d("320000")))
	assert.True(t, res.JHT.Employee.Equal(d("160000")))
	assert.True(t, res.JHT.Company.Equal(d("296000")))
	assert.True(t, res.JP.Employee.Equal(d("80000")))
	assert.True(t, res.JP.Company.Equal(d("160000")))
	assert.True(t, res.JKK.Equal(d("43200")))
	assert.True(t, res.JKM.Equal(d("24000")))

	assert.True(t, res.KetenagakerjaanEmployee.Equal(d("240000")))
	assert.True(t, res.KetenagakerjaanCompany.Equal(d("523200")))
	assert.True(t, res.TotalEmployee.Equal(d("320000")))
	assert.True(t, res.TotalCompany.Equal(d("843200")))
}

func TestCalculate_GrossAboveCaps(t *testing.T) {
	res, err := Calculate(statutoryConfig(), d("15000000"), RiskLow)
	require.NoError(t, err)

	assert.True(t, res.KesehatanBase.Equal(d("12000000")))
	assert.True(t, res.KesehatanCap.Equal(d("12000000")))
	assert.True(t, res.Kesehatan.Employee.Equal(d("120000")))
	assert.True(t, res.Kesehatan.Company.Equal(d("480000")))

	assert.True(t, res.JPBase.Equal(d("10042300")))
	assert.True(t, res.JP.Employee.Equal(d("100423")))
	assert.True(t, res.JP.Company.Equal(d("200846")))

	// JHT is never capped.
	assert.True(t, res.JHT.Employee.Equal(d("300000")))
	assert.True(t, res.JHT.Company.Equal(d("555000")))
	assert.True(t, res.JKK.Equal(d("81000")))
}

func TestCalculate_RiskCategory(t *testing.T) {
	t.Run("explicit high", func(t *testing.T) {
		res, err := Calculate(statutoryConfig(), d("10000000"), RiskHigh)
		require.NoError(t, err)
		assert.Equal(t, RiskHigh, res.RiskCategory)
		assert.True(t, res.JKK.Equal(d("127000")))
	})
	t.Run("normalized input", func(t *testing.T) {
		res, err := Calculate(statutoryConfig(), d("10000000"), RiskCategory(" very-high "))
		require.NoError(t, err)
		assert.Equal(t, RiskVeryHigh, res.RiskCategory)
	})
	t.Run("unknown falls back to low", func(t *testing.T) {
		res, err := Calculate(statutoryConfig(), d("10000000"), RiskCategory("EXTREME"))
		require.NoError(t, err)
		assert.Equal(t, RiskCategory("EXTREME"), res.RequestedRiskCategory)
		assert.Equal(t, RiskLow, res.RiskCategory)
		assert.True(t, res.JKKRate.Equal(d("0.0054")))
	})
	t.Run("empty defaults to low", func(t *testing.T) {
		res, err := Calculate(statutoryConfig(), d("10000000"), "")
		require.NoError(t, err)
		assert.Equal(t, RiskLow, res.RequestedRiskCategory)
		assert.Equal(t, RiskLow, res.RiskCategory)
	})
	t.Run("no low rate configured", func(t *testing.T) {
		cfg := statutoryConfig()
		cfg.JKKRates = map[RiskCategory]decimal.Decimal{RiskHigh: d("0.0127")}
		_, err := Calculate(cfg, d("10000000"), RiskMedium)
		assert.ErrorIs(t, err, ErrJKKRateMissing)
	})
}

func TestCalculate_ZeroCapMeansUncapped(t *testing.T) {
	cfg := statutoryConfig()
	cfg.KesehatanSalaryCap = decimal.Zero
	res, err := Calculate(cfg, d("20000000"), RiskLow)
	require.NoError(t, err)
	assert.True(t, res.KesehatanBase.Equal(d("20000000")))
	assert.True(t, res.Kesehatan.Employee.Equal(d("200000")))
}

func TestCalculate_ComponentsRoundedIndependently(t *testing.T) {
	cfg := statutoryConfig()
	// 3_333_333 * 0.037 = 123333.321 ; * 0.003 = 9999.999 ; * 0.0054 = 17999.9982
	res, err := Calculate(cfg, d("3333333"), RiskLow)
	require.NoError(t, err)
	assert.True(t, res.JHT.Company.Equal(d("123333")))
	assert.True(t, res.JKM.Equal(d("10000")))
	assert.True(t, res.JKK.Equal(d("18000")))

	sum := res.JHT.Company.Add(res.JP.Company).Add(res.JKK).Add(res.JKM)
	assert.True(t, sum.Equal(res.KetenagakerjaanCompany))
}

func TestConfigClone(t *testing.T) {
	cfg := statutoryConfig()
	cp := cfg.Clone()
	cp.JKKRates[RiskLow] = d("0.5")
	cp.JHTEmployeeRate = d("0.5")

	assert.True(t, cfg.JKKRates[RiskLow].Equal(d("0.0054")))
	assert.True(t, cfg.JHTEmployeeRate.Equal(d("0.02")))
	assert.True(t, cp.KesehatanSalaryCap.Equal(cfg.KesehatanSalaryCap))
}
