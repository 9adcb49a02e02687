package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellis212/insurance-manager-sub000/internal/model"
	"github.com/cellis212/insurance-manager-sub000/internal/rng"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidate_Default(t *testing.T) {
	out, err := execute(t, "", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "bundle ok")
}

func TestDumpConfig_RoundTrips(t *testing.T) {
	out, err := execute(t, "", "dump-config")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bundle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o644))

	out, err = execute(t, "", "--bundle", path, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "bundle ok")
}

func TestValidate_BadBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schema_version: 99\n"), 0o644))
	_, err := execute(t, "", "--bundle", path, "validate")
	require.Error(t, err)
}

func TestRun_FromStdin(t *testing.T) {
	rf := RunFile{
		Turn:         3,
		SemesterSeed: 5,
		Companies: []*model.CompanyState{{
			ID:        "acme",
			Name:      "Acme",
			HomeState: "TX",
			Cash:      decimal.NewFromInt(4_000_000),
			Products: []model.Product{{
				State: "TX", Line: "auto", Tier: model.TierStandard, BasePrice: decimal.NewFromInt(1200),
				PriceMultiplier: 1, ActivePolicies: 500, CumulativeLosses: decimal.Zero,
			}},
			Authorizations: map[string]int{"TX": 0},
		}},
		Decisions: []model.Decision{{CompanyID: "acme", RateFilings: []string{"TX"}}},
	}
	body, err := json.Marshal(rf)
	require.NoError(t, err)

	out, err := execute(t, string(body), "run", "-")
	require.NoError(t, err)

	var got struct {
		Turn    int                `json:"turn"`
		Seed    uint64             `json:"seed"`
		Status  string             `json:"status"`
		Results []model.TurnResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 3, got.Turn)
	assert.Equal(t, rng.TurnSeed(5, 3), got.Seed)
	assert.Equal(t, "finalized", got.Status)
	require.Len(t, got.Results, 1)
	assert.False(t, got.Results[0].Defaulted)
}

func TestRun_RejectsDuplicateDecisions(t *testing.T) {
	body := `{"turn": 1, "companies": [], "decisions": [{"company_id": "a"}, {"company_id": "a"}]}`
	_, err := execute(t, body, "run", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "two decisions")
}

func TestSeed(t *testing.T) {
	out, err := execute(t, "", "seed", "--semester", "9", "--turn", "4")
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatUint(rng.TurnSeed(9, 4), 10), strings.TrimSpace(out))
}
