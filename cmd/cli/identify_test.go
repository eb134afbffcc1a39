package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/chain"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededIdentifier(t *testing.T) (*chain.Identifier, *memory.Storage) {
	t.Helper()

	d := decimal.NewFromInt(250)
	s := memory.New()
	for _, caseID := range []string{"a", "b"} {
		src := &common.Transaction{ID: caseID + "-1", DepositAmount: &d}
		dst := &common.Transaction{ID: caseID + "-2", WithdrawalAmount: &d}
		s.AddRelations(caseID, common.Relation{
			SourceTxID: src.ID, TargetTxID: dst.ID, Confidence: 0.8, SourceTx: src, TargetTx: dst,
		})
	}

	identifier, err := chain.NewIdentifier(chain.NewIdentifierParams{Relations: s, Chains: s})
	require.NoError(t, err)
	return identifier, s
}

func TestRunIdentifyJSON(t *testing.T) {
	identifier, s := seededIdentifier(t)

	var out bytes.Buffer
	err := runIdentify(t.Context(), &out, identifier, []string{"a", "b", "empty"}, identifyOptions{parallel: 2, asJSON: true})
	require.NoError(t, err)

	var results []caseResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].CaseID)
	assert.Equal(t, 1, results[0].ChainsIdentified)
	assert.Equal(t, "b", results[1].CaseID)
	assert.Equal(t, 1, results[1].ChainsIdentified)
	assert.Equal(t, 0, results[2].ChainsIdentified)
	assert.Equal(t, 2, s.Len())
}

func TestRunIdentifyText(t *testing.T) {
	identifier, _ := seededIdentifier(t)
	threshold := 0.9

	var out bytes.Buffer
	err := runIdentify(t.Context(), &out, identifier, []string{"a"}, identifyOptions{minConfidence: &threshold})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "a\t0 chains\t0 low confidence\t"))
}

func TestRunIdentifyReportsFailures(t *testing.T) {
	identifier, s := seededIdentifier(t)
	s.Err = assert.AnError

	var out bytes.Buffer
	err := runIdentify(t.Context(), &out, identifier, []string{"a"}, identifyOptions{parallel: 1})
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, out.String(), "a\tERROR\t")
}

func TestRunIdentifyRejectsThreshold(t *testing.T) {
	identifier, _ := seededIdentifier(t)
	threshold := -0.1

	err := runIdentify(t.Context(), &bytes.Buffer{}, identifier, []string{"a"}, identifyOptions{minConfidence: &threshold})
	assert.ErrorIs(t, err, chain.ErrInvalidConfidence)
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	root := newRootCmd()
	root.SetArgs([]string{"migrate", "up"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	assert.ErrorIs(t, root.Execute(), errNoDatabaseURL)
}
