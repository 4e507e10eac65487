package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/bench"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

func TestParseAlgorithms(t *testing.T) {
	all, err := parseAlgorithms(nil)
	require.NoError(t, err)
	assert.Equal(t, matching.Algorithms(), all)

	some, err := parseAlgorithms([]string{"GEM", " maema"})
	require.NoError(t, err)
	assert.Equal(t, []matching.Algorithm{matching.AlgorithmGemTree, matching.AlgorithmMAEMA}, some)

	_, err = parseAlgorithms([]string{"bloom"})
	assert.ErrorIs(t, err, apperrors.ErrUnknownAlgorithm)
}

func TestRunPresets(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, runPresets(cmd, nil))

	var got map[string]bench.Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got, len(bench.PresetNames()))
	assert.Equal(t, 50000, got["avddm"].NbrSubs)
	assert.Equal(t, 2, got["maema"].SplitThreshold)
}

func TestPrintVerify(t *testing.T) {
	verifyColor = "never"
	defer func() { verifyColor = "auto"; color.NoColor = false }()

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	printVerify(cmd, []bench.VerifyResult{
		{Algorithm: matching.AlgorithmGemTree, Events: 10, TotalMatched: 42},
		{Algorithm: matching.AlgorithmMAEMA, Events: 10, Mismatches: 1, TotalMatched: 41,
			FirstMismatch: &bench.Mismatch{Event: 3, Missing: []int{7}, Extra: []int{}}},
	})

	out := buf.String()
	assert.Contains(t, out, "ALGORITHM")
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "MISMATCH")
	assert.Contains(t, out, "first at event 3: missing [7], extra []")
}
