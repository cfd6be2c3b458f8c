package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/clive/apps/brain/internal/brain"
	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.Bytes()
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("BRAIN_DB_DSN", filepath.Join(dir, "brain.db"))

	var learned models.LearnResponse
	require.NoError(t, json.Unmarshal(run(t, "learn", "What is the capital of France?", "Paris."), &learned))
	assert.True(t, learned.Created)

	var res models.QueryResult
	require.NoError(t, json.Unmarshal(run(t, "think", "what", "is", "the", "capital", "of", "france"), &res))
	assert.Equal(t, "Paris.", res.Answer)
	assert.Equal(t, learned.ID, res.MatchedEntryID)

	doc := filepath.Join(dir, "faq.txt")
	require.NoError(t, os.WriteFile(doc, []byte("What is X? X is Y. What is Z? Z is W."), 0o644))
	var ingested map[string]models.IngestResponse
	require.NoError(t, json.Unmarshal(run(t, "ingest", doc), &ingested))
	assert.Equal(t, 2, ingested[doc].LearnedCount)

	var st models.Stats
	require.NoError(t, json.Unmarshal(run(t, "stats"), &st))
	assert.Equal(t, 3, st.KnowledgeSize)

	var forgot models.ForgetResponse
	require.NoError(t, json.Unmarshal(run(t, "forget", learned.ID), &forgot))
	assert.True(t, forgot.Forgotten)

	require.NoError(t, json.Unmarshal(run(t, "think", "What is the capital of France?"), &res))
	assert.Equal(t, brain.UnknownAnswer, res.Answer)
}

func TestLearnRejectsBadConfidence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("BRAIN_DB_DSN", filepath.Join(dir, "brain.db"))

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"learn", "--confidence", "200", "Why?", "Because."})
	err := cmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
