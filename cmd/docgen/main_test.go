package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/json"
	"github.com/ajitpratap0/docgen/pkg/models"
	"github.com/ajitpratap0/docgen/pkg/storage/memstore"
)

func TestFlagsOverrideConfig(t *testing.T) {
	f := &flags{}
	cmd := &cobra.Command{Use: "generate"}
	f.generatorFlags(cmd)
	f.storageFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--records", "10", "-b", "3", "--driver", "memory", "--seed", "9"}))

	cfg, err := f.load(cmd)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Generator.Records)
	assert.Equal(t, 3, cfg.Generator.BatchSize)
	assert.Equal(t, int64(9), cfg.Generator.Seed)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 4, cfg.Generator.MaxDepth, "unset flags keep the configured value")
}

func TestFlagsAreValidated(t *testing.T) {
	f := &flags{}
	cmd := &cobra.Command{Use: "generate"}
	f.generatorFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--batch-size", "0"}))

	_, err := f.load(cmd)
	assert.Error(t, err)
}

func TestRunQuery(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.Persist(ctx, []*models.Record{
		models.NewRecord(`{"attribute_1_4":{"attribute_2_2":"7"}}`),
		models.NewRecord(`{"attribute_1_4":{"attribute_2_2":"8"}}`),
	}))

	var out bytes.Buffer
	require.NoError(t, runQuery(ctx, &out, store, "", "", 0))
	assert.Equal(t, "2\n", out.String())

	out.Reset()
	require.NoError(t, runQuery(ctx, &out, store, "attribute_1_4.attribute_2_2", "8", 10))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)

	var hit struct {
		ID   string                 `json:"id"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &hit))
	assert.NotEmpty(t, hit.ID)
	assert.Contains(t, hit.Data, "attribute_1_4")

	assert.Error(t, runQuery(ctx, &out, store, "bad..path", "8", 10))
}

// persistOnlyStore can neither count nor search
type persistOnlyStore struct{}

func (persistOnlyStore) Persist(context.Context, []*models.Record) error { return nil }
func (persistOnlyStore) Name() string                                    { return "persist-only" }
func (persistOnlyStore) Close() error                                    { return nil }

func TestRunQueryUnsupportedCapabilities(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer

	err := runQuery(ctx, &out, persistOnlyStore{}, "", "", 0)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
	assert.Contains(t, err.Error(), "count is not supported")

	err = runQuery(ctx, &out, persistOnlyStore{}, "attribute_1_4.attribute_2_2", "8", 10)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
	assert.Contains(t, err.Error(), "search is not supported")
	assert.Empty(t, out.String())
}
